package service

import (
	"context"
	"log/slog"

	"ecocert/internal/certification/metrics"
	"ecocert/internal/certification/models"
	requeststore "ecocert/internal/certification/store/request"
	"ecocert/internal/docstore"
	"ecocert/internal/notification"
	id "ecocert/pkg/domain"
)

type RequestStore interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Execute(ctx context.Context, requestID id.RequestID, validateFn func(*models.Request) error, mutateFn func(*models.Request)) (*models.Request, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Request, error)
	List(ctx context.Context, filters requeststore.Filters) ([]*models.Request, error)
}

type HistoryStore interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]models.HistoryEntry, error)
}

type ReportStore interface {
	Create(ctx context.Context, report *models.RejectionReport) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.RejectionReport, error)
}

type DocumentStore interface {
	Add(ctx context.Context, doc *models.SupportingDocument) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.SupportingDocument, error)
}

type FormStore interface {
	Add(ctx context.Context, sub *models.FormSubmission) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]*models.FormSubmission, error)
}

// FileStore holds raw document content. The workflow stores uploads there
// and keeps only the returned opaque URL on the dossier.
type FileStore interface {
	Put(ctx context.Context, content []byte, path string) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

// Notifier fans workflow events out to interested parties. Delivery is best
// effort: the workflow never fails because a notification could not be sent.
type Notifier interface {
	Emit(ctx context.Context, event notification.Event) error
}

// CertificateRef is the issuance result handed back across the context
// boundary.
type CertificateRef struct {
	ID     id.CertificateID
	Number string
}

// CertificateIssuer creates certificates for approved requests. Issue is
// idempotent: repeated calls for the same request return the existing
// certificate with created=false.
type CertificateIssuer interface {
	IssueForRequest(ctx context.Context, r *models.Request) (ref CertificateRef, created bool, err error)
}

// WorkflowService orchestrates the certification request lifecycle. Every
// committed transition appends exactly one ledger entry inside the same
// transactional boundary as the status change.
type WorkflowService struct {
	requests  RequestStore
	history   HistoryStore
	reports   ReportStore
	documents DocumentStore
	forms     FormStore
	files     FileStore
	issuer    CertificateIssuer
	emitter   *workflowEmitter
	metrics   *metrics.Metrics
	tx        StoreTx
}

type serviceConfig struct {
	logger   *slog.Logger
	notifier Notifier
	metrics  *metrics.Metrics
	tx       StoreTx
	files    FileStore
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) {
		cfg.logger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(cfg *serviceConfig) {
		cfg.notifier = notifier
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

// WithStoreTx overrides the transactional runner. Postgres deployments pass
// a database-backed runner; the default is a sharded in-process lock.
func WithStoreTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = tx
	}
}

// WithFileStore overrides where uploaded document content lands. The
// default keeps content in process memory.
func WithFileStore(files FileStore) Option {
	return func(cfg *serviceConfig) {
		cfg.files = files
	}
}

// NewWorkflowService constructs the workflow engine. The issuer may be nil
// when certificate issuance is wired separately (tests exercising only
// transitions).
func NewWorkflowService(requests RequestStore, history HistoryStore, reports ReportStore, documents DocumentStore, forms FormStore, issuer CertificateIssuer, opts ...Option) *WorkflowService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	files := cfg.files
	if files == nil {
		files = docstore.NewInMemory()
	}
	return &WorkflowService{
		requests:  requests,
		history:   history,
		reports:   reports,
		documents: documents,
		forms:     forms,
		files:     files,
		issuer:    issuer,
		emitter:   newWorkflowEmitter(cfg.logger, cfg.notifier),
		metrics:   cfg.metrics,
		tx:        tx,
	}
}
