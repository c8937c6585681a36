package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecocert/internal/certificate/models"
	"ecocert/internal/certificate/service"
	"ecocert/internal/platform/metrics"
	"ecocert/internal/platform/middleware"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/httputil"
	"ecocert/pkg/requestcontext"
)

// Service defines the certificate operations the endpoints expose.
type Service interface {
	Get(ctx context.Context, actor id.Actor, certificateID id.CertificateID) (*models.Certificate, error)
	GetByRequest(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Certificate, error)
	ListForCompany(ctx context.Context, actor id.Actor, companyID id.CompanyID) ([]*models.Certificate, error)
	Verify(ctx context.Context, number string) (*service.VerificationResult, error)
	Revoke(ctx context.Context, actor id.Actor, certificateID id.CertificateID) (*models.Certificate, error)
	Render(ctx context.Context, actor id.Actor, certificateID id.CertificateID) ([]byte, error)
}

// Handler serves the certificate endpoints. Verification is public; the
// rest sits behind authentication.
type Handler struct {
	logger       *slog.Logger
	certificates Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(certificates Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		certificates: certificates,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/certificates", func(certRouter chi.Router) {
		certRouter.Use(middleware.Recovery(h.logger))
		certRouter.Use(middleware.RequestID)
		certRouter.Use(middleware.Logger(h.logger))
		certRouter.Use(middleware.Timeout(30 * time.Second))
		certRouter.Use(middleware.LatencyMiddleware(h.metrics))

		// Anyone holding a certificate number may check its validity.
		certRouter.Get("/verify/{number}", h.handleVerify)

		certRouter.Group(func(authed chi.Router) {
			authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			authed.Get("/", h.handleListForCompany)
			authed.Get("/{id}", h.handleGet)
			authed.Get("/{id}/download", h.handleDownload)
			authed.Post("/{id}/revoke", h.handleRevoke)
		})
	})
}

type certificateResponse struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	RequestID     string     `json:"request_id"`
	CompanyID     string     `json:"company_id"`
	TreatmentType string     `json:"treatment_type"`
	Status        string     `json:"status"`
	IssueDate     time.Time  `json:"issue_date"`
	ExpiryDate    time.Time  `json:"expiry_date"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

func toCertificateResponse(cert *models.Certificate, now time.Time) certificateResponse {
	return certificateResponse{
		ID:            cert.ID.String(),
		Number:        cert.Number,
		RequestID:     cert.RequestID.String(),
		CompanyID:     cert.CompanyID.String(),
		TreatmentType: cert.TreatmentType,
		Status:        string(cert.Status(now)),
		IssueDate:     cert.IssueDate,
		ExpiryDate:    cert.ExpiryDate,
		RevokedAt:     cert.RevokedAt,
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.certificates.Verify(ctx, chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"number":         result.Number,
		"status":         string(result.Status),
		"treatment_type": result.TreatmentType,
		"issue_date":     result.IssueDate,
		"expiry_date":    result.ExpiryDate,
	})
}

func (h *Handler) handleListForCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	companyID := actor.CompanyID
	if raw := r.URL.Query().Get("companyId"); raw != "" {
		parsed, err := id.ParseCompanyID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid company ID"))
			return
		}
		companyID = parsed
	}

	certs, err := h.certificates.ListForCompany(ctx, actor, companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]certificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, toCertificateResponse(cert, now))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.respondWithCertificate(w, r, h.certificates.Get)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.respondWithCertificate(w, r, h.certificates.Revoke)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certificateID, err := certificateIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rendered, err := h.certificates.Render(ctx, requestcontext.Actor(ctx), certificateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="certificate.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered)
}

func (h *Handler) respondWithCertificate(w http.ResponseWriter, r *http.Request, op func(context.Context, id.Actor, id.CertificateID) (*models.Certificate, error)) {
	ctx := r.Context()
	certificateID, err := certificateIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := op(ctx, requestcontext.Actor(ctx), certificateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert, requestcontext.Now(ctx)))
}

func certificateIDFromURL(r *http.Request) (id.CertificateID, error) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		return id.CertificateID{}, dErrors.New(dErrors.CodeBadRequest, "invalid certificate ID")
	}
	return certificateID, nil
}
