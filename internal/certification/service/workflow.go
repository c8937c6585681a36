package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecocert/internal/certification/models"
	requeststore "ecocert/internal/certification/store/request"
	"ecocert/internal/notification"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/requestcontext"
)

// SubmitInput carries everything needed to open a certification request.
type SubmitInput struct {
	TreatmentType   string
	Data            map[string]any
	MainDocumentURL string
}

// Submit opens a new certification request for the actor's company. The
// request enters the queue in the submitted state and the creation is
// recorded in the ledger atomically with the insert.
func (s *WorkflowService) Submit(ctx context.Context, actor id.Actor, input SubmitInput) (*models.Request, error) {
	if !actor.IsEnterprise() || actor.CompanyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only enterprise accounts can submit certification requests")
	}

	start := time.Now()
	var request *models.Request
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		r, err := models.NewRequest(id.RequestID(uuid.New()), actor.CompanyID, input.TreatmentType, input.Data, now)
		if err != nil {
			return err
		}
		r.MainDocumentURL = input.MainDocumentURL

		if err := s.requests.Create(txCtx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
		}
		entry := models.NewHistoryEntry(r.ID, models.ActionSubmitted,
			fmt.Sprintf("certification request submitted for %s treatment", r.TreatmentType),
			performedBy(actor), now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record request submission")
		}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestSubmitted, request, "")
	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// Get loads a request. Enterprises only see their own company's requests;
// reviewers and admins see everything.
func (s *WorkflowService) Get(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListForActor returns the requests the actor is allowed to see. Filters
// only apply to reviewer and admin listings; enterprises always get their
// own full list.
func (s *WorkflowService) ListForActor(ctx context.Context, actor id.Actor, filters requeststore.Filters) ([]*models.Request, error) {
	if actor.IsReviewer() || actor.IsAdmin() {
		requests, err := s.requests.List(ctx, filters)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
		}
		return requests, nil
	}
	if actor.CompanyID.IsNil() {
		return []*models.Request{}, nil
	}
	requests, err := s.requests.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return requests, nil
}

// AssignToMe claims review ownership of a request for the acting reviewer.
func (s *WorkflowService) AssignToMe(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	var request *models.Request
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.requests.Execute(txCtx, requestID,
			func(r *models.Request) error {
				return r.CanClaim(actor.EmployeeID)
			},
			func(r *models.Request) {
				r.ApplyClaim(actor.EmployeeID, now)
			},
		)
		if err != nil {
			return wrapRequestErr(err)
		}
		entry := models.NewHistoryEntry(requestID, models.ActionAssigned,
			"request assigned for review", performedBy(actor), now).
			WithExtra(map[string]any{"employee_id": actor.EmployeeID.String()})
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record assignment")
		}
		request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestAssigned, request, "")
	if s.metrics != nil {
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// Validate approves a request. A reviewer validating an unclaimed request
// claims it and approves in one step; the ledger then carries both the
// assignment and the approval. Validating a request owned by another
// reviewer fails with a forbidden error.
func (s *WorkflowService) Validate(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		request      *models.Request
		autoAssigned bool
	)
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.requests.Execute(txCtx, requestID,
			func(r *models.Request) error {
				if r.AssignedTo == nil {
					return r.CanClaim(actor.EmployeeID)
				}
				return r.CanDecide(actor.EmployeeID, false)
			},
			func(r *models.Request) {
				if r.AssignedTo == nil {
					r.ApplyClaim(actor.EmployeeID, now)
					autoAssigned = true
				}
				r.ApplyApproval(actor.EmployeeID, now)
			},
		)
		if err != nil {
			return wrapRequestErr(err)
		}
		if autoAssigned {
			entry := models.NewHistoryEntry(requestID, models.ActionAssigned,
				"request claimed during validation", performedBy(actor), now).
				WithExtra(map[string]any{"employee_id": actor.EmployeeID.String()})
			if err := s.history.Append(txCtx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record assignment")
			}
		}
		entry := models.NewHistoryEntry(requestID, models.ActionApproved,
			"request approved", performedBy(actor), now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval")
		}
		request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestApproved, request, "")
	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// Reject turns a request down with a mandatory reason. A rejection report
// is written in the same transaction as the transition so the reason can
// never be lost. Like Validate, rejecting an unclaimed request claims it
// first.
func (s *WorkflowService) Reject(ctx context.Context, actor id.Actor, requestID id.RequestID, reason string) (*models.Request, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		request      *models.Request
		autoAssigned bool
	)
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		report, err := models.NewRejectionReport(id.ReportID(uuid.New()), requestID, actor.EmployeeID, reason, now)
		if err != nil {
			return err
		}

		updated, err := s.requests.Execute(txCtx, requestID,
			func(r *models.Request) error {
				if r.AssignedTo == nil {
					return r.CanClaim(actor.EmployeeID)
				}
				return r.CanDecide(actor.EmployeeID, false)
			},
			func(r *models.Request) {
				if r.AssignedTo == nil {
					r.ApplyClaim(actor.EmployeeID, now)
					autoAssigned = true
				}
				r.ApplyRejection(actor.EmployeeID, now)
			},
		)
		if err != nil {
			return wrapRequestErr(err)
		}
		if err := s.reports.Create(txCtx, report); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create rejection report")
		}
		if autoAssigned {
			entry := models.NewHistoryEntry(requestID, models.ActionAssigned,
				"request claimed during review", performedBy(actor), now).
				WithExtra(map[string]any{"employee_id": actor.EmployeeID.String()})
			if err := s.history.Append(txCtx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record assignment")
			}
		}
		entry := models.NewHistoryEntry(requestID, models.ActionRejected, report.Comments, performedBy(actor), now).
			WithExtra(map[string]any{"report_id": report.ID.String()})
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rejection")
		}
		request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestRejected, request, reason)
	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// Resubmit sends a rejected request back into the queue. The new data is
// merged over the previous submission: untouched fields survive, corrected
// fields win.
func (s *WorkflowService) Resubmit(ctx context.Context, actor id.Actor, requestID id.RequestID, newData map[string]any) (*models.Request, error) {
	start := time.Now()
	var request *models.Request
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.requests.Execute(txCtx, requestID,
			func(r *models.Request) error {
				if !actor.OwnsCompany(r.CompanyID) {
					return dErrors.New(dErrors.CodeForbidden, "only the request owner can resubmit")
				}
				return r.CanResubmit()
			},
			func(r *models.Request) {
				r.ApplyResubmission(newData, now)
			},
		)
		if err != nil {
			return wrapRequestErr(err)
		}
		entry := models.NewHistoryEntry(requestID, models.ActionSubmitted,
			"request resubmitted with corrections", performedBy(actor), now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record resubmission")
		}
		request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestResubmitted, request, "")
	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// Cancel withdraws a request. The owner may cancel while the request is
// still in flight; admins may cancel on the owner's behalf.
func (s *WorkflowService) Cancel(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
	start := time.Now()
	var request *models.Request
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.requests.Execute(txCtx, requestID,
			func(r *models.Request) error {
				if !actor.IsAdmin() && !actor.OwnsCompany(r.CompanyID) {
					return dErrors.New(dErrors.CodeForbidden, "only the request owner can cancel")
				}
				return r.CanCancel()
			},
			func(r *models.Request) {
				r.ApplyCancellation(now)
			},
		)
		if err != nil {
			return wrapRequestErr(err)
		}
		entry := models.NewHistoryEntry(requestID, models.ActionCancelled,
			"request cancelled", performedBy(actor), now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record cancellation")
		}
		request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.emit(ctx, notification.EventRequestCancelled, request, "")
	if s.metrics != nil {
		s.metrics.RequestsCancelled.Inc()
		s.metrics.ObserveTransition(start)
	}
	return request, nil
}

// AttachDocument adds a supporting document to a live request by reference.
// The file URL points at content already hosted elsewhere; for inline
// uploads see UploadDocument.
func (s *WorkflowService) AttachDocument(ctx context.Context, actor id.Actor, requestID id.RequestID, name, docType, fileURL, description string) (*models.SupportingDocument, error) {
	r, err := s.requestForAttachment(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, r, id.DocumentID(uuid.New()), name, docType, fileURL, description)
}

// UploadDocument stores raw document content in the file store and attaches
// the resulting reference to the request. Callers never see storage URLs;
// the content comes back out through DocumentContent.
func (s *WorkflowService) UploadDocument(ctx context.Context, actor id.Actor, requestID id.RequestID, name, docType, description string, content []byte) (*models.SupportingDocument, error) {
	r, err := s.requestForAttachment(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document name is required")
	}
	if len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "document content is empty")
	}

	documentID := id.DocumentID(uuid.New())
	fileURL, err := s.files.Put(ctx, content, requestID.String()+"/"+documentID.String()+"/"+name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document content")
	}
	return s.attach(ctx, r, documentID, name, docType, fileURL, description)
}

// DocumentContent resolves an attached document back into bytes. Only
// uploaded documents have retrievable content; reference attachments live
// outside the file store.
func (s *WorkflowService) DocumentContent(ctx context.Context, actor id.Actor, requestID id.RequestID, documentID id.DocumentID) (*models.SupportingDocument, []byte, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, nil, err
	}

	docs, err := s.documents.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	for _, doc := range docs {
		if doc.ID != documentID {
			continue
		}
		content, err := s.files.Get(ctx, doc.FileURL)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, nil, dErrors.New(dErrors.CodeNotFound, "document content not available")
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch document content")
		}
		return doc, content, nil
	}
	return nil, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
}

func (s *WorkflowService) requestForAttachment(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if !actor.IsReviewer() && !actor.IsAdmin() && !actor.OwnsCompany(r.CompanyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to attach documents to this request")
	}
	if r.Status == models.StatusCancelled {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot attach documents to a cancelled request")
	}
	return r, nil
}

func (s *WorkflowService) attach(ctx context.Context, r *models.Request, documentID id.DocumentID, name, docType, fileURL, description string) (*models.SupportingDocument, error) {
	doc, err := models.NewSupportingDocument(documentID, r.ID, name, docType, fileURL, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.documents.Add(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	s.emitter.emit(ctx, notification.EventDocumentAttached, r, doc.Name)
	return doc, nil
}

// Documents returns everything attached to the request: the document
// provided at submission time, if any, followed by later attachments.
func (s *WorkflowService) Documents(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]*models.SupportingDocument, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, err
	}

	docs, err := s.documents.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	if r.MainDocumentURL == "" {
		return docs, nil
	}
	main := &models.SupportingDocument{
		RequestID:  requestID,
		Name:       "submission document",
		DocType:    "main",
		FileURL:    r.MainDocumentURL,
		UploadedAt: r.CreatedAt,
	}
	return append([]*models.SupportingDocument{main}, docs...), nil
}

// SubmitForm records a structured questionnaire answered for the request.
// The request owner fills forms while the file is live; reviewers can add
// them during review.
func (s *WorkflowService) SubmitForm(ctx context.Context, actor id.Actor, requestID id.RequestID, formName string, answers map[string]any) (*models.FormSubmission, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if !actor.IsReviewer() && !actor.IsAdmin() && !actor.OwnsCompany(r.CompanyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to submit forms for this request")
	}
	if r.Status == models.StatusCancelled {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot submit forms for a cancelled request")
	}

	sub, err := models.NewFormSubmission(id.FormSubmissionID(uuid.New()), requestID, formName, answers, actor.AccountID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.forms.Add(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store form submission")
	}
	return sub, nil
}

// FormSubmissions returns the forms recorded for a request in submission
// order.
func (s *WorkflowService) FormSubmissions(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]*models.FormSubmission, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, err
	}
	subs, err := s.forms.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list form submissions")
	}
	return subs, nil
}

// History returns the request ledger, newest entry first.
func (s *WorkflowService) History(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]models.HistoryEntry, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list history")
	}
	return entries, nil
}

// RejectionReports returns the rejection reports for a request, newest
// first.
func (s *WorkflowService) RejectionReports(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]*models.RejectionReport, error) {
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := canView(actor, r); err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rejection reports")
	}
	return reports, nil
}

// IssueCertificate issues the certificate for an approved request. Issuance
// is idempotent: a second call returns the existing certificate without a
// second ledger entry.
func (s *WorkflowService) IssueCertificate(ctx context.Context, actor id.Actor, requestID id.RequestID) (CertificateRef, error) {
	if err := requireReviewer(actor); err != nil {
		return CertificateRef{}, err
	}
	if s.issuer == nil {
		return CertificateRef{}, dErrors.New(dErrors.CodeInternal, "certificate issuance is not configured")
	}

	var (
		ref     CertificateRef
		created bool
		request *models.Request
	)
	err := s.tx.RunInTx(withTxRequest(ctx, requestID.String()), func(txCtx context.Context) error {
		r, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			return wrapRequestErr(err)
		}
		if err := r.CanIssueCertificate(); err != nil {
			return err
		}

		ref, created, err = s.issuer.IssueForRequest(txCtx, r)
		if err != nil {
			return err
		}
		if created {
			entry := models.NewHistoryEntry(requestID, models.ActionCertificateIssued,
				fmt.Sprintf("certificate %s issued", ref.Number), performedBy(actor), requestcontext.Now(txCtx)).
				WithExtra(map[string]any{"certificate_id": ref.ID.String(), "certificate_number": ref.Number})
			if err := s.history.Append(txCtx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record issuance")
			}
		}
		request = r
		return nil
	})
	if err != nil {
		return CertificateRef{}, err
	}

	if created {
		s.emitter.emit(ctx, notification.EventCertificateIssued, request, ref.Number)
		if s.metrics != nil {
			s.metrics.CertificatesIssued.Inc()
		}
	}
	return ref, nil
}

// ApproveAndIssue validates a request and immediately issues its
// certificate. When issuance is blocked, for example by payment gating, the
// approval stands and the error reports why the certificate is pending.
func (s *WorkflowService) ApproveAndIssue(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, CertificateRef, error) {
	request, err := s.Validate(ctx, actor, requestID)
	if err != nil {
		return nil, CertificateRef{}, err
	}
	ref, err := s.IssueCertificate(ctx, actor, requestID)
	if err != nil {
		return request, CertificateRef{}, err
	}
	return request, ref, nil
}

// requireReviewer admits employees only. Authority actors carry an
// EmployeeID too but are read-only auditors and never mutate requests.
func requireReviewer(actor id.Actor) error {
	if actor.Role != id.RoleEmployee || actor.EmployeeID.IsNil() {
		return dErrors.New(dErrors.CodeForbidden, "only certification employees can perform this action")
	}
	return nil
}

func canView(actor id.Actor, r *models.Request) error {
	if actor.IsAdmin() || actor.IsReviewer() || actor.OwnsCompany(r.CompanyID) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "not allowed to view this request")
}

func performedBy(actor id.Actor) *id.AccountID {
	if actor.AccountID.IsNil() {
		return nil
	}
	accountID := actor.AccountID
	return &accountID
}

func wrapRequestErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "request already exists")
	default:
		return err
	}
}
