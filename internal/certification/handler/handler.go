package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecocert/internal/certification/models"
	"ecocert/internal/certification/service"
	requeststore "ecocert/internal/certification/store/request"
	partymodels "ecocert/internal/party/models"
	"ecocert/internal/platform/metrics"
	"ecocert/internal/platform/middleware"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/httputil"
	"ecocert/pkg/requestcontext"
)

// Workflow defines the request lifecycle operations the endpoints expose.
type Workflow interface {
	Submit(ctx context.Context, actor id.Actor, input service.SubmitInput) (*models.Request, error)
	Get(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error)
	ListForActor(ctx context.Context, actor id.Actor, filters requeststore.Filters) ([]*models.Request, error)
	AssignToMe(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error)
	Validate(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error)
	Reject(ctx context.Context, actor id.Actor, requestID id.RequestID, reason string) (*models.Request, error)
	Resubmit(ctx context.Context, actor id.Actor, requestID id.RequestID, newData map[string]any) (*models.Request, error)
	Cancel(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error)
	AttachDocument(ctx context.Context, actor id.Actor, requestID id.RequestID, name, docType, fileURL, description string) (*models.SupportingDocument, error)
	UploadDocument(ctx context.Context, actor id.Actor, requestID id.RequestID, name, docType, description string, content []byte) (*models.SupportingDocument, error)
	Documents(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]*models.SupportingDocument, error)
	DocumentContent(ctx context.Context, actor id.Actor, requestID id.RequestID, documentID id.DocumentID) (*models.SupportingDocument, []byte, error)
	SubmitForm(ctx context.Context, actor id.Actor, requestID id.RequestID, formName string, answers map[string]any) (*models.FormSubmission, error)
	FormSubmissions(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]*models.FormSubmission, error)
	History(ctx context.Context, actor id.Actor, requestID id.RequestID) ([]models.HistoryEntry, error)
	IssueCertificate(ctx context.Context, actor id.Actor, requestID id.RequestID) (service.CertificateRef, error)
}

// Profiles resolves an enterprise account's company profile, creating it
// from submission hints on first use.
type Profiles interface {
	GetOrCreateCompanyProfile(ctx context.Context, actor id.Actor, hints partymodels.ProfileHints) (*partymodels.CompanyProfile, error)
}

// Handler serves the certification request lifecycle endpoints.
type Handler struct {
	logger       *slog.Logger
	workflow     Workflow
	profiles     Profiles
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(workflow Workflow, profiles Profiles, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		workflow:     workflow,
		profiles:     profiles,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/requests", func(requestRouter chi.Router) {
		requestRouter.Use(middleware.Recovery(h.logger))
		requestRouter.Use(middleware.RequestID)
		requestRouter.Use(middleware.Logger(h.logger))
		requestRouter.Use(middleware.Timeout(30 * time.Second))
		requestRouter.Use(middleware.ContentTypeJSON)
		requestRouter.Use(middleware.LatencyMiddleware(h.metrics))
		requestRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		requestRouter.Post("/", h.handleSubmit)
		requestRouter.Get("/", h.handleList)
		requestRouter.Get("/{id}", h.handleGet)
		requestRouter.Post("/{id}/assign", h.handleAssign)
		requestRouter.Post("/{id}/validate", h.handleValidate)
		requestRouter.Post("/{id}/reject", h.handleReject)
		requestRouter.Post("/{id}/resubmit", h.handleResubmit)
		requestRouter.Post("/{id}/cancel", h.handleCancel)
		requestRouter.Post("/{id}/certificate", h.handleIssueCertificate)
		requestRouter.Get("/{id}/history", h.handleHistory)
		requestRouter.Get("/{id}/documents", h.handleListDocuments)
		requestRouter.Post("/{id}/documents", h.handleAttachDocument)
		requestRouter.Get("/{id}/documents/{docID}/content", h.handleDownloadDocument)
		requestRouter.Get("/{id}/forms", h.handleListForms)
		requestRouter.Post("/{id}/forms", h.handleSubmitForm)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// An enterprise's first submission creates its company profile from the
	// form data, so the actor gains a company ID before the workflow runs.
	if actor.Role == id.RoleEnterprise && actor.CompanyID.IsNil() {
		profile, err := h.profiles.GetOrCreateCompanyProfile(ctx, actor, req.profileHints())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		actor.CompanyID = profile.ID
	}

	created, err := h.workflow.Submit(ctx, actor, service.SubmitInput{
		TreatmentType:   req.TreatmentType,
		Data:            req.Data,
		MainDocumentURL: req.MainDocumentURL,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submission refused",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	filters, err := filtersFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	requests, err := h.workflow.ListForActor(ctx, actor, filters)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.respondWithRequest(w, r, func(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Request, error) {
		return h.workflow.Get(ctx, actor, requestID)
	})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	h.respondWithRequest(w, r, h.workflow.AssignToMe)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	h.respondWithRequest(w, r, h.workflow.Validate)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.workflow.Reject(ctx, requestcontext.Actor(ctx), requestID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req resubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.workflow.Resubmit(ctx, requestcontext.Actor(ctx), requestID, req.Data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.respondWithRequest(w, r, h.workflow.Cancel)
}

func (h *Handler) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ref, err := h.workflow.IssueCertificate(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, certificateRefResponse{
		ID:     ref.ID.String(),
		Number: ref.Number,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.workflow.History(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toHistoryResponse(entry))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	documents, err := h.workflow.Documents(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(documents))
	for _, doc := range documents {
		out = append(out, toDocumentResponse(doc))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req attachDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// A document arrives either inline, as base64 content to store, or by
	// reference to content hosted elsewhere.
	var doc *models.SupportingDocument
	switch {
	case req.Content != "" && req.FileURL != "":
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "provide either content or file_url, not both"))
		return
	case req.Content != "":
		content, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "content must be base64 encoded"))
			return
		}
		doc, err = h.workflow.UploadDocument(ctx, requestcontext.Actor(ctx), requestID, req.Name, req.DocType, req.Description, content)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	default:
		var err error
		doc, err = h.workflow.AttachDocument(ctx, requestcontext.Actor(ctx), requestID, req.Name, req.DocType, req.FileURL, req.Description)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "docID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document ID"))
		return
	}

	doc, content, err := h.workflow.DocumentContent(ctx, requestcontext.Actor(ctx), requestID, documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	forms, err := h.workflow.FormSubmissions(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]formSubmissionResponse, 0, len(forms))
	for _, sub := range forms {
		out = append(out, toFormSubmissionResponse(sub))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req submitFormRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.workflow.SubmitForm(ctx, requestcontext.Actor(ctx), requestID, req.FormName, req.Answers)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toFormSubmissionResponse(sub))
}

// respondWithRequest factors the id-from-URL transitions that take no body.
func (h *Handler) respondWithRequest(w http.ResponseWriter, r *http.Request, op func(context.Context, id.Actor, id.RequestID) (*models.Request, error)) {
	ctx := r.Context()
	requestID, err := requestIDFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := op(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

func requestIDFromURL(r *http.Request) (id.RequestID, error) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		return id.RequestID{}, dErrors.New(dErrors.CodeBadRequest, "invalid request ID")
	}
	return requestID, nil
}

func filtersFromQuery(r *http.Request) (requeststore.Filters, error) {
	filters := requeststore.Filters{
		TreatmentType: r.URL.Query().Get("treatmentType"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return requeststore.Filters{}, err
		}
		filters.Status = status
	}
	if raw := r.URL.Query().Get("companyId"); raw != "" {
		companyID, err := id.ParseCompanyID(raw)
		if err != nil {
			return requeststore.Filters{}, dErrors.New(dErrors.CodeBadRequest, "invalid company ID")
		}
		filters.CompanyID = companyID
	}
	return filters, nil
}
