package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecocert/internal/payment/models"
	"ecocert/internal/payment/service"
	"ecocert/internal/platform/metrics"
	"ecocert/internal/platform/middleware"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/httputil"
	"ecocert/pkg/requestcontext"
)

// Service defines the payment operations the endpoints expose.
type Service interface {
	QuoteFor(treatmentType string) service.Quote
	CreatePayment(ctx context.Context, actor id.Actor, requestID id.RequestID, method models.Method) (*models.Payment, error)
	GetByRequest(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.Payment, error)
	Settle(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error)
	Fail(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error)
	Cancel(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error)
	Refund(ctx context.Context, actor id.Actor, paymentID id.PaymentID) (*models.Payment, error)
}

// Handler serves the certification fee payment endpoints.
type Handler struct {
	logger       *slog.Logger
	payments     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(payments Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		payments:     payments,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the payment routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/payments", func(paymentRouter chi.Router) {
		paymentRouter.Use(middleware.Recovery(h.logger))
		paymentRouter.Use(middleware.RequestID)
		paymentRouter.Use(middleware.Logger(h.logger))
		paymentRouter.Use(middleware.Timeout(30 * time.Second))
		paymentRouter.Use(middleware.ContentTypeJSON)
		paymentRouter.Use(middleware.LatencyMiddleware(h.metrics))
		paymentRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		paymentRouter.Get("/quote", h.handleQuote)
		paymentRouter.Post("/", h.handleCreate)
		paymentRouter.Get("/request/{requestID}", h.handleGetByRequest)
		paymentRouter.Post("/{id}/process", h.handleProcess)
		paymentRouter.Post("/{id}/fail", h.handleFail)
		paymentRouter.Post("/{id}/cancel", h.handleCancel)
		paymentRouter.Post("/{id}/refund", h.handleRefund)
	})
}

type createPaymentRequest struct {
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
}

type paymentResponse struct {
	ID            string     `json:"id"`
	RequestID     string     `json:"request_id"`
	Status        string     `json:"status"`
	Method        string     `json:"method"`
	Amount        float64    `json:"amount"`
	Fees          float64    `json:"fees"`
	Total         float64    `json:"total"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID.String(),
		RequestID:     p.RequestID.String(),
		Status:        string(p.Status),
		Method:        string(p.Method),
		Amount:        p.Amount,
		Fees:          p.Fees,
		Total:         p.Total,
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
	}
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	treatmentType := r.URL.Query().Get("treatmentType")
	if treatmentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "treatmentType query parameter is required"))
		return
	}
	quote := h.payments.QuoteFor(treatmentType)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"treatment_type": quote.TreatmentType,
		"amount":         quote.Amount,
		"fees":           quote.Fees,
		"total":          quote.Total,
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	requestID, err := id.ParseRequestID(req.RequestID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request ID"))
		return
	}

	p, err := h.payments.CreatePayment(ctx, requestcontext.Actor(ctx), requestID, models.Method(req.Method))
	if err != nil {
		h.logger.WarnContext(ctx, "payment creation refused",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) handleGetByRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request ID"))
		return
	}
	p, err := h.payments.GetByRequest(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	h.respondWithPayment(w, r, h.payments.Settle)
}

func (h *Handler) handleFail(w http.ResponseWriter, r *http.Request) {
	h.respondWithPayment(w, r, h.payments.Fail)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.respondWithPayment(w, r, h.payments.Cancel)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	h.respondWithPayment(w, r, h.payments.Refund)
}

func (h *Handler) respondWithPayment(w http.ResponseWriter, r *http.Request, op func(context.Context, id.Actor, id.PaymentID) (*models.Payment, error)) {
	ctx := r.Context()
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid payment ID"))
		return
	}
	p, err := op(ctx, requestcontext.Actor(ctx), paymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}
