package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecocert/internal/platform/metrics"
	"ecocert/internal/platform/middleware"
	"ecocert/internal/report/models"
	"ecocert/internal/report/service"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/httputil"
	"ecocert/pkg/requestcontext"
)

// Service defines the reporting operations the endpoints expose.
type Service interface {
	Dashboard(ctx context.Context, actor id.Actor) (*service.DashboardStats, error)
	Company(ctx context.Context, actor id.Actor, companyID id.CompanyID) (*service.CompanyStats, error)
	GenerateAuditReport(ctx context.Context, actor id.Actor, title string, periodStart, periodEnd time.Time) (*models.GeneratedReport, error)
	Get(ctx context.Context, actor id.Actor, reportID id.ReportID) (*models.GeneratedReport, error)
	List(ctx context.Context, actor id.Actor) ([]*models.GeneratedReport, error)
}

// Handler serves the statistics and audit report endpoints.
type Handler struct {
	logger       *slog.Logger
	reports      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(reports Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		reports:      reports,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the reporting routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	common := func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	}

	r.Route("/api/stats", func(statsRouter chi.Router) {
		common(statsRouter)
		statsRouter.Get("/dashboard", h.handleDashboard)
		statsRouter.Get("/company", h.handleCompany)
	})
	r.Route("/api/reports", func(reportRouter chi.Router) {
		common(reportRouter)
		reportRouter.Post("/audit", h.handleGenerate)
		reportRouter.Get("/", h.handleList)
		reportRouter.Get("/{id}", h.handleGet)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.reports.Dashboard(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDashboardResponse(stats))
}

func (h *Handler) handleCompany(w http.ResponseWriter, r *http.Request) {
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
	if companyID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "company ID is required"))
		return
	}

	stats, err := h.reports.Company(ctx, actor, companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCompanyResponse(stats))
}

type generateReportRequest struct {
	Title       string    `json:"title"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.reports.GenerateAuditReport(ctx, requestcontext.Actor(ctx), req.Title, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.logger.WarnContext(ctx, "report generation refused",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReportResponse(report))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reports, err := h.reports.List(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, toReportResponse(report))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid report ID"))
		return
	}
	report, err := h.reports.Get(ctx, requestcontext.Actor(ctx), reportID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(report))
}
