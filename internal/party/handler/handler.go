package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecocert/internal/party/models"
	"ecocert/internal/platform/metrics"
	"ecocert/internal/platform/middleware"
	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/httputil"
)

// Service defines the account operations the auth endpoints need.
type Service interface {
	RegisterAccount(ctx context.Context, email, password string, role id.Role) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (id.Actor, error)
}

// TokenIssuer mints access tokens for authenticated actors.
type TokenIssuer interface {
	GenerateAccessToken(actor id.Actor, expiresIn time.Duration) (string, error)
}

// Handler serves the public registration and login endpoints.
type Handler struct {
	logger   *slog.Logger
	party    Service
	tokens   TokenIssuer
	tokenTTL time.Duration
	metrics  *metrics.Metrics
}

func New(party Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		party:    party,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		metrics:  metrics,
	}
}

// Register registers the auth routes with the chi router. These routes are
// public: everything else in the API requires the token minted here.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/auth", func(authRouter chi.Router) {
		authRouter.Use(middleware.Recovery(h.logger))
		authRouter.Use(middleware.RequestID)
		authRouter.Use(middleware.Logger(h.logger))
		authRouter.Use(middleware.Timeout(10 * time.Second))
		authRouter.Use(middleware.ContentTypeJSON)
		authRouter.Use(middleware.LatencyMiddleware(h.metrics))
		authRouter.Post("/register", h.handleRegister)
		authRouter.Post("/login", h.handleLogin)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown role"))
		return
	}
	if role == id.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin accounts cannot self register"))
		return
	}

	account, err := h.party.RegisterAccount(ctx, req.Email, req.Password, role)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:    account.ID.String(),
		Email: account.Email,
		Role:  string(account.Role),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Role        string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	actor, err := h.party.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(actor, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
		Role:        string(actor.Role),
	})
}
