package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"ecocert/pkg/domain"
	"ecocert/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AccountID  string
	Role       string
	CompanyID  string
	EmployeeID string
}

// Actor resolves the claims into a typed domain actor. Returns an error for
// malformed claims rather than letting bad IDs flow into services.
func (c *JWTClaims) Actor() (domain.Actor, error) {
	accountID, err := domain.ParseAccountID(c.AccountID)
	if err != nil {
		return domain.Actor{}, err
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Actor{}, err
	}
	actor := domain.Actor{AccountID: accountID, Role: role}
	if c.CompanyID != "" {
		if actor.CompanyID, err = domain.ParseCompanyID(c.CompanyID); err != nil {
			return domain.Actor{}, err
		}
	}
	if c.EmployeeID != "" {
		if actor.EmployeeID, err = domain.ParseEmployeeID(c.EmployeeID); err != nil {
			return domain.Actor{}, err
		}
	}
	return actor, nil
}

func writeAuthError(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}

// RequireAuth validates the bearer token and injects the resolved actor into
// the request context. Requests without a valid token are rejected with 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, "Invalid or expired token")
				return
			}

			actor, err := claims.Actor()
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

// RequireRole rejects authenticated actors whose role is not in the allowed
// set. Must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if !allowed[actor.Role] {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", actor.Role,
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"Insufficient role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
