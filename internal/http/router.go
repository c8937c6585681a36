// Package httpapi assembles the public HTTP surface. Each bounded context
// mounts its own handler; this package only wires them together and adds
// the operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecocert/pkg/platform/httputil"
)

// Registrar is implemented by every context handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router assembles the API from context handlers and health checkers.
type Router struct {
	handlers []Registrar
	checkers map[string]HealthChecker
}

func NewRouter(handlers ...Registrar) *Router {
	return &Router{
		handlers: handlers,
		checkers: make(map[string]HealthChecker),
	}
}

// WithHealthCheck registers a named dependency probe for /healthz.
func (rt *Router) WithHealthCheck(name string, checker HealthChecker) *Router {
	rt.checkers[name] = checker
	return rt
}

// Build produces the http.Handler serving the whole API.
func (rt *Router) Build() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range rt.handlers {
		h.Register(r)
	}
	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := make(map[string]string, len(rt.checkers))
	for name, checker := range rt.checkers {
		if err := checker.Health(ctx); err != nil {
			deps[name] = "unreachable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	httputil.WriteJSON(w, status, body)
}
