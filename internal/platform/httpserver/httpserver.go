package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. ReadHeaderTimeout guards against slowloris
// clients; handler timeouts are enforced by middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
