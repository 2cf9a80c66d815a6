package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raynmakr/cb-future-site/internal/concierge"
	"github.com/raynmakr/cb-future-site/internal/config"
)

// Server is the site HTTP server: landing page, Concierge widget API, and
// operational endpoints.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config.
func New(cfg *config.Config) *Server {
	client := concierge.NewClient(cfg.UpstreamURL, cfg.UpstreamAPIKey, cfg.RequestTimeout, cfg.UpstreamProxyURL)

	router := mux.NewRouter()
	router.HandleFunc("/", servePage).Methods(http.MethodGet)
	router.Handle("/api/concierge", newConciergeHandler(client, cfg.Grounded, cfg.OfflineNotice)).Methods(http.MethodPost)
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.HandleFunc("/readyz", readyzHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     handler,
			ReadTimeout: 30 * time.Second,
			// No WriteTimeout: the widget relay holds event streams open for
			// as long as the upstream keeps producing deltas.
			IdleTimeout: 60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
