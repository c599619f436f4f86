package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/shopbot/core/logger"
)

// Server exposes /health and, when metrics are given, /metrics.
type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server listening on addr.
func NewServer(addr string, m *Metrics) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           Handler(m),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Handler returns the mux serving /health and /metrics.
func Handler(m *Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if reg := m.Registry(); reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	return mux
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		logger.L.Info("metrics server started",
			slog.String("event", "metrics.start"),
			slog.String("addr", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("metrics server failed",
				slog.String("event", "metrics.serve"),
				slog.String("addr", s.srv.Addr),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
