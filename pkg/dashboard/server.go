package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the dashboard handler and Prometheus metrics over HTTP.
type Server struct {
	addr    string
	handler *Handler
}

// NewServer constructs a dashboard server listening on addr.
func NewServer(addr string, handler *Handler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the HTTP mux for the dashboard endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handler.Static)
	mux.HandleFunc("/usage/pods", s.handler.Pods)
	mux.HandleFunc("/usage/nodes", s.handler.Nodes)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
