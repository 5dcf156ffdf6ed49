// Package api exposes the crawl's observability surface over HTTP:
// Prometheus metrics and a JSON status endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusProvider reports live crawl progress.
type StatusProvider interface {
	Status() Status
}

// Status is the JSON body of GET /status.
type Status struct {
	Domain       string `json:"domain"`
	QueueLength  int    `json:"queue_length"`
	Visited      int    `json:"visited"`
	UniqueURLs   int    `json:"unique_urls"`
	TotalCrawled int    `json:"total_crawled"`
	InFlight     int    `json:"in_flight"`
	UptimeSecs   int64  `json:"uptime_seconds"`
}

// Server serves /status and /metrics while a crawl runs.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, provider StatusProvider, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Status()); err != nil {
			logger.Error("encoding status response", zap.Error(err))
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
