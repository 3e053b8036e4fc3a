package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// StateProvider supplies the aggregate bot state served to dashboards.
type StateProvider interface {
	Snapshot() domain.Snapshot
}

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	stateSrc StateProvider
	hub      *Hub
	logger   *zap.Logger
}

func NewServer(
	port int,
	stateSrc StateProvider,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		stateSrc: stateSrc,
		hub:      hub,
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Aggregate state
	s.router.HandleFunc("GET /api/state", s.handleState)

	// Live updates
	s.router.HandleFunc("GET /ws", s.hub.handleWS)

	// Health
	s.router.HandleFunc("GET /healthz", s.handleHealthz)

	// Metrics
	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
