package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/types"
)

// HistoryReader serves recent journal entries; the sqlite journal implements it.
type HistoryReader interface {
	Recent(ctx context.Context, symbol string, limit int) ([]types.JournalEntry, error)
}

// Server is the HTTP host: it owns the session table and exposes the pipeline.
type Server struct {
	echo       *echo.Echo
	cfg        *store.Config
	advisor    interfaces.Advisor
	sessions   *engine.SessionStore
	oracleName string
	history    HistoryReader
}

type Option func(*Server)

// WithRegistry serves reg at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
}

func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

func WithOracleName(name string) Option {
	return func(s *Server) { s.oracleName = name }
}

func New(cfg *store.Config, adv interfaces.Advisor, sessions *engine.SessionStore, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(recoverPanics())
	e.Use(requestLogging())

	if sessions == nil {
		sessions = engine.NewSessionStore()
	}
	s := &Server{echo: e, cfg: cfg, advisor: adv, sessions: sessions}
	s.registerRoutes()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.health)

	g := s.echo.Group("/api/v1")
	g.GET("/signal/:symbol", s.signal)
	g.POST("/advice", s.advice)
	g.GET("/sessions", s.listSessions)
	g.GET("/sessions/:id", s.getSession)
	g.GET("/models", s.models)
	g.GET("/history/:symbol", s.historyFor)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks until the server stops. A graceful Stop returns nil.
func (s *Server) Start(addr string) error {
	logger.Info(context.Background(), "HTTP server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info(ctx, "HTTP server stopped gracefully")
	return nil
}
