// Package api is the local HTTP control surface the chat panel talks to.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/export"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
	"github.com/cutpilot/cutpilot-agent/internal/playback"
	"github.com/cutpilot/cutpilot-agent/internal/review"
)

// Pipeline is the agent as seen by the handlers.
type Pipeline interface {
	HandleMessage(ctx context.Context, text string) (*agent.Reply, error)
	Review(ctx context.Context, d review.Decision) (agent.ReviewView, error)
	ReviewState() agent.ReviewView
	Status(ctx context.Context) agent.Status
	ExportEDL(ctx context.Context, dir, title string) (*export.Response, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Agent      Pipeline
	Repository journal.Repository
	Evidence   playback.EvidenceService
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler: router,
			// messages wait on the inference service, so no write timeout
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
