package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/config"
	"arxiv-scholar/internal/infra/middleware"
	"arxiv-scholar/internal/usecase"
)

// Server exposes the research assistant over HTTP: a JSON API for papers and
// topics, and a server-sent events stream for agent runs.
type Server struct {
	agent     *usecase.Agent
	sessions  *usecase.SessionManager
	tools     domain.ToolExecutor
	store     domain.PaperStore
	cfg       config.GatewayConfig
	logger    *slog.Logger
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates the HTTP gateway.
func NewServer(agent *usecase.Agent, sessions *usecase.SessionManager, tools domain.ToolExecutor, store domain.PaperStore, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	return &Server{
		agent:    agent,
		sessions: sessions,
		tools:    tools,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// routes builds the request mux with the middleware chain applied.
func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/papers/{id}", s.handleGetPaper)
	mux.HandleFunc("GET /api/summarize/{id}", s.handleSummarize)
	mux.HandleFunc("GET /api/eli10/{id}", s.handleExplain)
	mux.HandleFunc("GET /api/topics", s.handleListTopics)
	mux.HandleFunc("GET /api/topics/{slug}", s.handleTopicPapers)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/agent", s.handleAgentStream)

	var handler http.Handler = mux
	if s.cfg.RatePerSecond > 0 {
		handler = middleware.RateLimit(ctx, s.cfg.RatePerSecond, s.cfg.RateBurst)(handler)
	}
	handler = middleware.SecurityHeaders(handler)
	return handler
}

// Start begins serving HTTP. Blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:     s.routes(ctx),
		ReadTimeout: s.cfg.ReadTimeout,
		// WriteTimeout stays unset: the agent SSE stream has no bounded
		// duration and a write deadline would cut it mid-run.
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
