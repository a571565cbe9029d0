// Package server wires the privacy pipeline, rate limiter, outbound client
// and webhook processor behind the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/llm"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"github.com/securedocflow/securedoc-proxy/internal/monitor"
	"github.com/securedocflow/securedoc-proxy/internal/privacy"
	"github.com/securedocflow/securedoc-proxy/internal/ratelimit"
	"github.com/securedocflow/securedoc-proxy/internal/web"
	"github.com/securedocflow/securedoc-proxy/internal/webhook"
	"go.uber.org/zap"
)

// Server represents the main proxy server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *privacy.Engine
	limiter  *ratelimit.Limiter
	llm      *llm.Client
	webhooks *webhook.Processor
	hub      *monitor.Hub
	router   *mux.Router
	server   *http.Server
}

// New creates a new proxy server instance. Configuration problems surface
// here, before the server ever accepts traffic.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	engine, err := privacy.NewEngine(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create anonymization engine: %w", err)
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	ledger, err := buildLedger(cfg.Webhook, log.WithComponent("webhook"))
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		engine:   engine,
		limiter:  limiter,
		llm:      llm.New(cfg.LLM, log.WithComponent("llm")),
		webhooks: webhook.NewProcessor(cfg.Webhook, ledger, log.WithComponent("webhook")),
		hub:      monitor.NewHub(cfg.Monitor, log.WithComponent("monitor")),
		router:   mux.NewRouter(),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// buildLedger picks the webhook ledger backend from configuration.
func buildLedger(cfg config.WebhookConfig, log *logger.Logger) (webhook.Ledger, error) {
	switch cfg.LedgerBackend {
	case "redis":
		ledger, err := webhook.NewRedisLedger(cfg.RedisURL, cfg.ReplayTolerance, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis ledger: %w", err)
		}
		return ledger, nil
	default:
		return webhook.NewMemoryLedger(cfg.LedgerCapacity), nil
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.HandleWebSocket).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.loggingMiddleware)
	v1.HandleFunc("/securedoc/generate", s.handleGenerate).Methods("POST")
	v1.HandleFunc("/billing/webhook", s.handleWebhook).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting securedoc privacy proxy",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("privacy_enabled", s.config.Privacy.Enabled),
		zap.Bool("rate_limit_enabled", s.limiter.Enabled()),
		zap.String("ledger_backend", s.config.Webhook.LedgerBackend),
	)

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping securedoc privacy proxy")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"securedoc-proxy",
		"privacy_enabled":%t,
		"rate_limit_enabled":%t,
		"detectors_count":%d
	}`, s.config.Privacy.Enabled, s.limiter.Enabled(), len(s.config.Privacy.Detectors))
}
