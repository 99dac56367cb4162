package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/charges/controller"
	"github.com/liamcoop/charges/internal/config"
	"github.com/liamcoop/charges/internal/logger"
	"github.com/liamcoop/charges/internal/metrics"
	"github.com/liamcoop/charges/prediction"
	"github.com/liamcoop/charges/rules"
)

//go:embed templates/index.html
var indexHTML string

var pageTemplate = template.Must(template.New("index").Parse(indexHTML))

type Server struct {
	engine       *rules.Engine
	coefficients prediction.Coefficients
	controller   *controller.Controller
	metrics      *metrics.Metrics
	timeout      time.Duration
	router       *chi.Mux
}

func NewServer(cfg *config.Config) (*Server, error) {
	engine, err := rules.NewEngine(rules.NewInMemoryRuleStore(), rules.CacheConfig{TTL: cfg.RulesCacheTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to create rule engine: %w", err)
	}

	seed, source := rules.DefaultRules(), "defaults"
	if cfg.RulesFile != "" {
		if seed, err = rules.LoadRules(cfg.RulesFile); err != nil {
			return nil, err
		}
		source = cfg.RulesFile
	}
	if err := rules.Seed(engine, seed); err != nil {
		return nil, err
	}
	logger.Info("Loaded risk factor rules", "count", len(seed), "source", source)

	coefficients := prediction.DefaultCoefficients()
	m := metrics.New()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{
		engine:       engine,
		coefficients: coefficients,
		controller:   controller.New(coefficients, engine, m),
		metrics:      m,
		timeout:      timeout,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	// Page
	r.Get("/", s.handleIndex)
	r.Post("/predict", s.handlePredictForm)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/predict", s.handlePredict)
		r.Get("/coefficients", s.handleCoefficients)

		// Risk factor rules
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleId}", s.handleGetRule)
			r.Put("/{ruleId}", s.handleUpdateRule)
			r.Delete("/{ruleId}", s.handleDeleteRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx := context.Background()
	if _, err := logger.Setup(ctx, logger.Config{
		Level:           cfg.LogLevel,
		Format:          cfg.LogFormat,
		ErrorSampleRate: cfg.ErrorSampleRate,
		OTELEnabled:     cfg.OTELEnabled,
		ServiceName:     cfg.ServiceName,
	}); err != nil {
		logger.Warn("Logger configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	if cfg.RulesFile != "" && cfg.WatchRules {
		if err := rules.WatchRulesFile(watchCtx, server.engine, cfg.RulesFile); err != nil {
			logger.Warn("Rules file will not be reloaded", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	stopWatching()
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("Logger shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
