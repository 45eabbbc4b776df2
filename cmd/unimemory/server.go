package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	unimemory "github.com/shreyasgurav/UniMemory"
	"github.com/shreyasgurav/UniMemory/api/handlers"
	"github.com/shreyasgurav/UniMemory/config"
)

// registry collects the engine's metrics alongside the Go runtime's.
var registry = func() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}()

// Server hosts the HTTP API.
type Server struct {
	cfg    *config.Config
	engine *unimemory.Engine
	logger *zap.Logger
}

// NewServer wires routes and middleware around the engine.
func NewServer(cfg *config.Config, engine *unimemory.Engine, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      s.buildHandler(ctx),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return s.engine.Close()
}

func (s *Server) buildHandler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	memoryHandler := handlers.NewMemoryHandler(s.engine, s.logger)
	mux.HandleFunc("/api/v1/memories", memoryHandler.HandleAdd)
	mux.HandleFunc("/api/v1/memories/search", memoryHandler.HandleSearch)
	mux.HandleFunc("/api/v1/memories/", memoryHandler.HandleMemory)

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, unauthenticatedPaths, s.logger))
	}
	return Chain(mux, middlewares...)
}

// unauthenticatedPaths are reachable without an API key.
var unauthenticatedPaths = []string{"/health", "/healthz", "/version", "/metrics"}
