package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"github.com/securedocflow/securedoc-proxy/internal/server"
	"go.uber.org/zap"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("securedoc-proxy %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting securedoc-proxy",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	// Watch the config file; a restart is still needed to apply most
	// changes, but drift gets surfaced in the logs immediately.
	if err := config.Watch(cfg, func(updated *config.Config) {
		log.Warn("configuration file changed on disk, restart to apply",
			zap.Int("port", updated.Server.Port),
			zap.String("log_level", updated.Logging.Level),
		)
	}); err != nil {
		log.Warn("config watch unavailable", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
