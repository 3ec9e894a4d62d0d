package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/teamsync/pkg/teamsync"
	"github.com/tendant/teamsync/pkg/teamsync/api"
	"github.com/tendant/teamsync/pkg/teamsync/config"
	"github.com/tendant/teamsync/pkg/teamsync/metrics"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load server configuration: %v\n", err)
		if usage, uerr := config.EnvUsage(); uerr == nil {
			fmt.Fprintln(os.Stderr, usage)
		}
		os.Exit(1)
	}

	logger := newLogger(serverConfig)
	slog.SetDefault(logger)

	ctx := context.Background()
	blobs, err := serverConfig.BuildBlobStore(ctx)
	if err != nil {
		slog.Error("Failed to initialize storage", "type", serverConfig.Storage.Type, "error", err)
		os.Exit(1)
	}

	assets, err := teamsync.NewAssetStore(
		teamsync.WithBlobStore(blobs),
		teamsync.WithLogger(logger),
	)
	if err != nil {
		slog.Error("Failed to create asset store", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := api.NewServer(teamsync.NewPositionRegistry(), assets,
		api.WithMetrics(metrics.New(registry)),
		api.WithRequestTimeout(serverConfig.RequestTimeout),
		api.WithMaxUploadBytes(serverConfig.MaxUploadBytes),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Teamsync server starting", "port", serverConfig.Port, "env", serverConfig.Environment, "storage", serverConfig.Storage.Type)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}

func newLogger(c *config.ServerConfig) *slog.Logger {
	if c.Environment == "development" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      c.SlogLevel(),
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
