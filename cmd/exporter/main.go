package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fritzlab/fritzbox_exporter/internal/host"
	"github.com/fritzlab/fritzbox_exporter/internal/plugin"
	"github.com/fritzlab/fritzbox_exporter/internal/tr064"
)

var (
	configPath = flag.String("config", "", "Path to the exporter configuration file")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	// Setup structured logging
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	settings, err := host.LoadSettings(*configPath)
	if err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the plugin to the host through its callback surface. The TR-064
	// client is handed in as the connector so the plugin never sees the
	// transport concretely.
	bridge := host.NewBridge()
	h := host.New(bridge, settings.Router, settings.Interval, logger)
	p := plugin.New(h, func(address string, port int, user, password string) (plugin.Connection, error) {
		return tr064.Connect(address, port, user, password)
	})

	h.RegisterConfig(p.Configure)
	h.RegisterInit(p.Init)
	h.RegisterRead(p.Read)
	h.RegisterShutdown(p.Shutdown)

	prometheus.MustRegister(bridge)

	// Run the plugin lifecycle in the background
	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		if err := h.Run(ctx); err != nil {
			logger.Error("Plugin failed", "error", err)
			cancel() // Cancel context before exit
			os.Exit(1)
		}
	}()

	// Setup HTTP server with timeouts
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         settings.Listen,
		Handler:      nil,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		logger.Info("Starting FRITZ!Box exporter", "address", settings.Listen, "interval", settings.Interval)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping gracefully...")

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Cancelling the context makes Run invoke the shutdown callback, which
	// releases the router connection.
	cancel()
	<-hostDone

	logger.Info("Exporter stopped")
}
