package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cachegate/cachegate/internal/config"
	"github.com/cachegate/cachegate/internal/engine"
	"github.com/cachegate/cachegate/internal/logging"
	"github.com/cachegate/cachegate/internal/metrics"
	"github.com/cachegate/cachegate/internal/observability"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var httpAddr string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load config, register bootstrap definitions, and serve until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if path := cfg.Observability.Logging.LoadLogFile; path != "" {
				if err := logging.Default().SetOutput(path); err != nil {
					logging.Op().Warn("failed to open load log file", "path", path, "error", err)
				}
				defer logging.Default().Close()
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())
			logging.Op().Info("tracing configured", "enabled", observability.Enabled())

			if cfg.Observability.Metrics.Enabled {
				metrics.Init(cfg.Observability.Metrics.Namespace)
			}

			// MapFacadeSink stands in for the host's dynamic variable store:
			// each registered cache publishes a name-keyed Facade here that
			// channel code can Lookup without ever seeing a definition ID.
			facades := engine.NewMapFacadeSink()
			eng := engine.New(
				engine.WithLogger(logging.Op()),
				engine.WithBorrowTimeout(cfg.Pool.BorrowTimeout),
				engine.WithFacadeSink(facades),
			)

			for _, def := range cfg.Definitions {
				if !def.Enabled {
					continue
				}
				if def.MaxConnections == 0 {
					def.MaxConnections = cfg.Pool.DefaultMaxConnections
				}
				id, err := eng.Register(ctx, def)
				if err != nil {
					logging.Op().Error("failed to register bootstrap definition", "name", def.Name, "error", err)
					continue
				}
				logging.Op().Info("registered bootstrap definition", "name", def.Name, "id", id)
			}

			if cfg.Observability.Metrics.Enabled {
				go metrics.StartPolling(ctx, eng, cfg.Observability.Metrics.PollInterval)
			}

			var httpServer *http.Server
			if cfg.Daemon.HTTPAddr != "" {
				httpServer = startHTTPServer(cfg.Daemon.HTTPAddr, eng)
				logging.Op().Info("HTTP API started", "addr", cfg.Daemon.HTTPAddr)
			}

			logging.Op().Info("cachegated started", "http_addr", cfg.Daemon.HTTPAddr, "log_level", cfg.Daemon.LogLevel)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logging.Op().Info("shutdown signal received")
			if httpServer != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				httpServer.Shutdown(shutdownCtx)
				shutdownCancel()
			}
			eng.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP address to serve /health and /metrics on (e.g. :8080)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// healthCacheCount counts registered caches, annotating whatever span is
// active in ctx rather than requiring one to be threaded in explicitly.
func healthCacheCount(ctx context.Context, eng *engine.Engine) int {
	count := len(eng.AllStatistics())
	observability.SpanFromContext(ctx).SetAttributes(observability.AttrCacheCount.Int(count))
	return count
}

func startHTTPServer(addr string, eng *engine.Engine) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", observability.TracingHandler("http.health", func(w http.ResponseWriter, r *http.Request) {
		count := healthCacheCount(r.Context(), eng)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"caches": count,
		})
	}))

	mux.Handle("GET /metrics", observability.HTTPMiddleware(metrics.Handler()))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()
	return server
}
