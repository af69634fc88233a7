package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/cablewatch/internal/config"
	"github.com/rickgao/cablewatch/internal/connection"
	"github.com/rickgao/cablewatch/internal/metrics"
	"github.com/rickgao/cablewatch/internal/monitor"
	"github.com/rickgao/cablewatch/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/cablewatch.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log).With("instance", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting cablewatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("cablewatch failed", "error", err)
		os.Exit(1)
	}

	logger.Info("cablewatch stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := metrics.NewRegistry()
	collector := metrics.New(reg)

	opts := cfg.MonitorOptions()
	conn := connection.New(connectionConfig(cfg.Connection), opts, logger,
		connection.WithObserver(collector),
		connection.WithMonitorOptions(monitor.WithObserver(collector)),
	)

	logger.Info("opening connection",
		"url", cfg.Connection.URL,
		"reconnection", opts.Reconnection,
		"reconnection_delay", opts.ReconnectionDelay,
		"reconnection_delay_max", opts.ReconnectionDelayMax,
		"reconnection_max_attempts", opts.ReconnectionMaxAttempts,
	)

	if err := conn.Open(ctx); err != nil {
		if !opts.Reconnection {
			conn.Close()
			return fmt.Errorf("open connection: %w", err)
		}
		logger.Warn("initial connect failed, monitor will retry", "error", err)
	}
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: createHealthHandler(conn, reg, cfg.Metrics.Path),
		}

		g.Go(func() error {
			logger.Info("starting metrics server",
				"port", cfg.Metrics.Port,
				"path", cfg.Metrics.Path,
			)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		consume(gctx, conn, logger)
		return nil
	})

	logger.Info("cablewatch running")

	return g.Wait()
}

// consume drains inbound messages until ctx is done or the connection closes.
func consume(ctx context.Context, conn *connection.Conn, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Messages():
			if !ok {
				return
			}
			logger.Debug("message received",
				"session", msg.SessionID,
				"bytes", len(msg.Data),
				"received_at", msg.ReceivedAt,
			)
		}
	}
}

func connectionConfig(cc config.ConnectionConfig) connection.Config {
	header := http.Header{}
	for k, v := range cc.Headers {
		header.Set(k, v)
	}

	return connection.Config{
		URL:              cc.URL,
		Header:           header,
		HandshakeTimeout: cc.HandshakeTimeout,
		PingInterval:     cc.PingInterval,
		WriteTimeout:     cc.WriteTimeout,
		BufferSize:       cc.BufferSize,
	}
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
