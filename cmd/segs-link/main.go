// Package main implements the ground-station telemetry link daemon. It
// keeps a radio or UDP link to the rocket open, tracks the message
// history and link health, serves metrics, and optionally republishes
// telemetry onto a NATS bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/skyward-er/segs-sub000/broker"
	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/health"
	"github.com/skyward-er/segs-sub000/link"
	"github.com/skyward-er/segs-sub000/metric"
	"github.com/skyward-er/segs-sub000/protocol"
	"github.com/skyward-er/segs-sub000/relay"
	"github.com/skyward-er/segs-sub000/transport"
)

const (
	Version = "0.1.0"
	appName = "segs-link"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("link daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	connCfg, err := resolveEndpoint(cliCfg)
	if err != nil {
		return err
	}

	logger.Info("starting telemetry link",
		"version", Version,
		"endpoint", connCfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewRegistry()
	metrics := registry.CoreMetrics()

	catalog := protocol.DefaultCatalog()
	handler := link.NewConnectionHandler(catalog,
		link.WithLogger(logger),
		link.WithMetrics(metrics),
		link.WithPollInterval(cliCfg.PollInterval))

	b := broker.NewMessageBroker(handler,
		broker.WithLogger(logger),
		broker.WithMetrics(metrics))
	defer b.Shutdown()

	if err := b.Open(connCfg); err != nil {
		return err
	}

	var rel *relay.Relay
	if cliCfg.NATSURL != "" {
		rel, err = relay.Connect(ctx, cliCfg.NATSURL, catalog.Dialect,
			relay.WithLogger(logger))
		if err != nil {
			return err
		}
		defer rel.Close()
		logger.Info("telemetry relay enabled", "url", cliCfg.NATSURL)
	}

	if cliCfg.MetricsPort > 0 {
		server := metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		server.SetHealth(func() (any, bool) {
			s := health.Check(b)
			return s, s.IsHealthy()
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer server.Stop()
	}

	return drive(ctx, b, rel, cliCfg.DriveInterval, logger)
}

// drive runs the broker's consume loop until the context is cancelled.
func drive(ctx context.Context, b *broker.MessageBroker, rel *relay.Relay,
	interval time.Duration, logger *slog.Logger) error {

	bundle := broker.NewMessageBundle()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down telemetry link")
			return nil
		case <-ticker.C:
			b.ProcessIncomingMessages(bundle)
			if rel != nil && bundle.Count() > 0 {
				rel.PublishBundle(bundle.All())
			}
		}
	}
}

// resolveEndpoint turns the CLI flags into a connection config.
func resolveEndpoint(cliCfg *CLIConfig) (config.ConnectionConfig, error) {
	switch {
	case cliCfg.Ethernet != "":
		return config.ParseEthernet(cliCfg.Ethernet)
	case cliCfg.Serial != "":
		return config.ParseSerial(cliCfg.Serial)
	default:
		port, err := transport.FindFirstTelemetryPort()
		if err != nil {
			return config.ConnectionConfig{}, err
		}
		slog.Info("autodetected telemetry port", "port", port)
		return config.NewSerial(port, cliCfg.BaudRate), nil
	}
}
