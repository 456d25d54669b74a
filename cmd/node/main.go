// Package main implements the node process that runs Raft and the queue
// control/customer HTTP APIs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	apppkg "github.com/liveforeverx/ra/internal/app"
	"github.com/liveforeverx/ra/internal/consensus"
	raftconsensus "github.com/liveforeverx/ra/internal/consensus/raft"
	"github.com/liveforeverx/ra/internal/observability/metrics"
	"github.com/liveforeverx/ra/internal/queue"
	"github.com/liveforeverx/ra/internal/service"
	"github.com/liveforeverx/ra/internal/transport/customer"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := apppkg.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	logger := slog.Default()

	peerAddrs, err := cfg.PeerAddrMap()
	if err != nil {
		return err
	}
	delete(peerAddrs, cfg.NodeID) // exclude self if listed
	if len(peerAddrs) > 0 {
		logger.Warn("peer addresses configured but no Raft peer transport is wired; running single-node", "peers", peerAddrs)
	}

	promMetrics, err := metrics.NewPrometheus(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	applyCh := make(chan consensus.ApplyMsg, 256)
	storage := raftconsensus.NewJSONStorage(cfg.DataDir)

	node, err := raftconsensus.NewNode(
		cfg.NodeID,
		map[string]raftconsensus.PeerClient{},
		applyCh,
		storage,
		logger,
		otel.Tracer("raft"),
		promMetrics,
	)
	if err != nil {
		return err
	}

	hub := customer.NewHub(nil)
	state, initEffects := queue.Init(cfg.QueueName)
	queueSvc := service.NewQueue(node, state, initEffects, hub, logger, otel.Tracer("queue"), promMetrics, cfg.NodeID)
	hub.SetService(queueSvc)

	app, err := apppkg.New(cfg, logger, node, queueSvc, hub)
	if err != nil {
		node.Stop()
		return err
	}
	defer app.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
