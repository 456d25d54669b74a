// Package app wires the consensus node, queue state machine, and transports
// together into a runnable node process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/liveforeverx/ra/internal/consensus"
	"github.com/liveforeverx/ra/internal/service"
	"github.com/liveforeverx/ra/internal/transport/control"
	"github.com/liveforeverx/ra/internal/transport/customer"
)

// Logger is the logging interface required by App.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// App wires consensus and the queue state machine into a runnable service.
// All dependencies are injected; App does not create transport connections
// beyond the listeners it opens in Run.
type App struct {
	config    Config
	logger    Logger
	consensus consensus.Consensus
	queue     *service.Queue
	hub       *customer.Hub
}

// New validates dependencies and constructs a runnable application.
func New(
	cfg Config,
	logger Logger,
	c consensus.Consensus,
	queueSvc *service.Queue,
	hub *customer.Hub,
) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("app: nil logger")
	}
	if c == nil {
		return nil, fmt.Errorf("app: nil consensus")
	}
	if queueSvc == nil {
		return nil, fmt.Errorf("app: nil queue service")
	}
	if hub == nil {
		return nil, fmt.Errorf("app: nil customer hub")
	}
	return &App{
		config:    cfg,
		logger:    logger,
		consensus: c,
		queue:     queueSvc,
		hub:       hub,
	}, nil
}

// Stop stops the underlying consensus engine.
func (a *App) Stop() {
	a.consensus.Stop()
}

// Run starts consensus, the queue apply loop, and the control/customer/pprof/
// metrics HTTP servers, blocking until shutdown or a fatal error.
func (a *App) Run(ctx context.Context) error {
	a.consensus.Run(ctx)

	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var controlOpts []control.Option
	if admin, ok := a.consensus.(control.AdminProvider); ok {
		controlOpts = append(controlOpts, control.WithAdmin(admin))
	}
	controlSrv := control.New(a.queue, control.Config{NodeID: a.config.NodeID, RPS: 200, Burst: 400}, controlOpts...)

	customerMux := http.NewServeMux()
	customerMux.Handle("GET /customers/{id}/ws", a.hub)
	customerMux.Handle("GET /customers/ws", a.hub) // anonymous connect, assigns a ULID

	lis, err := net.Listen("tcp", a.config.ControlAddr)
	if err != nil {
		return fmt.Errorf("listen control %s: %w", a.config.ControlAddr, err)
	}
	defer func() { _ = lis.Close() }()

	customerLis, err := net.Listen("tcp", a.config.CustomerAddr)
	if err != nil {
		return fmt.Errorf("listen customer %s: %w", a.config.CustomerAddr, err)
	}
	defer func() { _ = customerLis.Close() }()

	pprofSrv, pprofLis, err := a.pprofServer()
	if err != nil {
		return err
	}
	metricsSrv, metricsLis, err := a.metricsServer()
	if err != nil {
		return err
	}

	a.logger.Info(
		"node started",
		"node_id", a.config.NodeID,
		"queue", a.config.QueueName,
		"consensus_type", a.config.ConsensusType,
		"control_addr", a.config.ControlAddr,
		"customer_addr", a.config.CustomerAddr,
	)

	errCh := make(chan error, 5)

	go func() {
		if err := a.queue.RunApplyLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("queue apply loop: %w", err)
		}
	}()
	go func() {
		if err := controlSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("control serve: %w", err)
		}
	}()

	customerSrv := &http.Server{Handler: customerMux}
	go func() {
		if err := customerSrv.Serve(customerLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("customer serve: %w", err)
		}
	}()

	if pprofSrv != nil {
		go func() {
			if err := pprofSrv.Serve(pprofLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("pprof serve: %w", err)
			}
		}()
	}
	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		_ = controlSrv.Shutdown(context.Background())
		shutdownHTTPServer(customerSrv, a.logger, "customer")
		shutdownHTTPServer(pprofSrv, a.logger, "pprof")
		shutdownHTTPServer(metricsSrv, a.logger, "metrics")
		return nil
	case err := <-errCh:
		_ = controlSrv.Shutdown(context.Background())
		shutdownHTTPServer(customerSrv, a.logger, "customer")
		shutdownHTTPServer(pprofSrv, a.logger, "pprof")
		shutdownHTTPServer(metricsSrv, a.logger, "metrics")
		return err
	}
}
