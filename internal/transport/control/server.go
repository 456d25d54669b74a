// Package control provides the HTTP control-plane API for a queue node.
// Each node process serves exactly one named queue (cmd/node binds a
// single queue.State per process, per SPEC_FULL.md §2), so routes carry
// no queue-name segment.
//
// Routes (Go 1.22+ method-qualified patterns):
//
//	GET    /health, /healthz
//	GET    /overview
//	POST   /messages                                    enqueue
//	GET    /customers/{id}/messages                      checkout
//	DELETE /customers/{id}/messages/{msg_id}             settle
//	POST   /customers/{id}/messages/{msg_id}/return      return
//	POST   /customers/{id}/down                          down
//
// Every write route returns 503 with a Retry-After header when the node
// is not the Raft leader (service.ErrNotLeader), since the write must be
// retried against whichever node wins the next election rather than
// against this node specifically.
package control

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/liveforeverx/ra/internal/consensus/raft"
	"github.com/liveforeverx/ra/internal/queue"
)

// AdminProvider exposes a raft node's diagnostic snapshot to the control
// API's /admin route. Unlike QueueService, this is bound directly to the
// concrete raft.Node type rather than an abstract interface: /admin is a
// raft-specific operational surface, not part of the queue core's
// contract, so there's no abstraction to preserve here.
type AdminProvider interface {
	AdminState() raft.AdminState
}

// QueueService is the subset of *service.Queue the control API drives.
type QueueService interface {
	Overview() queue.Overview
	IsLeader() bool
	Enqueue(ctx context.Context, message queue.Message) (int64, error)
	Checkout(ctx context.Context, customer queue.CustomerID, lifetime queue.Lifetime, num int) (int64, error)
	Settle(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error)
	Return(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error)
	Down(ctx context.Context, customer queue.CustomerID) (int64, error)
}

// Server wraps the stdlib HTTP server with the control-plane route wiring.
type Server struct {
	inner *http.Server
}

// Config tunes the middleware chain wrapped around the control API.
type Config struct {
	// NodeID identifies this node in /overview responses, for a client
	// polling more than one node at a time.
	NodeID string
	// RPS and Burst configure the per-client token-bucket rate limiter.
	// Zero RPS disables rate limiting.
	RPS   float64
	Burst int
}

// Option customizes a Server beyond the required QueueService and Config.
type Option func(*Handler)

// WithAdmin binds a raft.Node (or any AdminProvider) so /admin can surface
// its diagnostic snapshot. Without this option /admin responds 501.
func WithAdmin(p AdminProvider) Option {
	return func(h *Handler) { h.admin = p }
}

// New builds a Server from a QueueService.
// The caller is responsible for calling ListenAndServe / Shutdown.
func New(svc QueueService, cfg Config, opts ...Option) *Server {
	h := &Handler{svc: svc, nodeID: cfg.NodeID}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /overview", h.overview)
	mux.HandleFunc("GET /admin", h.adminState)
	mux.HandleFunc("POST /messages", h.enqueue)
	mux.HandleFunc("GET /customers/{id}/messages", h.checkout)
	mux.HandleFunc("DELETE /customers/{id}/messages/{msg_id}", h.settle)
	mux.HandleFunc("POST /customers/{id}/messages/{msg_id}/return", h.returnMsg)
	mux.HandleFunc("POST /customers/{id}/down", h.down)

	var handler http.Handler = mux
	handler = chain(handler,
		MaxBodyMiddleware,
		LoggingMiddleware,
	)
	if cfg.RPS > 0 {
		handler = chain(handler, RateLimitMiddleware(cfg.RPS, cfg.Burst))
	}

	return &Server{
		inner: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Handler returns the composed http.Handler, useful for testing.
func (s *Server) Handler() http.Handler { return s.inner.Handler }

// ListenAndServe starts the server on the given address (e.g. ":8080").
func (s *Server) ListenAndServe(addr string) error {
	s.inner.Addr = addr
	return s.inner.ListenAndServe()
}

// Serve runs the server on an already-open listener.
func (s *Server) Serve(lis net.Listener) error {
	return s.inner.Serve(lis)
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
