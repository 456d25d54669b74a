// Package customer provides WebSocket-based push delivery to queue
// customers.
//
// Clients open a WebSocket connection to:
//
//	GET /customers/{id}/ws
//	GET /customers/ws         (no known identity yet; server assigns a ULID)
//
// Delivery is push-driven: the queue state machine's send_msg effect is
// routed straight to the customer's open connection, there is no polling
// loop on the server side. When a connection drops, the customer is
// reported down so its outstanding deliveries are returned to the queue.
//
// Server -> client frames:
//
//	{"type":"hello","customer_id":"<id>"}
//	{"type":"message","msg_id":<uint64>,"body":"<base64>"}
//
// Client -> server frames, translated into Settle/Return commands proposed
// through the bound AckNackService:
//
//	{"type":"ack","msg_id":<uint64>}
//	{"type":"nack","msg_id":<uint64>}
package customer

import (
	"context"
	"log/slog"
	"sync"

	gorillaws "github.com/gorilla/websocket"

	"github.com/liveforeverx/ra/internal/queue"
)

// AckNackService is the part of the application service the hub needs to
// release a disconnected customer's outstanding deliveries and to turn
// client ack/nack frames into Settle/Return commands.
type AckNackService interface {
	Down(ctx context.Context, customer queue.CustomerID) (int64, error)
	Settle(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error)
	Return(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error)
}

// Hub tracks live customer connections and implements service.CustomerSink
// by routing send_msg effects straight to the matching connection.
type Hub struct {
	mu    sync.Mutex
	conns map[queue.CustomerID]*gorillaws.Conn

	svc AckNackService
}

// NewHub creates an empty connection registry backed by svc for releasing
// outstanding deliveries on disconnect and dispatching ack/nack frames. svc
// may be nil and set later with SetService, since the queue service and the
// hub are constructed from one another (the service needs the hub as its
// CustomerSink).
func NewHub(svc AckNackService) *Hub {
	return &Hub{
		conns: make(map[queue.CustomerID]*gorillaws.Conn),
		svc:   svc,
	}
}

// SetService binds the service the hub calls into on disconnect and on
// ack/nack frames. Must be called once, before any connection is served.
func (h *Hub) SetService(svc AckNackService) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.svc = svc
}

func (h *Hub) service() AckNackService {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.svc
}

// Monitor is a no-op: the hub already tracks every registered connection
// regardless of whether the core has asked to monitor it.
func (h *Hub) Monitor(customer queue.CustomerID) {
	slog.Debug("customer monitored", "customer", customer)
}

// Demonitor is a no-op for the same reason.
func (h *Hub) Demonitor(customer queue.CustomerID) {
	slog.Debug("customer demonitored", "customer", customer)
}

// SendMsg delivers msg to customer's open connection, if any. A customer
// with no open connection simply does not receive the push; the message
// stays checked out until returned, settled, or the customer is marked down.
func (h *Hub) SendMsg(c queue.CustomerID, msgID queue.MessageID, msg queue.Message) {
	h.mu.Lock()
	conn := h.conns[c]
	h.mu.Unlock()
	if conn == nil {
		slog.Warn("send_msg dropped: customer has no open connection", "customer", c, "msg_id", msgID)
		return
	}

	frame := serverFrame{Type: "message", MsgID: uint64(msgID), Body: encodeBody(msg)}
	if err := writeFrame(conn, frame); err != nil {
		slog.Warn("send_msg failed", "customer", c, "msg_id", msgID, "error", err)
	}
}

func (h *Hub) register(c queue.CustomerID, conn *gorillaws.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old := h.conns[c]; old != nil {
		_ = old.Close()
	}
	h.conns[c] = conn
}

func (h *Hub) unregister(c queue.CustomerID, conn *gorillaws.Conn) {
	h.mu.Lock()
	current := h.conns[c]
	if current == conn {
		delete(h.conns, c)
	}
	h.mu.Unlock()
}
