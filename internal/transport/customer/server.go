package customer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/liveforeverx/ra/internal/queue"
)

const downTimeout = 5 * time.Second

// monoEntropy is a shared monotone entropy source so anonymous connection
// IDs stay lexicographically ordered even when minted within the same
// millisecond.
var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// newConnectionID mints a fresh ULID for a customer that connects without
// presenting its own identity.
func newConnectionID() (queue.CustomerID, error) {
	monoMu.Lock()
	defer monoMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), monoEntropy)
	if err != nil {
		return "", err
	}
	return queue.CustomerID(id.String()), nil
}

var upgrader = gorillaws.Upgrader{
	// CheckOrigin rejects cross-origin upgrade requests. A request without
	// an Origin header (native clients, curl) is always allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		parsed, err := parseHost(origin)
		if err != nil {
			return false
		}
		return parsed == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// serverFrame is the JSON structure the hub sends to the client. "hello" is
// sent once right after upgrade so a client that connected anonymously
// learns the customer ID it was assigned; "message" carries a delivery.
type serverFrame struct {
	Type       string `json:"type"` // "hello" | "message"
	CustomerID string `json:"customer_id,omitempty"`
	MsgID      uint64 `json:"msg_id,omitempty"`
	Body       string `json:"body,omitempty"` // base64
}

func encodeBody(msg queue.Message) string {
	return base64.StdEncoding.EncodeToString(msg)
}

// clientFrame is the JSON structure a client sends to ack or nack a
// delivery. Any other Type is ignored rather than closing the connection,
// since a client that assumes a richer protocol than this one shouldn't
// have every unrecognized frame torn down the socket underneath it.
type clientFrame struct {
	Type  string `json:"type"` // "ack" | "nack"
	MsgID uint64 `json:"msg_id"`
}

func writeFrame(conn *gorillaws.Conn, frame serverFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(gorillaws.TextMessage, data)
}

// ServeHTTP upgrades the connection for the customer named by the "id" path
// value and keeps it registered in the hub until the client disconnects, at
// which point the customer is reported down. A client that doesn't yet know
// its own identity connects to /customers/ws instead, with no {id} segment,
// and is assigned a fresh ULID.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := queue.CustomerID(r.PathValue("id"))
	if id == "" {
		generated, err := newConnectionID()
		if err != nil {
			http.Error(w, "failed to assign customer id", http.StatusInternalServerError)
			return
		}
		id = generated
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("customer websocket upgrade failed", "customer", id, "error", err)
		return
	}

	h.register(id, conn)
	if err := writeFrame(conn, serverFrame{Type: "hello", CustomerID: string(id)}); err != nil {
		slog.Warn("hello frame failed", "customer", id, "error", err)
	}
	defer func() {
		h.unregister(id, conn)
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), downTimeout)
		defer cancel()
		if svc := h.service(); svc != nil {
			if _, err := svc.Down(ctx, id); err != nil {
				slog.Warn("down on disconnect failed", "customer", id, "error", err)
			}
		}
	}()

	// Deliveries are pushed by the server, but the client still talks back
	// over the same connection: an ack settles the delivery, a nack
	// returns it to the queue for redelivery. Anything else read here just
	// means the client hung up.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleClientFrame(id, data)
	}
}

func (h *Hub) handleClientFrame(id queue.CustomerID, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("customer sent an invalid frame", "customer", id, "error", err)
		return
	}

	svc := h.service()
	if svc == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), downTimeout)
	defer cancel()

	switch frame.Type {
	case "ack":
		if _, err := svc.Settle(ctx, id, queue.MessageID(frame.MsgID)); err != nil {
			slog.Warn("settle from ack failed", "customer", id, "msg_id", frame.MsgID, "error", err)
		}
	case "nack":
		if _, err := svc.Return(ctx, id, queue.MessageID(frame.MsgID)); err != nil {
			slog.Warn("return from nack failed", "customer", id, "msg_id", frame.MsgID, "error", err)
		}
	default:
		slog.Warn("customer sent an unrecognized frame type", "customer", id, "type", frame.Type)
	}
}
