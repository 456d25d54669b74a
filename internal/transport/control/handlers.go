package control

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liveforeverx/ra/internal/queue"
	"github.com/liveforeverx/ra/internal/service"
)

// Handler groups all HTTP request handlers around a QueueService.
type Handler struct {
	svc    QueueService
	nodeID string
	admin  AdminProvider
}

type overviewResp struct {
	queue.Overview
	NodeID string `json:"node_id"`
	Leader bool   `json:"leader"`
}

type enqueueReq struct {
	Body string `json:"body"` // base64-encoded
}

type enqueueResp struct {
	LogIndex int64 `json:"log_index"`
}

type checkoutResp struct {
	LogIndex int64 `json:"log_index"`
}

type healthResp struct {
	Status string `json:"status"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Status: "ok"})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, overviewResp{
		Overview: h.svc.Overview(),
		NodeID:   h.nodeID,
		Leader:   h.svc.IsLeader(),
	})
}

// adminState surfaces the bound raft node's diagnostic snapshot, grounded
// on the teacher's internal/consensus/raft/admin.go and its gRPC admin
// server. It's read-only and safe to poll.
func (h *Handler) adminState(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "admin state unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, h.admin.AdminState())
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueReq
	if !decodeJSON(w, r, &req) {
		return
	}
	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		body = []byte(req.Body)
	}

	idx, err := h.svc.Enqueue(r.Context(), queue.Message(body))
	if !writeServiceError(w, err) {
		return
	}
	writeJSON(w, http.StatusCreated, enqueueResp{LogIndex: idx})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer id is required"})
		return
	}

	lifetime := queue.LifetimeAuto
	if v := r.URL.Query().Get("lifetime"); v != "" {
		lifetime = queue.Lifetime(v)
	}

	num := 1
	if v := r.URL.Query().Get("num"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "num must be a positive integer"})
			return
		}
		num = n
	}

	idx, err := h.svc.Checkout(r.Context(), queue.CustomerID(id), lifetime, num)
	if !writeServiceError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{LogIndex: idx})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, msgID, ok := h.pathCustomerAndMsg(w, r)
	if !ok {
		return
	}
	_, err := h.svc.Settle(r.Context(), id, msgID)
	if !writeServiceError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) returnMsg(w http.ResponseWriter, r *http.Request) {
	id, msgID, ok := h.pathCustomerAndMsg(w, r)
	if !ok {
		return
	}
	_, err := h.svc.Return(r.Context(), id, msgID)
	if !writeServiceError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) down(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer id is required"})
		return
	}
	_, err := h.svc.Down(r.Context(), queue.CustomerID(id))
	if !writeServiceError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathCustomerAndMsg(w http.ResponseWriter, r *http.Request) (queue.CustomerID, queue.MessageID, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer id is required"})
		return "", 0, false
	}
	raw := r.PathValue("msg_id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid msg_id"})
		return "", 0, false
	}
	return queue.CustomerID(id), queue.MessageID(n), true
}

// notLeaderRetryAfterSeconds bounds how long a client should wait before
// retrying a write against a node that just rejected it as not leader.
// It is sized around a typical Raft election round rather than derived
// from the running node's own timers, since a client that lost its
// leader has no way to know which peer will win the next election or how
// long that takes.
const notLeaderRetryAfterSeconds = "1"

// writeServiceError maps a service-layer error to an HTTP response and
// reports whether the caller should continue writing a success response.
func writeServiceError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, service.ErrNotLeader):
		w.Header().Set("Retry-After", notLeaderRetryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCommitTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}
