package control

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/liveforeverx/ra/internal/consensus/raft"
	"github.com/liveforeverx/ra/internal/queue"
	"github.com/liveforeverx/ra/internal/service"
)

// fakeQueueService is a hand-rolled stand-in for *service.Queue good enough
// to drive the HTTP handlers without a real Raft node.
type fakeQueueService struct {
	overview queue.Overview
	leader   bool

	enqueueErr  error
	enqueueIdx  int64
	checkoutErr error
	checkoutIdx int64
	settleErr   error
	returnErr   error
	downErr     error

	lastEnqueued  queue.Message
	lastCustomer  queue.CustomerID
	lastLifetime  queue.Lifetime
	lastNum       int
	lastMsgID     queue.MessageID
}

func (f *fakeQueueService) Overview() queue.Overview { return f.overview }
func (f *fakeQueueService) IsLeader() bool           { return f.leader }

func (f *fakeQueueService) Enqueue(ctx context.Context, message queue.Message) (int64, error) {
	f.lastEnqueued = message
	return f.enqueueIdx, f.enqueueErr
}

func (f *fakeQueueService) Checkout(ctx context.Context, customer queue.CustomerID, lifetime queue.Lifetime, num int) (int64, error) {
	f.lastCustomer, f.lastLifetime, f.lastNum = customer, lifetime, num
	return f.checkoutIdx, f.checkoutErr
}

func (f *fakeQueueService) Settle(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error) {
	f.lastCustomer, f.lastMsgID = customer, msgID
	return 0, f.settleErr
}

func (f *fakeQueueService) Return(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error) {
	f.lastCustomer, f.lastMsgID = customer, msgID
	return 0, f.returnErr
}

func (f *fakeQueueService) Down(ctx context.Context, customer queue.CustomerID) (int64, error) {
	f.lastCustomer = customer
	return 0, f.downErr
}

func newTestServer(svc QueueService) *httptest.Server {
	srv := New(svc, Config{NodeID: "n1"})
	return httptest.NewServer(srv.Handler())
}

type fakeAdminProvider struct {
	state raft.AdminState
}

func (f *fakeAdminProvider) AdminState() raft.AdminState { return f.state }

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeQueueService{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestOverview(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{
		overview: queue.Overview{Name: "orders", Messages: 3, Customers: 1},
		leader:   true,
	}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/overview")
	if err != nil {
		t.Fatalf("GET /overview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got overviewResp
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeID != "n1" || !got.Leader || got.Name != "orders" || got.Messages != 3 {
		t.Fatalf("unexpected overview response: %+v", got)
	}
}

func TestAdminStateUnavailableWithoutProvider(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeQueueService{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin")
	if err != nil {
		t.Fatalf("GET /admin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestAdminStateWithProvider(t *testing.T) {
	t.Parallel()

	admin := &fakeAdminProvider{state: raft.AdminState{NodeID: "n1", Term: 4, Role: raft.Leader}}
	srv := New(&fakeQueueService{}, Config{NodeID: "n1"}, WithAdmin(admin))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin")
	if err != nil {
		t.Fatalf("GET /admin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got raft.AdminState
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeID != "n1" || got.Term != 4 || got.Role != raft.Leader {
		t.Fatalf("unexpected admin state: %+v", got)
	}
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{enqueueIdx: 42}
	ts := newTestServer(svc)
	defer ts.Close()

	body := base64.StdEncoding.EncodeToString([]byte("hello"))
	req := strings.NewReader(`{"body":"` + body + `"}`)

	resp, err := http.Post(ts.URL+"/messages", "application/json", req)
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got enqueueResp
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LogIndex != 42 {
		t.Fatalf("log_index = %d, want 42", got.LogIndex)
	}
	if string(svc.lastEnqueued) != "hello" {
		t.Fatalf("enqueued body = %q, want %q", svc.lastEnqueued, "hello")
	}
}

func TestEnqueueNotLeader(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{enqueueErr: service.ErrNotLeader}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/messages", "application/json", strings.NewReader(`{"body":"aGVsbG8="}`))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got == "" {
		t.Fatalf("expected a Retry-After header on a not-leader response")
	}
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{checkoutIdx: 7}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/customers/c1/messages?lifetime=once&num=3")
	if err != nil {
		t.Fatalf("GET checkout: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.lastCustomer != "c1" || svc.lastLifetime != "once" || svc.lastNum != 3 {
		t.Fatalf("unexpected checkout args: customer=%q lifetime=%q num=%d", svc.lastCustomer, svc.lastLifetime, svc.lastNum)
	}
}

func TestCheckoutBadNum(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeQueueService{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/customers/c1/messages?num=0")
	if err != nil {
		t.Fatalf("GET checkout: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSettle(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{}
	ts := newTestServer(svc)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/customers/c1/messages/9", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE settle: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if svc.lastCustomer != "c1" || svc.lastMsgID != 9 {
		t.Fatalf("unexpected settle args: customer=%q msg_id=%d", svc.lastCustomer, svc.lastMsgID)
	}
}

func TestReturn(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/customers/c1/messages/9/return", "application/json", nil)
	if err != nil {
		t.Fatalf("POST return: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestDown(t *testing.T) {
	t.Parallel()

	svc := &fakeQueueService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/customers/c1/down", "application/json", nil)
	if err != nil {
		t.Fatalf("POST down: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if svc.lastCustomer != "c1" {
		t.Fatalf("customer = %q, want c1", svc.lastCustomer)
	}
}

func TestEnqueueMalformedJSON(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeQueueService{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/messages", "application/json", strings.NewReader(`{"body":`))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
