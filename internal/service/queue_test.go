package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liveforeverx/ra/internal/consensus"
	"github.com/liveforeverx/ra/internal/queue"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}

// fakeConsensus is an in-process stand-in for the raft node good enough to
// drive Queue's apply loop end to end: StartCommand assigns the next
// LogIndex and immediately makes the command available on applyCh, exactly
// as a single-node Raft cluster would once committed.
type fakeConsensus struct {
	mu        sync.Mutex
	applyCh   chan consensus.ApplyMsg
	nextIndex int64
	isLeader  bool
	snapshots []consensus.ApplyMsg
}

func newFakeConsensus() *fakeConsensus {
	return &fakeConsensus{
		applyCh:  make(chan consensus.ApplyMsg, 16),
		isLeader: true,
	}
}

func (f *fakeConsensus) Run(context.Context) {}

func (f *fakeConsensus) StartCommand(cmd []byte) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isLeader {
		return 0, false
	}
	f.nextIndex++
	index := f.nextIndex
	f.applyCh <- consensus.ApplyMsg{CommandValid: true, Command: cmd, CommandIndex: index}
	return index, true
}

func (f *fakeConsensus) ApplyCh() <-chan consensus.ApplyMsg { return f.applyCh }

func (f *fakeConsensus) IsLeader() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isLeader
}

func (f *fakeConsensus) Snapshot(index int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, consensus.ApplyMsg{SnapshotValid: true, SnapshotIndex: index, Snapshot: data})
	return nil
}

func (f *fakeConsensus) Stop() {}

type fakeSink struct {
	mu         sync.Mutex
	monitored  []queue.CustomerID
	sent       []queue.SendMsgEffect
}

func (f *fakeSink) Monitor(c queue.CustomerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitored = append(f.monitored, c)
}

func (f *fakeSink) Demonitor(queue.CustomerID) {}

func (f *fakeSink) SendMsg(c queue.CustomerID, id queue.MessageID, msg queue.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, queue.SendMsgEffect{Customer: c, MessageID: id, Message: msg})
}

func (f *fakeSink) lastSend() (queue.SendMsgEffect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return queue.SendMsgEffect{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func newTestQueue(t *testing.T) (*Queue, *fakeConsensus, *fakeSink) {
	t.Helper()
	c := newFakeConsensus()
	sink := &fakeSink{}
	state, initEffects := queue.Init("orders")
	svc := NewQueue(c, state, initEffects, sink, nopLogger{}, noop.NewTracerProvider().Tracer("test"), nil, "n1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.RunApplyLoop(ctx)

	return svc, c, sink
}

func TestQueueService_EnqueueThenCheckoutDeliversMessage(t *testing.T) {
	t.Parallel()

	svc, _, sink := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := svc.Enqueue(ctx, queue.Message("m1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := svc.Checkout(ctx, "c1", queue.LifetimeAuto, 1); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	send, ok := sink.lastSend()
	if !ok {
		t.Fatalf("expected a send_msg dispatched to the sink")
	}
	if send.Customer != "c1" || string(send.Message) != "m1" {
		t.Fatalf("send = %+v, want customer c1 message m1", send)
	}

	ov := svc.Overview()
	if ov.Messages != 0 {
		t.Fatalf("Overview().Messages = %d, want 0 after delivery", ov.Messages)
	}
}

func TestQueueService_NotLeaderRejectsProposal(t *testing.T) {
	t.Parallel()

	svc, c, _ := newTestQueue(t)
	c.mu.Lock()
	c.isLeader = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := svc.Enqueue(ctx, queue.Message("m1")); err != ErrNotLeader {
		t.Fatalf("Enqueue() error = %v, want ErrNotLeader", err)
	}
}

func TestQueueService_CommitTimeoutWhenNothingApplies(t *testing.T) {
	t.Parallel()

	c := newFakeConsensus()
	sink := &fakeSink{}
	state, initEffects := queue.Init("orders")
	svc := NewQueue(c, state, initEffects, sink, nopLogger{}, noop.NewTracerProvider().Tracer("test"), nil, "n1")
	// No RunApplyLoop: StartCommand enqueues to applyCh but nothing ever
	// drains it, so waitApplied must time out rather than hang.

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Enqueue(ctx, queue.Message("m1")); err != ErrCommitTimeout {
		t.Fatalf("Enqueue() error = %v, want ErrCommitTimeout", err)
	}
}

func TestQueueService_SnapshotEffectReachesConsensus(t *testing.T) {
	t.Parallel()

	svc, c, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := svc.Enqueue(ctx, queue.Message("m1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := svc.Checkout(ctx, "c1", queue.LifetimeOnce, 1); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	// Settle the single outstanding delivery, which drains the customer
	// and empties the queue, triggering a release_cursor effect.
	svc.mu.Lock()
	ids := svc.state.Customers["c1"].CheckedOutIDs()
	svc.mu.Unlock()
	if len(ids) != 1 {
		t.Fatalf("outstanding deliveries = %d, want 1", len(ids))
	}
	msgID := ids[0]

	if _, err := svc.Settle(ctx, "c1", msgID); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	c.mu.Lock()
	n := len(c.snapshots)
	c.mu.Unlock()
	if n != 1 {
		t.Fatalf("consensus.Snapshot call count = %d, want 1", n)
	}
}
