// Package service contains application services exposed via transports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/liveforeverx/ra/internal/consensus"
	"github.com/liveforeverx/ra/internal/queue"
)

// ErrNotLeader is returned when a write is proposed to a non-leader node.
var ErrNotLeader = errors.New("service: not leader")

// ErrCommitTimeout is returned when a write is accepted for replication but
// does not get committed/applied before the request deadline.
var ErrCommitTimeout = errors.New("service: write not committed before deadline")

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Metrics captures service-level metric sinks used by Queue.
type Metrics interface {
	ObserveQueueWaitAppliedDuration(nodeID string, d time.Duration, ok bool)
	ObserveQueueStartToApplyDuration(nodeID string, d time.Duration)
	ObserveQueueApplyToWakeDuration(nodeID string, d time.Duration)
	AddQueueWaitAppliedWakeups(nodeID string, n int)
	IncQueueWaitAppliedCall(nodeID string, ok bool)
	IncQueueProposalResult(nodeID, result string)
	ObserveQueueSnapshotDuration(nodeID string, d time.Duration)
	ObserveQueueSnapshotBytes(nodeID string, n int)
	IncQueueSnapshot(nodeID, result string)
	AddQueueEnqueued(nodeID, queueName string, n int)
	AddQueueCheckedOut(nodeID, queueName string, n int)
	AddQueueSettled(nodeID, queueName string, n int)
	AddQueueReturned(nodeID, queueName string, n int)
	SetQueueCustomers(nodeID, queueName string, n int)
	SetQueueMessages(nodeID, queueName string, n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveQueueWaitAppliedDuration(string, time.Duration, bool) {}
func (noopMetrics) ObserveQueueStartToApplyDuration(string, time.Duration)      {}
func (noopMetrics) ObserveQueueApplyToWakeDuration(string, time.Duration)       {}
func (noopMetrics) AddQueueWaitAppliedWakeups(string, int)                      {}
func (noopMetrics) IncQueueWaitAppliedCall(string, bool)                        {}
func (noopMetrics) IncQueueProposalResult(string, string)                       {}
func (noopMetrics) ObserveQueueSnapshotDuration(string, time.Duration)          {}
func (noopMetrics) ObserveQueueSnapshotBytes(string, int)                       {}
func (noopMetrics) IncQueueSnapshot(string, string)                             {}
func (noopMetrics) AddQueueEnqueued(string, string, int)                        {}
func (noopMetrics) AddQueueCheckedOut(string, string, int)                      {}
func (noopMetrics) AddQueueSettled(string, string, int)                         {}
func (noopMetrics) AddQueueReturned(string, string, int)                        {}
func (noopMetrics) SetQueueCustomers(string, string, int)                       {}
func (noopMetrics) SetQueueMessages(string, string, int)                        {}

// CustomerSink is the host-side counterpart to the effects the queue state
// machine returns instead of performing I/O itself: internal/transport/customer
// implements it by holding a registry of live customer connections.
type CustomerSink interface {
	Monitor(customer queue.CustomerID)
	Demonitor(customer queue.CustomerID)
	SendMsg(customer queue.CustomerID, msgID queue.MessageID, msg queue.Message)
}

// Queue is the application service that bridges the queue state machine and
// the consensus layer: it turns client calls into replicated commands, and
// turns the effects Apply returns into real monitor/demonitor/delivery/metric/
// snapshot actions.
type Queue struct {
	consensus consensus.Consensus
	state     *queue.State
	sink      CustomerSink
	logger    Logger
	tracer    oteltrace.Tracer
	metrics   Metrics
	nodeID    string
	mu        sync.Mutex

	wasLeader bool

	lastAppliedIndex int64
	appliedSinceSnap uint64
	applyNotifyCh    chan struct{}
	appliedAtByIndex map[int64]time.Time
}

// NewQueue creates a Queue service backed by the provided consensus engine,
// an initial state and its init effects (both normally produced together by
// queue.Init(name)), and a customer delivery sink. The init effects are
// dispatched immediately so the metrics sink sees the queue's counter row
// before any command has been applied.
func NewQueue(c consensus.Consensus, state *queue.State, initEffects []queue.Effect, sink CustomerSink, logger Logger, tracer oteltrace.Tracer, metrics Metrics, nodeID string) *Queue {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	q := &Queue{
		consensus:        c,
		state:            state,
		sink:             sink,
		logger:           logger,
		tracer:           tracer,
		metrics:          metrics,
		nodeID:           nodeID,
		applyNotifyCh:    make(chan struct{}, 1),
		appliedAtByIndex: make(map[int64]time.Time),
	}
	q.dispatchEffects(initEffects)
	return q
}

func (s *Queue) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func queueSpanRecordError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

func queueAppliedSinceSnapshotAttr(v uint64) attribute.KeyValue {
	if v > math.MaxInt64 {
		return attribute.Int64("queue.applied_since_snapshot", math.MaxInt64)
	}
	return attribute.Int64("queue.applied_since_snapshot", int64(v))
}

// Overview returns a read-only snapshot of local queue counters. As with the
// teacher's KV.Get, this reads local state directly without going through
// consensus, so a follower may answer with a slightly stale view.
func (s *Queue) Overview() queue.Overview {
	_, span := s.startSpan(context.Background(), "queue.service.Overview")
	defer span.End()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Overview()
}

// Enqueue proposes appending message to the tail of the queue.
func (s *Queue) Enqueue(ctx context.Context, message queue.Message) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.Enqueue", attribute.Int("queue.message.bytes", len(message)))
	defer span.End()
	s.logger.Debug("proposing enqueue", "bytes", len(message))
	index, err := s.startCommand(ctx, queue.Command{Kind: queue.KindEnqueue, Enqueue: &queue.EnqueueCommand{Message: message}})
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	return index, nil
}

// Checkout proposes registering or refreshing a customer's credit.
func (s *Queue) Checkout(ctx context.Context, customer queue.CustomerID, lifetime queue.Lifetime, num int) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.Checkout", attribute.String("queue.customer", string(customer)))
	defer span.End()
	s.logger.Debug("proposing checkout", "customer", customer, "lifetime", lifetime, "num", num)
	index, err := s.startCommand(ctx, queue.Command{Kind: queue.KindCheckout, Checkout: &queue.CheckoutCommand{
		Customer: customer, Lifetime: lifetime, Num: num,
	}})
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	return index, nil
}

// Settle proposes acknowledging a delivery.
func (s *Queue) Settle(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.Settle", attribute.String("queue.customer", string(customer)))
	defer span.End()
	index, err := s.startCommand(ctx, queue.Command{Kind: queue.KindSettle, Settle: &queue.SettleCommand{
		Customer: customer, MessageID: msgID,
	}})
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	return index, nil
}

// Return proposes handing a delivery back to the queue for redelivery.
func (s *Queue) Return(ctx context.Context, customer queue.CustomerID, msgID queue.MessageID) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.Return", attribute.String("queue.customer", string(customer)))
	defer span.End()
	index, err := s.startCommand(ctx, queue.Command{Kind: queue.KindReturn, Return: &queue.ReturnCommand{
		Customer: customer, MessageID: msgID,
	}})
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	return index, nil
}

// Down proposes removing a customer and returning everything it had
// outstanding.
func (s *Queue) Down(ctx context.Context, customer queue.CustomerID) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.Down", attribute.String("queue.customer", string(customer)))
	defer span.End()
	index, err := s.startCommand(ctx, queue.Command{Kind: queue.KindDown, Down: &queue.DownCommand{Customer: customer}})
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	return index, nil
}

// IsLeader reports whether the underlying consensus node is currently leader.
func (s *Queue) IsLeader() bool {
	return s.consensus.IsLeader()
}

// RunApplyLoop applies consensus messages to the queue state machine until
// ctx is canceled or a handler returns an error.
func (s *Queue) RunApplyLoop(ctx context.Context) error {
	ch := s.consensus.ApplyCh()
	if ch == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.handleApply(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (s *Queue) handleApply(ctx context.Context, msg consensus.ApplyMsg) error {
	if msg.SnapshotValid {
		_, span := s.startSpan(
			ctx,
			"queue.service.handleApplySnapshot",
			attribute.Int64("raft.snapshot.index", msg.SnapshotIndex),
			attribute.Int("queue.snapshot.bytes", len(msg.Snapshot)),
		)
		defer span.End()

		s.logger.Debug("restoring state from snapshot", "snapshot_index", msg.SnapshotIndex)
		restored, err := queue.Restore(msg.Snapshot)
		if err != nil {
			queueSpanRecordError(span, err)
			return err
		}
		s.mu.Lock()
		s.state = restored
		s.lastAppliedIndex = msg.SnapshotIndex
		s.appliedSinceSnap = 0
		s.mu.Unlock()
		s.notifyApply()
		s.logger.Debug("snapshot restored", "snapshot_index", msg.SnapshotIndex)
		return nil
	}

	if !msg.CommandValid {
		return nil
	}

	ctx, span := s.startSpan(
		ctx,
		"queue.service.handleApplyCommand",
		attribute.Int64("raft.log.index", msg.CommandIndex),
		attribute.Int("queue.command.bytes", len(msg.Command)),
	)
	defer span.End()

	var cmd queue.Command
	if err := json.Unmarshal(msg.Command, &cmd); err != nil {
		queueSpanRecordError(span, err)
		return err
	}
	span.SetAttributes(attribute.String("queue.command.kind", string(cmd.Kind)))

	s.mu.Lock()
	_, effects := queue.Apply(queue.LogIndex(msg.CommandIndex), cmd, s.state)
	overview := s.state.Overview()
	s.lastAppliedIndex = msg.CommandIndex
	s.appliedSinceSnap++
	s.appliedAtByIndex[msg.CommandIndex] = time.Now()
	const appliedAtRetention = int64(4096)
	if cutoff := msg.CommandIndex - appliedAtRetention; cutoff > 0 {
		delete(s.appliedAtByIndex, cutoff)
	}
	appliedSinceSnap := s.appliedSinceSnap
	s.mu.Unlock()

	s.dispatchEffects(effects)
	s.metrics.SetQueueCustomers(s.nodeID, overview.Name, overview.Customers)
	s.metrics.SetQueueMessages(s.nodeID, overview.Name, overview.Messages)
	s.notifyApply()
	s.checkLeadershipTransition()

	s.logger.Debug("command applied",
		"index", msg.CommandIndex,
		"applied_since_snap", appliedSinceSnap,
	)
	span.SetAttributes(queueAppliedSinceSnapshotAttr(appliedSinceSnap))
	return nil
}

// dispatchEffects turns the effects Apply returned into real actions: the
// monitor/demonitor/send_msg half goes to the customer sink, incr_metrics
// goes to the metrics sink, and release_cursor hands the already-computed
// (index, shadow) pair straight to consensus — no recomputation needed,
// since the state machine already did the work of deciding the cut point.
func (s *Queue) dispatchEffects(effects []queue.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case queue.EffectMonitor:
			s.sink.Monitor(e.Monitor.Customer)
		case queue.EffectDemonitor:
			s.sink.Demonitor(e.Demonitor.Customer)
		case queue.EffectSendMsg:
			s.sink.SendMsg(e.SendMsg.Customer, e.SendMsg.MessageID, e.SendMsg.Message)
		case queue.EffectIncrMetrics:
			s.applyMetric(e.IncrMetrics)
		case queue.EffectReleaseCursor:
			s.releaseCursor(e.ReleaseCursor)
		}
	}
}

func (s *Queue) applyMetric(e *queue.IncrMetricsEffect) {
	for _, d := range e.Deltas {
		switch d.Metric {
		case queue.MetricEnqueued:
			s.metrics.AddQueueEnqueued(s.nodeID, e.Queue, d.Count)
		case queue.MetricCheckedOut:
			s.metrics.AddQueueCheckedOut(s.nodeID, e.Queue, d.Count)
		case queue.MetricSettled:
			s.metrics.AddQueueSettled(s.nodeID, e.Queue, d.Count)
		case queue.MetricReturned:
			s.metrics.AddQueueReturned(s.nodeID, e.Queue, d.Count)
		}
	}
}

func (s *Queue) releaseCursor(e *queue.ReleaseCursorEffect) {
	_, span := s.startSpan(context.Background(), "queue.service.releaseCursor",
		attribute.Int64("raft.log.index", int64(e.LogIndex)),
		attribute.Int("queue.shadow.bytes", len(e.Shadow)),
	)
	defer span.End()
	start := time.Now()

	if err := s.consensus.Snapshot(int64(e.LogIndex), e.Shadow); err != nil {
		s.metrics.IncQueueSnapshot(s.nodeID, "consensus_error")
		queueSpanRecordError(span, err)
		return
	}
	s.metrics.ObserveQueueSnapshotBytes(s.nodeID, len(e.Shadow))
	s.metrics.ObserveQueueSnapshotDuration(s.nodeID, time.Since(start))
	s.metrics.IncQueueSnapshot(s.nodeID, "ok")
}

// checkLeadershipTransition replays monitor effects for every known customer
// the first time a node observes itself becoming leader, so a freshly
// elected leader's customer sink ends up watching exactly the customers the
// replicated state already knows about, without relying on monitor effects
// that were only ever emitted in a previous leader's process.
func (s *Queue) checkLeadershipTransition() {
	isLeader := s.consensus.IsLeader()
	s.mu.Lock()
	becameLeader := isLeader && !s.wasLeader
	s.wasLeader = isLeader
	state := s.state
	s.mu.Unlock()

	if !becameLeader {
		return
	}
	for _, e := range queue.LeaderEffects(state) {
		s.sink.Monitor(e.Monitor.Customer)
	}
}

func (s *Queue) startCommand(ctx context.Context, cmd queue.Command) (int64, error) {
	ctx, span := s.startSpan(ctx, "queue.service.startCommand", attribute.String("queue.command.kind", string(cmd.Kind)))
	defer span.End()

	raw, err := json.Marshal(cmd)
	if err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("queue.command.bytes", len(raw)))

	index, isLeader := s.consensus.StartCommand(raw)
	if !isLeader {
		s.metrics.IncQueueProposalResult(s.nodeID, "not_leader")
		queueSpanRecordError(span, ErrNotLeader)
		return 0, ErrNotLeader
	}
	s.metrics.IncQueueProposalResult(s.nodeID, "accepted")
	span.SetAttributes(attribute.Int64("raft.log.index", index))
	s.logger.Debug("command accepted by consensus", "index", index, "kind", cmd.Kind)
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.waitApplied(ctx, index); err != nil {
		queueSpanRecordError(span, err)
		return 0, err
	}
	return index, nil
}

func (s *Queue) waitApplied(ctx context.Context, index int64) error {
	ctx, span := s.startSpan(ctx, "queue.service.waitApplied", attribute.Int64("raft.log.index", index))
	defer span.End()
	start := time.Now()
	wakeups := 0

	for {
		s.mu.Lock()
		applied := s.lastAppliedIndex
		appliedAt := s.appliedAtByIndex[index]
		s.mu.Unlock()
		span.SetAttributes(attribute.Int64("queue.last_applied_index", applied))
		if applied >= index {
			span.SetAttributes(attribute.Bool("queue.wait_applied.done", true))
			total := time.Since(start)
			s.metrics.ObserveQueueWaitAppliedDuration(s.nodeID, total, true)
			s.metrics.AddQueueWaitAppliedWakeups(s.nodeID, wakeups)
			s.metrics.IncQueueWaitAppliedCall(s.nodeID, true)
			if !appliedAt.IsZero() {
				now := time.Now()
				if !appliedAt.Before(start) {
					s.metrics.ObserveQueueStartToApplyDuration(s.nodeID, appliedAt.Sub(start))
				}
				if !now.Before(appliedAt) {
					s.metrics.ObserveQueueApplyToWakeDuration(s.nodeID, now.Sub(appliedAt))
				}
				s.mu.Lock()
				delete(s.appliedAtByIndex, index)
				s.mu.Unlock()
			}
			return nil
		}
		select {
		case <-ctx.Done():
			queueSpanRecordError(span, ErrCommitTimeout)
			s.metrics.ObserveQueueWaitAppliedDuration(s.nodeID, time.Since(start), false)
			s.metrics.AddQueueWaitAppliedWakeups(s.nodeID, wakeups)
			s.metrics.IncQueueWaitAppliedCall(s.nodeID, false)
			s.metrics.IncQueueProposalResult(s.nodeID, "commit_timeout")
			return ErrCommitTimeout
		case <-s.applyNotifyCh:
			wakeups++
		}
	}
}

func (s *Queue) notifyApply() {
	select {
	case s.applyNotifyCh <- struct{}{}:
	default:
	}
}
