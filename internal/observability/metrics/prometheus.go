//revive:disable:var-naming
//revive:disable:exported
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes application metrics and can be injected into service/raft layers.
// It implements both internal/service.Metrics and internal/consensus/raft.Metrics
// through method set compatibility, without importing those packages.
type Prometheus struct {
	queueWaitAppliedDuration        *prometheus.HistogramVec
	queueStartToApplyDuration       *prometheus.HistogramVec
	queueApplyToWakeDuration        *prometheus.HistogramVec
	queueWaitAppliedWakeupsTotal    *prometheus.CounterVec
	queueWaitAppliedCallsTotal      *prometheus.CounterVec
	queueProposalTotal              *prometheus.CounterVec
	queueSnapshotDuration            *prometheus.HistogramVec
	queueSnapshotBytes               *prometheus.HistogramVec
	queueSnapshotTotal               *prometheus.CounterVec
	queueEnqueuedTotal               *prometheus.CounterVec
	queueCheckedOutTotal             *prometheus.CounterVec
	queueSettledTotal                *prometheus.CounterVec
	queueReturnedTotal               *prometheus.CounterVec
	queueCustomersGauge              *prometheus.GaugeVec
	queueMessagesGauge               *prometheus.GaugeVec
	raftAppendEntriesRPCDuration *prometheus.HistogramVec
	raftAppendEntriesRejectTotal *prometheus.CounterVec
	raftAppendEntriesRPCError    *prometheus.CounterVec
	raftInstallSnapshotRPCDur    *prometheus.HistogramVec
	raftInstallSnapshotSendBytes *prometheus.HistogramVec
	raftInstallSnapshotSendTotal *prometheus.CounterVec
	raftElectionStartedTotal     *prometheus.CounterVec
	raftElectionWonTotal         *prometheus.CounterVec
	raftElectionLostTotal        *prometheus.CounterVec
	raftStorageErrorTotal        *prometheus.CounterVec
	raftApplyLag                 *prometheus.GaugeVec
	raftIsLeader                 *prometheus.GaugeVec
	raftStartToCommitDuration    *prometheus.HistogramVec
	raftCommitToApplyDuration    *prometheus.HistogramVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		queueWaitAppliedDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "wait_applied_duration_seconds",
				Help:      "Time spent waiting for a proposed command to be applied in the queue service.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1},
			},
			[]string{"node_id", "result"},
		),
		queueStartToApplyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "start_to_apply_duration_seconds",
				Help:      "Time from entering queue waitApplied to the command becoming applied in the state machine.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"node_id"},
		),
		queueApplyToWakeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "apply_to_waiter_wakeup_duration_seconds",
				Help:      "Time from state machine apply to request waiter completion in the queue service.",
				Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02},
			},
			[]string{"node_id"},
		),
		queueWaitAppliedWakeupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "wait_applied_wakeups_total",
				Help:      "Total apply-notify wakeups observed by waitApplied calls.",
			},
			[]string{"node_id"},
		),
		queueWaitAppliedCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "wait_applied_calls_total",
				Help:      "Total number of waitApplied calls by result.",
			},
			[]string{"node_id", "result"},
		),
		queueProposalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "proposal_total",
				Help:      "Queue command proposal outcomes (accepted, not_leader, commit_timeout, etc.).",
			},
			[]string{"node_id", "result"},
		),
		queueSnapshotDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "snapshot_duration_seconds",
				Help:      "Duration of queue snapshot creation and handoff to consensus.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
			[]string{"node_id"},
		),
		queueSnapshotBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "snapshot_bytes",
				Help:      "Serialized queue snapshot payload size in bytes.",
				Buckets:   []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216},
			},
			[]string{"node_id"},
		),
		queueSnapshotTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "snapshot_total",
				Help:      "Queue snapshot attempts by result.",
			},
			[]string{"node_id", "result"},
		),
		queueEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Messages enqueued, as reported by the queue state machine's incr_metrics effect.",
			},
			[]string{"node_id", "queue"},
		),
		queueCheckedOutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "checked_out_total",
				Help:      "Deliveries handed to a customer by the checkout engine.",
			},
			[]string{"node_id", "queue"},
		),
		queueSettledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "settled_total",
				Help:      "Deliveries acknowledged via settle.",
			},
			[]string{"node_id", "queue"},
		),
		queueReturnedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "returned_total",
				Help:      "Deliveries handed back to the queue via return or down.",
			},
			[]string{"node_id", "queue"},
		),
		queueCustomersGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "customers",
				Help:      "Customers currently known to the queue state machine.",
			},
			[]string{"node_id", "queue"},
		),
		queueMessagesGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "queue",
				Name:      "messages_unassigned",
				Help:      "Unassigned messages currently waiting in the queue.",
			},
			[]string{"node_id", "queue"},
		),
		raftAppendEntriesRPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "appendentries_rpc_duration_seconds",
				Help:      "Duration of outbound AppendEntries RPC calls from a leader to a peer.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"node_id", "peer_id", "heartbeat"},
		),
		raftAppendEntriesRejectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "appendentries_reject_total",
				Help:      "Number of AppendEntries rejections received from peers.",
			},
			[]string{"node_id", "peer_id", "heartbeat"},
		),
		raftAppendEntriesRPCError: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "appendentries_rpc_error_total",
				Help:      "Outbound AppendEntries RPC errors by kind.",
			},
			[]string{"node_id", "peer_id", "heartbeat", "kind"},
		),
		raftInstallSnapshotRPCDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "installsnapshot_rpc_duration_seconds",
				Help:      "Duration of outbound InstallSnapshot RPC calls.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
			[]string{"node_id", "peer_id"},
		),
		raftInstallSnapshotSendBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "installsnapshot_send_bytes",
				Help:      "InstallSnapshot payload size sent to a peer in bytes.",
				Buckets:   []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216},
			},
			[]string{"node_id", "peer_id"},
		),
		raftInstallSnapshotSendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "installsnapshot_send_total",
				Help:      "InstallSnapshot send attempts by result.",
			},
			[]string{"node_id", "peer_id", "result"},
		),
		raftElectionStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "election_started_total",
				Help:      "Number of times a node started an election as candidate.",
			},
			[]string{"node_id"},
		),
		raftElectionWonTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "election_won_total",
				Help:      "Number of elections won by a node.",
			},
			[]string{"node_id"},
		),
		raftElectionLostTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "election_lost_total",
				Help:      "Number of elections lost/aborted by reason.",
			},
			[]string{"node_id", "reason"},
		),
		raftStorageErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "storage_error_total",
				Help:      "Raft storage persistence errors by operation.",
			},
			[]string{"node_id", "op"},
		),
		raftApplyLag: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "apply_lag",
				Help:      "Difference between commitIndex and lastApplied on a node.",
			},
			[]string{"node_id"},
		),
		raftIsLeader: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "is_leader",
				Help:      "1 if node currently believes it is leader, otherwise 0.",
			},
			[]string{"node_id"},
		),
		raftStartToCommitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "start_to_commit_duration_seconds",
				Help:      "Time from leader accepting a command (StartCommand) to commitIndex covering that entry.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"node_id"},
		),
		raftCommitToApplyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "raft",
				Name:      "commit_to_apply_duration_seconds",
				Help:      "Time from commitIndex advancing over an entry to that entry being applied.",
				Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1},
			},
			[]string{"node_id"},
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	if err := registerOrReuseHistogramVec(reg, &m.queueWaitAppliedDuration); err != nil {
		return fmt.Errorf("register queue waitApplied histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.queueStartToApplyDuration); err != nil {
		return fmt.Errorf("register queue start->apply histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.queueApplyToWakeDuration); err != nil {
		return fmt.Errorf("register queue apply->wake histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueWaitAppliedWakeupsTotal); err != nil {
		return fmt.Errorf("register queue wait wakeups counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueWaitAppliedCallsTotal); err != nil {
		return fmt.Errorf("register queue wait calls counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueProposalTotal); err != nil {
		return fmt.Errorf("register queue proposal counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.queueSnapshotDuration); err != nil {
		return fmt.Errorf("register queue snapshot duration histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.queueSnapshotBytes); err != nil {
		return fmt.Errorf("register queue snapshot bytes histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueSnapshotTotal); err != nil {
		return fmt.Errorf("register queue snapshot counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueEnqueuedTotal); err != nil {
		return fmt.Errorf("register queue enqueued counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueCheckedOutTotal); err != nil {
		return fmt.Errorf("register queue checked_out counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueSettledTotal); err != nil {
		return fmt.Errorf("register queue settled counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.queueReturnedTotal); err != nil {
		return fmt.Errorf("register queue returned counter: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.queueCustomersGauge); err != nil {
		return fmt.Errorf("register queue customers gauge: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.queueMessagesGauge); err != nil {
		return fmt.Errorf("register queue messages gauge: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.raftAppendEntriesRPCDuration); err != nil {
		return fmt.Errorf("register raft appendentries rpc histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftAppendEntriesRejectTotal); err != nil {
		return fmt.Errorf("register raft appendentries reject counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftAppendEntriesRPCError); err != nil {
		return fmt.Errorf("register raft appendentries rpc error counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.raftInstallSnapshotRPCDur); err != nil {
		return fmt.Errorf("register raft installsnapshot rpc duration histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.raftInstallSnapshotSendBytes); err != nil {
		return fmt.Errorf("register raft installsnapshot bytes histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftInstallSnapshotSendTotal); err != nil {
		return fmt.Errorf("register raft installsnapshot counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftElectionStartedTotal); err != nil {
		return fmt.Errorf("register raft election started counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftElectionWonTotal); err != nil {
		return fmt.Errorf("register raft election won counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftElectionLostTotal); err != nil {
		return fmt.Errorf("register raft election lost counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.raftStorageErrorTotal); err != nil {
		return fmt.Errorf("register raft storage error counter: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.raftApplyLag); err != nil {
		return fmt.Errorf("register raft apply lag gauge: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.raftIsLeader); err != nil {
		return fmt.Errorf("register raft is_leader gauge: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.raftStartToCommitDuration); err != nil {
		return fmt.Errorf("register raft start->commit histogram: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.raftCommitToApplyDuration); err != nil {
		return fmt.Errorf("register raft commit->apply histogram: %w", err)
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, c **prometheus.HistogramVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseGaugeVec(reg prometheus.Registerer, c **prometheus.GaugeVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func (m *Prometheus) ObserveQueueWaitAppliedDuration(nodeID string, d time.Duration, ok bool) {
	result := "timeout"
	if ok {
		result = "ok"
	}
	m.queueWaitAppliedDuration.WithLabelValues(nodeID, result).Observe(d.Seconds())
}

func (m *Prometheus) ObserveQueueStartToApplyDuration(nodeID string, d time.Duration) {
	m.queueStartToApplyDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

func (m *Prometheus) ObserveQueueApplyToWakeDuration(nodeID string, d time.Duration) {
	m.queueApplyToWakeDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

func (m *Prometheus) AddQueueWaitAppliedWakeups(nodeID string, n int) {
	if n <= 0 {
		return
	}
	m.queueWaitAppliedWakeupsTotal.WithLabelValues(nodeID).Add(float64(n))
}

func (m *Prometheus) IncQueueWaitAppliedCall(nodeID string, ok bool) {
	result := "timeout"
	if ok {
		result = "ok"
	}
	m.queueWaitAppliedCallsTotal.WithLabelValues(nodeID, result).Inc()
}

func (m *Prometheus) IncQueueProposalResult(nodeID, result string) {
	m.queueProposalTotal.WithLabelValues(nodeID, result).Inc()
}

func (m *Prometheus) ObserveQueueSnapshotDuration(nodeID string, d time.Duration) {
	m.queueSnapshotDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

func (m *Prometheus) ObserveQueueSnapshotBytes(nodeID string, n int) {
	if n < 0 {
		n = 0
	}
	m.queueSnapshotBytes.WithLabelValues(nodeID).Observe(float64(n))
}

func (m *Prometheus) IncQueueSnapshot(nodeID, result string) {
	m.queueSnapshotTotal.WithLabelValues(nodeID, result).Inc()
}

func (m *Prometheus) AddQueueEnqueued(nodeID, queueName string, n int) {
	if n <= 0 {
		return
	}
	m.queueEnqueuedTotal.WithLabelValues(nodeID, queueName).Add(float64(n))
}

func (m *Prometheus) AddQueueCheckedOut(nodeID, queueName string, n int) {
	if n <= 0 {
		return
	}
	m.queueCheckedOutTotal.WithLabelValues(nodeID, queueName).Add(float64(n))
}

func (m *Prometheus) AddQueueSettled(nodeID, queueName string, n int) {
	if n <= 0 {
		return
	}
	m.queueSettledTotal.WithLabelValues(nodeID, queueName).Add(float64(n))
}

func (m *Prometheus) AddQueueReturned(nodeID, queueName string, n int) {
	if n <= 0 {
		return
	}
	m.queueReturnedTotal.WithLabelValues(nodeID, queueName).Add(float64(n))
}

func (m *Prometheus) SetQueueCustomers(nodeID, queueName string, n int) {
	m.queueCustomersGauge.WithLabelValues(nodeID, queueName).Set(float64(n))
}

func (m *Prometheus) SetQueueMessages(nodeID, queueName string, n int) {
	m.queueMessagesGauge.WithLabelValues(nodeID, queueName).Set(float64(n))
}

func (m *Prometheus) ObserveRaftAppendEntriesRPCDuration(nodeID, peerID string, heartbeat bool, d time.Duration) {
	m.raftAppendEntriesRPCDuration.WithLabelValues(nodeID, peerID, boolString(heartbeat)).Observe(d.Seconds())
}

func (m *Prometheus) IncRaftAppendEntriesReject(nodeID, peerID string, heartbeat bool) {
	m.raftAppendEntriesRejectTotal.WithLabelValues(nodeID, peerID, boolString(heartbeat)).Inc()
}

func (m *Prometheus) IncRaftAppendEntriesRPCError(nodeID, peerID string, heartbeat bool, kind string) {
	m.raftAppendEntriesRPCError.WithLabelValues(nodeID, peerID, boolString(heartbeat), kind).Inc()
}

func (m *Prometheus) ObserveRaftInstallSnapshotRPCDuration(nodeID, peerID string, d time.Duration) {
	m.raftInstallSnapshotRPCDur.WithLabelValues(nodeID, peerID).Observe(d.Seconds())
}

func (m *Prometheus) ObserveRaftInstallSnapshotSendBytes(nodeID, peerID string, n int) {
	if n < 0 {
		n = 0
	}
	m.raftInstallSnapshotSendBytes.WithLabelValues(nodeID, peerID).Observe(float64(n))
}

func (m *Prometheus) IncRaftInstallSnapshotSend(nodeID, peerID, result string) {
	m.raftInstallSnapshotSendTotal.WithLabelValues(nodeID, peerID, result).Inc()
}

func (m *Prometheus) IncRaftElectionStarted(nodeID string) {
	m.raftElectionStartedTotal.WithLabelValues(nodeID).Inc()
}

func (m *Prometheus) IncRaftElectionWon(nodeID string) {
	m.raftElectionWonTotal.WithLabelValues(nodeID).Inc()
}

func (m *Prometheus) IncRaftElectionLost(nodeID, reason string) {
	m.raftElectionLostTotal.WithLabelValues(nodeID, reason).Inc()
}

func (m *Prometheus) IncRaftStorageError(nodeID, op string) {
	m.raftStorageErrorTotal.WithLabelValues(nodeID, op).Inc()
}

func (m *Prometheus) SetRaftApplyLag(nodeID string, lag int64) {
	if lag < 0 {
		lag = 0
	}
	m.raftApplyLag.WithLabelValues(nodeID).Set(float64(lag))
}

func (m *Prometheus) SetRaftIsLeader(nodeID string, isLeader bool) {
	if isLeader {
		m.raftIsLeader.WithLabelValues(nodeID).Set(1)
		return
	}
	m.raftIsLeader.WithLabelValues(nodeID).Set(0)
}

func (m *Prometheus) ObserveRaftCommitToApplyDuration(nodeID string, d time.Duration) {
	m.raftCommitToApplyDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

func (m *Prometheus) ObserveRaftStartToCommitDuration(nodeID string, d time.Duration) {
	m.raftStartToCommitDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
