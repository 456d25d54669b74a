package raft

import "time"

// Metrics captures Raft-layer metric sinks used by the node implementation.
// internal/observability/metrics.Prometheus implements this alongside
// service.Metrics, so a single registry backs both the queue-level and
// replication-level counters exposed by a node.
type Metrics interface {
	ObserveRaftAppendEntriesRPCDuration(nodeID, peerID string, heartbeat bool, d time.Duration)
	IncRaftAppendEntriesReject(nodeID, peerID string, heartbeat bool)
	IncRaftAppendEntriesRPCError(nodeID, peerID string, heartbeat bool, kind string)
	ObserveRaftInstallSnapshotRPCDuration(nodeID, peerID string, d time.Duration)
	ObserveRaftInstallSnapshotSendBytes(nodeID, peerID string, n int)
	IncRaftInstallSnapshotSend(nodeID, peerID, result string)
	IncRaftElectionStarted(nodeID string)
	IncRaftElectionWon(nodeID string)
	IncRaftElectionLost(nodeID, reason string)
	IncRaftStorageError(nodeID, op string)
	SetRaftApplyLag(nodeID string, lag int64)
	SetRaftIsLeader(nodeID string, isLeader bool)
	ObserveRaftStartToCommitDuration(nodeID string, d time.Duration)
	ObserveRaftCommitToApplyDuration(nodeID string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRaftAppendEntriesRPCDuration(string, string, bool, time.Duration) {}
func (noopMetrics) IncRaftAppendEntriesReject(string, string, bool)                         {}
func (noopMetrics) IncRaftAppendEntriesRPCError(string, string, bool, string)               {}
func (noopMetrics) ObserveRaftInstallSnapshotRPCDuration(string, string, time.Duration)     {}
func (noopMetrics) ObserveRaftInstallSnapshotSendBytes(string, string, int)                 {}
func (noopMetrics) IncRaftInstallSnapshotSend(string, string, string)                       {}
func (noopMetrics) IncRaftElectionStarted(string)                                           {}
func (noopMetrics) IncRaftElectionWon(string)                                               {}
func (noopMetrics) IncRaftElectionLost(string, string)                                      {}
func (noopMetrics) IncRaftStorageError(string, string)                                      {}
func (noopMetrics) SetRaftApplyLag(string, int64)                                           {}
func (noopMetrics) SetRaftIsLeader(string, bool)                                            {}
func (noopMetrics) ObserveRaftStartToCommitDuration(string, time.Duration)                  {}
func (noopMetrics) ObserveRaftCommitToApplyDuration(string, time.Duration)                  {}

// recordStartSeenLocked marks leader-side command start time for a specific log index.
// Caller must hold n.mu.
func (n *Node) recordStartSeenLocked(index int64, now time.Time) {
	if index <= 0 {
		return
	}
	if n.startSeenAt == nil {
		n.startSeenAt = make(map[int64]time.Time)
	}
	if _, exists := n.startSeenAt[index]; !exists {
		n.startSeenAt[index] = now
	}
}

// observeStartToCommitRangeLocked records start->commit latency for entries newly
// covered by commitIndex. Caller must hold n.mu.
func (n *Node) observeStartToCommitRangeLocked(prevCommit, newCommit int64, now time.Time) {
	if newCommit <= prevCommit || len(n.startSeenAt) == 0 {
		return
	}
	for idx := prevCommit + 1; idx <= newCommit; idx++ {
		if ts, ok := n.startSeenAt[idx]; ok {
			if !ts.IsZero() && !now.Before(ts) {
				n.metrics.ObserveRaftStartToCommitDuration(n.id, now.Sub(ts))
			}
			delete(n.startSeenAt, idx)
		}
	}
}

// recordCommitSeenRangeLocked marks commit-observed time for entries newly covered
// by commitIndex. Caller must hold n.mu.
func (n *Node) recordCommitSeenRangeLocked(prevCommit, newCommit int64, now time.Time) {
	if newCommit <= prevCommit {
		return
	}
	if n.commitSeenAt == nil {
		n.commitSeenAt = make(map[int64]time.Time)
	}
	for idx := prevCommit + 1; idx <= newCommit; idx++ {
		if _, exists := n.commitSeenAt[idx]; !exists {
			n.commitSeenAt[idx] = now
		}
	}
}

// observeCommitToApplyLocked records commit->apply latency for an applied index and
// clears stale entries up to that index. Caller must hold n.mu.
func (n *Node) observeCommitToApplyLocked(appliedIndex int64, now time.Time) {
	if appliedIndex <= 0 || len(n.commitSeenAt) == 0 {
		return
	}
	if ts, ok := n.commitSeenAt[appliedIndex]; ok {
		if !ts.IsZero() && !now.Before(ts) {
			n.metrics.ObserveRaftCommitToApplyDuration(n.id, now.Sub(ts))
		}
	}
	for idx := range n.commitSeenAt {
		if idx <= appliedIndex {
			delete(n.commitSeenAt, idx)
		}
	}
	for idx := range n.startSeenAt {
		if idx <= appliedIndex {
			delete(n.startSeenAt, idx)
		}
	}
}
