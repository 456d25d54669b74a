package queue

// Effect is the tagged union of side effects Apply returns instead of
// performing them directly, the same effects-as-data discipline the
// teacher's Store.Apply uses to keep the state machine itself free of I/O:
// the host (internal/service) is responsible for actually monitoring a
// customer handle, sending a message, incrementing a metric, or persisting
// a release cursor.
type Effect struct {
	Kind EffectKind `json:"kind"`

	Monitor      *MonitorEffect      `json:"monitor,omitempty"`
	Demonitor    *DemonitorEffect    `json:"demonitor,omitempty"`
	SendMsg      *SendMsgEffect      `json:"send_msg,omitempty"`
	IncrMetrics  *IncrMetricsEffect  `json:"incr_metrics,omitempty"`
	ReleaseCursor *ReleaseCursorEffect `json:"release_cursor,omitempty"`
}

type EffectKind string

const (
	EffectMonitor       EffectKind = "monitor"
	EffectDemonitor     EffectKind = "demonitor"
	EffectSendMsg       EffectKind = "send_msg"
	EffectIncrMetrics   EffectKind = "incr_metrics"
	EffectReleaseCursor EffectKind = "release_cursor"
)

// MonitorEffect asks the host to watch a customer's liveness, issued the
// first time a CustomerID is seen by checkout.
type MonitorEffect struct {
	Customer CustomerID `json:"customer"`
}

// DemonitorEffect asks the host to stop watching a customer, issued when it
// drains (lifetime once, exhausted) or goes down.
type DemonitorEffect struct {
	Customer CustomerID `json:"customer"`
}

// SendMsgEffect asks the host to deliver a message to a customer.
type SendMsgEffect struct {
	Customer  CustomerID `json:"customer"`
	MessageID MessageID  `json:"message_id"`
	Message   Message    `json:"message"`
}

// MetricKind names the counter an IncrMetricsEffect bumps.
type MetricKind string

const (
	MetricEnqueued   MetricKind = "enqueued"
	MetricCheckedOut MetricKind = "checked_out"
	MetricSettled    MetricKind = "settled"
	MetricReturned   MetricKind = "returned"
)

// MetricDelta pairs a counter with the amount to add to it.
type MetricDelta struct {
	Metric MetricKind `json:"metric"`
	Count  int        `json:"count"`
}

// IncrMetricsEffect asks the host to atomically add each delta to the named
// queue's metrics row (spec: `incr_metrics(table, [(field, delta)…])`, with
// table identified here by Queue rather than a literal table name since each
// queue owns exactly one row).
type IncrMetricsEffect struct {
	Queue  string        `json:"queue"`
	Deltas []MetricDelta `json:"deltas"`
}

// ReleaseCursorEffect asks the host to persist (LogIndex, Shadow) as the
// new point below which the consensus log may be compacted (spec §4.5,
// §4.6). Shadow is always set: on full drain (the queue became empty) it is
// a fresh shadowCopy of the state, otherwise it is the shadow stamped on the
// index entry just above LogIndex.
type ReleaseCursorEffect struct {
	LogIndex LogIndex `json:"log_index"`
	Shadow   []byte   `json:"shadow,omitempty"`
}

func monitorEffect(id CustomerID) Effect {
	return Effect{Kind: EffectMonitor, Monitor: &MonitorEffect{Customer: id}}
}

func demonitorEffect(id CustomerID) Effect {
	return Effect{Kind: EffectDemonitor, Demonitor: &DemonitorEffect{Customer: id}}
}

func sendMsgEffect(id CustomerID, msgID MessageID, msg Message) Effect {
	return Effect{Kind: EffectSendMsg, SendMsg: &SendMsgEffect{Customer: id, MessageID: msgID, Message: msg}}
}

func metricDelta(metric MetricKind, count int) MetricDelta {
	return MetricDelta{Metric: metric, Count: count}
}

func incrMetricsEffect(queueName string, deltas ...MetricDelta) Effect {
	return Effect{Kind: EffectIncrMetrics, IncrMetrics: &IncrMetricsEffect{Queue: queueName, Deltas: deltas}}
}

func releaseCursorEffect(logIndex LogIndex, shadow []byte) Effect {
	return Effect{Kind: EffectReleaseCursor, ReleaseCursor: &ReleaseCursorEffect{LogIndex: logIndex, Shadow: shadow}}
}
