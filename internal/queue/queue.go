package queue

// Init returns a fresh, empty queue state named name, plus the effect that
// announces it to the metrics sink: a zero-delta incr_metrics call so the
// queue's counter row exists (and reads as all-zero) from the first
// Overview or scrape, rather than only appearing once its first non-zero
// delta arrives (spec §6).
func Init(name string) (*State, []Effect) {
	s := newState(name)
	effects := []Effect{incrMetricsEffect(name,
		metricDelta(MetricEnqueued, 0),
		metricDelta(MetricCheckedOut, 0),
		metricDelta(MetricSettled, 0),
		metricDelta(MetricReturned, 0),
	)}
	return s, effects
}

// Overview is a read-only snapshot of queue-level counters, used by the
// admin/control surface and by metrics scraping; it never mutates state
// and is safe to call between Apply calls.
type Overview struct {
	Name                 string   `json:"name"`
	Messages             int      `json:"messages"`
	Customers            int      `json:"customers"`
	WaitingCustomers     int      `json:"waiting_customers"`
	LowIndex             LogIndex `json:"low_index,omitempty"`
	HasLowIndex          bool     `json:"has_low_index"`
	FirstEnqueueLogIndex LogIndex `json:"first_enqueue_log_index,omitempty"`
	HasFirstEnqueue      bool     `json:"has_first_enqueue"`
}

// Overview summarizes the current state for introspection.
func (s *State) Overview() Overview {
	low, hasLow := s.LowIndex()
	first, hasFirst := s.FirstEnqueueLogIndex()
	return Overview{
		Name:                 s.Name,
		Messages:             len(s.Messages),
		Customers:            len(s.Customers),
		WaitingCustomers:     len(s.ServiceQueue),
		LowIndex:             low,
		HasLowIndex:          hasLow,
		FirstEnqueueLogIndex: first,
		HasFirstEnqueue:      hasFirst,
	}
}

// LeaderEffects replays the effects a freshly elected leader needs to
// re-establish host-side bookkeeping that only ever lived in the previous
// leader's process: one MonitorEffect per customer currently known to
// state. Settled and returned deliveries need no replay since they carry
// no host-side liveness watch; send_msg is deliberately not replayed here
// because re-delivering every outstanding message on every leadership
// change would defeat the point of at-least-once-but-not-gratuitously
// delivery. Re-delivery of outstanding deliveries on leadership change, if
// wanted, belongs to internal/service as a policy choice, not to this
// package.
func LeaderEffects(s *State) []Effect {
	effects := make([]Effect, 0, len(s.Customers))
	for id := range s.Customers {
		effects = append(effects, monitorEffect(id))
	}
	return effects
}
