package queue

import "container/heap"

// logIndexHeap is a container/heap min-heap over the LogIndexes currently
// present (unassigned) in State.Messages, grounded on the same
// container/heap min-heap idiom sneh-joshi-epochq's scheduler uses for its
// delivery-time ordering. Unlike Index (§4.1 of the spec), Messages is
// mutated both at the tail (enqueue) and at arbitrary past positions
// (return/down re-inserting an old LogIndex), so a simple linked list
// cannot track its minimum; arbitrary insert + extract-min is exactly what
// a heap is for.
type logIndexHeap []LogIndex

func (h logIndexHeap) Len() int            { return len(h) }
func (h logIndexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h logIndexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *logIndexHeap) Push(x interface{}) { *h = append(*h, x.(LogIndex)) }
func (h *logIndexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// State is the queue state described in spec §3. All mutation happens
// in-place through the command interpreter; a replica never needs two
// live copies except when producing a shadow copy for a release cursor.
type State struct {
	Name string

	// Messages holds every currently unassigned message, keyed by the
	// LogIndex that enqueued it.
	Messages map[LogIndex]Message
	lowHeap  logIndexHeap

	// Idx tracks every LogIndex still contributing to state, whether
	// unassigned or checked out, with an optional shadow snapshot per
	// entry (§4.1).
	Idx *Index

	Customers    map[CustomerID]*Customer
	ServiceQueue []CustomerID

	// EnqueueCount is the modulo-counter that paces shadow-copy production
	// (§4.2.1): it is reset to 1 every shadowCopyInterval-th enqueue.
	EnqueueCount int
}

// newState returns an empty queue state.
func newState(name string) *State {
	return &State{
		Name:      name,
		Messages:  make(map[LogIndex]Message),
		Idx:       NewIndex(),
		Customers: make(map[CustomerID]*Customer),
	}
}

// LowIndex returns the smallest unassigned LogIndex, matching invariant 1.
func (s *State) LowIndex() (LogIndex, bool) {
	if len(s.lowHeap) == 0 {
		return 0, false
	}
	return s.lowHeap[0], true
}

// FirstEnqueueLogIndex returns the smallest LogIndex still contributing to
// state (unassigned or checked out), matching invariant 3.
func (s *State) FirstEnqueueLogIndex() (LogIndex, bool) {
	idx, _, ok := s.Idx.Smallest()
	return idx, ok
}

// insertMessage adds idx -> msg to Messages and keeps lowHeap in sync. Used
// by enqueue (tail insert) and by return/down (arbitrary past insert).
func (s *State) insertMessage(idx LogIndex, msg Message) {
	s.Messages[idx] = msg
	heap.Push(&s.lowHeap, idx)
}

// popLowMessage removes and returns the message at the current LowIndex.
// Callers must ensure Messages is non-empty.
func (s *State) popLowMessage() (LogIndex, Message) {
	idx := heap.Pop(&s.lowHeap).(LogIndex)
	msg := s.Messages[idx]
	delete(s.Messages, idx)
	return idx, msg
}

// pushService appends id to ServiceQueue if it is not already present
// (idempotent, per spec §4.4 "ensure on service queue").
func (s *State) pushService(id CustomerID, c *Customer) {
	if c.onServiceQueue {
		return
	}
	c.onServiceQueue = true
	s.ServiceQueue = append(s.ServiceQueue, id)
}

// popService pops and returns the head of ServiceQueue, or ok == false if
// it is empty.
func (s *State) popService() (id CustomerID, ok bool) {
	if len(s.ServiceQueue) == 0 {
		return "", false
	}
	id = s.ServiceQueue[0]
	s.ServiceQueue = s.ServiceQueue[1:]
	if c, exists := s.Customers[id]; exists {
		c.onServiceQueue = false
	}
	return id, true
}

// removeCustomer drops a customer entirely. It does not touch ServiceQueue;
// the checkout engine lazily discards dangling entries it pops (spec §4.3
// step 3), which is what keeps this O(1) instead of requiring a scan.
func (s *State) removeCustomer(id CustomerID) {
	delete(s.Customers, id)
}
