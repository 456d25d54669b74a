package queue

// delivery records an unsettled checkout: the LogIndex of the message that
// produced it and the message itself.
type delivery struct {
	LogIndex LogIndex
	Message  Message
}

// Customer is the per-CustomerId bookkeeping record described in spec §3.
type Customer struct {
	Lifetime Lifetime
	Num      int

	checkedOut map[MessageID]delivery
	nextMsgID  MessageID
	seen       uint64

	// onServiceQueue mirrors membership in State.ServiceQueue so checkout and
	// the subscription policy can test/toggle it in O(1) without scanning the
	// queue. It is not part of the spec's data model; it is purely an index
	// over serviceQueue membership kept in lockstep with it.
	onServiceQueue bool
}

func newCustomer(spec Spec) *Customer {
	return &Customer{
		Lifetime:   spec.Lifetime,
		Num:        spec.Num,
		checkedOut: make(map[MessageID]delivery),
	}
}

// outstanding returns the number of unsettled deliveries.
func (c *Customer) outstanding() int {
	return len(c.checkedOut)
}

// drained reports whether a once customer has exhausted its credit and has
// nothing left outstanding (invariant 5 in spec §3).
func (c *Customer) drained() bool {
	return c.Lifetime == LifetimeOnce && c.seen == uint64(c.Num) && c.outstanding() == 0
}

// wantsService reports whether the customer should be on the service queue
// under the post-assignment subscription policy of spec §4.4.
func (c *Customer) wantsService() bool {
	switch c.Lifetime {
	case LifetimeOnce:
		return c.seen < uint64(c.Num)
	case LifetimeAuto:
		return c.outstanding() < c.Num
	default:
		return false
	}
}

// assign records a new delivery, advancing next_msg_id and seen, and
// returns the MessageID assigned.
func (c *Customer) assign(logIndex LogIndex, msg Message) MessageID {
	id := c.nextMsgID
	c.checkedOut[id] = delivery{LogIndex: logIndex, Message: msg}
	c.nextMsgID++
	c.seen++
	return id
}

// CheckedOutIDs returns the MessageIDs currently outstanding for this
// customer, for admin/introspection use. Order is unspecified.
func (c *Customer) CheckedOutIDs() []MessageID {
	ids := make([]MessageID, 0, len(c.checkedOut))
	for id := range c.checkedOut {
		ids = append(ids, id)
	}
	return ids
}

// take removes msgID from checked_out and returns the delivery, if present.
func (c *Customer) take(msgID MessageID) (delivery, bool) {
	d, ok := c.checkedOut[msgID]
	if ok {
		delete(c.checkedOut, msgID)
	}
	return d, ok
}
