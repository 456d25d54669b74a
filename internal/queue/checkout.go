package queue

// runCheckoutEngine drains as many head-of-queue messages to
// head-of-service-queue customers as currently possible (spec §4.3). It is
// invoked after every command that could have changed either side of the
// pairing: enqueue, checkout, settle, return, and down. The delivery count
// it returns is folded by the caller into a single incr_metrics effect for
// the command, rather than emitted per delivery here, since checkouts+=K is
// an attribute of the command that triggered the drain, not of the engine.
func runCheckoutEngine(s *State) ([]Effect, int) {
	var effects []Effect
	delivered := 0
	for {
		if len(s.Messages) == 0 || len(s.ServiceQueue) == 0 {
			return effects, delivered
		}

		id, ok := s.popService()
		if !ok {
			return effects, delivered
		}
		c, exists := s.Customers[id]
		if !exists {
			// Stale entry left behind by a down that already removed this
			// customer; discard and keep draining.
			continue
		}

		logIndex, msg := s.popLowMessage()
		msgID := c.assign(logIndex, msg)
		effects = append(effects, sendMsgEffect(id, msgID, msg.Clone()))
		delivered++

		if c.wantsService() {
			s.pushService(id, c)
		}
	}
}
