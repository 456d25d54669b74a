package queue

// Apply is the state machine's sole entry point: a deterministic, total
// function from (LogIndex, Command, *State) to (*State, []Effect). Every
// replica that applies the same (logIndex, Command) pairs in the same
// order ends up in byte-identical states, which is the property the
// release-cursor and snapshot machinery in cursor.go and snapshot.go
// exist to exploit.
//
// State is mutated in place and returned as the same pointer; there is no
// hidden copy-on-write. Callers (internal/service) own serializing calls
// to Apply in strict logIndex order and must never call it concurrently.
func Apply(logIndex LogIndex, cmd Command, s *State) (*State, []Effect) {
	switch cmd.Kind {
	case KindEnqueue:
		return s, applyEnqueue(logIndex, cmd.Enqueue, s)
	case KindCheckout:
		return s, applyCheckout(cmd.Checkout, s)
	case KindSettle:
		return s, applySettle(logIndex, cmd.Settle, s)
	case KindReturn:
		return s, applyReturn(cmd.Return, s)
	case KindDown:
		return s, applyDown(cmd.Down, s)
	default:
		return s, nil
	}
}

func applyEnqueue(logIndex LogIndex, cmd *EnqueueCommand, s *State) []Effect {
	s.insertMessage(logIndex, cmd.Message)

	s.EnqueueCount++
	var shadow []byte
	if s.EnqueueCount == shadowCopyInterval {
		shadow = shadowCopy(s)
		s.EnqueueCount = 1
	}
	s.Idx.Append(logIndex, shadow)

	effects, delivered := runCheckoutEngine(s)

	deltas := []MetricDelta{metricDelta(MetricEnqueued, 1)}
	if delivered > 0 {
		deltas = append(deltas, metricDelta(MetricCheckedOut, delivered))
	}
	effects = append(effects, incrMetricsEffect(s.Name, deltas...))
	return effects
}

func applyCheckout(cmd *CheckoutCommand, s *State) []Effect {
	var effects []Effect

	c, exists := s.Customers[cmd.Customer]
	isNew := !exists
	if !exists {
		c = newCustomer(Spec{Lifetime: cmd.Lifetime, Num: cmd.Num})
		s.Customers[cmd.Customer] = c
	} else {
		c.Lifetime = cmd.Lifetime
		c.Num = cmd.Num
	}

	if c.wantsService() {
		s.pushService(cmd.Customer, c)
	}

	engineEffects, delivered := runCheckoutEngine(s)

	if isNew {
		effects = append(effects, monitorEffect(cmd.Customer))
	}
	effects = append(effects, engineEffects...)
	if delivered > 0 {
		effects = append(effects, incrMetricsEffect(s.Name, metricDelta(MetricCheckedOut, delivered)))
	}
	return effects
}

func applySettle(logIndex LogIndex, cmd *SettleCommand, s *State) []Effect {
	c, exists := s.Customers[cmd.Customer]
	if !exists {
		return nil
	}
	d, ok := c.take(cmd.MessageID)
	if !ok {
		return nil
	}

	var effects []Effect
	drained := c.drained()
	if drained {
		s.removeCustomer(cmd.Customer)
		effects = append(effects, demonitorEffect(cmd.Customer))
	}

	oldFirst, hadOldFirst := s.FirstEnqueueLogIndex()
	s.Idx.Delete(d.LogIndex)

	engineEffects, delivered := runCheckoutEngine(s)
	effects = append(effects, engineEffects...)

	if cursorEffect, ok := updateReleaseCursor(s, logIndex, d.LogIndex, oldFirst, hadOldFirst); ok {
		effects = append(effects, cursorEffect)
	}

	var deltas []MetricDelta
	if delivered > 0 {
		deltas = append(deltas, metricDelta(MetricCheckedOut, delivered))
	}
	deltas = append(deltas, metricDelta(MetricSettled, 1))
	effects = append(effects, incrMetricsEffect(s.Name, deltas...))
	return effects
}

func applyReturn(cmd *ReturnCommand, s *State) []Effect {
	c, exists := s.Customers[cmd.Customer]
	if !exists {
		return nil
	}
	d, ok := c.take(cmd.MessageID)
	if !ok {
		return nil
	}

	s.insertMessage(d.LogIndex, d.Message)
	if c.wantsService() {
		s.pushService(cmd.Customer, c)
	}

	effects, delivered := runCheckoutEngine(s)

	var deltas []MetricDelta
	if delivered > 0 {
		deltas = append(deltas, metricDelta(MetricCheckedOut, delivered))
	}
	deltas = append(deltas, metricDelta(MetricReturned, 1))
	effects = append(effects, incrMetricsEffect(s.Name, deltas...))
	return effects
}

func applyDown(cmd *DownCommand, s *State) []Effect {
	c, exists := s.Customers[cmd.Customer]
	if !exists {
		return nil
	}

	returned := 0
	for _, d := range c.checkedOut {
		s.insertMessage(d.LogIndex, d.Message)
		returned++
	}
	s.removeCustomer(cmd.Customer)

	effects := []Effect{demonitorEffect(cmd.Customer)}

	engineEffects, delivered := runCheckoutEngine(s)
	effects = append(effects, engineEffects...)

	var deltas []MetricDelta
	if delivered > 0 {
		deltas = append(deltas, metricDelta(MetricCheckedOut, delivered))
	}
	if returned > 0 {
		deltas = append(deltas, metricDelta(MetricReturned, returned))
	}
	if len(deltas) > 0 {
		effects = append(effects, incrMetricsEffect(s.Name, deltas...))
	}
	return effects
}
