package queue

import "testing"

func findSendMsg(effects []Effect) *SendMsgEffect {
	for _, e := range effects {
		if e.Kind == EffectSendMsg {
			return e.SendMsg
		}
	}
	return nil
}

func countKind(effects []Effect, kind EffectKind) int {
	n := 0
	for _, e := range effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestApply_EnqueueBeforeAnyCustomerStaysUnassigned(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	_, effects := Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)

	if findSendMsg(effects) != nil {
		t.Fatalf("expected no delivery before a customer checks out")
	}
	if got := countKind(effects, EffectIncrMetrics); got != 1 {
		t.Fatalf("incr_metrics effects = %d, want 1", got)
	}
	if len(s.Messages) != 1 {
		t.Fatalf("Messages len = %d, want 1", len(s.Messages))
	}
	low, ok := s.LowIndex()
	if !ok || low != 1 {
		t.Fatalf("LowIndex() = (%d, %v), want (1, true)", low, ok)
	}
}

func TestApply_CheckoutDeliversImmediatelyWhenMessagesWaiting(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	_, _ = Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)

	_, effects := Apply(2, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeAuto, Num: 5,
	}}, s)

	if countKind(effects, EffectMonitor) != 1 {
		t.Fatalf("expected one monitor effect for a newly seen customer")
	}
	send := findSendMsg(effects)
	if send == nil {
		t.Fatalf("expected a send_msg effect")
	}
	if send.Customer != "c1" || string(send.Message) != "m1" {
		t.Fatalf("send_msg = %+v, want customer c1 message m1", send)
	}
	if len(s.Messages) != 0 {
		t.Fatalf("Messages len = %d, want 0 after delivery", len(s.Messages))
	}
}

func TestApply_SettleFreesIndexEntry(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	_, effects := Apply(2, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeOnce, Num: 1,
	}}, s)
	send := findSendMsg(effects)
	if send == nil {
		t.Fatalf("expected delivery on checkout")
	}

	_, effects = Apply(3, Command{Kind: KindSettle, Settle: &SettleCommand{
		Customer: "c1", MessageID: send.MessageID,
	}}, s)

	if countKind(effects, EffectDemonitor) != 1 {
		t.Fatalf("expected demonitor once a lifetime-once customer drains")
	}
	if _, exists := s.Customers["c1"]; exists {
		t.Fatalf("expected drained customer to be removed")
	}
	if s.Idx.Size() != 0 {
		t.Fatalf("Idx.Size() = %d, want 0 after settle with no outstanding entries", s.Idx.Size())
	}

	var cursor *ReleaseCursorEffect
	for _, e := range effects {
		if e.Kind == EffectReleaseCursor {
			cursor = e.ReleaseCursor
		}
	}
	if cursor == nil {
		t.Fatalf("expected a release_cursor effect once the queue drains")
	}
	if cursor.LogIndex != 3 {
		t.Fatalf("release_cursor.LogIndex = %d, want 3", cursor.LogIndex)
	}
}

func TestApply_ReturnRedeliversAtOriginalLogIndex(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	_, effects := Apply(2, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeAuto, Num: 1,
	}}, s)
	send := findSendMsg(effects)

	_, effects = Apply(3, Command{Kind: KindReturn, Return: &ReturnCommand{
		Customer: "c1", MessageID: send.MessageID,
	}}, s)

	redelivered := findSendMsg(effects)
	if redelivered == nil {
		t.Fatalf("expected redelivery to the same auto customer after return")
	}
	if string(redelivered.Message) != "m1" {
		t.Fatalf("redelivered message = %q, want m1", redelivered.Message)
	}
	if redelivered.MessageID == send.MessageID {
		t.Fatalf("expected a fresh MessageID on redelivery, got the same one")
	}
}

func TestApply_DownReturnsEveryOutstandingDelivery(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	Apply(2, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m2")}}, s)
	Apply(3, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeAuto, Num: 5,
	}}, s)

	if got := s.Customers["c1"].outstanding(); got != 2 {
		t.Fatalf("outstanding() = %d, want 2", got)
	}

	_, effects := Apply(4, Command{Kind: KindDown, Down: &DownCommand{Customer: "c1"}}, s)

	if countKind(effects, EffectDemonitor) != 1 {
		t.Fatalf("expected one demonitor effect on down")
	}
	if _, exists := s.Customers["c1"]; exists {
		t.Fatalf("expected customer to be removed after down")
	}
	if len(s.Messages) != 2 {
		t.Fatalf("Messages len = %d, want 2 after down returns both deliveries", len(s.Messages))
	}
}

func TestApply_UnknownCustomerCommandsAreNoOps(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	for _, cmd := range []Command{
		{Kind: KindSettle, Settle: &SettleCommand{Customer: "ghost", MessageID: 0}},
		{Kind: KindReturn, Return: &ReturnCommand{Customer: "ghost", MessageID: 0}},
		{Kind: KindDown, Down: &DownCommand{Customer: "ghost"}},
	} {
		_, effects := Apply(1, cmd, s)
		if len(effects) != 0 {
			t.Fatalf("Apply(%v) on unknown customer = %v, want no effects", cmd.Kind, effects)
		}
	}
}

func TestApply_FIFOOrderAcrossMultipleEnqueues(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("first")}}, s)
	Apply(2, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("second")}}, s)
	Apply(3, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("third")}}, s)

	_, effects := Apply(4, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeAuto, Num: 1,
	}}, s)

	send := findSendMsg(effects)
	if send == nil || string(send.Message) != "first" {
		t.Fatalf("first delivery = %+v, want message \"first\"", send)
	}
}
