package queue

import "testing"

func TestCheckoutEngine_OnceCustomerStopsRequestingAfterCredit(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	Apply(2, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m2")}}, s)

	_, effects := Apply(3, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeOnce, Num: 1,
	}}, s)

	if got := countKind(effects, EffectSendMsg); got != 1 {
		t.Fatalf("send_msg effects = %d, want exactly 1 for a once customer with num=1", got)
	}
	c, ok := s.Customers["c1"]
	if !ok {
		t.Fatalf("expected customer c1 to still exist with one delivery outstanding")
	}
	if c.onServiceQueue {
		t.Fatalf("expected once customer to leave the service queue once its credit is spent")
	}
}

func TestCheckoutEngine_AutoCustomerKeepsRequestingUpToNum(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	for i := LogIndex(1); i <= 3; i++ {
		Apply(i, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m")}}, s)
	}

	_, effects := Apply(4, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{
		Customer: "c1", Lifetime: LifetimeAuto, Num: 2,
	}}, s)

	if got := countKind(effects, EffectSendMsg); got != 2 {
		t.Fatalf("send_msg effects = %d, want 2 (capped by num)", got)
	}
	if got := s.Customers["c1"].outstanding(); got != 2 {
		t.Fatalf("outstanding() = %d, want 2", got)
	}
	if len(s.Messages) != 1 {
		t.Fatalf("Messages len = %d, want 1 (third message still waiting)", len(s.Messages))
	}
}

func TestCheckoutEngine_MultipleCustomersServedInArrivalOrder(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{Customer: "c1", Lifetime: LifetimeAuto, Num: 1}}, s)
	Apply(2, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{Customer: "c2", Lifetime: LifetimeAuto, Num: 1}}, s)

	_, effects := Apply(3, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	send := findSendMsg(effects)
	if send == nil || send.Customer != "c1" {
		t.Fatalf("first message should go to c1 (first on the service queue), got %+v", send)
	}

	_, effects = Apply(4, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m2")}}, s)
	send = findSendMsg(effects)
	if send == nil || send.Customer != "c2" {
		t.Fatalf("second message should go to c2, got %+v", send)
	}
}

func TestCheckoutEngine_DiscardsServiceQueueEntryForRemovedCustomer(t *testing.T) {
	t.Parallel()

	s, _ := Init("orders")
	Apply(1, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{Customer: "c1", Lifetime: LifetimeAuto, Num: 1}}, s)
	Apply(2, Command{Kind: KindCheckout, Checkout: &CheckoutCommand{Customer: "c2", Lifetime: LifetimeAuto, Num: 1}}, s)
	Apply(3, Command{Kind: KindDown, Down: &DownCommand{Customer: "c1"}}, s)

	_, effects := Apply(4, Command{Kind: KindEnqueue, Enqueue: &EnqueueCommand{Message: Message("m1")}}, s)
	send := findSendMsg(effects)
	if send == nil || send.Customer != "c2" {
		t.Fatalf("expected the stale c1 service-queue entry to be skipped, delivered to %+v", send)
	}
}
