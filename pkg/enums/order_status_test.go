package enums

import "testing"

func TestOrderStatusNextIsLinear(t *testing.T) {
	cases := []struct {
		from OrderStatus
		next OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, "", false},
		{OrderStatusCancelled, "", false},
	}
	for _, tc := range cases {
		next, ok := tc.from.Next()
		if next != tc.next || ok != tc.ok {
			t.Fatalf("%s.Next() = (%q, %v), want (%q, %v)", tc.from, next, ok, tc.next, tc.ok)
		}
	}
}

func TestOrderStatusCanAdvanceToRejectsSkipsAndRegressions(t *testing.T) {
	if OrderStatusPending.CanAdvanceTo(OrderStatusShipped) {
		t.Fatal("pending must not skip to shipped")
	}
	if OrderStatusPaid.CanAdvanceTo(OrderStatusConfirmed) {
		t.Fatal("paid must not regress to confirmed")
	}
	if OrderStatusPending.CanAdvanceTo(OrderStatusPending) {
		t.Fatal("self transition is not an advance")
	}
	if !OrderStatusShipped.CanAdvanceTo(OrderStatusDelivered) {
		t.Fatal("shipped should advance to delivered")
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed} {
		if !status.Cancellable() {
			t.Fatalf("%s should be cancellable", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		if status.Cancellable() {
			t.Fatalf("%s should not be cancellable", status)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if got, err := ParseOrderStatus("shipped"); err != nil || got != OrderStatusShipped {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseUserType(t *testing.T) {
	if got, err := ParseUserType(" Farmer "); err != nil || got != UserTypeFarmer {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseUserType("admin"); err == nil {
		t.Fatal("expected error for unknown user type")
	}
}

func TestParseOrderStatusNamesTheKind(t *testing.T) {
	_, err := ParseOrderStatus("refunded")
	if err == nil || err.Error() != `invalid order status "refunded"` {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOutboxEnumsRejectUnknownValues(t *testing.T) {
	if !EventMessageSent.IsValid() || OutboxEventType("message_read").IsValid() {
		t.Fatal("event type membership is wrong")
	}
	if !AggregateConversation.IsValid() || OutboxAggregateType("farm").IsValid() {
		t.Fatal("aggregate type membership is wrong")
	}
	if !DeadLetterNonRetryable.IsValid() || DeadLetterReason("timeout").IsValid() {
		t.Fatal("dead letter reason membership is wrong")
	}
}
