package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateReview       OutboxAggregateType = "review"
	AggregateConversation OutboxAggregateType = "conversation"
)

var aggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateReview,
	AggregateConversation,
}

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

// OutboxEventType is the event_type_enum column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventPaymentRecorded    OutboxEventType = "payment_recorded"
	EventReviewSubmitted    OutboxEventType = "review_submitted"
	EventMessageSent        OutboxEventType = "message_sent"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventPaymentRecorded,
	EventReviewSubmitted,
	EventMessageSent,
}

func (e OutboxEventType) IsValid() bool { return member(outboxEventTypes, e) }

// DeadLetterReason records why the publisher gave up on an event.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)

var deadLetterReasons = []DeadLetterReason{DeadLetterMaxAttempts, DeadLetterNonRetryable}

func (r DeadLetterReason) IsValid() bool { return member(deadLetterReasons, r) }
