package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// Checkout outcomes.
const (
	CheckoutSucceeded         = "succeeded"
	CheckoutInsufficientStock = "insufficient_stock"
	CheckoutFailed            = "failed"
)

// Outbox delivery outcomes.
const (
	DeliveryDelivered  = "delivered"
	DeliverySkipped    = "skipped"
	DeliveryDuplicate  = "duplicate"
	DeliveryRetry      = "retry"
	DeliveryDeadLetter = "dead_letter"
)

// Marketplace holds the business counters shared by the API and workers.
// A nil *Marketplace is valid and records nothing.
type Marketplace struct {
	checkouts   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
}

func NewMarketplace(reg prometheus.Registerer) *Marketplace {
	if reg == nil {
		return &Marketplace{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order status transitions.",
	}, []string{"from", "to"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "deliveries_total",
		Help:      "Outbox webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(checkouts, transitions, deliveries)
	return &Marketplace{
		checkouts:   checkouts,
		transitions: transitions,
		deliveries:  deliveries,
	}
}

func (m *Marketplace) CheckoutOutcome(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Marketplace) OrderTransition(from, to enums.OrderStatus) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(string(from)), normalizeLabel(string(to))).Inc()
}

func (m *Marketplace) OutboxDelivery(eventType enums.OutboxEventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(string(eventType)), normalizeLabel(outcome)).Inc()
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
