package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "shopbot"

// Metrics holds the bot collectors and the registry they are exposed from.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ordersSubmitted  prometheus.Counter
	statusChanges    *prometheus.CounterVec
	catalogChanges   *prometheus.CounterVec
	updates          *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
}

// New registers the bot collectors plus the Go and process collectors on a
// fresh registry. activeSessions, when set, backs the sessions gauge.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders submitted by buyers.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status changes made by administrators.",
		}, []string{"status"}),
		catalogChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_changes_total",
			Help:      "Catalog edits made by administrators.",
		}, []string{"op"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Handled Telegram updates by handler and outcome.",
		}, []string{"handler", "outcome"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Outbound messages that could not be delivered.",
		}, []string{"action"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersSubmitted,
		m.statusChanges,
		m.catalogChanges,
		m.updates,
		m.deliveryFailures,
	)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Chats with an open session.",
		}, activeSessions))
	}
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// OrderSubmitted counts a new order.
func (m *Metrics) OrderSubmitted() {
	if m == nil {
		return
	}
	m.ordersSubmitted.Inc()
}

// StatusChanged counts an order moving to status.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// CatalogChanged counts a catalog edit; op is "add" or "delete".
func (m *Metrics) CatalogChanged(op string) {
	if m == nil {
		return
	}
	m.catalogChanges.WithLabelValues(op).Inc()
}

// UpdateHandled counts a handled update.
func (m *Metrics) UpdateHandled(handler, outcome string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(handler, outcome).Inc()
}

// DeliveryFailed counts an outbound message that was dropped.
func (m *Metrics) DeliveryFailed(action string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(action).Inc()
}
