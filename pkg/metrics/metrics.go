// Package metrics exposes Prometheus collectors for marketplace traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "marketplace"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
)

// Metrics holds the marketplace collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Publish    *prometheus.CounterVec
	CartAdd    *prometheus.CounterVec
	CartRemove *prometheus.CounterVec
	Orders     prometheus.Counter
	OrderItems prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		Publish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by result.",
		}, []string{"result"}),
		CartAdd: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_add_total",
			Help:      "Add-to-cart attempts by result.",
		}, []string{"result"}),
		CartRemove: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_remove_total",
			Help:      "Remove-from-cart calls by result.",
		}, []string{"result"}),
		Orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders placed.",
		}),
		OrderItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_items",
			Help:      "Units per placed order.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
	registry.MustRegister(m.Publish, m.CartAdd, m.CartRemove, m.Orders, m.OrderItems)
	return m
}

// ObservePublish counts one publish attempt.
func (m *Metrics) ObservePublish(ok bool) {
	if m == nil {
		return
	}
	m.Publish.WithLabelValues(result(ok)).Inc()
}

// ObserveAdd counts one add-to-cart attempt.
func (m *Metrics) ObserveAdd(ok bool) {
	if m == nil {
		return
	}
	m.CartAdd.WithLabelValues(result(ok)).Inc()
}

// ObserveRemove counts one remove-from-cart call.
func (m *Metrics) ObserveRemove(ok bool) {
	if m == nil {
		return
	}
	m.CartRemove.WithLabelValues(result(ok)).Inc()
}

// ObserveOrder records a placed order of n units.
func (m *Metrics) ObserveOrder(n int) {
	if m == nil {
		return
	}
	m.Orders.Inc()
	m.OrderItems.Observe(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Summary is a point-in-time read of the counters.
type Summary struct {
	Published       int
	PublishRejected int
	Added           int
	AddRejected     int
	Removed         int
	Orders          int
}

// Summary reads the current counter values.
func (m *Metrics) Summary() Summary {
	if m == nil {
		return Summary{}
	}
	return Summary{
		Published:       value(m.Publish.WithLabelValues(ResultOK)),
		PublishRejected: value(m.Publish.WithLabelValues(ResultRejected)),
		Added:           value(m.CartAdd.WithLabelValues(ResultOK)),
		AddRejected:     value(m.CartAdd.WithLabelValues(ResultRejected)),
		Removed:         value(m.CartRemove.WithLabelValues(ResultOK)),
		Orders:          value(m.Orders),
	}
}

func value(c prometheus.Counter) int {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return int(pb.GetCounter().GetValue())
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultRejected
}
