package slacksink

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Event outcomes recorded in events_total.
const (
	eventAccepted  = "accepted"
	eventFiltered  = "filtered"
	eventDropped   = "dropped"
	eventDiscarded = "discarded"

	messageDelivered = "delivered"
	messageFailed    = "failed"
)

// sinkMetrics holds the Prometheus collectors of one sink.
type sinkMetrics struct {
	EventsTotal      *prometheus.CounterVec
	MessagesTotal    *prometheus.CounterVec
	BatchesTotal     prometheus.Counter
	QueueLength      prometheus.Gauge
	DeliveryDuration prometheus.Histogram
}

// newSinkMetrics creates the collectors and registers them on reg.
// A nil reg gets a private registry, so several sinks never collide.
func newSinkMetrics(reg prometheus.Registerer, name string) *sinkMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	labels := prometheus.Labels{"sink": name}

	m := &sinkMetrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "slacksink",
			Name:        "events_total",
			Help:        "Total number of log events handed to the sink by outcome.",
			ConstLabels: labels,
		}, []string{"status"}), // status: accepted, filtered, dropped, discarded
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "slacksink",
			Name:        "messages_total",
			Help:        "Total number of webhook messages by delivery result.",
			ConstLabels: labels,
		}, []string{"status"}), // status: delivered, failed
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "slacksink",
			Name:        "batches_total",
			Help:        "Total number of non-empty batches flushed.",
			ConstLabels: labels,
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "slacksink",
			Name:        "queue_length",
			Help:        "Number of events waiting to be delivered.",
			ConstLabels: labels,
		}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "slacksink",
			Name:        "delivery_duration_seconds",
			Help:        "Latency of webhook POST requests.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	m.EventsTotal = register(reg, m.EventsTotal)
	m.MessagesTotal = register(reg, m.MessagesTotal)
	m.BatchesTotal = register(reg, m.BatchesTotal)
	m.QueueLength = register(reg, m.QueueLength)
	m.DeliveryDuration = register(reg, m.DeliveryDuration)

	return m
}

// register registers c, reusing the collector already registered under the
// same descriptor when a sink with the same name is created twice.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}

	return c
}
