package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "statelift"

// metrics holds the Prometheus collectors of one store.
type metrics struct {
	consumers     prometheus.Gauge
	notifications prometheus.Counter
	suppressed    prometheus.Counter
	flushes       prometheus.Counter
	flushSize     prometheus.Histogram
	overflows     prometheus.Counter
}

// newMetrics creates the store's collectors, labelled with the store name.
// Stores sharing a name and a registry share their collectors.
func newMetrics(cfg Config) *metrics {
	factory := promauto.With(nil)
	labels := prometheus.Labels{"store": cfg.Name}

	m := &metrics{
		consumers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "consumers_active",
			Help:        "Number of live consumers",
			ConstLabels: labels,
		}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "notifications_total",
			Help:        "Total number of consumer invalidations delivered",
			ConstLabels: labels,
		}),
		suppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "notifications_suppressed_total",
			Help:        "Total number of notifications skipped because the observed value did not change",
			ConstLabels: labels,
		}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "flushes_total",
			Help:        "Total number of batch flushes",
			ConstLabels: labels,
		}),
		flushSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "flush_size",
			Help:        "Number of consumers notified per flush",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		}),
		overflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "flush_overflows_total",
			Help:        "Total number of flushes aborted by the notification bound",
			ConstLabels: labels,
		}),
	}

	if cfg.Registry != nil {
		m.consumers = register(cfg.Registry, m.consumers)
		m.notifications = register(cfg.Registry, m.notifications)
		m.suppressed = register(cfg.Registry, m.suppressed)
		m.flushes = register(cfg.Registry, m.flushes)
		m.flushSize = register(cfg.Registry, m.flushSize)
		m.overflows = register(cfg.Registry, m.overflows)
	}
	return m
}

// register registers c, returning the already registered collector when an
// identical one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}
