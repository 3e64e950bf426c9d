package server

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the server's Prometheus collectors on a private registry
// so tests can run servers side by side without duplicate registration.
type metrics struct {
	registry *prometheus.Registry

	webhooksReceived  *prometheus.CounterVec
	webhooksRejected  *prometheus.CounterVec
	dispatchesHandled *prometheus.CounterVec
	dispatchErrors    *prometheus.CounterVec
	eventStreamConns  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewright_webhooks_received_total",
			Help: "Webhook deliveries received, by provider and event type.",
		}, []string{"provider", "event"}),
		webhooksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewright_webhooks_rejected_total",
			Help: "Webhook deliveries rejected before dispatch, by provider and reason.",
		}, []string{"provider", "reason"}),
		dispatchesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewright_dispatches_handled_total",
			Help: "Deliveries fully handled by the check lifecycle, by provider.",
		}, []string{"provider"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewright_dispatch_errors_total",
			Help: "Deliveries that failed during handling, by provider.",
		}, []string{"provider"}),
		eventStreamConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatewright_event_stream_connections",
			Help: "Currently open event stream websocket connections.",
		}),
	}
	m.registry.MustRegister(
		m.webhooksReceived,
		m.webhooksRejected,
		m.dispatchesHandled,
		m.dispatchErrors,
		m.eventStreamConns,
	)
	return m
}
