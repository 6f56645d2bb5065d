package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ResolveTotal   *prometheus.CounterVec // result=granted|locked|expired|not_found
	HeartbeatTotal *prometheus.CounterVec // result=renewed|lost

	OpLatencyMS *prometheus.HistogramVec // op=resolve|heartbeat|create_order|verify_payment

	DBBusyTotal *prometheus.CounterVec // op as above

	SessionsLive   prometheus.Gauge
	SessionsReaped prometheus.Counter

	OrdersTotal *prometheus.CounterVec // result=created|verified|failed
}

func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ResolveTotal,
		m.HeartbeatTotal,
		m.OpLatencyMS,
		m.DBBusyTotal,
		m.SessionsLive,
		m.SessionsReaped,
		m.OrdersTotal,
	)
	return m
}

// NewUnregisteredMetrics is for tests, where the default registry
// would reject a second registration.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_resolve_total",
				Help: "Public overlay resolve attempts by result",
			},
			[]string{"result"},
		),
		HeartbeatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_heartbeat_total",
				Help: "Overlay session heartbeats by result",
			},
			[]string{"result"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_op_latency_ms",
				Help:    "Latency of store operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
		DBBusyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_db_busy_total",
				Help: "Total sqlite busy/locked errors",
			},
			[]string{"op"},
		),
		SessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_sessions_live",
			Help: "Overlay sessions with a heartbeat inside the lock timeout",
		}),
		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_sessions_reaped_total",
			Help: "Stale session locks cleared by the sweeper",
		}),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_orders_total",
				Help: "Payment orders by result",
			},
			[]string{"result"},
		),
	}
}
