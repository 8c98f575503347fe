// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRound      prometheus.Gauge
	RoundNumber      prometheus.Gauge
	RoundsStarted    prometheus.Counter
	RoundsEnded      *prometheus.CounterVec
	ClaimsAccepted   prometheus.Counter
	ClaimsRejected   *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	MessageLatency   prometheus.Histogram
	BroadcastDrops   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_active",
			Help:      "1 while a round is active, 0 while waiting",
		}),
		RoundNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_number",
			Help:      "Number of the current or last round",
		}),
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Total number of rounds started",
		}),
		RoundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Total number of rounds ended, by reason",
		}, []string{"reason"}),
		ClaimsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_accepted_total",
			Help:      "Total number of successful cell claims",
		}),
		ClaimsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_rejected_total",
			Help:      "Total number of rejected cell claims, by reason",
		}, []string{"reason"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received, by event",
		}, []string{"event"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Sessions evicted because their send queue was full",
		}),
	}
}

func (m *Metrics) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.OnlinePlayers,
		m.ActiveRound,
		m.RoundNumber,
		m.RoundsStarted,
		m.RoundsEnded,
		m.ClaimsAccepted,
		m.ClaimsRejected,
		m.MessagesReceived,
		m.MessageLatency,
		m.BroadcastDrops,
	}
}

// Monitor records game metrics on its own registry so that several monitors
// can coexist in one process.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(m.metrics.all()...)
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the server started",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) SetOnlinePlayers(count int) {
	m.metrics.OnlinePlayers.Set(float64(count))
}

func (m *Monitor) RoundStarted(number int) {
	m.metrics.RoundsStarted.Inc()
	m.metrics.RoundNumber.Set(float64(number))
	m.metrics.ActiveRound.Set(1)
}

func (m *Monitor) RoundEnded(reason string) {
	m.metrics.RoundsEnded.WithLabelValues(reason).Inc()
	m.metrics.ActiveRound.Set(0)
}

func (m *Monitor) ClaimAccepted() {
	m.metrics.ClaimsAccepted.Inc()
}

func (m *Monitor) ClaimRejected(reason string) {
	m.metrics.ClaimsRejected.WithLabelValues(reason).Inc()
}

func (m *Monitor) IncMessagesReceived(event string) {
	m.metrics.MessagesReceived.WithLabelValues(event).Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncBroadcastDrops() {
	m.metrics.BroadcastDrops.Inc()
}
