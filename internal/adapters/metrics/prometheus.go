package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sniperbot"

// Recorder implements ports.MetricsRecorder with Prometheus collectors
// registered on its own registry.
type Recorder struct {
	tradeDuration    *prometheus.HistogramVec
	tradeTotal       *prometheus.CounterVec
	dispatcherActive prometheus.Gauge
	dispatcherQueued prometheus.Gauge
	orderRetries     *prometheus.CounterVec
	riskScore        *prometheus.HistogramVec
	riskAlerts       *prometheus.CounterVec
}

// NewRecorder registers all collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		tradeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_execution_duration_seconds",
				Help:      "Use-case execution duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"operation"},
		),
		tradeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_execution_total",
				Help:      "Use-case executions by outcome",
			},
			[]string{"operation", "success"},
		),
		dispatcherActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_active_requests",
			Help:      "Exchange requests currently running",
		}),
		dispatcherQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_queued_requests",
			Help:      "Exchange requests waiting for a slot",
		}),
		orderRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_retries_total",
				Help:      "Order submissions retried after a transient exchange error",
			},
			[]string{"symbol"},
		),
		riskScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "risk_score",
				Help:      "Risk scores of validated trades",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"approved"},
		),
		riskAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_alerts_total",
				Help:      "Risk alerts raised by severity",
			},
			[]string{"severity"},
		),
	}
}

func (r *Recorder) ObserveTradeExecution(operation string, success bool, d time.Duration) {
	r.tradeDuration.WithLabelValues(operation).Observe(d.Seconds())
	r.tradeTotal.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

func (r *Recorder) SetDispatcherLoad(active, queued int) {
	r.dispatcherActive.Set(float64(active))
	r.dispatcherQueued.Set(float64(queued))
}

func (r *Recorder) IncOrderRetry(symbol string) {
	r.orderRetries.WithLabelValues(symbol).Inc()
}

func (r *Recorder) ObserveRiskScore(score float64, approved bool) {
	r.riskScore.WithLabelValues(strconv.FormatBool(approved)).Observe(score)
}

func (r *Recorder) IncRiskAlert(severity string) {
	r.riskAlerts.WithLabelValues(severity).Inc()
}
