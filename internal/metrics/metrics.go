package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mexcpulse"

// Recorder holds the engine's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	fetches       *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	evaluations   *prometheus.CounterVec
	events        *prometheus.CounterVec
	messages      *prometheus.CounterVec
	activeSymbols prometheus.Gauge
	cycleDuration *prometheus.HistogramVec
	throttleWait  prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "requests_total",
			Help:      "Exchange requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		fetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "request_duration_seconds",
			Help:      "Exchange request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"endpoint"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "evaluations_total",
			Help:      "Symbol evaluations by outcome",
		}, []string{"outcome"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Emitted engine events by type",
		}, []string{"type"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "messages_total",
			Help:      "Bot API calls by method and outcome",
		}, []string{"method", "outcome"}),
		activeSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_symbols",
			Help:      "Symbols currently tracked as active",
		}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one full pass over the watchlist",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"mode"}),
		throttleWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "throttle_wait_seconds",
			Help:      "Time spent waiting for the outbound message throttle",
			Buckets:   []float64{0, 0.1, 0.5, 1, 2, 3, 5, 10},
		}),
	}
}

// RecordFetch records one exchange request.
func (r *Recorder) RecordFetch(endpoint string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(endpoint, outcome(err)).Inc()
	r.fetchLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordEvaluation records whether a symbol produced a snapshot.
func (r *Recorder) RecordEvaluation(ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.evaluations.WithLabelValues("ok").Inc()
		return
	}
	r.evaluations.WithLabelValues("failed").Inc()
}

// RecordEvent counts one emitted engine event.
func (r *Recorder) RecordEvent(kind string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(kind).Inc()
}

// RecordMessage records one Bot API call.
func (r *Recorder) RecordMessage(method string, err error) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(method, outcome(err)).Inc()
}

// SetActiveSymbols sets the active symbol gauge.
func (r *Recorder) SetActiveSymbols(n int) {
	if r == nil {
		return
	}
	r.activeSymbols.Set(float64(n))
}

// RecordCycle records the duration of one full cycle.
func (r *Recorder) RecordCycle(mode string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordThrottleWait records time spent waiting for a message slot.
func (r *Recorder) RecordThrottleWait(d time.Duration) {
	if r == nil {
		return
	}
	r.throttleWait.Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
