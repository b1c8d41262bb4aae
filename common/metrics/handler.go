// Package metrics provides the tag-scoped metrics Handler every engine
// component reports through, backed by github.com/prometheus/client_golang.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Handler is a tag-scoped emitter. WithTags returns a derived Handler
// that applies additional constant label values to everything it
// emits, mirroring the metrics.Handler.WithTags(...) convention used
// throughout this codebase's lineage.
type Handler interface {
	WithTags(tags ...Tag) Handler
	Counter(name string) Counter
	Timer(name string) Timer
	Gauge(name string) Gauge
}

// Tag is a constant label attached to every metric emitted through a
// derived Handler.
type Tag struct {
	Key   string
	Value string
}

func OperationTag(op string) Tag { return Tag{Key: "operation", Value: op} }
func RankTag(rank uint32) Tag    { return Tag{Key: "rank", Value: itoa(rank)} }

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

type Counter interface{ Record(delta int64) }
type Timer interface{ Record(d time.Duration) }
type Gauge interface{ Record(v float64) }

type promHandler struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
	timers   *prometheus.HistogramVec
	gauges   *prometheus.GaugeVec
	labels   prometheus.Labels
}

var _ Handler = (*promHandler)(nil)

// NewPrometheusHandler builds a Handler backed by a fresh prometheus
// registry with three generic vectors (counter/histogram/gauge), each
// labeled by metric "name" plus whatever constant tags are applied via
// WithTags. This keeps cardinality bounded without requiring every call
// site to pre-register its own collector.
func NewPrometheusHandler(registry *prometheus.Registry) Handler {
	labelNames := []string{"name", "operation", "rank"}

	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ivtree_counter_total",
		Help: "Generic monotonic counters emitted by the IV engine.",
	}, labelNames)
	timers := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ivtree_timer_seconds",
		Help:    "Generic latency histograms emitted by the IV engine.",
		Buckets: prometheus.DefBuckets,
	}, labelNames)
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ivtree_gauge",
		Help: "Generic gauges emitted by the IV engine.",
	}, labelNames)

	registry.MustRegister(counters, timers, gauges)

	return &promHandler{
		registry: registry,
		counters: counters,
		timers:   timers,
		gauges:   gauges,
		labels:   prometheus.Labels{"name": "", "operation": "", "rank": ""},
	}
}

func (h *promHandler) WithTags(tags ...Tag) Handler {
	merged := prometheus.Labels{}
	for k, v := range h.labels {
		merged[k] = v
	}
	for _, t := range tags {
		merged[t.Key] = t.Value
	}
	return &promHandler{registry: h.registry, counters: h.counters, timers: h.timers, gauges: h.gauges, labels: merged}
}

func (h *promHandler) labelsFor(name string) prometheus.Labels {
	out := prometheus.Labels{}
	for k, v := range h.labels {
		out[k] = v
	}
	out["name"] = name
	return out
}

func (h *promHandler) Counter(name string) Counter {
	return counterFunc(func(delta int64) {
		h.counters.With(h.labelsFor(name)).Add(float64(delta))
	})
}

func (h *promHandler) Timer(name string) Timer {
	return timerFunc(func(d time.Duration) {
		h.timers.With(h.labelsFor(name)).Observe(d.Seconds())
	})
}

func (h *promHandler) Gauge(name string) Gauge {
	return gaugeFunc(func(v float64) {
		h.gauges.With(h.labelsFor(name)).Set(v)
	})
}

type counterFunc func(delta int64)

func (f counterFunc) Record(delta int64) { f(delta) }

type timerFunc func(d time.Duration)

func (f timerFunc) Record(d time.Duration) { f(d) }

type gaugeFunc func(v float64)

func (f gaugeFunc) Record(v float64) { f(v) }

// NewNoopHandler returns a Handler that discards everything, useful
// for tests that don't care about metrics output.
func NewNoopHandler() Handler {
	return noopHandler{}
}

type noopHandler struct{}

func (noopHandler) WithTags(...Tag) Handler { return noopHandler{} }
func (noopHandler) Counter(string) Counter  { return noopCounter{} }
func (noopHandler) Timer(string) Timer      { return noopTimer{} }
func (noopHandler) Gauge(string) Gauge      { return noopGauge{} }

type noopCounter struct{}

func (noopCounter) Record(int64) {}

type noopTimer struct{}

func (noopTimer) Record(time.Duration) {}

type noopGauge struct{}

func (noopGauge) Record(float64) {}
