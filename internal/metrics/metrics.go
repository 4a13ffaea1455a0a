package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gigradar"

// Metrics holds the run metrics on a private registry so tests and commands never share
// collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sourceEvents   *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	sourceDropped  *prometheus.CounterVec
	dedupMerges    *prometheus.CounterVec
	ambiguousPairs prometheus.Counter
	arbitration    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	runEvents      *prometheus.GaugeVec
	snapshotErrors *prometheus.CounterVec
	lastRunTS      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sourceEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_total",
		Help:      "Events read from each source collector",
	}, []string{"source"})
	m.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Source collectors that failed during a run",
	}, []string{"source"})
	m.sourceDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_records_dropped_total",
		Help:      "Feed records dropped for an unusable required field",
	}, []string{"source"})
	m.dedupMerges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_merges_total",
		Help:      "Records merged into an existing cluster, by pass",
	}, []string{"pass"})
	m.ambiguousPairs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_ambiguous_pairs_total",
		Help:      "Fuzzy near-miss pairs handed to arbitration",
	})
	m.arbitration = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arbitration_pairs_total",
		Help:      "Arbitration pairs by outcome",
	}, []string{"outcome"})
	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})
	m.runEvents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_events",
		Help:      "Event counts of the latest run",
	}, []string{"kind"})
	m.snapshotErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_errors_total",
		Help:      "Snapshot store failures by operation",
	}, []string{"op"})
	m.lastRunTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed run",
	})

	m.registry.MustRegister(
		m.sourceEvents, m.sourceFailures, m.sourceDropped, m.dedupMerges, m.ambiguousPairs,
		m.arbitration, m.stageDuration, m.runEvents, m.snapshotErrors, m.lastRunTS,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return fmt.Errorf("metrics file path is empty")
	}
	if err := prometheus.WriteToTextfile(trimmed, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) SourceCollected(source string, events int) {
	if m == nil {
		return
	}
	m.sourceEvents.WithLabelValues(source).Add(float64(events))
}

func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) SourceDropped(source string, records int) {
	if m == nil || records <= 0 {
		return
	}
	m.sourceDropped.WithLabelValues(source).Add(float64(records))
}

func (m *Metrics) DedupMerges(exact, fuzzy, ambiguous int) {
	if m == nil {
		return
	}
	m.dedupMerges.WithLabelValues("exact").Add(float64(exact))
	m.dedupMerges.WithLabelValues("fuzzy").Add(float64(fuzzy))
	m.ambiguousPairs.Add(float64(ambiguous))
}

func (m *Metrics) Arbitration(confirmed, rejected, failed, capped int) {
	if m == nil {
		return
	}
	m.arbitration.WithLabelValues("confirmed").Add(float64(confirmed))
	m.arbitration.WithLabelValues("rejected").Add(float64(rejected))
	m.arbitration.WithLabelValues("failed").Add(float64(failed))
	m.arbitration.WithLabelValues("capped").Add(float64(capped))
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(strings.ToLower(stage)).Observe(elapsed.Seconds())
}

func (m *Metrics) RunCompleted(at time.Time, total, fresh, matched int) {
	if m == nil {
		return
	}
	m.runEvents.WithLabelValues("total").Set(float64(total))
	m.runEvents.WithLabelValues("new").Set(float64(fresh))
	m.runEvents.WithLabelValues("interest_matched").Set(float64(matched))
	m.lastRunTS.Set(float64(at.Unix()))
}

func (m *Metrics) SnapshotError(op string) {
	if m == nil {
		return
	}
	m.snapshotErrors.WithLabelValues(op).Inc()
}
