// Package metrics holds the Prometheus collectors of an analysis
// orchestrator. Each Metrics owns its registry so that several orchestrators
// (and tests) never collide on registration.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "stackguard"

// Metrics is the set of orchestrator collectors
type Metrics struct {
	registry *prometheus.Registry

	// analyses counts finished analyses by the tier that produced them
	analyses *prometheus.CounterVec

	// cacheRequests counts cache lookups by result (hit, miss)
	cacheRequests *prometheus.CounterVec

	rateLimitRejections prometheus.Counter

	// circuitState is 0 closed, 1 half-open, 2 open
	circuitState prometheus.Gauge

	// providerCalls measures inference calls by outcome (success, error, fallback)
	providerCalls *prometheus.HistogramVec

	// pairwiseChecks counts interaction checks by outcome (ok, error, rate_limited)
	pairwiseChecks *prometheus.CounterVec
}

// New creates collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by producing tier",
		}, []string{"tier"}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		rateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Analyses rejected by the per-user rate limiter",
		}),
		circuitState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Inference circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		providerCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_seconds",
			Help:      "Inference provider call latency by outcome",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		pairwiseChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairwise_checks_total",
			Help:      "Pairwise interaction checks by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the registry for scraping
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAnalysis counts an analysis produced by tier
func (m *Metrics) RecordAnalysis(tier string) {
	m.analyses.WithLabelValues(tier).Inc()
}

// RecordCache counts a cache lookup
func (m *Metrics) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// RecordRateLimited counts a rejected analysis
func (m *Metrics) RecordRateLimited() {
	m.rateLimitRejections.Inc()
}

// SetCircuitState records the breaker state by name
func (m *Metrics) SetCircuitState(state string) {
	switch state {
	case "OPEN":
		m.circuitState.Set(2)
	case "HALF_OPEN":
		m.circuitState.Set(1)
	default:
		m.circuitState.Set(0)
	}
}

// ObserveProviderCall records one inference call
func (m *Metrics) ObserveProviderCall(outcome string, d time.Duration) {
	m.providerCalls.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordPairwiseCheck counts one pairwise check
func (m *Metrics) RecordPairwiseCheck(outcome string) {
	m.pairwiseChecks.WithLabelValues(outcome).Inc()
}

// WriteText writes every non-empty series as "name{labels} value" lines,
// sorted by name.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			lines = append(lines, formatMetric(mf, metric)...)
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatMetric(mf *dto.MetricFamily, metric *dto.Metric) []string {
	name := mf.GetName() + labelString(metric.GetLabel())

	switch mf.GetType() {
	case dto.MetricType_COUNTER:
		return []string{fmt.Sprintf("%s %g", name, metric.GetCounter().GetValue())}
	case dto.MetricType_GAUGE:
		return []string{fmt.Sprintf("%s %g", name, metric.GetGauge().GetValue())}
	case dto.MetricType_HISTOGRAM:
		h := metric.GetHistogram()
		return []string{
			fmt.Sprintf("%s_count%s %d", mf.GetName(), labelString(metric.GetLabel()), h.GetSampleCount()),
			fmt.Sprintf("%s_sum%s %g", mf.GetName(), labelString(metric.GetLabel()), h.GetSampleSum()),
		}
	default:
		return nil
	}
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
