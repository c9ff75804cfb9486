package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics is a small Prometheus text-format registry for enforcement and grading.
type Metrics struct {
	enforcementItems   *CounterVec
	consequenceOutcome *CounterVec
	gradingResults     *CounterVec
	notifications      *CounterVec
	railLatency        *HistogramVec
	runDuration        *HistogramVec
	apiLatency         *HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		enforcementItems: NewCounterVec("forfeit_enforcement_items_total",
			"Overdue items by processing outcome.", []string{"failure_type", "outcome"}),
		consequenceOutcome: NewCounterVec("forfeit_consequence_records_total",
			"Consequence records appended by type and status.", []string{"type", "status"}),
		gradingResults: NewCounterVec("forfeit_grading_results_total",
			"Grading verdicts by tier.", []string{"tier", "verdict"}),
		notifications: NewCounterVec("forfeit_notifications_total",
			"Notification attempts by category and status.", []string{"category", "status"}),
		railLatency: NewHistogramVec("forfeit_rail_request_seconds",
			"External rail call latency.", []string{"rail", "status"}, nil),
		runDuration: NewHistogramVec("forfeit_batch_run_seconds",
			"Batch pass duration.", []string{"kind"}, []float64{0.5, 1, 5, 15, 60, 300}),
		apiLatency: NewHistogramVec("forfeit_http_request_seconds",
			"Trigger API latency by route.", []string{"method", "route", "status"}, nil),
	}
}

func (m *Metrics) IncEnforcementItem(failureType, outcome string) {
	if m == nil {
		return
	}
	m.enforcementItems.Inc(failureType, outcome)
}

func (m *Metrics) IncConsequenceRecord(kind, status string) {
	if m == nil {
		return
	}
	m.consequenceOutcome.Inc(kind, status)
}

func (m *Metrics) IncGradingResult(tier, verdict string) {
	if m == nil {
		return
	}
	m.gradingResults.Inc(tier, verdict)
}

func (m *Metrics) IncNotification(category, status string) {
	if m == nil {
		return
	}
	m.notifications.Inc(category, status)
}

func (m *Metrics) ObserveRail(rail, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.railLatency.Observe(dur.Seconds(), rail, status)
}

func (m *Metrics) ObserveRun(kind string, dur time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(dur.Seconds(), kind)
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []*CounterVec{m.enforcementItems, m.consequenceOutcome, m.gradingResults, m.notifications} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	for _, h := range []*HistogramVec{m.railLatency, m.runDuration, m.apiLatency} {
		if err := h.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	lbl := labelString(c.labelNames, values)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[lbl]
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range sortedKeys(c.values) {
		if _, err := fmt.Fprintf(w, "%s%s %g\n", c.name, k, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	counts []uint64 // cumulative per bucket, last is +Inf
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{counts: make([]uint64, len(h.buckets)+1)}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range h.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := h.values[k]
		for i, b := range h.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n%s_sum%s %g\n%s_count%s %d\n",
			h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1],
			h.name, k, v.sum,
			h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) && values[i] != "" {
			val = values[i]
		}
		parts[i] = name + `="` + escapeLabel(val) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return strings.ReplaceAll(v, "\n", `\n`)
}

func withLe(labels string, le string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="` + le + `"}`
}
