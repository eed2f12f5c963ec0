package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Prometheus text exposition without the client library. Series print in
// sorted label order so scrapes and tests see stable output.

// scalarVec backs both counters and gauges; only the exposition type differs.
type scalarVec struct {
	name, help, kind string
	labels           []string
	mu               sync.RWMutex
	values           map[string]float64
}

func (s *scalarVec) update(fn func(float64) float64, values []string) {
	key := labelString(s.labels, values)
	s.mu.Lock()
	s.values[key] = fn(s.values[key])
	s.mu.Unlock()
}

func (s *scalarVec) get(values []string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[labelString(s.labels, values)]
}

func (s *scalarVec) WritePrometheus(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := []string{
		fmt.Sprintf("# HELP %s %s", s.name, s.help),
		fmt.Sprintf("# TYPE %s %s", s.name, s.kind),
	}
	if len(s.values) == 0 && len(s.labels) == 0 {
		// Unlabeled series report zero before the first write.
		lines = append(lines, s.name+" 0.000000")
	}
	for _, k := range sortedKeys(s.values) {
		lines = append(lines, fmt.Sprintf("%s%s %f", s.name, k, s.values[k]))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

type CounterVec struct{ scalarVec }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{scalarVec{name: name, help: help, kind: "counter", labels: labels, values: map[string]float64{}}}
}

func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil || v < 0 {
		return
	}
	c.update(func(cur float64) float64 { return cur + v }, values)
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	return c.get(values)
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.scalarVec.WritePrometheus(w)
}

// GaugeVec is a settable series per label set. A Gauge is a GaugeVec without
// labels.
type GaugeVec struct{ scalarVec }

type Gauge = GaugeVec

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{scalarVec{name: name, help: help, kind: "gauge", labels: labels, values: map[string]float64{}}}
}

func NewGauge(name, help string) *Gauge { return NewGaugeVec(name, help, nil) }

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	g.update(func(float64) float64 { return v }, values)
}

func (g *GaugeVec) Add(v float64, values ...string) {
	if g == nil {
		return
	}
	g.update(func(cur float64) float64 { return cur + v }, values)
}

func (g *GaugeVec) Inc(values ...string) { g.Add(1, values...) }
func (g *GaugeVec) Dec(values ...string) { g.Add(-1, values...) }

func (g *GaugeVec) Value(values ...string) float64 {
	if g == nil {
		return 0
	}
	return g.get(values)
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.scalarVec.WritePrometheus(w)
}

type HistogramVec struct {
	name, help string
	labels     []string
	buckets    []float64
	mu         sync.RWMutex
	series     map[string]*histogram
}

// histogram keeps per-bucket counts; they are made cumulative on write.
type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &HistogramVec{name: name, help: help, labels: labels, buckets: sorted, series: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	key := labelString(h.labels, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.series[key]
	if !ok {
		hist = &histogram{counts: make([]uint64, len(h.buckets))}
		h.series[key] = hist
	}
	hist.sum += v
	hist.total++
	if i := sort.SearchFloat64s(h.buckets, v); i < len(h.buckets) {
		hist.counts[i]++
	}
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	for _, k := range sortedKeys(h.series) {
		hist := h.series[k]
		var cum uint64
		for i, le := range h.buckets {
			cum += hist.counts[i]
			fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", le)), cum)
		}
		fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), hist.total)
		fmt.Fprintf(&b, "%s_sum%s %f\n", h.name, k, hist.sum)
		fmt.Fprintf(&b, "%s_count%s %d\n", h.name, k, hist.total)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// labelString renders {a="x",b="y"}. Missing or empty values become "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	pairs := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) && values[i] != "" {
			val = values[i]
		}
		pairs[i] = name + `="` + labelEscaper.Replace(val) + `"`
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func withLe(labels, le string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="` + le + `"}`
}
