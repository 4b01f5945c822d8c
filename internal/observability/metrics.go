package observability

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
)

// MetricsRegistry holds all registered metrics. A metric is identified by its
// name plus its label set, so one name can carry several series.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

// NewCounter returns the counter for name and labels, creating it on first
// use.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[key] = c
	return c
}

// NewGauge returns the gauge for name and labels, creating it on first use.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[key] = g
	return g
}

// NewHistogram returns the histogram for name and labels, creating it on
// first use. buckets defaults to DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histos[key]; ok {
		return h
	}
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[key] = h
	return h
}

// DefaultBuckets returns default histogram buckets for latency.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// SlowBuckets covers OCR and embedding calls that take seconds to minutes.
func SlowBuckets() []float64 {
	return []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// ObserveDuration records the time elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format, series sorted by
// name and labels, HELP and TYPE once per name.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	written := make(map[string]bool)
	header := func(name, kind, help string) {
		if written[name] {
			return
		}
		written[name] = true
		io.WriteString(w, "# HELP "+name+" "+help+"\n")
		io.WriteString(w, "# TYPE "+name+" "+kind+"\n")
	}

	for _, key := range sortedKeys(r.counters) {
		c := r.counters[key]
		c.mu.Lock()
		header(c.name, "counter", c.help)
		io.WriteString(w, key+" "+formatFloat(c.value)+"\n")
		c.mu.Unlock()
	}

	for _, key := range sortedKeys(r.gauges) {
		g := r.gauges[key]
		g.mu.Lock()
		header(g.name, "gauge", g.help)
		io.WriteString(w, key+" "+formatFloat(g.value)+"\n")
		g.mu.Unlock()
	}

	for _, key := range sortedKeys(r.histos) {
		h := r.histos[key]
		h.mu.Lock()
		header(h.name, "histogram", h.help)
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func writeHistogram(w io.Writer, h *Histogram) {
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		labels := copyLabels(h.labels)
		labels["le"] = formatFloat(bound)
		io.WriteString(w, h.name+"_bucket"+formatLabels(labels)+" "+formatUint(cumulative)+"\n")
	}

	labels := copyLabels(h.labels)
	labels["le"] = "+Inf"
	io.WriteString(w, h.name+"_bucket"+formatLabels(labels)+" "+formatUint(h.count)+"\n")

	io.WriteString(w, h.name+"_sum"+formatLabels(h.labels)+" "+formatFloat(h.sum)+"\n")
	io.WriteString(w, h.name+"_count"+formatLabels(h.labels)+" "+formatUint(h.count)+"\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range sortedKeys(labels) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(labels[k]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	result := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		result[k] = v
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// IngestMetrics contains the pipeline metrics.
type IngestMetrics struct {
	Registry *MetricsRegistry

	IngestionsTotal   *Counter
	IngestionDuration *Histogram
	PagesConverted    *Counter
	PointsUpserted    *Counter
	InFlight          *Gauge
}

const (
	metricFailures      = "ingestor_ingestion_failures_total"
	metricStageDuration = "ingestor_stage_duration_seconds"
)

// NewIngestMetrics creates the pipeline metrics on a fresh registry.
func NewIngestMetrics() *IngestMetrics {
	r := NewMetricsRegistry()

	return &IngestMetrics{
		Registry: r,

		IngestionsTotal:   r.NewCounter("ingestor_ingestions_total", "Total document ingestions started", nil),
		IngestionDuration: r.NewHistogram("ingestor_ingestion_duration_seconds", "End-to-end ingestion duration", nil, SlowBuckets()),
		PagesConverted:    r.NewCounter("ingestor_pages_converted_total", "Total PDF pages converted to Markdown", nil),
		PointsUpserted:    r.NewCounter("ingestor_points_upserted_total", "Total points written to the vector store", nil),
		InFlight:          r.NewGauge("ingestor_ingestions_in_flight", "Ingestions currently running", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *IngestMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// Failures returns the failure counter for one error kind.
func (m *IngestMetrics) Failures(kind errs.Kind) *Counter {
	if kind == "" {
		kind = "unknown"
	}
	return m.Registry.NewCounter(metricFailures, "Failed ingestions by error kind", map[string]string{"kind": string(kind)})
}

// Stage returns the duration histogram of one pipeline stage.
func (m *IngestMetrics) Stage(stage string) *Histogram {
	return m.Registry.NewHistogram(metricStageDuration, "Pipeline stage duration", map[string]string{"stage": stage}, SlowBuckets())
}

// RecordIngestion records a finished ingestion.
func (m *IngestMetrics) RecordIngestion(duration time.Duration, pages, points int, err error) {
	m.IngestionsTotal.Inc()
	m.IngestionDuration.Observe(duration.Seconds())
	if err != nil {
		m.Failures(errs.KindOf(err)).Inc()
		return
	}
	m.PagesConverted.Add(float64(pages))
	m.PointsUpserted.Add(float64(points))
}
