// Package prometheus implements core.MetricsRecorder on client_golang and
// provides the HTTP instrumentation used by the API router.
package prometheus

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-community/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "community"

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Recorder registers collectors lazily, one vector per metric name. The label
// keys seen on first use are fixed for that name: missing labels are recorded
// as "" and unknown ones are dropped.
type Recorder struct {
	registry  *prom.Registry
	namespace string

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec    *prom.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prom.HistogramVec
	labels []string
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace = sanitizeName(namespace); namespace != "" {
			r.namespace = namespace
		}
	}
}

func WithRegistry(registry *prom.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// NewRecorder builds a recorder on a fresh registry that also carries the Go
// runtime and process collectors.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:  DefaultNamespace,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.registry == nil {
		r.registry = prom.NewRegistry()
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Handler exposes the registry for GET /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	entry := r.counter(name, tags)
	if entry == nil {
		return
	}
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	entry := r.histogram(name, tags)
	if entry == nil {
		return
	}
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) *counterEntry {
	name = r.metricName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[name]; ok {
		return entry
	}
	labels := labelKeys(tags)
	vec := prom.NewCounterVec(prom.CounterOpts{
		Name: name,
		Help: "Community counter " + name + ".",
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[name] = entry
	return entry
}

func (r *Recorder) histogram(name string, tags map[string]string) *histogramEntry {
	name = r.metricName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[name]; ok {
		return entry
	}
	labels := labelKeys(tags)
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    name,
		Help:    "Community histogram " + name + ".",
		Buckets: prom.ExponentialBuckets(0.005, 2, 12),
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[name] = entry
	return entry
}

func (r *Recorder) metricName(name string) string {
	name = sanitizeName(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, r.namespace+"_") {
		return name
	}
	return r.namespace + "_" + name
}

// HTTPMetrics holds the request collectors for the API middleware.
type HTTPMetrics struct {
	inFlight prom.Gauge
	requests *prom.CounterVec
	duration *prom.HistogramVec
}

func (r *Recorder) HTTPMetrics() *HTTPMetrics {
	m := &HTTPMetrics{
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: r.namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: r.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: r.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prom.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}
	m.inFlight = registerOrExisting(r.registry, m.inFlight).(prom.Gauge)
	m.requests = registerOrExisting(r.registry, m.requests).(*prom.CounterVec)
	m.duration = registerOrExisting(r.registry, m.duration).(*prom.HistogramVec)
	return m
}

// Middleware records in-flight, totals and latency. route resolves the
// pattern label after the handler ran; it falls back to "unmatched".
func (m *HTTPMetrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			next.ServeHTTP(rec, req)

			pattern := ""
			if route != nil {
				pattern = route(req)
			}
			if pattern == "" {
				pattern = "unmatched"
			}
			method := strings.ToUpper(req.Method)
			m.requests.WithLabelValues(method, pattern, strconv.Itoa(rec.status)).Inc()
			m.duration.WithLabelValues(method, pattern).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func registerOrExisting(registry *prom.Registry, collector prom.Collector) prom.Collector {
	if err := registry.Register(collector); err != nil {
		if already, ok := err.(prom.AlreadyRegisteredError); ok {
			return already.ExistingCollector
		}
	}
	return collector
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		if key = sanitizeName(key); key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func labelValues(keys []string, tags map[string]string) []string {
	sanitized := make(map[string]string, len(tags))
	for key, value := range tags {
		sanitized[sanitizeName(key)] = value
	}
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = sanitized[key]
	}
	return values
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = invalidNameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

var _ core.MetricsRecorder = (*Recorder)(nil)
