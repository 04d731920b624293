// Package metrics exposes Prometheus counters for prospection runs and
// provider calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/lead-prospector/internal/model"
)

const defaultNamespace = "prospector"

// Persistence outcomes reported to LeadPersisted.
const (
	PersistCreated   = "created"
	PersistUpdated   = "updated"
	PersistUnchanged = "unchanged"
	PersistFailed    = "failed"
	PersistSkipped   = "dry_run"
)

// Recorder records pipeline metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	candidates    *prometheus.CounterVec
	searchErrors  *prometheus.CounterVec
	qualified     *prometheus.CounterVec
	persisted     *prometheus.CounterVec
	fallbacks     prometheus.Counter
	tokens        *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	namespace string
	registry  *prometheus.Registry
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// New creates a Recorder on its own registry.
func New(opts ...Option) *Recorder {
	o := options{namespace: defaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	auto := promauto.With(o.registry)

	return &Recorder{
		registry: o.registry,
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "runs_total",
			Help:      "Prospection runs by terminal status.",
		}, []string{"status"}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of prospection runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		candidates: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "candidates_found_total",
			Help:      "Candidates returned by each discovery source.",
		}, []string{"source"}),
		searchErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "search_errors_total",
			Help:      "Discovery source searches that failed.",
		}, []string{"source"}),
		qualified: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "leads_qualified_total",
			Help:      "Qualified candidates by category.",
		}, []string{"category"}),
		persisted: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "leads_persisted_total",
			Help:      "Lead upserts by outcome.",
		}, []string{"outcome"}),
		fallbacks: auto.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "qualification_fallbacks_total",
			Help:      "Candidates scored by the deterministic rubric because the model response was unusable.",
		}),
		tokens: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "llm_tokens_total",
			Help:      "Language model tokens consumed.",
		}, []string{"direction"}),
		providerCalls: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "provider_calls_total",
			Help:      "External provider calls by outcome.",
		}, []string{"provider", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RunFinished records a terminal run.
func (r *Recorder) RunFinished(status model.RunStatus, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(string(status)).Inc()
	r.runDuration.Observe(elapsed.Seconds())
}

// CandidatesFound adds n candidates for source.
func (r *Recorder) CandidatesFound(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.candidates.WithLabelValues(source).Add(float64(n))
}

// SearchFailed counts a failed source search.
func (r *Recorder) SearchFailed(source string) {
	if r == nil {
		return
	}
	r.searchErrors.WithLabelValues(source).Inc()
}

// LeadQualified counts a scored candidate by category.
func (r *Recorder) LeadQualified(category model.Category) {
	if r == nil {
		return
	}
	r.qualified.WithLabelValues(string(category)).Inc()
}

// LeadPersisted counts an upsert outcome.
func (r *Recorder) LeadPersisted(outcome string) {
	if r == nil {
		return
	}
	r.persisted.WithLabelValues(outcome).Inc()
}

// QualificationFallbacks adds n deterministic fallbacks.
func (r *Recorder) QualificationFallbacks(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.fallbacks.Add(float64(n))
}

// Tokens adds language model token usage.
func (r *Recorder) Tokens(input, output int64) {
	if r == nil {
		return
	}
	if input > 0 {
		r.tokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		r.tokens.WithLabelValues("output").Add(float64(output))
	}
}

// ProviderCall counts one provider call outcome. Its signature matches
// provider.Options.OnCall.
func (r *Recorder) ProviderCall(provider, outcome string) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
}
