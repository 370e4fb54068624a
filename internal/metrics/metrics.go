// Package metrics exposes Prometheus instrumentation for query evaluation
// and segment building. A Registry bundles one set of collectors behind
// MustRegister, the way engine instrumentation is wired in the rest of
// the corpus: a single struct of pre-labeled vectors, constructed once
// and passed down to the code paths that observe them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector exported by an evaluation process.
type Registry struct {
	queryLatency    *prometheus.HistogramVec
	candidatesSeen  *prometheus.CounterVec
	candidatesAdmit *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	segmentsBuilt   prometheus.Counter
	buildLatency    prometheus.Histogram
	buildPostings   prometheus.Counter
}

// NewRegistry constructs and registers a fresh collector set against reg.
// Pass prometheus.DefaultRegisterer to export on the process-wide default
// registry, or a private *prometheus.Registry in tests.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wand_query_latency_seconds",
			Help:    "Latency of a single query evaluation, by variant and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"variant", "status"}),
		candidatesSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wand_candidates_considered_total",
			Help: "Candidate documents examined by the pivot driver, by variant",
		}, []string{"variant"}),
		candidatesAdmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wand_candidates_admitted_total",
			Help: "Candidate documents fully scored and inserted into a top-k heap",
		}, []string{"variant", "heap"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wand_heap_evictions_total",
			Help: "Entries displaced from a top-k heap by a higher-scoring candidate",
		}, []string{"variant", "heap"}),
		segmentsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wand_segments_built_total",
			Help: "Segments written by the wand segment builder",
		}),
		buildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wand_segment_build_latency_seconds",
			Help:    "Wall-clock time to build one segment's postings and block bounds",
			Buckets: prometheus.DefBuckets,
		}),
		buildPostings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wand_segment_postings_total",
			Help: "Postings written across all built segments",
		}),
	}

	reg.MustRegister(
		r.queryLatency,
		r.candidatesSeen,
		r.candidatesAdmit,
		r.evictions,
		r.segmentsBuilt,
		r.buildLatency,
		r.buildPostings,
	)
	return r
}

// ObserveQuery records one query's latency and outcome.
func (r *Registry) ObserveQuery(variant string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.queryLatency.WithLabelValues(variant, status).Observe(d.Seconds())
}

// AddCandidatesSeen increments the pivot driver's candidate-examination count.
func (r *Registry) AddCandidatesSeen(variant string, n int) {
	r.candidatesSeen.WithLabelValues(variant).Add(float64(n))
}

// AddCandidateAdmitted records one candidate fully scored and inserted into
// the named heap ("primary" or "secondary").
func (r *Registry) AddCandidateAdmitted(variant, heap string) {
	r.candidatesAdmit.WithLabelValues(variant, heap).Inc()
}

// AddEviction records one entry displaced from the named heap.
func (r *Registry) AddEviction(variant, heap string) {
	r.evictions.WithLabelValues(variant, heap).Inc()
}

// ObserveBuild records one segment build's latency and posting count.
func (r *Registry) ObserveBuild(d time.Duration, postings int) {
	r.segmentsBuilt.Inc()
	r.buildLatency.Observe(d.Seconds())
	r.buildPostings.Add(float64(postings))
}
