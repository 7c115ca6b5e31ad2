package metrics

import (
	"net/http"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbon"

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	// CategoryUnknown replaces any category outside the known schemas so
	// client input cannot mint new series.
	CategoryUnknown = "unknown"
)

// Recorder holds the pipeline's Prometheus collectors. A nil Recorder is
// valid and records nothing.
type Recorder struct {
	rows      *prometheus.CounterVec
	rejects   *prometheus.CounterVec
	uploads   *prometheus.CounterVec
	recompute prometheus.Histogram
	cache     *prometheus.CounterVec
	warnings  prometheus.Counter
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_rows_total",
			Help:      "Rows seen by the validator, by category and outcome.",
		}, []string{"category", "outcome"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_rows_total",
			Help:      "Rejected rows by category and reason.",
		}, []string{"category", "reason"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Ingestion batches by category and final status.",
		}, []string{"category", "status"}),
		recompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Time spent deriving a report from a snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_requests_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_warnings_total",
			Help:      "Product groups left out of product metrics because the id is not in the catalogue.",
		}),
	}

	reg.MustRegister(r.rows, r.rejects, r.uploads, r.recompute, r.cache, r.warnings)
	return r
}

func (r *Recorder) ObserveBatch(category emissions.Category, summary emissions.BatchSummary, status emissions.UploadStatus) {
	if r == nil {
		return
	}
	cat := string(category)
	if _, ok := emissions.SchemaFor(category); !ok {
		cat = CategoryUnknown
	}
	r.rows.WithLabelValues(cat, OutcomeAccepted).Add(float64(summary.Accepted))
	r.rows.WithLabelValues(cat, OutcomeRejected).Add(float64(summary.Rejected))
	for reason, n := range summary.Reasons {
		r.rejects.WithLabelValues(cat, string(reason)).Add(float64(n))
	}
	r.uploads.WithLabelValues(cat, string(status)).Inc()
}

func (r *Recorder) ObserveRecompute(d time.Duration, warnings int) {
	if r == nil {
		return
	}
	r.recompute.Observe(d.Seconds())
	r.warnings.Add(float64(warnings))
}

func (r *Recorder) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.cache.WithLabelValues(result).Inc()
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
