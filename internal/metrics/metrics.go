package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	// CheckCount counts plagiarism checks by outcome
	CheckCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plagiarism_checks_total",
			Help: "Total number of plagiarism checks",
		},
		[]string{"outcome"}, // plagiarized, clean, only_one_document, duplicate, failed
	)

	// CheckDuration measures check duration
	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plagiarism_check_duration_seconds",
			Help:    "Plagiarism check duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// SimilarityScore observes the overall score of completed checks
	SimilarityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plagiarism_similarity_score",
			Help:    "Highest similarity score per check",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// SegmentCount counts extracted matching segments
	SegmentCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plagiarism_matching_segments_total",
			Help: "Total number of matching segments reported",
		},
	)

	// DocumentsIngested counts documents added to the corpus by source
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_documents_ingested_total",
			Help: "Total number of documents added to the corpus",
		},
		[]string{"source"},
	)

	// IngestFailures counts rejected ingestions by source and reason
	IngestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_ingest_failures_total",
			Help: "Total number of rejected ingestions",
		},
		[]string{"source", "reason"},
	)
)

// InitPrometheus initializes Prometheus metrics
func InitPrometheus() {
	prometheus.MustRegister(RequestCount)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CheckCount)
	prometheus.MustRegister(CheckDuration)
	prometheus.MustRegister(SimilarityScore)
	prometheus.MustRegister(SegmentCount)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(IngestFailures)
}

// MetricsHandler returns Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
