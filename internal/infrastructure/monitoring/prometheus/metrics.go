package prometheus

import (
	"strconv"
	"time"
)

// Label values for DocumentsTotal.
const (
	OutcomeAnnotated = "annotated"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// AppMetrics holds every metric the opinion miner exports.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Mining pipeline
	SpansDetected   HistogramVec
	MatchesFound    HistogramVec
	OpinionsCreated Histogram
	TaggerDuration  HistogramVec
	PipelineErrors  CounterVec

	// Worker
	DocumentsTotal   CounterVec
	DocumentDuration Histogram
	WorkersBusy      Gauge
}

var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultTaggerDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultCountBuckets          = []float64{0, 1, 2, 5, 10, 20, 50, 100, 250}
)

// NewAppMetrics registers the application metrics on c.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: c.RegisterCounter("http_requests_total",
			"Total number of HTTP requests.", "method", "path", "status"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency in seconds.", DefaultHTTPDurationBuckets, "method", "path"),

		SpansDetected: c.RegisterHistogram("spans_detected",
			"Span entities detected per document and layer.", DefaultCountBuckets, "layer"),
		MatchesFound: c.RegisterHistogram("matches_found",
			"Anchors matched to a candidate per document and layer.", DefaultCountBuckets, "layer"),
		OpinionsCreated: c.RegisterHistogram("opinions_created",
			"Opinions injected per document.", DefaultCountBuckets).WithLabelValues(),
		TaggerDuration: c.RegisterHistogram("tagger_duration_seconds",
			"Sequence tagger run time per layer.", DefaultTaggerDurationBuckets, "layer"),
		PipelineErrors: c.RegisterCounter("pipeline_errors_total",
			"Mining failures by pipeline stage.", "stage"),

		DocumentsTotal: c.RegisterCounter("documents_total",
			"Documents handled by the worker by outcome.", "outcome"),
		DocumentDuration: c.RegisterHistogram("document_duration_seconds",
			"End-to-end handling time per document.", DefaultTaggerDurationBuckets).WithLabelValues(),
		WorkersBusy: c.RegisterGauge("workers_busy",
			"Documents currently being mined.").WithLabelValues(),
	}
}

// ObserveSpans records the number of spans found for layer.
func (m *AppMetrics) ObserveSpans(layer string, n int) {
	m.SpansDetected.WithLabelValues(layer).Observe(float64(n))
}

// ObserveMatches records the number of matched anchors for layer.
func (m *AppMetrics) ObserveMatches(layer string, n int) {
	m.MatchesFound.WithLabelValues(layer).Observe(float64(n))
}

func (m *AppMetrics) ObserveOpinions(n int) {
	m.OpinionsCreated.Observe(float64(n))
}

func (m *AppMetrics) ObserveTaggerLatency(layer string, d time.Duration) {
	m.TaggerDuration.WithLabelValues(layer).Observe(d.Seconds())
}

func (m *AppMetrics) IncFailure(stage string) {
	m.PipelineErrors.WithLabelValues(stage).Inc()
}

// ObserveDocument records a handled document.
func (m *AppMetrics) ObserveDocument(outcome string, d time.Duration) {
	m.DocumentsTotal.WithLabelValues(outcome).Inc()
	m.DocumentDuration.Observe(d.Seconds())
}

// WorkerStarted and WorkerFinished bracket a document being mined.
func (m *AppMetrics) WorkerStarted()  { m.WorkersBusy.Inc() }
func (m *AppMetrics) WorkerFinished() { m.WorkersBusy.Dec() }

// ObserveHTTP records one HTTP request.
func (m *AppMetrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
