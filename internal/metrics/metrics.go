package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Pipeline metrics
	InterviewsProcessed  *prometheus.CounterVec
	InterviewDuration    *prometheus.HistogramVec
	CoverageDistribution prometheus.Histogram
	ActiveWorkers        prometheus.Gauge

	// Annotation call metrics
	BatchRequestsTotal     *prometheus.CounterVec
	SynthesisRequestsTotal *prometheus.CounterVec
	AnnotationLatency      *prometheus.HistogramVec
	RetriesTotal           prometheus.Counter

	// Spend metrics
	TokensUsed     *prometheus.CounterVec
	CostAccrued    prometheus.Counter
	BudgetRefusals prometheus.Counter
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		InterviewsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotator_interviews_processed_total",
				Help: "Interviews finished, by terminal outcome",
			},
			[]string{"status"},
		)

		InterviewDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annotator_interview_duration_seconds",
				Help:    "Wall time to fully process one interview",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"status"},
		)

		CoverageDistribution = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annotator_coverage_percent",
				Help:    "Turn coverage achieved per interview",
				Buckets: []float64{25, 50, 75, 90, 95, 99, 100},
			},
		)

		ActiveWorkers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "annotator_active_workers",
				Help: "Workers currently processing an interview",
			},
		)

		BatchRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotator_batch_requests_total",
				Help: "Per-batch annotation calls, by provider and outcome",
			},
			[]string{"provider", "status"},
		)

		SynthesisRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotator_synthesis_requests_total",
				Help: "Interview-level synthesis calls, by provider and outcome",
			},
			[]string{"provider", "status"},
		)

		AnnotationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annotator_request_duration_seconds",
				Help:    "Latency of annotation calls",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "pass"},
		)

		RetriesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "annotator_retries_total",
				Help: "Annotation call attempts beyond the first",
			},
		)

		TokensUsed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotator_tokens_total",
				Help: "Tokens consumed, by kind",
			},
			[]string{"kind"},
		)

		CostAccrued = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "annotator_cost_usd_total",
				Help: "Accumulated spend in US dollars",
			},
		)

		BudgetRefusals = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "annotator_budget_refusals_total",
				Help: "Reservations refused by the cost ceiling",
			},
		)

		registry.MustRegister(
			InterviewsProcessed,
			InterviewDuration,
			CoverageDistribution,
			ActiveWorkers,
			BatchRequestsTotal,
			SynthesisRequestsTotal,
			AnnotationLatency,
			RetriesTotal,
			TokensUsed,
			CostAccrued,
			BudgetRefusals,
		)

		logger.Debug("Prometheus metrics initialized")
	})
}

// GetRegistry returns the metrics registry for custom handlers.
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetEnabled toggles metric recording globally.
func SetEnabled(enabled bool) {
	metricsEnabled = enabled
}

// RegisterHandler mounts the metrics endpoint on the given mux.
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// RecordInterview records a finished interview and its wall time.
func RecordInterview(status string, duration time.Duration) {
	if metricsEnabled && registry != nil {
		InterviewsProcessed.WithLabelValues(status).Inc()
		InterviewDuration.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// RecordCoverage records the coverage an interview achieved.
func RecordCoverage(pct float64) {
	if metricsEnabled && registry != nil {
		CoverageDistribution.Observe(pct)
	}
}

// RecordBatchCall records the outcome of one per-batch annotation call.
func RecordBatchCall(provider, status string) {
	if metricsEnabled && registry != nil {
		BatchRequestsTotal.WithLabelValues(provider, status).Inc()
	}
}

// RecordSynthesisCall records the outcome of one synthesis call.
func RecordSynthesisCall(provider, status string) {
	if metricsEnabled && registry != nil {
		SynthesisRequestsTotal.WithLabelValues(provider, status).Inc()
	}
}

// RecordRetry counts one retry attempt.
func RecordRetry() {
	if metricsEnabled && registry != nil {
		RetriesTotal.Inc()
	}
}

// ObserveAnnotationLatency starts a latency timer; invoke the returned
// function when the call completes.
func ObserveAnnotationLatency(provider, pass string) func() {
	if !metricsEnabled || registry == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		AnnotationLatency.WithLabelValues(provider, pass).Observe(time.Since(start).Seconds())
	}
}

// AddTokens accumulates provider-reported token usage.
func AddTokens(promptTokens, completionTokens int) {
	if metricsEnabled && registry != nil {
		TokensUsed.WithLabelValues("prompt").Add(float64(promptTokens))
		TokensUsed.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// AddCost accumulates settled spend.
func AddCost(usd float64) {
	if metricsEnabled && registry != nil && usd > 0 {
		CostAccrued.Add(usd)
	}
}

// RecordBudgetRefusal counts a reservation rejected by the ceiling.
func RecordBudgetRefusal() {
	if metricsEnabled && registry != nil {
		BudgetRefusals.Inc()
	}
}

// WorkerStarted and WorkerFinished track pool occupancy.
func WorkerStarted() {
	if metricsEnabled && registry != nil {
		ActiveWorkers.Inc()
	}
}

func WorkerFinished() {
	if metricsEnabled && registry != nil {
		ActiveWorkers.Dec()
	}
}
