package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Spreadsheet endpoint calls per table. Watch for: error vs success ratio.
	SheetFetchTotal *prometheus.CounterVec

	// Spreadsheet endpoint latency. Watch for: p95 creeping toward the fetch timeout.
	SheetFetchDuration *prometheus.HistogramVec

	// Retry attempts against the spreadsheet endpoint. Watch for: high retries = unstable upstream.
	SheetFetchRetriesTotal prometheus.Counter

	// Records currently held per table.
	TableRecords *prometheus.GaugeVec

	// Table refresh outcomes by error category.
	TableRefreshErrorsTotal *prometheus.CounterVec

	// Weather refreshes by source and outcome.
	WeatherRefreshTotal *prometheus.CounterVec

	// Scheduler job runs by outcome.
	SchedulerRunsTotal *prometheus.CounterVec

	// Ticks dropped because the previous run of the same job or table was still in flight.
	SchedulerTicksSkippedTotal *prometheus.CounterVec

	// Snapshot cache operations.
	CacheOperationsTotal *prometheus.CounterVec

	// Circuit breaker state: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials on user actions.
	RateLimitDeniedTotal prometheus.Counter

	registerOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	SheetFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetFetchTotal",
			Help: "Total number of spreadsheet values calls",
		},
		[]string{"table", "status"},
	)
	SheetFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetFetchDurationSeconds",
			Help:    "Spreadsheet values call latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"table"},
	)
	SheetFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetFetchRetriesTotal",
			Help: "Total number of retry attempts for spreadsheet calls",
		},
	)
	TableRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tableRecords",
			Help: "Number of records currently loaded per table",
		},
		[]string{"table"},
	)
	TableRefreshErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tableRefreshErrorsTotal",
			Help: "Failed table refreshes by error category",
		},
		[]string{"table", "category"},
	)
	WeatherRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherRefreshTotal",
			Help: "Weather refreshes by source and outcome",
		},
		[]string{"source", "status"},
	)
	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulerRunsTotal",
			Help: "Scheduler job runs by outcome",
		},
		[]string{"job", "status"},
	)
	SchedulerTicksSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulerTicksSkippedTotal",
			Help: "Ticks skipped because the previous run was still in flight",
		},
		[]string{"job"},
	)
	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheOperationsTotal",
			Help: "Snapshot cache operations by operation and result",
		},
		[]string{"operation", "result"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of user actions denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		SheetFetchTotal, SheetFetchDuration, SheetFetchRetriesTotal,
		TableRecords, TableRefreshErrorsTotal,
		WeatherRefreshTotal,
		SchedulerRunsTotal, SchedulerTicksSkippedTotal,
		CacheOperationsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterUptimeGauge exposes seconds since start. Safe to call more than once.
func RegisterUptimeGauge(uptime func() float64) {
	registerOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "uptimeSeconds",
				Help: "Seconds since the service started",
			},
			uptime,
		))
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
