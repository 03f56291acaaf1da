package prometheus

import (
	"strconv"
	"time"

	"agentpay/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Counters
	requests     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	circuitOpens prometheus.Counter

	// Gauges
	circuitState    prometheus.Gauge
	meterQueueDepth prometheus.Gauge

	// Meter reporter
	meterDropped prometheus.Counter
	meterReports *prometheus.CounterVec

	// Histograms
	requestLatency *prometheus.HistogramVec
	retryDelay     *prometheus.HistogramVec
	meterLatency   prometheus.Histogram
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of logical API calls by operation and final status",
			},
			[]string{"op", "status"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retry attempts by operation",
			},
			[]string{"op"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed calls by operation and error code",
			},
			[]string{"op", "code"},
		),
		circuitOpens: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker open transitions",
			},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		meterQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "meter_queue_depth",
				Help:      "Current number of queued meter events awaiting delivery",
			},
		),
		meterDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "meter_dropped_total",
				Help:      "Total number of meter events dropped due to backpressure",
			},
		),
		meterReports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "meter_reports_total",
				Help:      "Total number of delivered meter events by outcome",
			},
			[]string{"outcome"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Logical call latency by operation, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		retryDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retry_delay_seconds",
				Help:      "Backoff delay slept before retry attempts",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"op"},
		),
		meterLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "meter_report_duration_seconds",
				Help:      "Latency of asynchronous meter event delivery",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Register registers all collectors with the given registerer.
func (pc *PrometheusCollector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.requests,
		pc.retries,
		pc.errors,
		pc.circuitOpens,
		pc.circuitState,
		pc.meterQueueDepth,
		pc.meterDropped,
		pc.meterReports,
		pc.requestLatency,
		pc.retryDelay,
		pc.meterLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers all collectors with the default registry and panics
// on collision.
func (pc *PrometheusCollector) MustRegister() {
	if err := pc.Register(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

// RecordRequest observes one completed logical call.
func (pc *PrometheusCollector) RecordRequest(op string, status int, duration time.Duration) {
	pc.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	pc.requestLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRetry observes one retry attempt and its backoff delay.
func (pc *PrometheusCollector) RecordRetry(op string, attempt int, delay time.Duration) {
	pc.retries.WithLabelValues(op).Inc()
	pc.retryDelay.WithLabelValues(op).Observe(delay.Seconds())
}

// RecordError observes a failed call by error code.
func (pc *PrometheusCollector) RecordError(op string, code string) {
	pc.errors.WithLabelValues(op, code).Inc()
}

// RecordCircuitState observes a circuit breaker state transition.
func (pc *PrometheusCollector) RecordCircuitState(state metrics.CircuitState) {
	pc.circuitState.Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.Inc()
	}
}

// RecordMeterQueueDepth observes the meter reporter backlog.
func (pc *PrometheusCollector) RecordMeterQueueDepth(depth int) {
	pc.meterQueueDepth.Set(float64(depth))
}

// RecordMeterDropped observes a dropped meter event.
func (pc *PrometheusCollector) RecordMeterDropped() {
	pc.meterDropped.Inc()
}

// RecordMeterReport observes one delivered meter event.
func (pc *PrometheusCollector) RecordMeterReport(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	pc.meterReports.WithLabelValues(outcome).Inc()
	pc.meterLatency.Observe(duration.Seconds())
}
