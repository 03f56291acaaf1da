package metrics

import (
	"time"
)

// Collector receives instrumentation events from the request engine and the
// async meter reporter. Implementations can export to any backend; the
// prometheus subpackage provides the standard one.
type Collector interface {
	// RecordRequest observes one completed logical call. status is the final
	// HTTP status, or 0 when the call never produced a response.
	RecordRequest(op string, status int, duration time.Duration)

	// RecordRetry observes one retry of a logical call and the delay slept
	// before it. attempt is 1-based.
	RecordRetry(op string, attempt int, delay time.Duration)

	// RecordError observes a failed call by its stable error code.
	RecordError(op string, code string)

	// RecordCircuitState observes a circuit breaker state transition.
	RecordCircuitState(state CircuitState)

	// RecordMeterQueueDepth observes the async meter reporter's backlog.
	RecordMeterQueueDepth(depth int)

	// RecordMeterDropped observes a meter event dropped under backpressure.
	RecordMeterDropped()

	// RecordMeterReport observes one delivered (or failed) meter event.
	RecordMeterReport(success bool, duration time.Duration)
}

// CircuitState represents the state of the request engine's circuit breaker.
type CircuitState int

const (
	// CircuitClosed means calls are flowing normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means calls are being rejected without hitting the wire.
	CircuitOpen
	// CircuitHalfOpen means a probe call is testing recovery.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards all events. It is the default when no collector is
// configured.
type NoOpCollector struct{}

// RecordRequest does nothing.
func (NoOpCollector) RecordRequest(op string, status int, duration time.Duration) {}

// RecordRetry does nothing.
func (NoOpCollector) RecordRetry(op string, attempt int, delay time.Duration) {}

// RecordError does nothing.
func (NoOpCollector) RecordError(op string, code string) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(state CircuitState) {}

// RecordMeterQueueDepth does nothing.
func (NoOpCollector) RecordMeterQueueDepth(depth int) {}

// RecordMeterDropped does nothing.
func (NoOpCollector) RecordMeterDropped() {}

// RecordMeterReport does nothing.
func (NoOpCollector) RecordMeterReport(success bool, duration time.Duration) {}
