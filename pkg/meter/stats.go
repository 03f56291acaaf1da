package meter

import "errors"

// Stats provides statistics about async meter reporting.
type Stats struct {
	// QueueDepth is the current number of pending events in the queue
	QueueDepth int

	// Enqueued is the total number of events accepted
	Enqueued int64

	// Dropped is the total number of events dropped due to backpressure
	Dropped int64

	// Failed is the total number of events whose delivery failed
	Failed int64
}

// Errors returned by async reporter operations.
var (
	// ErrQueueFull is returned when the event queue is full and MaxWaitTime exceeded
	ErrQueueFull = errors.New("meter: queue full, event dropped")

	// ErrReporterClosed is returned when reporting to a closed reporter
	ErrReporterClosed = errors.New("meter: reporter is closed")

	// ErrFlushTimeout is returned when Flush() times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("meter: flush timeout exceeded")
)
