package meter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"agentpay/pkg/logging"
	"agentpay/pkg/metrics"
	"agentpay/pkg/pay"

	"go.uber.org/zap"
)

// Meterer delivers one usage-deduction event. *client.Client satisfies it.
type Meterer interface {
	Meter(ctx context.Context, amount, eventType string) (*pay.MeterResult, error)
}

// AsyncReporter delivers meter events off the hot path using a worker pool
// and bounded queue. Callers that charge per operation enqueue and move on;
// delivery failures are counted, not surfaced. Events are fire-and-forget:
// a dropped event is lost revenue, not a correctness failure, so the queue
// sheds load instead of blocking callers.
type AsyncReporter struct {
	meterer    Meterer
	queue      chan event
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     AsyncReporterConfig
	metrics    metrics.Collector
	logger     *logging.Logger

	// Statistics (accessed atomically)
	dropped  int64
	enqueued int64
	failed   int64

	depthTicker *time.Ticker
	depthStop   chan struct{}
}

// event is a pending usage deduction.
type event struct {
	amount    string
	eventType string
}

// AsyncReporterConfig configures the async reporter behavior.
type AsyncReporterConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent delivery workers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if the queue is full.
	// 0 means drop immediately (default: 10ms)
	MaxWaitTime time.Duration

	// ReportTimeout bounds each delivery attempt (default: 10s)
	ReportTimeout time.Duration
}

// NewAsyncReporter creates a reporter delivering through m. It starts
// processing immediately and must be closed with Close().
func NewAsyncReporter(m Meterer, config AsyncReporterConfig) *AsyncReporter {
	return NewAsyncReporterWithMetrics(m, config, metrics.NoOpCollector{})
}

// NewAsyncReporterWithMetrics creates a reporter with a custom metrics
// collector.
func NewAsyncReporterWithMetrics(m Meterer, config AsyncReporterConfig, collector metrics.Collector) *AsyncReporter {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.ReportTimeout <= 0 {
		config.ReportTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &AsyncReporter{
		meterer:     m,
		queue:       make(chan event, config.QueueSize),
		workers:     config.Workers,
		ctx:         ctx,
		cancelFunc:  cancel,
		config:      config,
		metrics:     collector,
		logger:      logging.Global().Named("meter"),
		depthTicker: time.NewTicker(5 * time.Second),
		depthStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	go r.reportDepth()

	return r
}

// Report enqueues a usage deduction non-blockingly. The amount is validated
// here so malformed events fail fast instead of dying silently in a worker.
// If the queue stays full past MaxWaitTime the event is dropped and
// ErrQueueFull returned.
func (r *AsyncReporter) Report(ctx context.Context, amount, eventType string) error {
	if err := pay.ValidateAmount(amount); err != nil {
		return err
	}
	if eventType == "" {
		return pay.NewValidationError("event type is required")
	}

	select {
	case <-r.ctx.Done():
		return ErrReporterClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ev := event{amount: amount, eventType: eventType}

	timer := time.NewTimer(r.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case r.queue <- ev:
		atomic.AddInt64(&r.enqueued, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&r.dropped, 1)
		r.metrics.RecordMeterDropped()
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrReporterClosed
	}
}

// worker delivers events from the queue.
func (r *AsyncReporter) worker() {
	defer r.wg.Done()

	for {
		select {
		case ev, ok := <-r.queue:
			if !ok {
				return
			}
			r.deliver(ev)
		case <-r.ctx.Done():
			// Drain remaining events before exiting
			for {
				select {
				case ev, ok := <-r.queue:
					if !ok {
						return
					}
					r.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver sends one event with a bounded timeout and records the outcome.
func (r *AsyncReporter) deliver(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ReportTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.meterer.Meter(ctx, ev.amount, ev.eventType)
	duration := time.Since(start)

	success := err == nil && result != nil && result.Success
	r.metrics.RecordMeterReport(success, duration)

	if !success {
		atomic.AddInt64(&r.failed, 1)
		r.logger.Warn("meter event delivery failed",
			zap.String("event_type", ev.eventType),
			zap.String("amount", ev.amount),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
}

// Flush waits for all pending events to drain or until timeout.
func (r *AsyncReporter) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if len(r.queue) == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}

		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops accepting new events and waits for workers to finish. Events
// already queued are delivered before shutdown.
func (r *AsyncReporter) Close() error {
	close(r.depthStop)
	r.depthTicker.Stop()

	r.cancelFunc()
	r.wg.Wait()

	return nil
}

// reportDepth periodically reports queue depth.
func (r *AsyncReporter) reportDepth() {
	for {
		select {
		case <-r.depthTicker.C:
			r.metrics.RecordMeterQueueDepth(len(r.queue))
		case <-r.depthStop:
			return
		}
	}
}

// Stats returns current statistics about the reporter.
func (r *AsyncReporter) Stats() Stats {
	return Stats{
		QueueDepth: len(r.queue),
		Enqueued:   atomic.LoadInt64(&r.enqueued),
		Dropped:    atomic.LoadInt64(&r.dropped),
		Failed:     atomic.LoadInt64(&r.failed),
	}
}
