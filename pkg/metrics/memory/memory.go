package memory

import (
	"sync"
	"time"

	"agentpay/pkg/metrics"
)

// MemoryCollector implements metrics.Collector for in-memory inspection.
// It is primarily used in tests and examples.
type MemoryCollector struct {
	mu sync.RWMutex

	opMetrics map[string]*OpMetrics

	circuitState metrics.CircuitState
	circuitOpens int64

	meterQueueDepth int
	meterDropped    int64
	meterSuccesses  int64
	meterFailures   int64
	meterLatencies  []time.Duration
}

// OpMetrics holds metrics for a single logical operation.
type OpMetrics struct {
	Requests        int64
	RequestsByCode  map[int]int64
	Retries         int64
	ErrorsByCode    map[string]int64
	RequestLatency  []time.Duration
	RetryDelays     []time.Duration
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		opMetrics: make(map[string]*OpMetrics),
	}
}

func (mc *MemoryCollector) getOrCreateOp(op string) *OpMetrics {
	if _, exists := mc.opMetrics[op]; !exists {
		mc.opMetrics[op] = &OpMetrics{
			RequestsByCode: make(map[int]int64),
			ErrorsByCode:   make(map[string]int64),
		}
	}
	return mc.opMetrics[op]
}

// RecordRequest records one completed logical call.
func (mc *MemoryCollector) RecordRequest(op string, status int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	om := mc.getOrCreateOp(op)
	om.Requests++
	om.RequestsByCode[status]++
	om.RequestLatency = append(om.RequestLatency, duration)
}

// RecordRetry records one retry attempt.
func (mc *MemoryCollector) RecordRetry(op string, attempt int, delay time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	om := mc.getOrCreateOp(op)
	om.Retries++
	om.RetryDelays = append(om.RetryDelays, delay)
}

// RecordError records a failed call by error code.
func (mc *MemoryCollector) RecordError(op string, code string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.getOrCreateOp(op).ErrorsByCode[code]++
}

// RecordCircuitState records a circuit breaker transition.
func (mc *MemoryCollector) RecordCircuitState(state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.circuitState = state
	if state == metrics.CircuitOpen {
		mc.circuitOpens++
	}
}

// RecordMeterQueueDepth records the meter reporter backlog.
func (mc *MemoryCollector) RecordMeterQueueDepth(depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.meterQueueDepth = depth
}

// RecordMeterDropped records a dropped meter event.
func (mc *MemoryCollector) RecordMeterDropped() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.meterDropped++
}

// RecordMeterReport records one delivered meter event.
func (mc *MemoryCollector) RecordMeterReport(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if success {
		mc.meterSuccesses++
	} else {
		mc.meterFailures++
	}
	mc.meterLatencies = append(mc.meterLatencies, duration)
}

// Op returns a copy of the metrics for the given operation.
func (mc *MemoryCollector) Op(op string) OpMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	om, exists := mc.opMetrics[op]
	if !exists {
		return OpMetrics{}
	}

	out := OpMetrics{
		Requests:       om.Requests,
		Retries:        om.Retries,
		RequestsByCode: make(map[int]int64, len(om.RequestsByCode)),
		ErrorsByCode:   make(map[string]int64, len(om.ErrorsByCode)),
	}
	for k, v := range om.RequestsByCode {
		out.RequestsByCode[k] = v
	}
	for k, v := range om.ErrorsByCode {
		out.ErrorsByCode[k] = v
	}
	out.RequestLatency = append(out.RequestLatency, om.RequestLatency...)
	out.RetryDelays = append(out.RetryDelays, om.RetryDelays...)
	return out
}

// CircuitState returns the last observed circuit state.
func (mc *MemoryCollector) CircuitState() metrics.CircuitState {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.circuitState
}

// CircuitOpens returns the number of open transitions observed.
func (mc *MemoryCollector) CircuitOpens() int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.circuitOpens
}

// MeterStats returns dropped/success/failure counts for the meter reporter.
func (mc *MemoryCollector) MeterStats() (dropped, successes, failures int64) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.meterDropped, mc.meterSuccesses, mc.meterFailures
}
