package transport

import (
	"net/http"
	"time"

	"agentpay/pkg/logging"
	"agentpay/pkg/metrics"
)

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// supply scripted fakes so the engine never needs a real socket.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the request engine.
type Config struct {
	// BaseURL is the service root. Paths are resolved against it.
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// Timeout bounds each attempt. Default: 30s. A Request may override it.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	// 0 disables retrying. Default: 3.
	MaxRetries int

	// InitialDelay seeds the exponential backoff. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth. Default: 30s.
	MaxDelay time.Duration

	// Transport performs the HTTP round trips. Default: http.DefaultClient.
	Transport Doer

	// Jitter draws the actual backoff delay from [0, cap]. Default: FullJitter.
	// Swap for a deterministic function in tests.
	Jitter func(cap time.Duration) time.Duration

	// Breaker configures the circuit breaker. Nil disables it.
	Breaker *BreakerConfig

	// Logger receives engine diagnostics. Default: the global logger.
	Logger *logging.Logger

	// Metrics receives instrumentation events. Default: NoOpCollector.
	Metrics metrics.Collector
}

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// MaxRequests is the number of probe calls allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the cyclic period over which the closed-state counters are
	// cleared. 0 means they are never cleared. Default: 60s
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing. Default: 30s
	Timeout time.Duration

	// ReadyToTrip is consulted after every failed call. If nil, the breaker
	// trips after 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool
}

// Counts holds the numbers of calls and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig returns sensible defaults for the request engine.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Breaker:      DefaultBreakerConfig(),
	}
}

// DefaultBreakerConfig returns the standard circuit breaker settings.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// WithTimeout returns a copy of the config with the specified attempt timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithMaxRetries returns a copy of the config with the specified retry budget.
func (c Config) WithMaxRetries(n int) Config {
	c.MaxRetries = n
	return c
}

// WithBackoff returns a copy of the config with the specified backoff window.
func (c Config) WithBackoff(initial, max time.Duration) Config {
	c.InitialDelay = initial
	c.MaxDelay = max
	return c
}

// WithTransport returns a copy of the config with the specified transport.
func (c Config) WithTransport(d Doer) Config {
	c.Transport = d
	return c
}

// WithoutBreaker returns a copy of the config with the circuit breaker
// disabled.
func (c Config) WithoutBreaker() Config {
	c.Breaker = nil
	return c
}
