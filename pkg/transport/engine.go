// Package transport executes logical API calls against the ledger service
// with per-attempt timeouts, caller cancellation, bounded retries with
// jittered backoff, and circuit breaker protection.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"agentpay/pkg/logging"
	"agentpay/pkg/metrics"
	"agentpay/pkg/pay"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is marshaled to JSON when non-nil.
	Body interface{}

	// IdempotencyKey, when set, is forwarded as a header on every attempt of
	// this call, retries included, so the server can deduplicate them.
	IdempotencyKey string

	// Timeout overrides the engine's per-attempt timeout when positive.
	Timeout time.Duration
}

// Engine executes logical API calls with bounded latency and a bounded retry
// budget, translating every outcome into either a payload or exactly one
// typed error. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	baseURL      *url.URL
	apiKey       string
	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	transport    Doer
	cb           *gobreaker.CircuitBreaker
	jitter       func(cap time.Duration) time.Duration
	logger       *logging.Logger
	metrics      metrics.Collector

	// sleep waits between attempts; swapped in tests for instant clocks.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a request engine from the given config, applying defaults for
// any zero-valued optional field.
func New(config Config) (*Engine, error) {
	if config.BaseURL == "" {
		return nil, errors.New("transport: base URL required")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Transport == nil {
		config.Transport = http.DefaultClient
	}
	if config.Jitter == nil {
		config.Jitter = FullJitter
	}
	if config.Logger == nil {
		config.Logger = logging.Global()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}

	e := &Engine{
		baseURL:      base,
		apiKey:       config.APIKey,
		timeout:      config.Timeout,
		maxRetries:   config.MaxRetries,
		initialDelay: config.InitialDelay,
		maxDelay:     config.MaxDelay,
		transport:    config.Transport,
		jitter:       config.Jitter,
		logger:       config.Logger.Named("transport"),
		metrics:      config.Metrics,
		sleep:        sleepContext,
	}

	if config.Breaker != nil {
		e.cb = gobreaker.NewCircuitBreaker(e.breakerSettings(*config.Breaker))
	}

	return e, nil
}

// breakerSettings converts a BreakerConfig to gobreaker settings, wiring
// state transitions into logging and metrics.
func (e *Engine) breakerSettings(config BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "agentpay",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.ReadyToTrip != nil {
				return config.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			// Default: trip after 5 consecutive failed logical calls
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			e.metrics.RecordCircuitState(state)
		},
	}
}

// Do executes one logical call. On success it returns the response body
// (empty for no-content responses); on failure, exactly one *pay.Error.
// op labels the call in logs and metrics.
func (e *Engine) Do(ctx context.Context, op string, req Request) ([]byte, error) {
	start := time.Now()

	var payload []byte
	var status int
	var err error

	if e.cb != nil {
		var result interface{}
		result, err = e.cb.Execute(func() (interface{}, error) {
			var execErr error
			payload, status, execErr = e.attemptLoop(ctx, op, req)
			return payload, execErr
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			e.logger.Warn("circuit breaker open - call rejected", zap.String("op", op))
			e.metrics.RecordError(op, pay.CodeCircuitOpen)
			return nil, pay.ErrCircuitOpen
		}
		if err == nil {
			payload = result.([]byte)
		}
	} else {
		payload, status, err = e.attemptLoop(ctx, op, req)
	}

	duration := time.Since(start)
	e.metrics.RecordRequest(op, status, duration)

	if err != nil {
		e.metrics.RecordError(op, pay.Classify(err))
		e.logger.Error("call failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("code", pay.Classify(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Debug("call succeeded",
		zap.String("op", op),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)
	return payload, nil
}

// attemptLoop runs the attempt/backoff cycle for one logical call. It returns
// the final payload or error plus the last observed HTTP status (0 when no
// response was received).
func (e *Engine) attemptLoop(ctx context.Context, op string, req Request) ([]byte, int, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, 0, pay.NewValidationError("encode request body: %v", err)
		}
	}

	u := e.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	timeout := e.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var lastStatus int

	for attempt := 0; ; attempt++ {
		// Cancellation always wins over timeout and retry.
		if ctx.Err() != nil {
			return nil, lastStatus, pay.NewAbortError(ctx.Err())
		}

		payload, status, apiErr := e.attempt(ctx, req, u, body, timeout)
		if apiErr == nil {
			return payload, status, nil
		}

		lastStatus = status

		// Abort and timeout surface immediately; so does every error kind
		// that would fail identically on the next attempt.
		if apiErr.Code == pay.CodeAbort || apiErr.Code == pay.CodeTimeout {
			return nil, status, apiErr
		}
		retryable := apiErr.Code == pay.CodeNetwork || (status > 0 && pay.Retryable(status))
		if !retryable || attempt >= e.maxRetries {
			return nil, status, apiErr
		}

		delay := e.delayFor(attempt+1, apiErr.RetryAfter)
		e.metrics.RecordRetry(op, attempt+1, delay)
		e.logger.Warn("retrying call",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.String("code", apiErr.Code),
			zap.Duration("delay", delay),
		)

		if err := e.sleep(ctx, delay); err != nil {
			return nil, status, pay.NewAbortError(err)
		}
	}
}

// attempt performs a single HTTP round trip bounded by its own timeout.
func (e *Engine) attempt(parent context.Context, req Request, u *url.URL, body []byte, timeout time.Duration) ([]byte, int, *pay.Error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return nil, 0, pay.NewNetworkError(err)
	}

	hreq.Header.Set("Authorization", "Bearer "+e.apiKey)
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		hreq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := e.transport.Do(hreq)
	if err != nil {
		// Distinguish the caller cancelling from this attempt's deadline.
		if parent.Err() != nil {
			return nil, 0, pay.NewAbortError(parent.Err())
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, 0, pay.NewTimeoutError(ctx.Err())
		}
		return nil, 0, pay.NewNetworkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if parent.Err() != nil {
			return nil, resp.StatusCode, pay.NewAbortError(parent.Err())
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, resp.StatusCode, pay.NewTimeoutError(ctx.Err())
		}
		return nil, resp.StatusCode, pay.NewNetworkError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, resp.StatusCode, nil
	}

	return nil, resp.StatusCode, pay.FromStatus(resp.StatusCode, payload, resp.Header.Get("Retry-After"))
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
