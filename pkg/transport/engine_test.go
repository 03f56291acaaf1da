package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"agentpay/pkg/logging"
	memorymetrics "agentpay/pkg/metrics/memory"
	"agentpay/pkg/pay"
)

// step scripts one transport outcome for the fake Doer.
type step struct {
	status int
	body   string
	header http.Header
	err    error
}

// fakeDoer replays scripted steps and records every request it sees.
// The final step repeats if more attempts arrive than steps were scripted.
type fakeDoer struct {
	mu       sync.Mutex
	steps    []step
	requests []*http.Request
	bodies   []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	i := len(f.requests) - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	s := f.steps[i]

	if s.err != nil {
		return nil, s.err
	}
	header := s.header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func (f *fakeDoer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// blockingDoer blocks until the request context is done.
type blockingDoer struct {
	mu       sync.Mutex
	requests int
}

func (b *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	b.requests++
	b.mu.Unlock()
	<-req.Context().Done()
	return nil, req.Context().Err()
}

// newTestEngine builds an engine wired to d with instant sleeps, returning
// the delays that would have been slept.
func newTestEngine(t *testing.T, d Doer, mutate func(*Config)) (*Engine, *[]time.Duration) {
	t.Helper()

	cfg := Config{
		BaseURL:      "https://ledger.test",
		APIKey:       "test-key",
		Timeout:      time.Second,
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     16 * time.Millisecond,
		Transport:    d,
		Logger:       logging.NewNopLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	delays := &[]time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return e, delays
}

func TestDo_Success(t *testing.T) {
	fake := &fakeDoer{steps: []step{{status: 200, body: `{"ok":true}`}}}
	e, _ := newTestEngine(t, fake, nil)

	payload, err := e.Do(context.Background(), "balance", Request{
		Method: http.MethodGet,
		Path:   "/api/v2/pay/balance",
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("payload = %q", payload)
	}
	if fake.calls() != 1 {
		t.Errorf("calls = %d, want 1", fake.calls())
	}

	req := fake.requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if req.URL.String() != "https://ledger.test/api/v2/pay/balance" {
		t.Errorf("URL = %q", req.URL)
	}
}

func TestDo_PostBody(t *testing.T) {
	fake := &fakeDoer{steps: []step{{status: 200, body: `{}`}}}
	e, _ := newTestEngine(t, fake, nil)

	_, err := e.Do(context.Background(), "transfer", Request{
		Method: http.MethodPost,
		Path:   "/api/v2/pay/transfer",
		Body:   map[string]string{"to": "agent-b", "amount": "1.50"},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	req := fake.requests[0]
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(fake.bodies[0], `"amount":"1.50"`) {
		t.Errorf("body = %q", fake.bodies[0])
	}
}

func TestDo_Retries500UntilExhausted(t *testing.T) {
	fake := &fakeDoer{steps: []step{{status: 500, body: `{}`}}}
	mem := memorymetrics.NewMemoryCollector()
	e, delays := newTestEngine(t, fake, func(c *Config) { c.Metrics = mem })

	_, err := e.Do(context.Background(), "transfer", Request{Method: http.MethodPost, Path: "/x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var payErr *pay.Error
	if !errors.As(err, &payErr) {
		t.Fatalf("expected *pay.Error, got %T", err)
	}
	if payErr.Code != pay.CodeAPI || payErr.Status != 500 {
		t.Errorf("error = (%q, %d), want (api_error, 500)", payErr.Code, payErr.Status)
	}

	// First attempt plus MaxRetries retries
	if fake.calls() != 4 {
		t.Errorf("calls = %d, want 4", fake.calls())
	}
	if len(*delays) != 3 {
		t.Errorf("slept %d times, want 3", len(*delays))
	}
	if got := mem.Op("transfer").Retries; got != 3 {
		t.Errorf("recorded retries = %d, want 3", got)
	}
}

func TestDo_NoRetryOn404(t *testing.T) {
	fake := &fakeDoer{steps: []step{{status: 404, body: `{}`}}}
	e, delays := newTestEngine(t, fake, nil)

	_, err := e.Do(context.Background(), "balance", Request{Method: http.MethodGet, Path: "/x"})
	if pay.Classify(err) != pay.CodeWalletNotFound {
		t.Fatalf("error code = %q, want wallet_not_found", pay.Classify(err))
	}
	if fake.calls() != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", fake.calls())
	}
	if len(*delays) != 0 {
		t.Errorf("slept %d times, want 0", len(*delays))
	}
}

func TestDo_RetryAfterOverridesBackoff(t *testing.T) {
	header := make(http.Header)
	header.Set("Retry-After", "2")
	fake := &fakeDoer{steps: []step{
		{status: 429, body: `{}`, header: header},
		{status: 200, body: `{}`},
	}}
	e, delays := newTestEngine(t, fake, func(c *Config) {
		c.Jitter = func(cap time.Duration) time.Duration {
			t.Error("jitter consulted despite Retry-After")
			return 0
		}
	})

	_, err := e.Do(context.Background(), "transfer", Request{Method: http.MethodPost, Path: "/x"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 2*time.Second {
		t.Errorf("delays = %v, want exactly [2s]", *delays)
	}
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	fake := &fakeDoer{steps: []step{
		{err: errors.New("dial tcp: connection refused")},
		{err: errors.New("dial tcp: connection refused")},
		{status: 200, body: `{"ok":true}`},
	}}
	e, _ := newTestEngine(t, fake, nil)

	payload, err := e.Do(context.Background(), "balance", Request{Method: http.MethodGet, Path: "/x"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("payload = %q", payload)
	}
	if fake.calls() != 3 {
		t.Errorf("calls = %d, want 3", fake.calls())
	}
}

func TestDo_NetworkErrorExhausted(t *testing.T) {
	fake := &fakeDoer{steps: []step{{err: errors.New("dial tcp: connection refused")}}}
	e, _ := newTestEngine(t, fake, func(c *Config) { c.MaxRetries = 2 })

	_, err := e.Do(context.Background(), "balance", Request{Method: http.MethodGet, Path: "/x"})
	if pay.Classify(err) != pay.CodeNetwork {
		t.Fatalf("error code = %q, want network_error", pay.Classify(err))
	}
	if fake.calls() != 3 {
		t.Errorf("calls = %d, want 3", fake.calls())
	}
}

func TestDo_IdempotencyKeyOnEveryAttempt(t *testing.T) {
	fake := &fakeDoer{steps: []step{
		{status: 503, body: `{}`},
		{status: 503, body: `{}`},
		{status: 200, body: `{}`},
	}}
	e, _ := newTestEngine(t, fake, nil)

	_, err := e.Do(context.Background(), "transfer", Request{
		Method:         http.MethodPost,
		Path:           "/x",
		IdempotencyKey: "idem-123",
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if fake.calls() != 3 {
		t.Fatalf("calls = %d, want 3", fake.calls())
	}
	for i, req := range fake.requests {
		if got := req.Header.Get("Idempotency-Key"); got != "idem-123" {
			t.Errorf("attempt %d Idempotency-Key = %q, want \"idem-123\"", i, got)
		}
	}
}

func TestDo_Timeout(t *testing.T) {
	blocking := &blockingDoer{}
	e, _ := newTestEngine(t, blocking, func(c *Config) { c.Timeout = 20 * time.Millisecond })

	_, err := e.Do(context.Background(), "balance", Request{Method: http.MethodGet, Path: "/x"})
	if !pay.IsTimeout(err) {
		t.Fatalf("error = %v, want timeout_error", err)
	}
	// Timeouts surface immediately, no retry
	if blocking.requests != 1 {
		t.Errorf("requests = %d, want 1", blocking.requests)
	}
}

func TestDo_PerRequestTimeoutOverride(t *testing.T) {
	blocking := &blockingDoer{}
	e, _ := newTestEngine(t, blocking, func(c *Config) { c.Timeout = time.Hour })

	start := time.Now()
	_, err := e.Do(context.Background(), "balance", Request{
		Method:  http.MethodGet,
		Path:    "/x",
		Timeout: 20 * time.Millisecond,
	})
	if !pay.IsTimeout(err) {
		t.Fatalf("error = %v, want timeout_error", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("override ignored, call took %v", elapsed)
	}
}

func TestDo_AbortWinsOverTimeout(t *testing.T) {
	blocking := &blockingDoer{}
	e, _ := newTestEngine(t, blocking, func(c *Config) { c.Timeout = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Do(ctx, "balance", Request{Method: http.MethodGet, Path: "/x"})
	if !pay.IsAbort(err) {
		t.Fatalf("error = %v, want abort_error", err)
	}
	if blocking.requests != 1 {
		t.Errorf("requests = %d, want 1 (no retries after abort)", blocking.requests)
	}
}

func TestDo_AbortPreemptsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel while the first (retryable) response is being produced, so the
	// engine observes the abort during backoff.
	fake := &cancelingDoer{cancel: cancel}
	e, _ := newTestEngine(t, fake, nil)

	_, err := e.Do(ctx, "transfer", Request{Method: http.MethodPost, Path: "/x"})
	if !pay.IsAbort(err) {
		t.Fatalf("error = %v, want abort_error", err)
	}
	if fake.requests != 1 {
		t.Errorf("requests = %d, want 1", fake.requests)
	}
}

// cancelingDoer responds 500 and cancels the caller's context as it does so.
type cancelingDoer struct {
	cancel   context.CancelFunc
	requests int
}

func (c *cancelingDoer) Do(req *http.Request) (*http.Response, error) {
	c.requests++
	c.cancel()
	return &http.Response{
		StatusCode: 500,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeDoer{steps: []step{{status: 500, body: `{}`}}}
	e, _ := newTestEngine(t, fake, func(c *Config) {
		c.MaxRetries = 0
		c.Breaker = &BreakerConfig{
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.Do(ctx, "transfer", Request{Method: http.MethodPost, Path: "/x"}); pay.Classify(err) != pay.CodeAPI {
			t.Fatalf("call %d error = %v, want api_error", i, err)
		}
	}

	_, err := e.Do(ctx, "transfer", Request{Method: http.MethodPost, Path: "/x"})
	if !pay.IsCircuitOpen(err) {
		t.Fatalf("error = %v, want circuit_open", err)
	}
	// The rejected call never reached the transport
	if fake.calls() != 2 {
		t.Errorf("calls = %d, want 2", fake.calls())
	}
}

func TestDo_ErrorBodyMessageSurfaced(t *testing.T) {
	fake := &fakeDoer{steps: []step{
		{status: 402, body: `{"error":{"message":"balance too low","code":"insufficient_credits"}}`},
	}}
	e, _ := newTestEngine(t, fake, nil)

	_, err := e.Do(context.Background(), "transfer", Request{Method: http.MethodPost, Path: "/x"})
	if !pay.IsInsufficientCredits(err) {
		t.Fatalf("error = %v, want insufficient_credits", err)
	}

	var payErr *pay.Error
	errors.As(err, &payErr)
	if payErr.Message != "balance too low" {
		t.Errorf("message = %q, want server message", payErr.Message)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New accepted empty base URL")
	}
}
