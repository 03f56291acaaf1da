// Package client is the public surface of the agentpay SDK. A Client lets an
// autonomous agent check its balance, transfer funds, reserve-then-commit
// funds for uncertain-cost work, and report metered usage against the remote
// ledger service.
//
// All monetary amounts are decimal strings ("10.50"), never floats. A Client
// holds no mutable cross-call state; concurrent calls on one instance do not
// interfere beyond ordinary connection sharing.
package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"agentpay/pkg/logging"
	"agentpay/pkg/metrics"
	"agentpay/pkg/pay"
	"agentpay/pkg/transport"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the production ledger service endpoint.
const DefaultBaseURL = "https://api.agentpay.dev"

// apiPrefix versions every path this client speaks.
const apiPrefix = "/api/v2/pay"

// Config configures a Client.
type Config struct {
	// APIKey authenticates every request. Required.
	APIKey string

	// BaseURL overrides DefaultBaseURL when set.
	BaseURL string

	// Timeout bounds each attempt. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first for
	// retryable failures. Values < 1 keep the default of 3; set
	// DisableRetries for a single attempt per call.
	MaxRetries int

	// Transport is the injectable HTTP seam. Default: http.DefaultClient.
	Transport transport.Doer

	// AutoIdempotencyKeys generates a fresh key for transfers submitted
	// without one, so server-side deduplication covers engine retries.
	// Off by default: the wire then carries exactly what the caller supplied.
	AutoIdempotencyKeys bool

	// Breaker overrides the engine's default circuit breaker settings.
	Breaker *transport.BreakerConfig

	// DisableRetries makes every call a single attempt, failing fast on the
	// first retryable error.
	DisableRetries bool

	// DisableBreaker turns the circuit breaker off entirely.
	DisableBreaker bool

	// Logger receives diagnostics. Default: the global logger.
	Logger *logging.Logger

	// Metrics receives instrumentation events. Default: NoOpCollector.
	Metrics metrics.Collector
}

// Client is the payment client facade. Safe for concurrent use.
type Client struct {
	engine  *transport.Engine
	logger  *logging.Logger
	sf      singleflight.Group
	autoKey bool
	genKey  func() string
}

// New creates a Client. The API key is required; everything else defaults.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, pay.NewValidationError("API key is required")
	}

	base := config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Global()
	}

	ecfg := transport.DefaultConfig()
	ecfg.BaseURL = base
	ecfg.APIKey = config.APIKey
	ecfg.Logger = logger
	if config.Timeout > 0 {
		ecfg.Timeout = config.Timeout
	}
	if config.MaxRetries > 0 {
		ecfg.MaxRetries = config.MaxRetries
	}
	if config.DisableRetries {
		ecfg.MaxRetries = 0
	}
	if config.Transport != nil {
		ecfg.Transport = config.Transport
	}
	if config.Breaker != nil {
		ecfg.Breaker = config.Breaker
	}
	if config.DisableBreaker {
		ecfg = ecfg.WithoutBreaker()
	}
	if config.Metrics != nil {
		ecfg.Metrics = config.Metrics
	}

	engine, err := transport.New(ecfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		engine:  engine,
		logger:  logger.Named("client"),
		autoKey: config.AutoIdempotencyKeys,
		genKey:  uuid.NewString,
	}, nil
}

// Balance returns the current funds snapshot. Concurrent identical calls on
// one Client are collapsed into a single request. A caller that cancels its
// ctx detaches alone; the shared request keeps running (bounded by the
// per-attempt timeout) for everyone still waiting on it.
func (c *Client) Balance(ctx context.Context) (*pay.Balance, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("balance", func() (interface{}, error) {
		body, err := c.engine.Do(flightCtx, "balance", transport.Request{
			Method: http.MethodGet,
			Path:   apiPrefix + "/balance",
		})
		if err != nil {
			return nil, err
		}
		b, err := pay.DecodeBalance(body)
		if err != nil {
			return nil, err
		}
		return &b, nil
	})

	select {
	case <-ctx.Done():
		return nil, pay.NewAbortError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Collapsed callers each get their own copy
		b := *res.Val.(*pay.Balance)
		return &b, nil
	}
}

// CanAfford reports whether the agent's available balance covers amount.
// Advisory only: the balance may change before a subsequent transfer. The
// amount check is loose here; the server performs the authoritative parse.
// Concurrent checks for the same amount collapse like Balance does, with the
// same per-caller cancellation.
func (c *Client) CanAfford(ctx context.Context, amount string) (*pay.CanAffordResult, error) {
	if err := pay.ValidateAmountPresent(amount); err != nil {
		return nil, err
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("can-afford:"+amount, func() (interface{}, error) {
		body, err := c.engine.Do(flightCtx, "can_afford", transport.Request{
			Method: http.MethodGet,
			Path:   apiPrefix + "/can-afford",
			Query:  url.Values{"amount": {amount}},
		})
		if err != nil {
			return nil, err
		}
		r, err := pay.DecodeCanAfford(body)
		if err != nil {
			return nil, err
		}
		return &r, nil
	})

	select {
	case <-ctx.Done():
		return nil, pay.NewAbortError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		r := *res.Val.(*pay.CanAffordResult)
		return &r, nil
	}
}
