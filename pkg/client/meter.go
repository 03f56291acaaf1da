package client

import (
	"context"
	"net/http"

	"agentpay/pkg/pay"
	"agentpay/pkg/transport"
)

type meterBody struct {
	Amount    string `json:"amount"`
	EventType string `json:"event_type"`
}

// Meter performs an immediate, non-reversible deduction for usage-based
// billing. No hold/commit cycle: the cost is already known at call time.
func (c *Client) Meter(ctx context.Context, amount, eventType string) (*pay.MeterResult, error) {
	if err := pay.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if eventType == "" {
		return nil, pay.NewValidationError("event type is required")
	}

	body, err := c.engine.Do(ctx, "meter", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/meter",
		Body:   meterBody{Amount: amount, EventType: eventType},
	})
	if err != nil {
		return nil, err
	}

	result, err := pay.DecodeMeterResult(body)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
