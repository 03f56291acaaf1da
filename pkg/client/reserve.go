package client

import (
	"context"
	"net/http"

	"agentpay/pkg/pay"
	"agentpay/pkg/transport"
)

type reserveBody struct {
	Amount  string `json:"amount"`
	Timeout int    `json:"timeout"`
	Purpose string `json:"purpose,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

type commitBody struct {
	ActualAmount string `json:"actual_amount,omitempty"`
}

// Reserve earmarks funds from available into reserved before performing
// variable-cost work. The hold stays until Commit, Release, or server-side
// expiry after req.Timeout, whichever comes first.
func (c *Client) Reserve(ctx context.Context, req pay.ReserveRequest) (*pay.Reservation, error) {
	if err := pay.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = pay.DefaultReserveTimeout
	}
	if err := pay.ValidateReserveTimeout(timeout); err != nil {
		return nil, err
	}

	body, err := c.engine.Do(ctx, "reserve", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/reserve",
		Body: reserveBody{
			Amount:  req.Amount,
			Timeout: int(timeout.Seconds()),
			Purpose: req.Purpose,
			TaskID:  req.TaskID,
		},
	})
	if err != nil {
		return nil, err
	}

	reservation, err := pay.DecodeReservation(body)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// Commit finalizes a hold. An empty actualAmount charges the full reserved
// amount; a lesser actualAmount charges that and refunds the difference.
// Committing an already-terminal reservation is a conflict (409).
func (c *Client) Commit(ctx context.Context, reservationID string, actualAmount string) error {
	if reservationID == "" {
		return pay.NewValidationError("reservation id is required")
	}
	if actualAmount != "" {
		if err := pay.ValidateAmount(actualAmount); err != nil {
			return err
		}
	}

	var body interface{}
	if actualAmount != "" {
		body = commitBody{ActualAmount: actualAmount}
	}

	_, err := c.engine.Do(ctx, "commit", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/reserve/" + reservationID + "/commit",
		Body:   body,
	})
	return err
}

// Release cancels a hold with no charge, returning the full reserved amount
// to available. Used when the reserved work did not occur.
func (c *Client) Release(ctx context.Context, reservationID string) error {
	if reservationID == "" {
		return pay.NewValidationError("reservation id is required")
	}

	_, err := c.engine.Do(ctx, "release", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/reserve/" + reservationID + "/release",
	})
	return err
}
