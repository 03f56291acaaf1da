package client

import (
	"context"
	"net/http"

	"agentpay/pkg/pay"
	"agentpay/pkg/transport"

	"go.uber.org/zap"
)

type transferBody struct {
	To             string `json:"to"`
	Amount         string `json:"amount"`
	Memo           string `json:"memo,omitempty"`
	Method         string `json:"method"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type batchItemBody struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type batchBody struct {
	Transfers []batchItemBody `json:"transfers"`
}

// Transfer sends amount to another agent and returns the resulting receipt.
// The recipient and amount are validated before any network traffic.
func (c *Client) Transfer(ctx context.Context, req pay.TransferRequest) (*pay.Receipt, error) {
	if err := pay.ValidateRecipient(req.To); err != nil {
		return nil, err
	}
	if err := pay.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = pay.MethodAuto
	}

	key := req.IdempotencyKey
	if key == "" && c.autoKey {
		key = c.genKey()
		c.logger.Debug("generated idempotency key", zap.String("key", key))
	}

	body, err := c.engine.Do(ctx, "transfer", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/transfer",
		Body: transferBody{
			To:             req.To,
			Amount:         req.Amount,
			Memo:           req.Memo,
			Method:         string(method),
			IdempotencyKey: key,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := pay.DecodeReceipt(body)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// TransferBatch submits up to pay.MaxBatchSize transfers in one request. The
// server treats the batch as a single transaction boundary; receipts come
// back in submission order. Oversized or invalid batches fail client-side
// with no network call.
func (c *Client) TransferBatch(ctx context.Context, items []pay.BatchItem) ([]pay.Receipt, error) {
	if err := pay.ValidateBatch(items); err != nil {
		return nil, err
	}

	transfers := make([]batchItemBody, len(items))
	for i, item := range items {
		transfers[i] = batchItemBody{To: item.To, Amount: item.Amount, Memo: item.Memo}
	}

	body, err := c.engine.Do(ctx, "transfer_batch", transport.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "/transfer/batch",
		Body:   batchBody{Transfers: transfers},
	})
	if err != nil {
		return nil, err
	}

	return pay.DecodeReceipts(body)
}
