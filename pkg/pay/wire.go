package pay

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire payloads are snake_case; domain structs are camelCase. These structs
// and their toDomain mappers are the single translation point. Mappers copy
// every field and never mutate their receiver.

type balanceWire struct {
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
	Total     string `json:"total"`
}

func (w balanceWire) toDomain() Balance {
	return Balance{
		Available: w.Available,
		Reserved:  w.Reserved,
		Total:     w.Total,
	}
}

type receiptWire struct {
	ID        string     `json:"id"`
	Method    string     `json:"method"`
	Amount    string     `json:"amount"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Memo      string     `json:"memo"`
	Timestamp *time.Time `json:"timestamp"`
	TxHash    string     `json:"tx_hash"`
}

func (w receiptWire) toDomain() Receipt {
	return Receipt{
		ID:        w.ID,
		Method:    Method(w.Method),
		Amount:    w.Amount,
		From:      w.From,
		To:        w.To,
		Memo:      w.Memo,
		Timestamp: w.Timestamp,
		TxHash:    w.TxHash,
	}
}

type reservationWire struct {
	ID        string     `json:"id"`
	Amount    string     `json:"amount"`
	Purpose   string     `json:"purpose"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (w reservationWire) toDomain() Reservation {
	return Reservation{
		ID:        w.ID,
		Amount:    w.Amount,
		Purpose:   w.Purpose,
		Status:    w.Status,
		ExpiresAt: w.ExpiresAt,
	}
}

type canAffordWire struct {
	CanAfford bool   `json:"can_afford"`
	Amount    string `json:"amount"`
}

func (w canAffordWire) toDomain() CanAffordResult {
	return CanAffordResult{CanAfford: w.CanAfford, Amount: w.Amount}
}

type meterWire struct {
	Success bool `json:"success"`
}

func (w meterWire) toDomain() MeterResult {
	return MeterResult{Success: w.Success}
}

// DecodeBalance parses a balance payload.
func DecodeBalance(data []byte) (Balance, error) {
	var w balanceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Balance{}, fmt.Errorf("pay: decode balance: %w", err)
	}
	return w.toDomain(), nil
}

// DecodeReceipt parses a single receipt payload.
func DecodeReceipt(data []byte) (Receipt, error) {
	var w receiptWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Receipt{}, fmt.Errorf("pay: decode receipt: %w", err)
	}
	return w.toDomain(), nil
}

// DecodeReceipts parses an array of receipts, preserving order.
func DecodeReceipts(data []byte) ([]Receipt, error) {
	var ws []receiptWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("pay: decode receipts: %w", err)
	}
	receipts := make([]Receipt, len(ws))
	for i, w := range ws {
		receipts[i] = w.toDomain()
	}
	return receipts, nil
}

// DecodeReservation parses a reservation payload.
func DecodeReservation(data []byte) (Reservation, error) {
	var w reservationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Reservation{}, fmt.Errorf("pay: decode reservation: %w", err)
	}
	return w.toDomain(), nil
}

// DecodeCanAfford parses a can-afford payload.
func DecodeCanAfford(data []byte) (CanAffordResult, error) {
	var w canAffordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return CanAffordResult{}, fmt.Errorf("pay: decode can-afford: %w", err)
	}
	return w.toDomain(), nil
}

// DecodeMeterResult parses a meter acknowledgement.
func DecodeMeterResult(data []byte) (MeterResult, error) {
	var w meterWire
	if err := json.Unmarshal(data, &w); err != nil {
		return MeterResult{}, fmt.Errorf("pay: decode meter result: %w", err)
	}
	return w.toDomain(), nil
}
