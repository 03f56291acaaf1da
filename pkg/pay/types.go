// Package pay holds the payment domain: value objects, wire-format mapping,
// input validation, and the error taxonomy shared by every operation.
package pay

import "time"

// Method selects how a transfer is settled.
type Method string

const (
	// MethodAuto lets the server pick the cheapest available rail.
	MethodAuto Method = "auto"
	// MethodCredits settles against the internal credit ledger.
	MethodCredits Method = "credits"
	// MethodX402 settles over the x402 payment protocol.
	MethodX402 Method = "x402"
)

// MaxBatchSize is the largest transfer batch accepted in a single call.
// Larger batches are rejected client-side before any network traffic.
const MaxBatchSize = 1000

// Reservation lifecycle states as reported by the server. Held is the only
// non-terminal state; the terminal states are mutually exclusive.
const (
	ReservationHeld      = "held"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
	ReservationExpired   = "expired"
)

// All monetary amounts below are decimal strings ("10.50"), never floats.
// They pass through the client untouched end to end.

// Balance is a point-in-time snapshot of an agent's funds.
// Total = Available + Reserved, enforced server-side.
type Balance struct {
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
	Total     string `json:"total"`
}

// Receipt is the immutable record of a completed transfer.
type Receipt struct {
	ID        string     `json:"id"`
	Method    Method     `json:"method"`
	Amount    string     `json:"amount"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Memo      string     `json:"memo,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	TxHash    string     `json:"txHash,omitempty"`
}

// Reservation is a hold against available funds, pending commit or release.
type Reservation struct {
	ID        string     `json:"id"`
	Amount    string     `json:"amount"`
	Purpose   string     `json:"purpose,omitempty"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CanAffordResult is an advisory affordability check. The balance may change
// between this check and a subsequent transfer.
type CanAffordResult struct {
	CanAfford bool   `json:"canAfford"`
	Amount    string `json:"amount"`
}

// MeterResult acknowledges a usage-deduction event.
type MeterResult struct {
	Success bool `json:"success"`
}

// TransferRequest describes a single transfer.
type TransferRequest struct {
	To     string
	Amount string
	Memo   string
	// Method defaults to MethodAuto when empty.
	Method Method
	// IdempotencyKey, when set, is forwarded on every attempt of the call so
	// the server can collapse retries into one operation.
	IdempotencyKey string
}

// BatchItem is one transfer within a batch. The batch is a single server-side
// transaction boundary; receipts come back in submission order.
type BatchItem struct {
	To     string
	Amount string
	Memo   string
}

// ReserveRequest describes a new hold.
type ReserveRequest struct {
	Amount string
	// Timeout bounds how long the hold may stay uncommitted before the server
	// auto-expires it. 1s to 24h; zero means the 5 minute default.
	Timeout time.Duration
	Purpose string
	TaskID  string
}

// DefaultReserveTimeout is applied when ReserveRequest.Timeout is zero.
const DefaultReserveTimeout = 5 * time.Minute
