package pay

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountPattern is the wire format for amounts: unsigned decimal digits with
// an optional fraction. No sign, no exponent, no grouping.
var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// MaxFractionDigits is the finest supported amount precision.
const MaxFractionDigits = 6

// ValidateAmount checks that s is a well-formed, positive decimal string with
// at most MaxFractionDigits fractional digits. Violations never reach the
// network.
func ValidateAmount(s string) error {
	if s == "" {
		return NewValidationError("amount is required")
	}
	if !amountPattern.MatchString(s) {
		return NewValidationError("amount %q must be a positive decimal string", s)
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > MaxFractionDigits {
		return NewValidationError("amount %q exceeds %d decimal places", s, MaxFractionDigits)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return NewValidationError("amount %q is not a valid decimal: %v", s, err)
	}
	if d.IsZero() {
		return NewValidationError("amount must be greater than zero")
	}
	return nil
}

// ValidateAmountPresent is the loose check used by can-afford: the server
// performs the authoritative parse, the client only rejects an empty query.
func ValidateAmountPresent(s string) error {
	if strings.TrimSpace(s) == "" {
		return NewValidationError("amount is required")
	}
	return nil
}

// ValidateRecipient checks the transfer destination.
func ValidateRecipient(to string) error {
	if to == "" {
		return NewValidationError("recipient is required")
	}
	return nil
}

// ValidateReserveTimeout checks the hold expiry against the server's accepted
// range of 1 second to 24 hours.
func ValidateReserveTimeout(d time.Duration) error {
	if d < time.Second || d > 24*time.Hour {
		return NewValidationError("reserve timeout %s outside 1s-24h range", d)
	}
	return nil
}

// ValidateBatch checks a transfer batch: non-empty, within MaxBatchSize, and
// every item individually valid. The size gate runs first so oversized
// batches fail before any per-item work.
func ValidateBatch(items []BatchItem) error {
	if len(items) == 0 {
		return NewValidationError("batch is empty")
	}
	if len(items) > MaxBatchSize {
		return NewValidationError("batch size %d exceeds limit of %d", len(items), MaxBatchSize)
	}
	for i, item := range items {
		if err := ValidateRecipient(item.To); err != nil {
			return NewValidationError("batch item %d: %s", i, err.(*Error).Message)
		}
		if err := ValidateAmount(item.Amount); err != nil {
			return NewValidationError("batch item %d: %s", i, err.(*Error).Message)
		}
	}
	return nil
}
