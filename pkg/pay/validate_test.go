package pay

import (
	"testing"
	"time"
)

func TestValidateAmount_Valid(t *testing.T) {
	valid := []string{
		"1",
		"0.5",
		"10.50",
		"0.000001",
		"123456789",
		"1.234567",
		"999999.999999",
	}

	for _, amount := range valid {
		if err := ValidateAmount(amount); err != nil {
			t.Errorf("ValidateAmount(%q) = %v, want nil", amount, err)
		}
	}
}

func TestValidateAmount_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"0",
		"0.0",
		"0.000000",
		"-1",
		"+1",
		"1.2345678",
		"1e5",
		"1.5e2",
		"10,50",
		"abc",
		"1.",
		".5",
		" 1",
	}

	for _, amount := range invalid {
		err := ValidateAmount(amount)
		if err == nil {
			t.Errorf("ValidateAmount(%q) = nil, want validation error", amount)
			continue
		}
		if !IsValidation(err) {
			t.Errorf("ValidateAmount(%q) error code = %q, want %q", amount, Classify(err), CodeValidation)
		}
	}
}

func TestValidateAmount_NeverSentStatus(t *testing.T) {
	err := ValidateAmount("-1")
	payErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if payErr.Status != 0 {
		t.Errorf("validation error status = %d, want 0", payErr.Status)
	}
}

func TestValidateAmountPresent(t *testing.T) {
	if err := ValidateAmountPresent("anything"); err != nil {
		t.Errorf("ValidateAmountPresent(\"anything\") = %v, want nil", err)
	}
	// Loose by design: the server performs the authoritative parse
	if err := ValidateAmountPresent("-1"); err != nil {
		t.Errorf("ValidateAmountPresent(\"-1\") = %v, want nil", err)
	}
	if err := ValidateAmountPresent(""); err == nil {
		t.Error("ValidateAmountPresent(\"\") = nil, want validation error")
	}
	if err := ValidateAmountPresent("   "); err == nil {
		t.Error("ValidateAmountPresent(blank) = nil, want validation error")
	}
}

func TestValidateRecipient(t *testing.T) {
	if err := ValidateRecipient("agent-42"); err != nil {
		t.Errorf("ValidateRecipient(\"agent-42\") = %v, want nil", err)
	}
	if err := ValidateRecipient(""); err == nil {
		t.Error("ValidateRecipient(\"\") = nil, want validation error")
	}
}

func TestValidateReserveTimeout(t *testing.T) {
	cases := []struct {
		d  time.Duration
		ok bool
	}{
		{time.Second, true},
		{5 * time.Minute, true},
		{24 * time.Hour, true},
		{500 * time.Millisecond, false},
		{0, false},
		{25 * time.Hour, false},
	}

	for _, tc := range cases {
		err := ValidateReserveTimeout(tc.d)
		if tc.ok && err != nil {
			t.Errorf("ValidateReserveTimeout(%s) = %v, want nil", tc.d, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateReserveTimeout(%s) = nil, want validation error", tc.d)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	if err := ValidateBatch(nil); err == nil {
		t.Error("empty batch accepted")
	}

	oversized := make([]BatchItem, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = BatchItem{To: "agent", Amount: "1"}
	}
	if err := ValidateBatch(oversized); err == nil {
		t.Errorf("batch of %d accepted, want rejection", MaxBatchSize+1)
	}

	atLimit := oversized[:MaxBatchSize]
	if err := ValidateBatch(atLimit); err != nil {
		t.Errorf("batch of exactly %d rejected: %v", MaxBatchSize, err)
	}

	if err := ValidateBatch([]BatchItem{{To: "", Amount: "1"}}); err == nil {
		t.Error("batch with empty recipient accepted")
	}
	if err := ValidateBatch([]BatchItem{{To: "agent", Amount: "0"}}); err == nil {
		t.Error("batch with zero amount accepted")
	}
}
