package pay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Stable error codes carried by every *Error. Callers branch on these rather
// than on the human-readable message.
const (
	CodeValidation          = "validation_error"
	CodeAuthentication      = "authentication_error"
	CodeInsufficientCredits = "insufficient_credits"
	CodeBudgetExceeded      = "budget_exceeded"
	CodeWalletNotFound      = "wallet_not_found"
	CodeReservation         = "reservation_error"
	CodeRateLimit           = "rate_limit_error"
	CodeAPI                 = "api_error"
	CodeTimeout             = "timeout_error"
	CodeAbort               = "abort_error"
	CodeNetwork             = "network_error"
	CodeCircuitOpen         = "circuit_open"
)

// Error is the single error type returned by the client. Status is the HTTP
// status that produced it, or 0 for failures that never reached the server
// (validation, timeout, abort, network, circuit open).
type Error struct {
	Status  int
	Code    string
	Message string

	// RetryAfter is the server-requested wait in seconds. Only set for
	// rate-limit errors that carried a Retry-After header.
	RetryAfter int

	cause error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("pay: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("pay: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewValidationError builds a client-side validation failure. Status 0 marks
// it as never sent.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewTimeoutError reports that the per-call deadline elapsed.
func NewTimeoutError(cause error) *Error {
	return &Error{Code: CodeTimeout, Message: "request timed out", cause: cause}
}

// NewAbortError reports that the caller cancelled the call.
func NewAbortError(cause error) *Error {
	return &Error{Code: CodeAbort, Message: "request aborted", cause: cause}
}

// NewNetworkError wraps a transport-level failure (DNS, connect, TLS, ...).
func NewNetworkError(cause error) *Error {
	return &Error{Code: CodeNetwork, Message: "network request failed", cause: cause}
}

// ErrCircuitOpen is returned when the circuit breaker rejects a call without
// attempting the transport.
var ErrCircuitOpen = &Error{Code: CodeCircuitOpen, Message: "circuit breaker open"}

// errorBody is the optional envelope servers attach to error responses.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// FromStatus maps a non-2xx HTTP response to a typed error. The body, when it
// carries an error envelope, supplies the message; retryAfter is the raw
// Retry-After header value and is only honored on 429.
func FromStatus(status int, body []byte, retryAfter string) *Error {
	msg := http.StatusText(status)
	if len(body) > 0 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
	}

	e := &Error{Status: status, Message: msg}
	switch status {
	case http.StatusUnauthorized:
		e.Code = CodeAuthentication
	case http.StatusPaymentRequired:
		e.Code = CodeInsufficientCredits
	case http.StatusForbidden:
		e.Code = CodeBudgetExceeded
	case http.StatusNotFound:
		e.Code = CodeWalletNotFound
	case http.StatusConflict:
		e.Code = CodeReservation
	case http.StatusTooManyRequests:
		e.Code = CodeRateLimit
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			e.RetryAfter = secs
		}
	default:
		e.Code = CodeAPI
	}
	return e
}

// Retryable reports whether a status code is worth retrying. Anything outside
// this set fails identically on every attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// hasCode reports whether err is a *Error with the given code.
func hasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsValidation checks for client-side validation failures.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsInsufficientCredits checks for a 402 balance-too-low rejection.
func IsInsufficientCredits(err error) bool { return hasCode(err, CodeInsufficientCredits) }

// IsReservationConflict checks for a 409 reservation-state conflict.
func IsReservationConflict(err error) bool { return hasCode(err, CodeReservation) }

// IsRateLimit checks for a 429 rejection.
func IsRateLimit(err error) bool { return hasCode(err, CodeRateLimit) }

// IsTimeout checks whether the per-call deadline elapsed.
func IsTimeout(err error) bool { return hasCode(err, CodeTimeout) }

// IsAbort checks whether the caller cancelled the call.
func IsAbort(err error) bool { return hasCode(err, CodeAbort) }

// IsCircuitOpen checks whether the circuit breaker rejected the call.
func IsCircuitOpen(err error) bool { return hasCode(err, CodeCircuitOpen) }

// Classify returns the stable code for an error, for use as a metrics label.
func Classify(err error) string {
	if err == nil {
		return "none"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "other"
}
