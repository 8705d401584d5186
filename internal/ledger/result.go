package ledger

import (
	"encoding/json"
	"errors"
)

// Rejection reasons. Every one is a recoverable, caller-visible outcome
// carried inside a Result; none of them is returned as a Go error.
var (
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrNoSuchHolding      = errors.New("no_such_holding")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidSymbol      = errors.New("invalid_symbol")
	ErrNotInitialized     = errors.New("not_initialized")
	ErrPositionLimit      = errors.New("position_limit_exceeded")
)

// Result is the outcome of an engine operation. Callers branch on Success;
// Message is suitable for direct display.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  error  `json:"-"`
}

// Accept builds a successful result.
func Accept(message string) Result {
	return Result{Success: true, Message: message}
}

// Reject builds a failed result carrying one of the rejection reasons.
func Reject(reason error, message string) Result {
	return Result{Success: false, Message: message, Reason: reason}
}

// Code returns the machine-readable reason, or "" on success.
func (r Result) Code() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Error()
}

// MarshalJSON renders {success, message, reason}; reason is omitted on success.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Reason  string `json:"reason,omitempty"`
	}{r.Success, r.Message, r.Code()})
}
