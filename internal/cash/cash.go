// Package cash is the cash engine: deposits and withdrawals applied to a
// ledger snapshot independently of trading. Neither operation records a
// transaction; cash management is not a trade event.
package cash

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
)

// AddCash credits amount to the cash balance.
func AddCash(s model.Snapshot, amount decimal.Decimal) (model.Snapshot, ledger.Result) {
	if res, ok := validate(s, amount); !ok {
		return s, res
	}

	next := s.Clone()
	next.Cash = decimal.NewNullDecimal(s.Cash.Decimal.Add(amount))
	return next, ledger.Accept(fmt.Sprintf("Successfully added %s to your cash balance.", amount.StringFixed(2)))
}

// WithdrawCash debits amount from the cash balance. Withdrawing the whole
// balance is allowed and leaves cash at exactly zero.
func WithdrawCash(s model.Snapshot, amount decimal.Decimal) (model.Snapshot, ledger.Result) {
	if res, ok := validate(s, amount); !ok {
		return s, res
	}
	if s.Cash.Decimal.LessThan(amount) {
		return s, ledger.Reject(ledger.ErrInsufficientFunds,
			fmt.Sprintf("Insufficient cash: you only have %s available.", s.Cash.Decimal.StringFixed(2)))
	}

	next := s.Clone()
	next.Cash = decimal.NewNullDecimal(s.Cash.Decimal.Sub(amount))
	return next, ledger.Accept(fmt.Sprintf("Successfully withdrew %s from your cash balance.", amount.StringFixed(2)))
}

func validate(s model.Snapshot, amount decimal.Decimal) (ledger.Result, bool) {
	if !amount.IsPositive() {
		return ledger.Reject(ledger.ErrInvalidAmount, "Please enter a valid, positive amount."), false
	}
	if !s.Initialized() {
		return ledger.Reject(ledger.ErrNotInitialized, "Portfolio has not been initialized."), false
	}
	return ledger.Result{}, true
}
