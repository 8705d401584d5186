// Package trade is the trade engine: pure reducers that validate BUY and
// SELL orders against a ledger snapshot and compute the next snapshot
// with weighted-average cost accounting.
//
// Reducers never mutate their input. On rejection the input snapshot is
// returned as-is together with a failed ledger.Result.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/symbol"
)

// Order is a request to trade quantity shares of Symbol at Price.
type Order struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	At       time.Time
}

// Engine applies orders. The zero value has no position limits.
type Engine struct {
	Limiter *Limiter // optional
}

// Buy applies o with a zero-value Engine.
func Buy(s model.Snapshot, o Order) (model.Snapshot, ledger.Result) {
	return Engine{}.Buy(s, o)
}

// Sell applies o with a zero-value Engine.
func Sell(s model.Snapshot, o Order) (model.Snapshot, ledger.Result) {
	return Engine{}.Sell(s, o)
}

// Buy deducts quantity*price from cash and adds the shares to the holding
// for the symbol, re-averaging its cost basis.
func (e Engine) Buy(s model.Snapshot, o Order) (model.Snapshot, ledger.Result) {
	sym, res, ok := validate(s, o)
	if !ok {
		return s, res
	}

	qty := decimal.NewFromInt(o.Quantity)
	totalCost := o.Price.Mul(qty)
	if s.Cash.Decimal.LessThan(totalCost) {
		return s, ledger.Reject(ledger.ErrInsufficientFunds, "Not enough cash to complete purchase.")
	}

	if e.Limiter != nil {
		if err := e.Limiter.CheckLimit(sym, o.Quantity, totalCost, s.Holdings); err != nil {
			return s, ledger.Reject(ledger.ErrPositionLimit,
				fmt.Sprintf("Buying %d shares of %s would exceed your position limits.", o.Quantity, sym))
		}
	}

	next := s.Clone()
	idx := indexOf(next.Holdings, sym)
	if idx >= 0 {
		h := next.Holdings[idx]
		newQty := h.Quantity + o.Quantity
		// newAvg = (avg * q + totalCost) / (q + qty)
		h.AvgPrice = h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity)).
			Add(totalCost).
			Div(decimal.NewFromInt(newQty))
		h.Quantity = newQty
		next.Holdings[idx] = h
	} else {
		next.Holdings = append(next.Holdings, model.Holding{
			Symbol:   sym,
			Quantity: o.Quantity,
			AvgPrice: o.Price,
		})
	}

	next.Cash = decimal.NewNullDecimal(s.Cash.Decimal.Sub(totalCost))
	next.Transactions = append(next.Transactions, record(sym, model.Buy, o))

	return next, ledger.Accept(fmt.Sprintf("Successfully purchased %d shares of %s.", o.Quantity, sym))
}

// Sell removes shares from an existing holding and credits the proceeds.
// The cost basis of the remaining shares is unchanged; a holding sold down
// to zero is removed.
func (e Engine) Sell(s model.Snapshot, o Order) (model.Snapshot, ledger.Result) {
	sym, res, ok := validate(s, o)
	if !ok {
		return s, res
	}

	idx := indexOf(s.Holdings, sym)
	if idx < 0 {
		return s, ledger.Reject(ledger.ErrNoSuchHolding, fmt.Sprintf("You do not own %s.", sym))
	}
	owned := s.Holdings[idx].Quantity
	if owned < o.Quantity {
		return s, ledger.Reject(ledger.ErrInsufficientShares,
			fmt.Sprintf("You only own %d shares of %s.", owned, sym))
	}

	proceeds := o.Price.Mul(decimal.NewFromInt(o.Quantity))

	next := s.Clone()
	if remaining := owned - o.Quantity; remaining == 0 {
		next.Holdings = append(next.Holdings[:idx:idx], next.Holdings[idx+1:]...)
	} else {
		next.Holdings[idx].Quantity = remaining
	}

	next.Cash = decimal.NewNullDecimal(s.Cash.Decimal.Add(proceeds))
	next.Transactions = append(next.Transactions, record(sym, model.Sell, o))

	return next, ledger.Accept(fmt.Sprintf("Successfully sold %d shares of %s.", o.Quantity, sym))
}

// validate checks the parts of an order common to both sides and returns
// the canonical symbol.
func validate(s model.Snapshot, o Order) (string, ledger.Result, bool) {
	sym, err := symbol.Normalize(o.Symbol)
	if err != nil {
		return "", ledger.Reject(ledger.ErrInvalidSymbol, fmt.Sprintf("%q is not a valid symbol.", o.Symbol)), false
	}
	if o.Quantity <= 0 {
		return "", ledger.Reject(ledger.ErrInvalidQuantity, "Quantity must be a positive whole number of shares."), false
	}
	if o.Price.IsNegative() {
		return "", ledger.Reject(ledger.ErrInvalidPrice, "Price cannot be negative."), false
	}
	if !s.Initialized() {
		return "", ledger.Reject(ledger.ErrNotInitialized, "Portfolio has not been initialized."), false
	}
	return sym, ledger.Result{}, true
}

func indexOf(holdings []model.Holding, sym string) int {
	for i, h := range holdings {
		if h.Symbol == sym {
			return i
		}
	}
	return -1
}

func record(sym string, side model.TxType, o Order) model.Transaction {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	return model.Transaction{
		Symbol:    sym,
		Type:      side,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Timestamp: at.UTC(),
	}
}
