// Package model defines the core domain types shared across the portfolio engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the side of a trade.
type TxType string

const (
	Buy  TxType = "BUY"
	Sell TxType = "SELL"
)

// Holding is one open position. A holding with zero quantity does not
// exist: it is removed from the ledger, never stored as zero.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avgPrice"` // quantity-weighted cost basis
}

// Transaction is an immutable record of a trade execution.
// Once created, these are never modified or deleted.
type Transaction struct {
	Symbol    string          `json:"symbol"`
	Type      TxType          `json:"type"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Total is quantity * price.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Snapshot is the full ledger state and also its persisted layout:
// {cash: decimal|null, holdings: [...], transactions: [...]}.
// Cash.Valid is false until the portfolio has been initialized.
type Snapshot struct {
	Cash         decimal.NullDecimal `json:"cash"`
	Holdings     []Holding           `json:"holdings"`
	Transactions []Transaction       `json:"transactions"`
}

// Initialized reports whether starting cash has been set.
func (s Snapshot) Initialized() bool {
	return s.Cash.Valid
}

// Holding returns the open position for symbol, if any.
func (s Snapshot) Holding(symbol string) (Holding, bool) {
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// Clone returns a deep copy so callers never alias ledger internals.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Cash:         s.Cash,
		Holdings:     make([]Holding, len(s.Holdings)),
		Transactions: make([]Transaction, len(s.Transactions)),
	}
	copy(out.Holdings, s.Holdings)
	copy(out.Transactions, s.Transactions)
	return out
}

// Quote is a price supplied by the market-data collaborator.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"changesPercentage"`
}

// Position is a holding marked to market.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	CostBasis     decimal.Decimal `json:"costBasis"`     // avgPrice * quantity
	MarketValue   decimal.Decimal `json:"marketValue"`   // currentPrice * quantity
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"` // marketValue - costBasis
	Quoted        bool            `json:"quoted"`
}

// Valuation aggregates all positions with cash and P&L totals.
type Valuation struct {
	Cash          decimal.Decimal `json:"cash"`
	Positions     []Position      `json:"positions"`
	HoldingsValue decimal.Decimal `json:"holdingsValue"`
	TotalValue    decimal.Decimal `json:"totalValue"` // cash + holdingsValue
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
}

// CashPoint is the running cash balance after a trade.
type CashPoint struct {
	Label     string          `json:"label"`
	Cash      decimal.Decimal `json:"cash"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}
