package trade

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

var (
	// ErrPerSymbolLimitExceeded is returned when a buy would push a single
	// holding beyond the per-symbol share cap.
	ErrPerSymbolLimitExceeded = errors.New("trade: per-symbol position limit exceeded")

	// ErrExposureLimitExceeded is returned when a buy would push the total
	// cost basis across all holdings beyond the exposure cap.
	ErrExposureLimitExceeded = errors.New("trade: total exposure limit exceeded")
)

// Limiter enforces optional position caps on buys. A zero limit disables
// that check.
type Limiter struct {
	// MaxPerSymbol is the maximum share count held in any single symbol.
	MaxPerSymbol int64

	// MaxExposure is the maximum aggregate cost basis (Σ avgPrice * qty)
	// across all holdings.
	MaxExposure decimal.Decimal
}

// NewLimiter creates a limiter. Negative limits are treated as disabled.
func NewLimiter(maxPerSymbol int64, maxExposure decimal.Decimal) *Limiter {
	if maxPerSymbol < 0 {
		maxPerSymbol = 0
	}
	if maxExposure.IsNegative() {
		maxExposure = decimal.Zero
	}
	return &Limiter{MaxPerSymbol: maxPerSymbol, MaxExposure: maxExposure}
}

// CheckLimit validates whether buying qty shares of sym for cost respects
// the caps given the current holdings.
func (l *Limiter) CheckLimit(sym string, qty int64, cost decimal.Decimal, holdings []model.Holding) error {
	// 1. Per-symbol cap.
	if l.MaxPerSymbol > 0 {
		current := int64(0)
		for _, h := range holdings {
			if h.Symbol == sym {
				current = h.Quantity
				break
			}
		}
		if current+qty > l.MaxPerSymbol {
			return ErrPerSymbolLimitExceeded
		}
	}

	// 2. Aggregate exposure at cost.
	if l.MaxExposure.IsPositive() {
		total := cost
		for _, h := range holdings {
			total = total.Add(h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity)))
		}
		if total.GreaterThan(l.MaxExposure) {
			return ErrExposureLimitExceeded
		}
	}

	return nil
}
