// Package quote supplies market prices to the portfolio engine. Prices are
// opaque trusted decimals: the engine never checks staleness or bounds.
package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// ErrNoQuote is returned when a provider has no price for a symbol.
var ErrNoQuote = errors.New("quote: no quote for symbol")

// Provider looks up the latest price of a symbol.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
}

// Lister is implemented by providers that can enumerate every quote they
// know about.
type Lister interface {
	All(ctx context.Context) ([]model.Quote, error)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
