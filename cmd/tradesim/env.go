package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/gateway"
	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
	"github.com/tradesim/portfolio-engine/internal/quote"
	"github.com/tradesim/portfolio-engine/internal/store"
)

// defaultCash is the starting balance of a new portfolio.
var defaultCash = decimal.NewFromInt(10000000)

var globals struct {
	dataFile   string
	key        string
	quotesFile string
	currency   string
}

// openService hydrates the ledger from the data file and returns a ready
// service over it. initialCash is the baseline for cash history.
func openService(ctx context.Context, initialCash decimal.Decimal) (*portfolio.Service, error) {
	state := ledger.NewState()
	gw := gateway.New(store.NewFileStore(globals.dataFile, globals.key), state)
	if err := gw.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", globals.dataFile, err)
	}

	opts := portfolio.Options{InitialCash: initialCash}
	if globals.quotesFile != "" {
		opts.Quotes = quote.NewFileProvider(globals.quotesFile)
	}
	return portfolio.NewService(state, gw, opts), nil
}
