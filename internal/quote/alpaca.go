package quote

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v2/marketdata"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

const alpacaDataURL = "https://data.alpaca.markets"

// latestQuoter is the slice of marketdata.Client the provider uses.
type latestQuoter interface {
	GetLatestQuote(symbol string) (*marketdata.Quote, error)
}

// AlpacaProvider prices US tickers from Alpaca's market data API. The
// ask price is used, falling back to the bid when no ask is posted.
type AlpacaProvider struct {
	client latestQuoter
}

// NewAlpacaProvider creates a provider using the given API credentials.
func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		ApiKey:    apiKey,
		ApiSecret: apiSecret,
		BaseURL:   alpacaDataURL,
	})
	return &AlpacaProvider{client: client}
}

func (p *AlpacaProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = normalize(symbol)
	q, err := p.client.GetLatestQuote(symbol)
	if err != nil {
		return nil, fmt.Errorf("latest quote for %s: %w", symbol, err)
	}
	if q == nil {
		return nil, ErrNoQuote
	}

	price := q.AskPrice
	if price <= 0 {
		price = q.BidPrice
	}
	if price <= 0 {
		return nil, ErrNoQuote
	}

	return &model.Quote{
		Symbol: symbol,
		Name:   symbol,
		Price:  decimal.NewFromFloat(price).Round(4),
	}, nil
}
