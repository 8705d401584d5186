package portfolio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/quote"
	"github.com/tradesim/portfolio-engine/internal/trade"
)

// ErrNoQuoteProvider is returned when a price lookup is requested from a
// service configured without quotes.
var ErrNoQuoteProvider = errors.New("portfolio: no quote provider configured")

// Quote looks up the latest price for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	if s.quotes == nil {
		return nil, ErrNoQuoteProvider
	}
	return s.quotes.Quote(ctx, symbol)
}

// Quotes lists every quote the provider knows, when it can enumerate them.
func (s *Service) Quotes(ctx context.Context) ([]model.Quote, error) {
	lister, ok := s.quotes.(quote.Lister)
	if !ok {
		return nil, ErrNoQuoteProvider
	}
	return lister.All(ctx)
}

// Valuation marks every holding to market. A holding without a quote is
// priced at zero and flagged Quoted=false, so its whole cost basis shows
// as unrealized loss.
func (s *Service) Valuation(ctx context.Context) (model.Valuation, error) {
	snap := s.state.Read()

	realized, err := trade.RealizedPnL(snap.Transactions)
	if err != nil {
		return model.Valuation{}, err
	}

	v := model.Valuation{
		Cash:          snap.Cash.Decimal,
		Positions:     make([]model.Position, 0, len(snap.Holdings)),
		HoldingsValue: decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   realized,
	}

	for _, h := range snap.Holdings {
		qty := decimal.NewFromInt(h.Quantity)
		p := model.Position{
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			AvgPrice:     h.AvgPrice,
			CurrentPrice: decimal.Zero,
			CostBasis:    h.AvgPrice.Mul(qty),
		}

		if q, err := s.lookup(ctx, h.Symbol); err == nil {
			p.CurrentPrice = q.Price
			p.Quoted = true
		}

		p.MarketValue = p.CurrentPrice.Mul(qty)
		p.UnrealizedPnL = p.CurrentPrice.Sub(h.AvgPrice).Mul(qty)

		v.HoldingsValue = v.HoldingsValue.Add(p.MarketValue)
		v.UnrealizedPnL = v.UnrealizedPnL.Add(p.UnrealizedPnL)
		v.Positions = append(v.Positions, p)
	}

	v.TotalValue = v.Cash.Add(v.HoldingsValue)
	return v, nil
}

func (s *Service) lookup(ctx context.Context, symbol string) (*model.Quote, error) {
	q, err := s.Quote(ctx, symbol)
	if err != nil && !errors.Is(err, quote.ErrNoQuote) && !errors.Is(err, ErrNoQuoteProvider) {
		slog.Warn("quote lookup failed, valuing holding at zero", "symbol", symbol, "err", err)
	}
	return q, err
}
