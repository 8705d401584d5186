package quote

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// StaticProvider serves prices from an in-memory table.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
}

// NewStaticProvider creates a provider seeded with quotes.
func NewStaticProvider(quotes ...model.Quote) *StaticProvider {
	p := &StaticProvider{quotes: make(map[string]model.Quote, len(quotes))}
	for _, q := range quotes {
		p.Put(q)
	}
	return p
}

// Set stores a bare price for symbol.
func (p *StaticProvider) Set(symbol string, price decimal.Decimal) {
	p.Put(model.Quote{Symbol: symbol, Price: price})
}

// Put stores a quote, replacing any previous quote for the same symbol.
func (p *StaticProvider) Put(q model.Quote) {
	q.Symbol = normalize(q.Symbol)
	p.mu.Lock()
	p.quotes[q.Symbol] = q
	p.mu.Unlock()
}

func (p *StaticProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quotes[normalize(symbol)]
	if !ok {
		return nil, ErrNoQuote
	}
	return &q, nil
}

func (p *StaticProvider) All(_ context.Context) ([]model.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Quote, 0, len(p.quotes))
	for _, q := range p.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
