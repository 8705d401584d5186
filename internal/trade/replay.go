package trade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// position is the running state of one symbol during a replay.
type position struct {
	qty int64
	avg decimal.Decimal
}

// Replay rebuilds open holdings from a transaction history, applying the
// same average-cost rules as Buy and Sell. It fails if the history sells
// more shares than were held at that point.
func Replay(txs []model.Transaction) ([]model.Holding, error) {
	book, order, _, err := replay(txs)
	if err != nil {
		return nil, err
	}

	holdings := make([]model.Holding, 0, len(order))
	for _, sym := range order {
		if p, ok := book[sym]; ok {
			holdings = append(holdings, model.Holding{Symbol: sym, Quantity: p.qty, AvgPrice: p.avg})
		}
	}
	return holdings, nil
}

// RealizedPnL sums (salePrice - avgPrice) * qty over every sale in the
// history, using the cost basis in force at the time of each sale.
func RealizedPnL(txs []model.Transaction) (decimal.Decimal, error) {
	_, _, realized, err := replay(txs)
	return realized, err
}

func replay(txs []model.Transaction) (map[string]position, []string, decimal.Decimal, error) {
	book := make(map[string]position)
	var order []string
	realized := decimal.Zero

	for i, tx := range txs {
		qty := decimal.NewFromInt(tx.Quantity)
		p, held := book[tx.Symbol]

		switch tx.Type {
		case model.Buy:
			if !held {
				order = appendUnique(order, tx.Symbol)
				book[tx.Symbol] = position{qty: tx.Quantity, avg: tx.Price}
				continue
			}
			newQty := p.qty + tx.Quantity
			p.avg = p.avg.Mul(decimal.NewFromInt(p.qty)).Add(tx.Total()).Div(decimal.NewFromInt(newQty))
			p.qty = newQty
			book[tx.Symbol] = p

		case model.Sell:
			if !held || p.qty < tx.Quantity {
				return nil, nil, decimal.Zero, fmt.Errorf("transaction %d: sell of %d %s exceeds held quantity", i, tx.Quantity, tx.Symbol)
			}
			realized = realized.Add(tx.Price.Sub(p.avg).Mul(qty))
			p.qty -= tx.Quantity
			if p.qty == 0 {
				delete(book, tx.Symbol)
				order = remove(order, tx.Symbol)
			} else {
				book[tx.Symbol] = p
			}

		default:
			return nil, nil, decimal.Zero, fmt.Errorf("transaction %d: unknown type %q", i, tx.Type)
		}
	}
	return book, order, realized, nil
}

func appendUnique(order []string, sym string) []string {
	for _, s := range order {
		if s == sym {
			return order
		}
	}
	return append(order, sym)
}

func remove(order []string, sym string) []string {
	out := order[:0]
	for _, s := range order {
		if s != sym {
			out = append(out, s)
		}
	}
	return out
}
