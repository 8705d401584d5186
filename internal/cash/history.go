package cash

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// History returns the running cash balance starting from initialCash and
// moving by each trade in timestamp order. Deposits and withdrawals are
// not part of the transaction history and do not appear here.
func History(initialCash decimal.Decimal, txs []model.Transaction) []model.CashPoint {
	sorted := make([]model.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := make([]model.CashPoint, 0, len(sorted)+1)
	points = append(points, model.CashPoint{Label: "Start", Cash: initialCash})

	running := initialCash
	for i, tx := range sorted {
		if tx.Type == model.Buy {
			running = running.Sub(tx.Total())
		} else {
			running = running.Add(tx.Total())
		}
		points = append(points, model.CashPoint{
			Label:     fmt.Sprintf("Trade #%d", i+1),
			Cash:      running,
			Timestamp: tx.Timestamp,
		})
	}
	return points
}
