// Package ledger holds the canonical in-memory portfolio snapshot and the
// result vocabulary shared by the trade and cash engines.
//
// State does no validation: it is a passive container. Every mutation is
// computed elsewhere and swapped in through Replace.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// State is the ledger aggregate root. Reads return deep copies.
type State struct {
	mu   sync.RWMutex
	snap model.Snapshot
}

// NewState creates an empty ledger with uninitialized cash.
func NewState() *State {
	return &State{snap: model.Snapshot{
		Holdings:     []model.Holding{},
		Transactions: []model.Transaction{},
	}}
}

// Initialize sets the starting cash and clears holdings and transactions,
// but only while cash is still uninitialized. Once cash has been set it is
// a silent no-op. Reports whether the call took effect.
func (s *State) Initialize(initialCash decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Cash.Valid {
		return false
	}
	s.snap = model.Snapshot{
		Cash:         decimal.NewNullDecimal(initialCash),
		Holdings:     []model.Holding{},
		Transactions: []model.Transaction{},
	}
	return true
}

// Read returns a copy of the current snapshot.
func (s *State) Read() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Replace atomically swaps in a new snapshot.
func (s *State) Replace(next model.Snapshot) {
	next = next.Clone()
	if next.Holdings == nil {
		next.Holdings = []model.Holding{}
	}
	if next.Transactions == nil {
		next.Transactions = []model.Transaction{}
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
}
