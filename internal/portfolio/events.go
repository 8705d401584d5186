package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// EventType names a ledger change.
type EventType string

const (
	EventInitialized   EventType = "portfolio_initialized"
	EventTradeExecuted EventType = "trade_executed"
	EventCashDeposited EventType = "cash_deposited"
	EventCashWithdrawn EventType = "cash_withdrawn"
)

// Event describes one successful mutation. Fields that do not apply to
// the event type are left zero.
type Event struct {
	ID       string          `json:"id"`
	Type     EventType       `json:"type"`
	Symbol   string          `json:"symbol,omitempty"`
	Side     model.TxType    `json:"side,omitempty"`
	Quantity int64           `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Cash     decimal.Decimal `json:"cash"`
	Message  string          `json:"message,omitempty"`
	At       time.Time       `json:"at"`
}

// Listener is called synchronously after each successful mutation, with
// the ledger lock held, so events arrive in ledger order. It must not
// block or call back into the service.
type Listener func(Event)

// Subscribe registers l for every future event.
func (s *Service) Subscribe(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Service) emit(e Event) {
	e.ID = uuid.New().String()
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}

	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
