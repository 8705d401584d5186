// Package portfolio is the operation surface of the engine. It composes
// the ledger state, the trade and cash reducers, and the persistence
// gateway, and serializes every mutation behind a single mutex:
// read, reduce, save, then replace.
//
// All monetary values use shopspring/decimal, never float64.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/cash"
	"github.com/tradesim/portfolio-engine/internal/gateway"
	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/metrics"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/quote"
	"github.com/tradesim/portfolio-engine/internal/trade"
)

// ErrNotReady is returned by mutating operations before the ledger has
// been hydrated from storage.
var ErrNotReady = errors.New("portfolio: ledger not ready")

// Journal receives every executed transaction. It is an audit trail only;
// the persisted snapshot stays the source of truth.
type Journal interface {
	Append(txs ...model.Transaction) error
}

// Options configures a Service. Zero values are valid: no position limits,
// no quotes, no journal.
type Options struct {
	InitialCash decimal.Decimal // baseline for CashHistory
	Limiter     *trade.Limiter
	Quotes      quote.Provider
	Journal     Journal
	Now         func() time.Time
}

// Service executes portfolio operations against one ledger.
type Service struct {
	state       *ledger.State
	gw          *gateway.Gateway
	engine      trade.Engine
	quotes      quote.Provider
	journal     Journal
	initialCash decimal.Decimal
	now         func() time.Time

	mu sync.Mutex // serializes read-reduce-save-replace

	lmu       sync.RWMutex
	listeners []Listener
}

// NewService creates a service over state, persisted through gw.
func NewService(state *ledger.State, gw *gateway.Gateway, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		state:       state,
		gw:          gw,
		engine:      trade.Engine{Limiter: opts.Limiter},
		quotes:      opts.Quotes,
		journal:     opts.Journal,
		initialCash: opts.InitialCash,
		now:         now,
	}
}

// Ready reports whether the ledger has been hydrated.
func (s *Service) Ready() bool {
	return s.gw.Ready()
}

// Initialize sets the starting cash if, and only if, cash has never been
// set. On an already-initialized ledger it is a successful no-op, so it
// is safe to call on every startup once hydration has completed.
func (s *Service) Initialize(ctx context.Context, amount decimal.Decimal) (ledger.Result, error) {
	if !s.gw.Ready() {
		return ledger.Result{}, ErrNotReady
	}
	if amount.IsNegative() {
		metrics.RejectionsTotal.WithLabelValues("initialize", ledger.ErrInvalidAmount.Error()).Inc()
		return ledger.Reject(ledger.ErrInvalidAmount, "Please enter a valid, positive amount."), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Read()
	if cur.Initialized() {
		slog.Debug("initialize skipped, ledger already initialized", "cash", cur.Cash.Decimal.String())
		return ledger.Accept("Portfolio already initialized."), nil
	}

	next := model.Snapshot{
		Cash:         decimal.NewNullDecimal(amount),
		Holdings:     []model.Holding{},
		Transactions: []model.Transaction{},
	}
	if err := s.save(ctx, "initialize", next); err != nil {
		return ledger.Result{}, err
	}
	s.state.Initialize(amount)
	s.observe(next)

	slog.Info("portfolio initialized", "cash", amount.String())
	s.emit(Event{Type: EventInitialized, Amount: amount, Cash: amount})
	return ledger.Accept(fmt.Sprintf("Portfolio initialized with %s.", amount.StringFixed(2))), nil
}

// Buy purchases quantity shares of symbol at price.
func (s *Service) Buy(ctx context.Context, symbol string, quantity int64, price decimal.Decimal) (ledger.Result, error) {
	return s.execute(ctx, model.Buy, func(cur model.Snapshot, now time.Time) (model.Snapshot, ledger.Result) {
		return s.engine.Buy(cur, trade.Order{Symbol: symbol, Quantity: quantity, Price: price, At: now})
	})
}

// Sell sells quantity shares of symbol at price.
func (s *Service) Sell(ctx context.Context, symbol string, quantity int64, price decimal.Decimal) (ledger.Result, error) {
	return s.execute(ctx, model.Sell, func(cur model.Snapshot, now time.Time) (model.Snapshot, ledger.Result) {
		return s.engine.Sell(cur, trade.Order{Symbol: symbol, Quantity: quantity, Price: price, At: now})
	})
}

func (s *Service) execute(ctx context.Context, side model.TxType, reduce reducer) (ledger.Result, error) {
	op := "buy"
	if side == model.Sell {
		op = "sell"
	}

	return s.apply(ctx, op, reduce, func(next model.Snapshot, res ledger.Result) {
		tx := next.Transactions[len(next.Transactions)-1]
		metrics.TradesTotal.WithLabelValues(string(side)).Inc()
		metrics.TradeVolume.WithLabelValues(tx.Symbol, string(side)).Add(float64(tx.Quantity))

		if s.journal != nil {
			if err := s.journal.Append(tx); err != nil {
				slog.Warn("journal append failed", "symbol", tx.Symbol, "err", err)
			}
		}

		slog.Info("trade executed",
			"side", string(side),
			"symbol", tx.Symbol,
			"qty", tx.Quantity,
			"price", tx.Price.String(),
			"total", tx.Total().String(),
			"cash", next.Cash.Decimal.String(),
		)

		s.emit(Event{
			Type:     EventTradeExecuted,
			Symbol:   tx.Symbol,
			Side:     tx.Type,
			Quantity: tx.Quantity,
			Price:    tx.Price,
			Amount:   tx.Total(),
			Cash:     next.Cash.Decimal,
			Message:  res.Message,
			At:       tx.Timestamp,
		})
	})
}

// AddCash deposits amount.
func (s *Service) AddCash(ctx context.Context, amount decimal.Decimal) (ledger.Result, error) {
	return s.moveCash(ctx, "deposit", EventCashDeposited, amount, cash.AddCash)
}

// WithdrawCash withdraws amount.
func (s *Service) WithdrawCash(ctx context.Context, amount decimal.Decimal) (ledger.Result, error) {
	return s.moveCash(ctx, "withdraw", EventCashWithdrawn, amount, cash.WithdrawCash)
}

func (s *Service) moveCash(ctx context.Context, op string, typ EventType, amount decimal.Decimal,
	fn func(model.Snapshot, decimal.Decimal) (model.Snapshot, ledger.Result)) (ledger.Result, error) {
	reduce := func(cur model.Snapshot, _ time.Time) (model.Snapshot, ledger.Result) {
		return fn(cur, amount)
	}
	return s.apply(ctx, op, reduce, func(next model.Snapshot, res ledger.Result) {
		metrics.CashFlowsTotal.WithLabelValues(op).Inc()
		slog.Info("cash moved", "op", op, "amount", amount.String(), "cash", next.Cash.Decimal.String())
		s.emit(Event{Type: typ, Amount: amount, Cash: next.Cash.Decimal, Message: res.Message})
	})
}

// reducer computes the next snapshot; now is read under the service lock
// so transaction timestamps follow ledger order.
type reducer func(cur model.Snapshot, now time.Time) (model.Snapshot, ledger.Result)

// apply runs one mutation. The next snapshot is persisted before it
// becomes visible; a failed save leaves the in-memory ledger untouched.
// commit runs after the replace, still under the lock, so events and the
// journal see mutations in ledger order.
func (s *Service) apply(ctx context.Context, op string, reduce reducer, commit func(model.Snapshot, ledger.Result)) (ledger.Result, error) {
	if !s.gw.Ready() {
		return ledger.Result{}, ErrNotReady
	}

	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Read()
	next, res := reduce(cur, s.now())
	if !res.Success {
		metrics.RejectionsTotal.WithLabelValues(op, res.Code()).Inc()
		slog.Info("operation rejected", "op", op, "reason", res.Code(), "message", res.Message)
		return res, nil
	}

	if err := s.save(ctx, op, next); err != nil {
		return ledger.Result{}, err
	}
	s.state.Replace(next)
	s.observe(next)
	commit(next, res)
	return res, nil
}

func (s *Service) save(ctx context.Context, op string, next model.Snapshot) error {
	if err := s.gw.Save(ctx, next); err != nil {
		metrics.SaveFailures.Inc()
		slog.Error("snapshot save failed, operation discarded", "op", op, "err", err)
		return err
	}
	return nil
}

func (s *Service) observe(snap model.Snapshot) {
	f, _ := snap.Cash.Decimal.Float64()
	metrics.CashBalance.Set(f)
	metrics.OpenHoldings.Set(float64(len(snap.Holdings)))
}

// Snapshot returns a copy of the current ledger.
func (s *Service) Snapshot() model.Snapshot {
	return s.state.Read()
}

// CashHistory returns the running cash balance after each trade, starting
// from the configured initial cash.
func (s *Service) CashHistory() []model.CashPoint {
	return cash.History(s.initialCash, s.state.Read().Transactions)
}

// RealizedPnL returns the profit locked in by sells, measured against the
// average cost at the time of each sale.
func (s *Service) RealizedPnL() (decimal.Decimal, error) {
	return trade.RealizedPnL(s.state.Read().Transactions)
}
