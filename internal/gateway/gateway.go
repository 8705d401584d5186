// Package gateway is the persistence gateway between the ledger state and
// its durable store. It owns the two-phase startup protocol: the gateway
// starts in Loading, Hydrate moves it to Ready exactly once, and nothing
// may be saved (or initialized by callers) before that transition.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/store"
)

// Phase is the hydration state.
type Phase int

const (
	Loading Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Ready {
		return "ready"
	}
	return "loading"
}

// ErrNotHydrated is returned by Save before Hydrate has completed.
var ErrNotHydrated = errors.New("gateway: ledger not hydrated")

// Gateway loads the persisted snapshot into a ledger.State at startup and
// saves snapshots afterwards.
type Gateway struct {
	store store.Store
	state *ledger.State

	hydrating sync.Mutex // one Load at a time; never held by Phase

	mu        sync.Mutex
	phase     Phase
	callbacks []func()
}

// New creates a gateway in the Loading phase.
func New(st store.Store, state *ledger.State) *Gateway {
	return &Gateway{store: st, state: state}
}

// Hydrate loads the last saved snapshot into the ledger state, or keeps
// the empty state when nothing has been saved, then transitions to Ready
// and runs the hydration callbacks. Calling it again once Ready is a
// no-op. On a load error the gateway stays in Loading and may be retried.
func (g *Gateway) Hydrate(ctx context.Context) error {
	g.hydrating.Lock()
	defer g.hydrating.Unlock()

	if g.Ready() {
		return nil
	}

	snap, err := g.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("hydrate ledger: %w", err)
	}
	if snap != nil {
		g.state.Replace(*snap)
	}

	g.mu.Lock()
	g.phase = Ready
	callbacks := g.callbacks
	g.callbacks = nil
	g.mu.Unlock()

	current := g.state.Read()
	slog.Info("ledger hydrated",
		"found", snap != nil,
		"initialized", current.Initialized(),
		"holdings", len(current.Holdings),
		"transactions", len(current.Transactions),
	)

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnHydrationComplete registers fn to run once hydration completes. If the
// gateway is already Ready, fn runs immediately.
func (g *Gateway) OnHydrationComplete(fn func()) {
	g.mu.Lock()
	if g.phase != Ready {
		g.callbacks = append(g.callbacks, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Phase returns the current hydration phase.
func (g *Gateway) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Ready reports whether hydration has completed.
func (g *Gateway) Ready() bool {
	return g.Phase() == Ready
}

// Save persists snap. It is refused until the gateway is Ready so an
// empty pre-hydration state can never overwrite a stored portfolio.
func (g *Gateway) Save(ctx context.Context, snap model.Snapshot) error {
	if !g.Ready() {
		return ErrNotHydrated
	}
	if err := g.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
