package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/store"
)

// failingStore fails every Load until healed.
type failingStore struct {
	store.MemoryStore
	failLoad bool
}

func (f *failingStore) Load(ctx context.Context) (*model.Snapshot, error) {
	if f.failLoad {
		return nil, errors.New("storage unavailable")
	}
	return f.MemoryStore.Load(ctx)
}

// blockingStore holds Load until release is closed.
type blockingStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Load(ctx context.Context) (*model.Snapshot, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.MemoryStore.Load(ctx)
}

func seeded(t *testing.T, cash int64) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	err := ms.Save(context.Background(), model.Snapshot{
		Cash:     decimal.NewNullDecimal(decimal.NewFromInt(cash)),
		Holdings: []model.Holding{{Symbol: "TCS", Quantity: 3, AvgPrice: decimal.NewFromInt(3000)}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ms
}

func TestHydrate_LoadsPersistedState(t *testing.T) {
	state := ledger.NewState()
	g := New(seeded(t, 4242), state)

	if g.Ready() {
		t.Fatal("gateway must start in Loading")
	}
	if err := g.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if g.Phase() != Ready {
		t.Errorf("expected Ready, got %s", g.Phase())
	}

	snap := state.Read()
	if !snap.Cash.Decimal.Equal(decimal.NewFromInt(4242)) || len(snap.Holdings) != 1 {
		t.Errorf("expected persisted state, got %+v", snap)
	}

	// Initialize after hydration must not stomp the persisted balance.
	state.Initialize(decimal.NewFromInt(10000000))
	if !state.Read().Cash.Decimal.Equal(decimal.NewFromInt(4242)) {
		t.Error("initialize overwrote a hydrated balance")
	}
}

func TestHydrate_AbsentKeepsEmptyState(t *testing.T) {
	state := ledger.NewState()
	g := New(store.NewMemoryStore(), state)

	if err := g.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if state.Read().Initialized() {
		t.Error("state should still be uninitialized")
	}
	if !g.Ready() {
		t.Error("expected Ready after hydrating an empty store")
	}
}

func TestOnHydrationComplete_FiresOnce(t *testing.T) {
	g := New(store.NewMemoryStore(), ledger.NewState())

	calls := 0
	g.OnHydrationComplete(func() { calls++ })

	g.Hydrate(context.Background())
	g.Hydrate(context.Background())

	if calls != 1 {
		t.Errorf("expected callback to fire once, fired %d times", calls)
	}
}

func TestOnHydrationComplete_AfterReadyRunsImmediately(t *testing.T) {
	g := New(store.NewMemoryStore(), ledger.NewState())
	g.Hydrate(context.Background())

	fired := false
	g.OnHydrationComplete(func() { fired = true })
	if !fired {
		t.Error("callback registered after Ready should run immediately")
	}
}

func TestSave_RefusedBeforeReady(t *testing.T) {
	ms := store.NewMemoryStore()
	g := New(ms, ledger.NewState())

	err := g.Save(context.Background(), model.Snapshot{})
	if !errors.Is(err, ErrNotHydrated) {
		t.Errorf("expected ErrNotHydrated, got %v", err)
	}
	if ms.Saves() != 0 {
		t.Error("nothing may reach the store before hydration")
	}
}

func TestHydrate_ErrorStaysLoading(t *testing.T) {
	fs := &failingStore{failLoad: true}
	g := New(fs, ledger.NewState())

	calls := 0
	g.OnHydrationComplete(func() { calls++ })

	if err := g.Hydrate(context.Background()); err == nil {
		t.Fatal("expected hydrate error")
	}
	if g.Ready() || calls != 0 {
		t.Fatal("failed hydration must not transition to Ready")
	}

	fs.failLoad = false
	if err := g.Hydrate(context.Background()); err != nil {
		t.Fatalf("retry hydrate: %v", err)
	}
	if !g.Ready() || calls != 1 {
		t.Errorf("expected Ready with one callback after retry, got ready=%v calls=%d", g.Ready(), calls)
	}
}

func TestPhase_DoesNotWaitForSlowLoad(t *testing.T) {
	bs := &blockingStore{
		MemoryStore: store.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	g := New(bs, ledger.NewState())

	hydrated := make(chan error, 1)
	go func() { hydrated <- g.Hydrate(context.Background()) }()
	<-bs.entered

	answered := make(chan bool, 1)
	go func() {
		answered <- g.Ready()
	}()
	select {
	case ready := <-answered:
		if ready {
			t.Error("expected Loading while the store load is in flight")
		}
	case <-time.After(time.Second):
		t.Fatal("Ready blocked on an in-flight load")
	}

	if err := g.Save(context.Background(), model.Snapshot{}); !errors.Is(err, ErrNotHydrated) {
		t.Errorf("expected ErrNotHydrated during load, got %v", err)
	}

	close(bs.release)
	if err := <-hydrated; err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if !g.Ready() {
		t.Error("expected Ready once the load returns")
	}
}
