package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// fakeRedis is an in-memory stand-in for the Get/Set/Del commands.
type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	delErr error
	dels   []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.dels = append(f.dels, keys...)
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// countingStore counts primary loads behind a MemoryStore.
type countingStore struct {
	*MemoryStore
	loads int
}

func (c *countingStore) Load(ctx context.Context) (*model.Snapshot, error) {
	c.loads++
	return c.MemoryStore.Load(ctx)
}

// --- RedisStore ---

func TestRedisStore_AbsentThenSaved(t *testing.T) {
	rdb := newFakeRedis()
	s := newRedisStore(rdb, "")
	ctx := context.Background()

	snap, err := s.Load(ctx)
	if err != nil || snap != nil {
		t.Fatalf("expected absent snapshot, got %+v err=%v", snap, err)
	}

	want := sampleSnapshot()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := rdb.data[DefaultKey]; !ok {
		t.Fatalf("expected snapshot under %q, got keys %v", DefaultKey, rdb.data)
	}
	if rdb.ttls[DefaultKey] != 0 {
		t.Errorf("primary snapshot must not expire, got ttl %s", rdb.ttls[DefaultKey])
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameSnapshot(t, want, got)
}

func TestRedisStore_LoadError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")

	if _, err := newRedisStore(rdb, "k").Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

// --- CachedStore ---

func TestCachedStore_ReadThrough(t *testing.T) {
	rdb := newFakeRedis()
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	want := sampleSnapshot()
	if err := primary.Save(context.Background(), want); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newCachedStore(primary, rdb, "k", time.Minute)
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameSnapshot(t, want, got)
	if primary.loads != 1 {
		t.Errorf("expected a primary load on miss, got %d", primary.loads)
	}
	if _, ok := rdb.data[cacheKey("k")]; !ok || rdb.ttls[cacheKey("k")] != time.Minute {
		t.Errorf("expected cache populated with ttl, got %v %v", rdb.data, rdb.ttls)
	}

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameSnapshot(t, want, got)
	if primary.loads != 1 {
		t.Errorf("expected cache hit, primary loaded %d times", primary.loads)
	}
}

func TestCachedStore_SaveInvalidates(t *testing.T) {
	rdb := newFakeRedis()
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	s := newCachedStore(primary, rdb, "k", time.Minute)
	ctx := context.Background()

	if err := s.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Load(ctx) // populate

	next := sampleSnapshot()
	next.Holdings = nil
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := rdb.data[cacheKey("k")]; ok {
		t.Error("save must invalidate the cached snapshot")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Holdings) != 0 {
		t.Errorf("expected the newer snapshot, got %+v", got.Holdings)
	}
	if primary.Saves() != 2 {
		t.Errorf("expected 2 primary saves, got %d", primary.Saves())
	}
}

func TestCachedStore_InvalidationFailureIsNotFatal(t *testing.T) {
	rdb := newFakeRedis()
	rdb.delErr = errors.New("timeout")
	s := newCachedStore(NewMemoryStore(), rdb, "k", time.Minute)

	if err := s.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Errorf("expected save to succeed when invalidation fails, got %v", err)
	}
	if len(rdb.dels) != 1 || rdb.dels[0] != cacheKey("k") {
		t.Errorf("expected one invalidation of %s, got %v", cacheKey("k"), rdb.dels)
	}
}

func TestCachedStore_CorruptCacheFallsBack(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[cacheKey("k")] = "{not json"
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	want := sampleSnapshot()
	primary.Save(context.Background(), want)

	got, err := newCachedStore(primary, rdb, "k", time.Minute).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameSnapshot(t, want, got)
	if primary.loads != 1 {
		t.Errorf("expected fallback to primary, got %d loads", primary.loads)
	}
}

func TestCachedStore_AbsentPrimaryIsNotCached(t *testing.T) {
	rdb := newFakeRedis()
	got, err := newCachedStore(NewMemoryStore(), rdb, "k", time.Minute).Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected absent snapshot, got %+v err=%v", got, err)
	}
	if len(rdb.data) != 0 {
		t.Errorf("nothing should be cached, got %v", rdb.data)
	}
}
