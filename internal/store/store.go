// Package store defines the persistence interface for the portfolio engine.
// The whole ledger snapshot is stored as one JSON document under a single
// namespaced key. Implementations include a local file, PostgreSQL, Redis
// (as primary or as a read-through cache), DynamoDB, and in-memory (for
// testing).
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// DefaultKey is the storage key the snapshot lives under.
const DefaultKey = "tradesim-nse-storage"

// Store is the persistence interface.
type Store interface {
	// Load returns the last saved snapshot, or nil with no error if none
	// has been saved yet.
	Load(ctx context.Context) (*model.Snapshot, error)

	// Save durably persists the full snapshot, overwriting prior contents.
	Save(ctx context.Context, snap model.Snapshot) error
}

func encode(snap model.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Holdings == nil {
		snap.Holdings = []model.Holding{}
	}
	if snap.Transactions == nil {
		snap.Transactions = []model.Transaction{}
	}
	return &snap, nil
}
