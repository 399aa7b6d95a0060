package testutil

import (
	"context"
	"fmt"
	"sync"
)

// MemoryGateway is an in-process stand-in for the remote persistence
// gateway. It records the last synced records per collection so tests can
// assert what was pushed, and can be told to fail to exercise the
// fire-and-forget error path.
type MemoryGateway struct {
	mu        sync.Mutex
	synced    map[string]any // keyed by %T of the records slice
	syncCalls int
	FailSync  bool
}

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{synced: make(map[string]any)}
}

// FetchAll returns nothing: tests hydrate containers directly.
func (g *MemoryGateway) FetchAll(ctx context.Context, dst any) error {
	return nil
}

// SyncAll records the replaced collection.
func (g *MemoryGateway) SyncAll(ctx context.Context, records any, tables ...any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSync {
		return fmt.Errorf("simulated sync failure")
	}
	g.synced[fmt.Sprintf("%T", records)] = records
	g.syncCalls++
	return nil
}

// Upsert records a single-record write.
func (g *MemoryGateway) Upsert(ctx context.Context, record any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSync {
		return fmt.Errorf("simulated sync failure")
	}
	g.synced[fmt.Sprintf("%T", record)] = record
	g.syncCalls++
	return nil
}

// SyncCalls returns how many gateway writes have been recorded.
func (g *MemoryGateway) SyncCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.syncCalls
}

// LastSynced returns the last records pushed for the given slice type key
// (e.g. "[]models.Transaction").
func (g *MemoryGateway) LastSynced(typeKey string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.synced[typeKey]
	return v, ok
}
