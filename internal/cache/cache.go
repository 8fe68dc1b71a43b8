package cache

import (
	"context"
	"errors"

	"MexcPulse/internal/model"
)

// ErrCacheMiss is returned when no fresh snapshot is cached for a symbol.
var ErrCacheMiss = errors.New("cache miss")

// SnapshotCache keeps the last good snapshot per symbol for a bounded time.
type SnapshotCache interface {
	Put(ctx context.Context, snap model.Snapshot) error
	Get(ctx context.Context, symbol string) (model.Snapshot, error)
	// Purge drops expired entries and returns how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}
