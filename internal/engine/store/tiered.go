package store

import (
	"context"
	"errors"
	"log/slog"
)

// Tiered implements L1 (memory) + L2 (persistent) caching.
// L1 is fast but lost on restart. L2 survives restarts and is the source of truth.
type Tiered struct {
	l1 *Memory
	l2 Store
}

// NewTiered fronts l2 with a bounded in-memory L1 of maxEntries.
func NewTiered(l2 Store, maxEntries int) *Tiered {
	return &Tiered{l1: NewMemory(maxEntries), l2: l2}
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := t.l1.Get(ctx, key); err == nil {
		slog.Debug("store: L1 hit", slog.String("key", key))
		return data, nil
	}
	data, err := t.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	slog.Debug("store: L2 hit", slog.String("key", key))
	_ = t.l1.Set(ctx, key, data)
	return data, nil
}

// Set writes L2 first so L1 never holds a value the backend rejected.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	if err := t.l2.Set(ctx, key, value); err != nil {
		return err
	}
	return t.l1.Set(ctx, key, value)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

func (t *Tiered) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	_, _ = t.l1.DeletePrefix(ctx, prefix)
	return t.l2.DeletePrefix(ctx, prefix)
}

func (t *Tiered) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
