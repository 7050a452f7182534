package store

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Memory is an in-process store. With maxEntries > 0 it evicts the oldest
// entries once full, which only makes sense as the L1 of a Tiered store.
type Memory struct {
	m          sync.Map // key → *memEntry
	maxEntries int
	count      atomic.Int64
	seq        atomic.Uint64
	evictMu    sync.Mutex
}

type memEntry struct {
	data []byte
	seq  uint64 // insertion order
}

// NewMemory returns an empty in-memory store. maxEntries <= 0 means unbounded.
func NewMemory(maxEntries int) *Memory {
	return &Memory{maxEntries: maxEntries}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := s.m.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return val.(*memEntry).data, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)
	entry := &memEntry{data: data, seq: s.seq.Add(1)}
	if _, loaded := s.m.Swap(key, entry); !loaded {
		s.count.Add(1)
		s.evictIfNeeded()
	}
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	if _, loaded := s.m.LoadAndDelete(key); loaded {
		s.count.Add(-1)
	}
	return nil
}

func (s *Memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	s.m.Range(func(key, _ any) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			if _, loaded := s.m.LoadAndDelete(k); loaded {
				s.count.Add(-1)
				n++
			}
		}
		return true
	})
	return n, nil
}

// Len reports the number of stored entries.
func (s *Memory) Len() int { return int(s.count.Load()) }

func (s *Memory) Close() error { return nil }

// evictIfNeeded removes the oldest entries until the store is within maxEntries.
func (s *Memory) evictIfNeeded() {
	if s.maxEntries <= 0 || s.Len() <= s.maxEntries {
		return
	}
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	for s.Len() > s.maxEntries {
		var (
			oldestKey any
			oldestSeq uint64
		)
		s.m.Range(func(key, val any) bool {
			if e := val.(*memEntry); oldestKey == nil || e.seq < oldestSeq {
				oldestKey, oldestSeq = key, e.seq
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		if _, loaded := s.m.LoadAndDelete(oldestKey); loaded {
			s.count.Add(-1)
		}
	}
}
