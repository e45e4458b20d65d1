package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// TickArchiveStore is an in-memory implementation of storage.TickArchiveStore.
type TickArchiveStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Tick // keyed by mint
}

// NewTickArchiveStore creates a new in-memory tick archive.
func NewTickArchiveStore() *TickArchiveStore {
	return &TickArchiveStore{
		data: make(map[string][]*domain.Tick),
	}
}

// InsertBulk adds multiple ticks. The archive does not deduplicate.
func (s *TickArchiveStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	for _, t := range ticks {
		if t == nil || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		copy := *t
		s.data[t.Mint] = append(s.data[t.Mint], &copy)
	}
	return nil
}

// GetByMint retrieves all ticks for a mint, ordered by timestamp ASC.
func (s *TickArchiveStore) GetByMint(_ context.Context, mint string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticks := s.data[mint]
	result := make([]*domain.Tick, 0, len(ticks))
	for _, t := range ticks {
		copy := *t
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickArchiveStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	if start > end {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, t := range s.data[mint] {
		if t.TimestampMs >= start && t.TimestampMs <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)
