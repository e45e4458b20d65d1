// Package memory provides in-memory store implementations, used in
// tests and when the agent runs without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeLog // keyed by attempt_id
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.TradeLog),
	}
}

// Insert adds a confirmed trade. Returns ErrDuplicateKey if attempt_id exists.
func (s *TradeLogStore) Insert(_ context.Context, t *domain.TradeLog) error {
	if t == nil || t.AttemptID == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.AttemptID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.AttemptID] = &copy
	return nil
}

// GetByAttemptID retrieves a trade by its attempt ID. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByAttemptID(_ context.Context, attemptID string) (*domain.TradeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[attemptID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByMint retrieves all trades for a mint, ordered by executed_at ASC.
func (s *TradeLogStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeLog
	for _, t := range s.data {
		if t.Mint == mint {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt < result[j].ExecutedAt
		}
		return result[i].AttemptID < result[j].AttemptID
	})

	return result, nil
}

// GetRecent retrieves the most recent trades, ordered by executed_at DESC.
func (s *TradeLogStore) GetRecent(_ context.Context, limit int) ([]*domain.TradeLog, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeLog, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt > result[j].ExecutedAt
		}
		return result[i].AttemptID > result[j].AttemptID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.TradeLogStore = (*TradeLogStore)(nil)
