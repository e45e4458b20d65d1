package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// auditKey is the composite key for audit records. A mint may carry
// several records when its audit expired and was re-run.
type auditKey struct {
	mint      string
	createdAt int64
}

// AuditRecordStore is an in-memory implementation of storage.AuditRecordStore.
type AuditRecordStore struct {
	mu   sync.RWMutex
	data map[auditKey]*domain.AuditRecord
}

// NewAuditRecordStore creates a new in-memory audit record store.
func NewAuditRecordStore() *AuditRecordStore {
	return &AuditRecordStore{
		data: make(map[auditKey]*domain.AuditRecord),
	}
}

// Insert adds an audit outcome. Returns ErrDuplicateKey if (mint, created_at) exists.
func (s *AuditRecordStore) Insert(_ context.Context, r *domain.AuditRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := auditKey{mint: r.Mint, createdAt: r.CreatedAt}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[key] = &copy
	return nil
}

// GetByMint retrieves all records for a mint, ordered by created_at ASC.
func (s *AuditRecordStore) GetByMint(_ context.Context, mint string) ([]*domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditRecord
	for _, r := range s.data {
		if r.Mint == mint {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// GetByVerdict retrieves all records with the given verdict.
func (s *AuditRecordStore) GetByVerdict(_ context.Context, verdict string) ([]*domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditRecord
	for _, r := range s.data {
		if r.Verdict == verdict {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

var _ storage.AuditRecordStore = (*AuditRecordStore)(nil)
