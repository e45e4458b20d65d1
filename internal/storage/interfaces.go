package storage

import (
	"context"

	"solana-token-agent/internal/domain"
)

// TradeLogStore provides access to trade_log storage.
type TradeLogStore interface {
	// Insert adds a confirmed trade. Returns ErrDuplicateKey if attempt_id exists.
	Insert(ctx context.Context, t *domain.TradeLog) error

	// GetByAttemptID retrieves a trade by its attempt ID. Returns ErrNotFound if not exists.
	GetByAttemptID(ctx context.Context, attemptID string) (*domain.TradeLog, error)

	// GetByMint retrieves all trades for a mint, ordered by executed_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeLog, error)

	// GetRecent retrieves the most recent trades, ordered by executed_at DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.TradeLog, error)
}

// AuditRecordStore provides access to audit_records storage.
type AuditRecordStore interface {
	// Insert adds an audit outcome. Returns ErrDuplicateKey if (mint, created_at) exists.
	Insert(ctx context.Context, r *domain.AuditRecord) error

	// GetByMint retrieves all records for a mint, ordered by created_at ASC.
	// A mint can carry several records when its audit was re-run.
	GetByMint(ctx context.Context, mint string) ([]*domain.AuditRecord, error)

	// GetByVerdict retrieves all records with the given verdict.
	GetByVerdict(ctx context.Context, verdict string) ([]*domain.AuditRecord, error)
}

// TickArchiveStore provides access to the tick archive.
type TickArchiveStore interface {
	// InsertBulk adds multiple ticks. The archive is append-only and does
	// not deduplicate.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetByMint retrieves all ticks for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error)
}
