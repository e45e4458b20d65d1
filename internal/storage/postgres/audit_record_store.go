package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// AuditRecordStore implements storage.AuditRecordStore using PostgreSQL.
type AuditRecordStore struct {
	pool *Pool
}

// NewAuditRecordStore creates a new AuditRecordStore.
func NewAuditRecordStore(pool *Pool) *AuditRecordStore {
	return &AuditRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuditRecordStore = (*AuditRecordStore)(nil)

// Insert adds an audit outcome. Returns ErrDuplicateKey if (mint, created_at) exists.
func (s *AuditRecordStore) Insert(ctx context.Context, r *domain.AuditRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO audit_records (
			mint, created_at, verdict, reason, audited_at,
			dev_other_tokens, dev_hold_pct, dev_sold_pct,
			reply_count, reply_uniqueness, has_twitter, has_telegram, has_website,
			holder_count, top10_hold_pct, suspicion_score,
			trade_count, buy_ratio, buy_volume_ratio
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19
		)
	`

	sc := r.Score
	_, err := s.pool.Exec(ctx, query,
		r.Mint, r.CreatedAt, r.Verdict, r.Reason, sc.AuditedAt,
		sc.DevOtherTokens, sc.DevHoldPct, sc.DevSoldPct,
		sc.ReplyCount, sc.ReplyUniqueness, sc.HasTwitter, sc.HasTelegram, sc.HasWebsite,
		sc.HolderCount, sc.Top10HoldPct, sc.SuspicionScore,
		sc.TradeCount, sc.BuyRatio, sc.BuyVolumeRatio,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// GetByMint retrieves all records for a mint, ordered by created_at ASC.
func (s *AuditRecordStore) GetByMint(ctx context.Context, mint string) ([]*domain.AuditRecord, error) {
	query := auditRecordSelect + `
		WHERE mint = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get audit records by mint: %w", err)
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

// GetByVerdict retrieves all records with the given verdict.
func (s *AuditRecordStore) GetByVerdict(ctx context.Context, verdict string) ([]*domain.AuditRecord, error) {
	query := auditRecordSelect + `
		WHERE verdict = $1
		ORDER BY created_at ASC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query, verdict)
	if err != nil {
		return nil, fmt.Errorf("get audit records by verdict: %w", err)
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

const auditRecordSelect = `
		SELECT
			mint, created_at, verdict, reason, audited_at,
			dev_other_tokens, dev_hold_pct, dev_sold_pct,
			reply_count, reply_uniqueness, has_twitter, has_telegram, has_website,
			holder_count, top10_hold_pct, suspicion_score,
			trade_count, buy_ratio, buy_volume_ratio
		FROM audit_records`

// scanAuditRecords scans multiple rows into a slice of AuditRecord.
func scanAuditRecords(rows pgx.Rows) ([]*domain.AuditRecord, error) {
	var records []*domain.AuditRecord

	for rows.Next() {
		var r domain.AuditRecord

		err := rows.Scan(
			&r.Mint, &r.CreatedAt, &r.Verdict, &r.Reason, &r.Score.AuditedAt,
			&r.Score.DevOtherTokens, &r.Score.DevHoldPct, &r.Score.DevSoldPct,
			&r.Score.ReplyCount, &r.Score.ReplyUniqueness, &r.Score.HasTwitter, &r.Score.HasTelegram, &r.Score.HasWebsite,
			&r.Score.HolderCount, &r.Score.Top10HoldPct, &r.Score.SuspicionScore,
			&r.Score.TradeCount, &r.Score.BuyRatio, &r.Score.BuyVolumeRatio,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record row: %w", err)
		}

		r.Score.Mint = r.Mint
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit record rows: %w", err)
	}

	return records, nil
}
