package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a confirmed trade. Returns ErrDuplicateKey if attempt_id exists.
func (s *TradeLogStore) Insert(ctx context.Context, t *domain.TradeLog) error {
	if t == nil || t.AttemptID == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_log (
			attempt_id, mint, side, token_amt, sol_amt, price, fee,
			reason, signature, retries, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.AttemptID, t.Mint, t.Side, t.TokenAmt, t.SolAmt, t.Price, t.Fee,
		t.Reason, t.Signature, t.Retries, t.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade log: %w", err)
	}
	return nil
}

// GetByAttemptID retrieves a trade by its attempt ID. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByAttemptID(ctx context.Context, attemptID string) (*domain.TradeLog, error) {
	query := `
		SELECT
			attempt_id, mint, side, token_amt, sol_amt, price, fee,
			reason, signature, retries, executed_at
		FROM trade_log
		WHERE attempt_id = $1
	`

	row := s.pool.QueryRow(ctx, query, attemptID)
	t, err := scanTradeLog(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade log by attempt id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades for a mint, ordered by executed_at ASC.
func (s *TradeLogStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeLog, error) {
	query := `
		SELECT
			attempt_id, mint, side, token_amt, sol_amt, price, fee,
			reason, signature, retries, executed_at
		FROM trade_log
		WHERE mint = $1
		ORDER BY executed_at ASC, attempt_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trade logs by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeLogs(rows)
}

// GetRecent retrieves the most recent trades, ordered by executed_at DESC.
func (s *TradeLogStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeLog, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			attempt_id, mint, side, token_amt, sol_amt, price, fee,
			reason, signature, retries, executed_at
		FROM trade_log
		ORDER BY executed_at DESC, attempt_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trade logs: %w", err)
	}
	defer rows.Close()

	return scanTradeLogs(rows)
}

// scanTradeLog scans a single row into a TradeLog.
func scanTradeLog(row pgx.Row) (*domain.TradeLog, error) {
	var t domain.TradeLog

	err := row.Scan(
		&t.AttemptID, &t.Mint, &t.Side, &t.TokenAmt, &t.SolAmt, &t.Price, &t.Fee,
		&t.Reason, &t.Signature, &t.Retries, &t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTradeLogs scans multiple rows into a slice of TradeLog.
func scanTradeLogs(rows pgx.Rows) ([]*domain.TradeLog, error) {
	var trades []*domain.TradeLog

	for rows.Next() {
		var t domain.TradeLog

		err := rows.Scan(
			&t.AttemptID, &t.Mint, &t.Side, &t.TokenAmt, &t.SolAmt, &t.Price, &t.Fee,
			&t.Reason, &t.Signature, &t.Retries, &t.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade log row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade log rows: %w", err)
	}

	return trades, nil
}
