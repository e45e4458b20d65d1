package clickhouse

import (
	"context"
	"fmt"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

// TickArchiveStore implements storage.TickArchiveStore using ClickHouse.
type TickArchiveStore struct {
	conn *Conn
}

// NewTickArchiveStore creates a new TickArchiveStore.
func NewTickArchiveStore(conn *Conn) *TickArchiveStore {
	return &TickArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)

// InsertBulk adds multiple ticks. The archive does not deduplicate;
// MergeTree does not enforce uniqueness and the feed delivers each
// trade once.
func (s *TickArchiveStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	for _, t := range ticks {
		if t == nil || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			mint, timestamp_ms, side, price, market_cap, token_amt, sol_amt
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.Mint, uint64(t.TimestampMs), t.Side,
			t.Price, t.MarketCap, t.TokenAmt, t.SolAmt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all ticks for a mint, ordered by timestamp ASC.
func (s *TickArchiveStore) GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error) {
	query := `
		SELECT mint, timestamp_ms, side, price, market_cap, token_amt, sol_amt
		FROM ticks
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query ticks by mint: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickArchiveStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	if start > end {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT mint, timestamp_ms, side, price, market_cap, token_amt, sol_amt
		FROM ticks
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

type tickRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTicks(rows tickRows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var (
			t           domain.Tick
			timestampMs uint64
		)
		err := rows.Scan(
			&t.Mint, &timestampMs, &t.Side,
			&t.Price, &t.MarketCap, &t.TokenAmt, &t.SolAmt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t.TimestampMs = int64(timestampMs)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
