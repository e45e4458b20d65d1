package postgres

import (
	"context"
	"errors"
	"testing"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

func TestTradeLogStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeLogStore(pool)
	ctx := context.Background()

	trade := &domain.TradeLog{
		AttemptID:  "attempt1",
		Mint:       "mint1",
		Side:       domain.TradeSideBuy,
		TokenAmt:   150000,
		SolAmt:     0.5,
		Price:      0.0000033,
		Fee:        0.0065,
		Reason:     domain.ReasonSignalBuy,
		Signature:  "sig1",
		Retries:    1,
		ExecutedAt: 1700000000000,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAttemptID(ctx, "attempt1")
	if err != nil {
		t.Fatalf("GetByAttemptID failed: %v", err)
	}

	if got.SolAmt != trade.SolAmt {
		t.Errorf("SolAmt mismatch: got %f, want %f", got.SolAmt, trade.SolAmt)
	}
	if got.Retries != 1 {
		t.Errorf("Retries mismatch: got %d, want 1", got.Retries)
	}
}

func TestTradeLogStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeLogStore(pool)
	ctx := context.Background()

	trade := &domain.TradeLog{
		AttemptID: "attempt1",
		Mint:      "mint1",
		Side:      domain.TradeSideBuy,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeLogStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeLogStore(pool)
	ctx := context.Background()

	_, err := store.GetByAttemptID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeLogStore_GetByMintAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeLogStore(pool)
	ctx := context.Background()

	trades := []*domain.TradeLog{
		{AttemptID: "a1", Mint: "mint1", Side: domain.TradeSideBuy, ExecutedAt: 1000},
		{AttemptID: "a2", Mint: "mint1", Side: domain.TradeSideSell, ExecutedAt: 2000},
		{AttemptID: "a3", Mint: "mint2", Side: domain.TradeSideBuy, ExecutedAt: 3000},
	}
	for _, tr := range trades {
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	byMint, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(byMint) != 2 {
		t.Fatalf("Expected 2 trades for mint1, got %d", len(byMint))
	}
	if byMint[0].AttemptID != "a1" {
		t.Errorf("Expected oldest first, got %s", byMint[0].AttemptID)
	}

	recent, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent trades, got %d", len(recent))
	}
	if recent[0].AttemptID != "a3" {
		t.Errorf("Expected newest first, got %s", recent[0].AttemptID)
	}
}
