package memory

import (
	"context"
	"errors"
	"testing"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/storage"
)

func TestTradeLogStore_InsertAndGet(t *testing.T) {
	store := NewTradeLogStore()
	ctx := context.Background()

	trade := &domain.TradeLog{
		AttemptID:  "attempt1",
		Mint:       "mint1",
		Side:       domain.TradeSideBuy,
		TokenAmt:   1000,
		SolAmt:     0.5,
		Price:      0.0005,
		Reason:     domain.ReasonSignalBuy,
		Signature:  "sig1",
		ExecutedAt: 1000,
	}

	err := store.Insert(ctx, trade)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAttemptID(ctx, "attempt1")
	if err != nil {
		t.Fatalf("GetByAttemptID failed: %v", err)
	}

	if got.SolAmt != 0.5 {
		t.Errorf("SolAmt mismatch: got %f, want %f", got.SolAmt, 0.5)
	}
}

func TestTradeLogStore_DuplicateKey(t *testing.T) {
	store := NewTradeLogStore()
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
	store := NewTradeLogStore()
	ctx := context.Background()

	_, err := store.GetByAttemptID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeLogStore_GetByMintOrdered(t *testing.T) {
	store := NewTradeLogStore()
	ctx := context.Background()

	trades := []*domain.TradeLog{
		{AttemptID: "a2", Mint: "mint1", Side: domain.TradeSideSell, ExecutedAt: 2000},
		{AttemptID: "a1", Mint: "mint1", Side: domain.TradeSideBuy, ExecutedAt: 1000},
		{AttemptID: "a3", Mint: "mint2", Side: domain.TradeSideBuy, ExecutedAt: 1500},
	}
	for _, tr := range trades {
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 trades for mint1, got %d", len(result))
	}
	if result[0].AttemptID != "a1" || result[1].AttemptID != "a2" {
		t.Errorf("Wrong order: got %s, %s", result[0].AttemptID, result[1].AttemptID)
	}
}

func TestTradeLogStore_GetRecentLimit(t *testing.T) {
	store := NewTradeLogStore()
	ctx := context.Background()

	for i, id := range []string{"a1", "a2", "a3"} {
		trade := &domain.TradeLog{AttemptID: id, Mint: "mint1", Side: domain.TradeSideBuy, ExecutedAt: int64(1000 * (i + 1))}
		if err := store.Insert(ctx, trade); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(result))
	}
	if result[0].AttemptID != "a3" {
		t.Errorf("Expected newest first, got %s", result[0].AttemptID)
	}
}

func TestTradeLogStore_InvalidInput(t *testing.T) {
	store := NewTradeLogStore()
	ctx := context.Background()

	err := store.Insert(ctx, &domain.TradeLog{Mint: "mint1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty attempt id, got %v", err)
	}
}
