package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/venue"
	"solana-token-agent/internal/venue/stub"
)

// fakeBook is a minimal Book for engine tests.
type fakeBook struct {
	mu         sync.Mutex
	quantities map[string]float64
	valuations map[string]float64
	fills      []string
	orders     []domain.PendingOrder
	admissions []position.Admission
	reconciles map[string]float64
}

func newFakeBook() *fakeBook {
	return &fakeBook{
		quantities: make(map[string]float64),
		valuations: make(map[string]float64),
		reconciles: make(map[string]float64),
	}
}

func (b *fakeBook) Has(mint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.quantities[mint]
	return ok
}

func (b *fakeBook) HeldCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, q := range b.quantities {
		if q > 0 {
			n++
		}
	}
	return n
}

func (b *fakeBook) Valuation(mint string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valuations[mint]
}

func (b *fakeBook) Quantity(mint string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quantities[mint]
}

func (b *fakeBook) ApplyFill(mint, side string, tokenAmt, solAmt, fee float64, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fills = append(b.fills, side)
	if side == domain.TradeSideBuy {
		b.quantities[mint] += tokenAmt
	} else {
		b.quantities[mint] -= tokenAmt
	}
}

func (b *fakeBook) RegisterOrder(mint string, o domain.PendingOrder) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, o)
	return nil
}

func (b *fakeBook) Admit(a position.Admission) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.quantities[a.Mint]; ok {
		return false
	}
	b.quantities[a.Mint] = 0
	b.admissions = append(b.admissions, a)
	return true
}

func (b *fakeBook) ReconcileQuantity(mint string, qty float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quantities[mint] = qty
	b.reconciles[mint] = qty
}

func (b *fakeBook) All() []domain.PositionSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.PositionSnapshot
	for mint, qty := range b.quantities {
		out = append(out, domain.PositionSnapshot{Mint: mint, Quantity: qty})
	}
	return out
}

var _ Book = (*fakeBook)(nil)

type vetoGate struct {
	veto  bool
	marks int
}

func (g *vetoGate) GateEntry(string) bool           { return !g.veto }
func (g *vetoGate) MarkSelf(string, float64, int64) {}

func testConfig() config.Trading {
	cfg := config.Default().Trading
	cfg.ConfirmDelay = config.Duration(0)
	cfg.MaxOpenPositions = 5
	cfg.EntryStopPct = 0
	return cfg
}

func instantSleep(context.Context, time.Duration) error { return nil }

func TestBuyConfirmsOnFirstAttempt(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.valuations["mint1"] = 5000
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = func(ctx context.Context, d time.Duration) error {
		v.Confirm(v.LastSignature())
		return nil
	}

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 2, domain.ValuationWindow{})
	if spent != 0.5 {
		t.Fatalf("Buy returned %f, want 0.5", spent)
	}
	if v.SubmitCount() != 1 {
		t.Errorf("Expected 1 submission, got %d", v.SubmitCount())
	}
	if book.Quantity("mint1") <= 0 {
		t.Error("Fill not applied to book")
	}
}

func TestRetryThenEarlierAttemptConfirms(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.valuations["mint1"] = 5000
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)

	// First confirmation round sees nothing. Before the second round,
	// the FIRST attempt's transaction lands. The signature cache must
	// recognize it and settle without a third submission.
	var sig1 string
	rounds := 0
	eng.sleep = func(ctx context.Context, d time.Duration) error {
		rounds++
		if rounds == 1 {
			sig1 = v.LastSignature()
		}
		if rounds == 2 {
			v.Confirm(sig1)
		}
		return nil
	}

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 2, domain.ValuationWindow{})
	if spent != 0.5 {
		t.Fatalf("Buy returned %f, want 0.5", spent)
	}
	if got := v.SubmitCount(); got != 2 {
		t.Errorf("Expected exactly 2 submissions (1 retry), got %d", got)
	}
	if len(book.fills) != 1 {
		t.Errorf("Expected exactly 1 fill, got %d", len(book.fills))
	}
}

func TestAbandonAfterRetriesExhausted(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.valuations["mint1"] = 5000
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 2, domain.ValuationWindow{})
	if spent != 0 {
		t.Fatalf("Buy returned %f, want 0", spent)
	}
	if got := v.SubmitCount(); got != 3 {
		t.Errorf("Expected 3 submissions (initial + 2 retries), got %d", got)
	}
	if len(book.fills) != 0 {
		t.Errorf("Abandoned trade must not fill, got %d fills", len(book.fills))
	}
}

func TestNoRetryOutsideValuationWindow(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.valuations["mint1"] = 9000
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	// Valuation 9000 is above the window; the unconfirmed attempt must
	// be abandoned instead of chasing the price up.
	window := domain.ValuationWindow{Min: 0, Max: 6000}
	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 5, window)
	if spent != 0 {
		t.Fatalf("Buy returned %f, want 0", spent)
	}
	if got := v.SubmitCount(); got != 1 {
		t.Errorf("Expected 1 submission, got %d", got)
	}
}

func TestSubmitErrorNotRetried(t *testing.T) {
	v := stub.NewClient()
	v.SubmitErr = errors.New("rpc down")
	book := newFakeBook()
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 3, domain.ValuationWindow{})
	if spent != 0 {
		t.Fatalf("Buy returned %f, want 0", spent)
	}
	if v.SubmitCount() != 0 {
		t.Errorf("Failed submission must not be recorded, got %d", v.SubmitCount())
	}
}

func TestBuyRejectedAtPositionCap(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	cfg := testConfig()
	cfg.MaxOpenPositions = 2
	book.quantities["a"] = 100
	book.quantities["b"] = 100
	eng := New(v, book, nil, nil, nil, cfg, nil, nil)
	eng.sleep = instantSleep

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 0, domain.ValuationWindow{})
	if spent != 0 {
		t.Fatalf("Buy returned %f, want 0", spent)
	}
	if v.SubmitCount() != 0 {
		t.Error("Capped buy must not reach the venue")
	}

	// Adding to an already-held mint is allowed at the cap.
	eng.sleep = func(ctx context.Context, d time.Duration) error {
		v.Confirm(v.LastSignature())
		return nil
	}
	spent = eng.Buy(context.Background(), "a", 0.5, domain.ReasonSignalBuy, 0, domain.ValuationWindow{})
	if spent != 0.5 {
		t.Errorf("Top-up of held mint at cap returned %f, want 0.5", spent)
	}
}

func TestBuyVetoedByWhaleGate(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	gate := &vetoGate{veto: true}
	eng := New(v, book, gate, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	spent := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 0, domain.ValuationWindow{})
	if spent != 0 {
		t.Fatalf("Buy returned %f, want 0", spent)
	}
	if v.SubmitCount() != 0 {
		t.Error("Vetoed buy must not reach the venue")
	}
}

func TestSellComputesTokenAmount(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.quantities["mint1"] = 1000
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = func(ctx context.Context, d time.Duration) error {
		v.Confirm(v.LastSignature())
		return nil
	}

	got := eng.Sell(context.Background(), "mint1", 40, domain.ReasonLimitOrder, 0, domain.ValuationWindow{})
	if got <= 0 {
		t.Fatalf("Sell returned %f, want > 0", got)
	}
	if len(v.Submissions) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(v.Submissions))
	}
	if v.Submissions[0].Amount != 400 {
		t.Errorf("Expected 400 tokens submitted, got %f", v.Submissions[0].Amount)
	}
}

func TestSellWithoutHoldingsIsNoop(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	got := eng.Sell(context.Background(), "mint1", 100, domain.ReasonStopLoss, 0, domain.ValuationWindow{})
	if got != 0 {
		t.Fatalf("Sell returned %f, want 0", got)
	}
	if v.SubmitCount() != 0 {
		t.Error("Flat sell must not reach the venue")
	}
}

func TestEntryStopRegisteredOnBuy(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.valuations["mint1"] = 5000
	cfg := testConfig()
	cfg.EntryStopPct = 50
	eng := New(v, book, nil, nil, nil, cfg, nil, nil)
	eng.sleep = func(ctx context.Context, d time.Duration) error {
		v.Confirm(v.LastSignature())
		return nil
	}

	if got := eng.Buy(context.Background(), "mint1", 0.5, domain.ReasonSignalBuy, 0, domain.ValuationWindow{}); got != 0.5 {
		t.Fatalf("Buy returned %f, want 0.5", got)
	}
	if len(book.orders) != 1 {
		t.Fatalf("Expected 1 protective stop, got %d orders", len(book.orders))
	}
	stop := book.orders[0]
	if stop.Side != domain.OrderExit || stop.Reason != domain.ReasonStopLoss {
		t.Errorf("Unexpected stop order: %+v", stop)
	}
	if stop.Trigger != -2500 {
		t.Errorf("Stop trigger = %f, want -2500", stop.Trigger)
	}
}

func TestRecoveryReconcilesAndAdmits(t *testing.T) {
	v := stub.NewClient()
	book := newFakeBook()
	book.quantities["tracked"] = 500
	book.quantities["gone"] = 300
	v.WalletHoldings = []venue.Holding{
		{Mint: "tracked", Amount: 450},
		{Mint: "untracked", Amount: 120},
	}
	eng := New(v, book, nil, nil, nil, testConfig(), nil, nil)
	eng.sleep = instantSleep

	eng.Recovery(context.Background())

	if got := book.reconciles["tracked"]; got != 450 {
		t.Errorf("Expected tracked mint reconciled to 450, got %f", got)
	}
	if got, ok := book.reconciles["gone"]; !ok || got != 0 {
		t.Errorf("Expected gone mint zeroed, got %f (present=%v)", got, ok)
	}
	if len(book.admissions) != 1 || book.admissions[0].Mint != "untracked" {
		t.Fatalf("Expected untracked holding admitted, got %+v", book.admissions)
	}
	if book.admissions[0].Source != domain.SourceRecovery {
		t.Errorf("Admission source = %s, want %s", book.admissions[0].Source, domain.SourceRecovery)
	}
	if got := book.quantities["untracked"]; got != 120 {
		t.Errorf("Expected untracked quantity 120, got %f", got)
	}
}
