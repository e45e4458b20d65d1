package whale

import (
	"context"
	"sync"
	"testing"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
)

type fakePnL struct {
	pct  float64
	held bool
}

func (f *fakePnL) PnL(string) (float64, bool) { return f.pct, f.held }

type fakeSeller struct {
	mu    sync.Mutex
	calls []sellCall
	done  chan struct{}
}

type sellCall struct {
	mint   string
	pct    float64
	reason string
}

func newFakeSeller() *fakeSeller {
	return &fakeSeller{done: make(chan struct{}, 8)}
}

func (f *fakeSeller) Sell(_ context.Context, mint string, pct float64, reason string, _ int, _ domain.ValuationWindow) float64 {
	f.mu.Lock()
	f.calls = append(f.calls, sellCall{mint, pct, reason})
	f.mu.Unlock()
	f.done <- struct{}{}
	return pct
}

func (f *fakeSeller) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("sell never fired")
	}
}

func (f *fakeSeller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testCfg() config.Whales {
	return config.Whales{
		RosterSize: 3,
		EntryRules: []config.WhaleEntryRule{
			{RankFrom: 1, RankTo: 3, SoldPct: 50, Count: 2},
		},
		ExitRules: []config.WhaleExitRule{
			{RankFrom: 1, RankTo: 3, SoldPct: 60, Count: 2, MinPnL: -10, MaxPnL: 200, SellPct: 50},
		},
	}
}

func sellEvent(mint, trader string, amt float64) *domain.TradeEvent {
	return &domain.TradeEvent{
		Type:      domain.EventSell,
		Mint:      mint,
		Trader:    trader,
		TokenAmt:  amt,
		Timestamp: time.Now().UnixMilli(),
	}
}

func buyEvent(mint, trader string, amt float64) *domain.TradeEvent {
	return &domain.TradeEvent{
		Type:      domain.EventBuy,
		Mint:      mint,
		Trader:    trader,
		TokenAmt:  amt,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestSeedKeepsLargestHolders(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{
		"a": 100, "b": 400, "c": 200, "d": 300, "e": 50,
	})

	snap := g.Snapshot("mint1")
	if len(snap) != 3 {
		t.Fatalf("roster size = %d, want 3", len(snap))
	}
	if snap[0].Trader != "b" || snap[1].Trader != "d" || snap[2].Trader != "c" {
		t.Fatalf("ranked roster = %s %s %s, want b d c",
			snap[0].Trader, snap[1].Trader, snap[2].Trader)
	}
	if !snap[0].AtCreation || snap[0].InitialHold != 400 {
		t.Fatalf("seeded whale = %+v, want AtCreation with InitialHold 400", snap[0])
	}
}

func TestOnTradeUpdatesHoldings(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	g.OnTrade(sellEvent("mint1", "a", 300))
	g.OnTrade(buyEvent("mint1", "b", 100))

	snap := g.Snapshot("mint1")
	byTrader := map[string]domain.Whale{}
	for _, w := range snap {
		byTrader[w.Trader] = w
	}
	if a := byTrader["a"]; a.CurrentHold != 700 || a.SoldTotal != 300 {
		t.Fatalf("a = %+v, want CurrentHold 700 SoldTotal 300", a)
	}
	if b := byTrader["b"]; b.CurrentHold != 600 || b.BoughtTotal != 100 {
		t.Fatalf("b = %+v, want CurrentHold 600 BoughtTotal 100", b)
	}
	wa := byTrader["a"]
	if pct := wa.SoldPct(); pct != 30 {
		t.Fatalf("SoldPct = %f, want 30", pct)
	}
}

func TestNewBalanceReplacesHolding(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	ev := sellEvent("mint1", "a", 400)
	nb := 550.0
	ev.NewBalance = &nb
	g.OnTrade(ev)

	snap := g.Snapshot("mint1")
	for _, w := range snap {
		if w.Trader == "a" {
			if w.CurrentHold != 550 {
				t.Fatalf("CurrentHold = %f, want 550 from NewBalance", w.CurrentHold)
			}
			if w.SoldTotal != 400 {
				t.Fatalf("SoldTotal = %f, want 400", w.SoldTotal)
			}
			return
		}
	}
	t.Fatal("whale a missing from roster")
}

func TestOutsiderReplacesSmallestWhale(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	ev := buyEvent("mint1", "newcomer", 300)
	nb := 300.0
	ev.NewBalance = &nb
	g.OnTrade(ev)

	snap := g.Snapshot("mint1")
	if len(snap) != 3 {
		t.Fatalf("roster size = %d, want 3", len(snap))
	}
	byTrader := map[string]domain.Whale{}
	for _, w := range snap {
		byTrader[w.Trader] = w
	}
	if _, gone := byTrader["c"]; gone {
		t.Fatal("smallest whale c should have been replaced")
	}
	nw, ok := byTrader["newcomer"]
	if !ok {
		t.Fatal("newcomer missing from roster")
	}
	if nw.InitialHold != 300 || nw.AtCreation {
		t.Fatalf("newcomer = %+v, want InitialHold 300 without AtCreation", nw)
	}
}

func TestOutsiderBelowSmallestIgnored(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	g.OnTrade(buyEvent("mint1", "small", 100))

	for _, w := range g.Snapshot("mint1") {
		if w.Trader == "small" {
			t.Fatal("small buyer should not enter the roster")
		}
	}
}

func TestGateEntryVetoesOnSelloff(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	if !g.GateEntry("mint1") {
		t.Fatal("fresh roster should allow entry")
	}
	if !g.GateEntry("untracked") {
		t.Fatal("untracked mint should allow entry")
	}

	// Two of the top three sell over half their baseline.
	g.OnTrade(sellEvent("mint1", "a", 600))
	if !g.GateEntry("mint1") {
		t.Fatal("one seller should not veto yet")
	}
	g.OnTrade(sellEvent("mint1", "b", 300))
	if g.GateEntry("mint1") {
		t.Fatal("two sellers past 50% should veto entry")
	}
}

func TestExitLadderFiresOnce(t *testing.T) {
	seller := newFakeSeller()
	pnl := &fakePnL{pct: 40, held: true}
	g := New(testCfg(), pnl, seller, 2, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	g.OnTrade(sellEvent("mint1", "a", 700))
	if seller.count() != 0 {
		t.Fatal("single seller should not trigger the exit rule")
	}

	g.OnTrade(sellEvent("mint1", "b", 350))
	seller.wait(t)

	seller.mu.Lock()
	call := seller.calls[0]
	seller.mu.Unlock()
	if call.mint != "mint1" || call.pct != 50 || call.reason != domain.ReasonWhaleExit {
		t.Fatalf("sell call = %+v, want mint1 50%% WHALE_EXIT", call)
	}

	// Further selling must not re-fire the same rule.
	g.OnTrade(sellEvent("mint1", "c", 150))
	time.Sleep(20 * time.Millisecond)
	if seller.count() != 1 {
		t.Fatalf("sell calls = %d, want 1", seller.count())
	}
}

func TestExitSkippedOutsidePnLBand(t *testing.T) {
	seller := newFakeSeller()
	pnl := &fakePnL{pct: 500, held: true}
	g := New(testCfg(), pnl, seller, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000, "b": 500, "c": 200})

	g.OnTrade(sellEvent("mint1", "a", 700))
	g.OnTrade(sellEvent("mint1", "b", 350))
	time.Sleep(20 * time.Millisecond)
	if seller.count() != 0 {
		t.Fatal("exit should be skipped when PnL exceeds the band")
	}

	// The rule stays armed and fires once PnL falls back into range.
	pnl.pct = 40
	g.OnTrade(sellEvent("mint1", "c", 150))
	seller.wait(t)
}

func TestSelfTradeNotCountedAsWhaleSell(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"bot": 1000, "b": 500, "c": 200})

	now := time.Now().UnixMilli()
	g.MarkSelf("mint1", -600, now)
	g.OnTrade(sellEvent("mint1", "bot", 600))

	for _, w := range g.Snapshot("mint1") {
		if w.Trader != "bot" {
			continue
		}
		if w.SoldTotal != 0 {
			t.Fatalf("SoldTotal = %f, want 0 for self trade", w.SoldTotal)
		}
		if w.CurrentHold != 400 {
			t.Fatalf("CurrentHold = %f, want 400", w.CurrentHold)
		}
		if !w.SelfMarker {
			t.Fatal("self marker not set")
		}
		if len(w.Deltas) != 1 || !w.Deltas[0].Self {
			t.Fatalf("deltas = %+v, want one self delta", w.Deltas)
		}
		return
	}
	t.Fatal("bot missing from roster")
}

func TestExpiredSelfMarkIsIgnored(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"bot": 1000, "b": 500, "c": 200})

	base := time.Now().UnixMilli()
	g.MarkSelf("mint1", -600, base)
	g.SetClock(func() int64 { return base + (5 * time.Minute).Milliseconds() })

	g.OnTrade(sellEvent("mint1", "bot", 600))

	for _, w := range g.Snapshot("mint1") {
		if w.Trader == "bot" && w.SoldTotal != 600 {
			t.Fatalf("SoldTotal = %f, want 600 after mark expiry", w.SoldTotal)
		}
	}
}

func TestRemoveDropsRoster(t *testing.T) {
	g := New(testCfg(), nil, nil, 0, nil, nil)
	g.Seed("mint1", map[string]float64{"a": 1000})
	if !g.Tracks("mint1") {
		t.Fatal("roster missing after seed")
	}
	g.Remove("mint1")
	if g.Tracks("mint1") {
		t.Fatal("roster still present after remove")
	}
	if got := g.Snapshot("mint1"); got != nil {
		t.Fatalf("Snapshot after remove = %v, want nil", got)
	}
}
