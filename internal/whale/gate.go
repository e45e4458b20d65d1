// Package whale tracks the top holders of each live position and turns
// their selling into entry vetoes and defensive partial exits. The
// roster is fixed-size per mint: a trader can only join by out-buying
// the smallest tracked holder.
package whale

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
)

// selfMatchWindow is how long a marked own-trade stays eligible for
// matching an incoming feed event.
const selfMatchWindow = 2 * time.Minute

// selfMatchTolerance is the relative amount mismatch allowed when
// matching an own trade, the venue rounds fills.
const selfMatchTolerance = 0.01

// PnLReader supplies the PnL band check for exit rules.
type PnLReader interface {
	PnL(mint string) (pct float64, held bool)
}

// Seller executes defensive exits. The execution engine implements it.
type Seller interface {
	Sell(ctx context.Context, mint string, pct float64, reason string, retries int, window domain.ValuationWindow) float64
}

// selfMark is one pending own-trade awaiting its feed echo.
type selfMark struct {
	tokenAmt float64 // signed, negative for sells
	markedAt int64
}

// roster is the tracked whale set for one mint.
type roster struct {
	whales    map[string]*domain.Whale
	executed  map[int]bool // exit rule index -> fired
	pending   []selfMark
	createdAt int64
}

// Gate is the whale tracker and veto/exit engine.
type Gate struct {
	cfg     config.Whales
	pnl     PnLReader
	seller  Seller
	retries int
	logger  *log.Logger
	m       *observability.Metrics

	mu      sync.Mutex
	rosters map[string]*roster
	now     func() int64
}

// New creates a whale gate. seller, pnl, and metrics may be nil, which
// disables the exit ladder but keeps tracking and entry vetoes.
func New(cfg config.Whales, pnl PnLReader, seller Seller, retries int, logger *log.Logger, m *observability.Metrics) *Gate {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Gate{
		cfg:     cfg,
		pnl:     pnl,
		seller:  seller,
		retries: retries,
		logger:  logger,
		m:       m,
		rosters: make(map[string]*roster),
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// SetSeller attaches the execution engine. The gate is constructed
// before the engine because the engine needs it for entry vetoes.
func (g *Gate) SetSeller(s Seller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seller = s
}

// SetClock replaces the millisecond clock, for tests.
func (g *Gate) SetClock(now func() int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Tracks reports whether the mint has a roster.
func (g *Gate) Tracks(mint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.rosters[mint]
	return ok
}

// Seed snapshots the holder map of a freshly graduated mint into a
// fixed-size roster of its largest holders.
func (g *Gate) Seed(mint string, holders map[string]float64) {
	size := g.cfg.RosterSize
	if size <= 0 {
		return
	}

	type entry struct {
		trader string
		amount float64
	}
	entries := make([]entry, 0, len(holders))
	for trader, amount := range holders {
		if amount > 0 {
			entries = append(entries, entry{trader, amount})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].trader < entries[j].trader
	})
	if len(entries) > size {
		entries = entries[:size]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := &roster{
		whales:    make(map[string]*domain.Whale, len(entries)),
		executed:  make(map[int]bool),
		createdAt: g.now(),
	}
	for _, e := range entries {
		r.whales[e.trader] = &domain.Whale{
			Trader:      e.trader,
			AtCreation:  true,
			InitialHold: e.amount,
			CurrentHold: e.amount,
		}
	}
	g.rosters[mint] = r
	g.logger.Printf("seeded %d whales for %s", len(r.whales), mint)
}

// Remove drops the roster for a mint.
func (g *Gate) Remove(mint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rosters, mint)
}

// MarkSelf records an own confirmed trade so its feed echo is not
// counted as whale activity. tokenAmt is negative for sells.
func (g *Gate) MarkSelf(mint string, tokenAmt float64, timestampMs int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rosters[mint]
	if !ok {
		return
	}
	r.pending = append(r.pending, selfMark{tokenAmt: tokenAmt, markedAt: timestampMs})
}

// OnTrade folds one feed event into the roster and runs the exit
// ladder. Called from the reactor for every trade on a tracked mint.
func (g *Gate) OnTrade(ev *domain.TradeEvent) {
	if !ev.IsBuy() && !ev.IsSell() {
		return
	}

	exit, exitRule, seller := func() (bool, config.WhaleExitRule, Seller) {
		g.mu.Lock()
		defer g.mu.Unlock()

		r, ok := g.rosters[ev.Mint]
		if !ok {
			return false, config.WhaleExitRule{}, nil
		}

		self := g.consumeSelfMark(r, ev)
		g.applyTrade(r, ev, self)
		fire, rule := g.planExitLocked(ev.Mint, r)
		return fire, rule, g.seller
	}()

	if exit {
		if g.m != nil {
			g.m.WhaleExits.Inc()
		}
		g.logger.Printf("whale exit on %s: selling %.0f%%", ev.Mint, exitRule.SellPct)
		go seller.Sell(context.Background(), ev.Mint, exitRule.SellPct,
			domain.ReasonWhaleExit, g.retries, domain.ValuationWindow{})
	}
}

// consumeSelfMark matches the event against pending own trades.
func (g *Gate) consumeSelfMark(r *roster, ev *domain.TradeEvent) bool {
	amt := ev.TokenAmt
	if ev.IsSell() {
		amt = -amt
	}
	cutoff := g.now() - selfMatchWindow.Milliseconds()

	kept := r.pending[:0]
	matched := false
	for _, p := range r.pending {
		if p.markedAt < cutoff {
			continue
		}
		if !matched && sameSign(p.tokenAmt, amt) && relDiff(p.tokenAmt, amt) <= selfMatchTolerance {
			matched = true
			continue
		}
		kept = append(kept, p)
	}
	r.pending = kept
	return matched
}

// applyTrade updates or replaces a roster entry for the trading wallet.
func (g *Gate) applyTrade(r *roster, ev *domain.TradeEvent, self bool) {
	w, tracked := r.whales[ev.Trader]

	if !tracked {
		if !ev.IsBuy() {
			return
		}
		smallest := smallestWhale(r)
		balance := ev.TokenAmt
		if ev.NewBalance != nil {
			balance = *ev.NewBalance
		}
		if smallest == nil || balance <= smallest.CurrentHold {
			return
		}
		// Replacement keeps the roster at fixed size. The newcomer's
		// baseline starts at its current balance.
		delete(r.whales, smallest.Trader)
		r.whales[ev.Trader] = &domain.Whale{
			Trader:      ev.Trader,
			InitialHold: balance,
			CurrentHold: balance,
		}
		return
	}

	delta := ev.TokenAmt
	if ev.IsSell() {
		delta = -delta
	}

	if ev.NewBalance != nil {
		w.CurrentHold = *ev.NewBalance
	} else {
		w.CurrentHold += delta
		if w.CurrentHold < 0 {
			w.CurrentHold = 0
		}
	}

	if self {
		w.SelfMarker = true
	} else if delta > 0 {
		w.BoughtTotal += delta
	} else {
		w.SoldTotal += -delta
	}
	w.Deltas = append(w.Deltas, domain.WhaleDelta{
		TimestampMs: ev.Timestamp,
		Amount:      delta,
		Self:        self,
	})
}

// planExitLocked checks unexecuted exit rules. At most one fires per
// event; each rule fires at most once per position lifetime.
func (g *Gate) planExitLocked(mint string, r *roster) (bool, config.WhaleExitRule) {
	if g.seller == nil || g.pnl == nil {
		return false, config.WhaleExitRule{}
	}

	ranked := rankedWhales(r)
	for i, rule := range g.cfg.ExitRules {
		if r.executed[i] {
			continue
		}
		if countSellers(ranked, rule.RankFrom, rule.RankTo, rule.SoldPct) < rule.Count {
			continue
		}
		pnl, held := g.pnl.PnL(mint)
		if !held || pnl < rule.MinPnL || pnl > rule.MaxPnL {
			continue
		}
		// Marked executed at decision time so a slow sell cannot
		// double-fire on the next event.
		r.executed[i] = true
		return true, rule
	}
	return false, config.WhaleExitRule{}
}

// GateEntry reports whether a buy on the mint is allowed. Untracked
// mints are allowed; rosters showing rule-level sell-offs veto.
func (g *Gate) GateEntry(mint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rosters[mint]
	if !ok {
		return true
	}

	ranked := rankedWhales(r)
	for _, rule := range g.cfg.EntryRules {
		if countSellers(ranked, rule.RankFrom, rule.RankTo, rule.SoldPct) >= rule.Count {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the roster for a mint, ranked by current
// holdings, for the ops surface.
func (g *Gate) Snapshot(mint string) []domain.Whale {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rosters[mint]
	if !ok {
		return nil
	}
	ranked := rankedWhales(r)
	out := make([]domain.Whale, 0, len(ranked))
	for _, w := range ranked {
		cp := *w
		cp.Deltas = append([]domain.WhaleDelta(nil), w.Deltas...)
		out = append(out, cp)
	}
	return out
}

// rankedWhales returns roster members ordered by current holdings,
// largest first.
func rankedWhales(r *roster) []*domain.Whale {
	out := make([]*domain.Whale, 0, len(r.whales))
	for _, w := range r.whales {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentHold != out[j].CurrentHold {
			return out[i].CurrentHold > out[j].CurrentHold
		}
		return out[i].Trader < out[j].Trader
	})
	return out
}

// countSellers counts whales ranked within [from, to] (1-based,
// inclusive) that sold at least soldPct of their baseline. Own-wallet
// entries never count.
func countSellers(ranked []*domain.Whale, from, to int, soldPct float64) int {
	n := 0
	for i, w := range ranked {
		rank := i + 1
		if rank < from || rank > to {
			continue
		}
		if w.SelfMarker {
			continue
		}
		if w.SoldPct() >= soldPct {
			n++
		}
	}
	return n
}

func smallestWhale(r *roster) *domain.Whale {
	var smallest *domain.Whale
	for _, w := range r.whales {
		if smallest == nil || w.CurrentHold < smallest.CurrentHold ||
			(w.CurrentHold == smallest.CurrentHold && w.Trader > smallest.Trader) {
			smallest = w
		}
	}
	return smallest
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}

func relDiff(a, b float64) float64 {
	da, db := math.Abs(a), math.Abs(b)
	if da == 0 && db == 0 {
		return 0
	}
	return math.Abs(da-db) / math.Max(da, db)
}
