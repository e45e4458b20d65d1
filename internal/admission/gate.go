// Package admission decides whether an audited candidate graduates to
// live trading. Threshold predicates run in a fixed order and
// short-circuit on the first failure, so every rejection carries exactly
// one reason.
package admission

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/storage"
)

// Rejection reasons, in evaluation order.
const (
	ReasonPaused         = "paused"
	ReasonDuplicate      = "duplicate_metadata"
	ReasonNoAudit        = "no_audit"
	ReasonDevHold        = "dev_hold"
	ReasonDevSold        = "dev_sold"
	ReasonReplies        = "replies"
	ReasonReplyUnique    = "reply_uniqueness"
	ReasonHolders        = "holders"
	ReasonTop10          = "top10_concentration"
	ReasonSuspicion      = "suspicion"
	ReasonTwitter        = "twitter"
	ReasonTelegram       = "telegram"
	ReasonWebsite        = "website"
	ReasonTrades         = "trades"
	ReasonBuyRatio       = "buy_ratio"
	ReasonBuyVolumeRatio = "buy_volume_ratio"
)

// Promoter creates the live position for a graduate.
type Promoter interface {
	Admit(a position.Admission) bool
}

// WhaleSeeder snapshots a graduate's holder map into the whale gate.
type WhaleSeeder interface {
	Seed(mint string, holders map[string]float64)
}

// dedupeEntry is one remembered name+symbol pair.
type dedupeEntry struct {
	key    string
	seenAt int64
}

// Gate is the graduation gate.
type Gate struct {
	cfg     config.Admission
	book    Promoter
	whales  WhaleSeeder
	records storage.AuditRecordStore
	logger  *log.Logger
	m       *observability.Metrics

	mu     sync.Mutex
	recent []dedupeEntry
	now    func() int64
}

// New creates an admission gate. whales, records, and metrics may be nil.
func New(cfg config.Admission, book Promoter, whales WhaleSeeder, records storage.AuditRecordStore, logger *log.Logger, m *observability.Metrics) *Gate {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Gate{
		cfg:     cfg,
		book:    book,
		whales:  whales,
		records: records,
		logger:  logger,
		m:       m,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock replaces the millisecond clock, for tests.
func (g *Gate) SetClock(now func() int64) { g.now = now }

// Consider evaluates a graduated candidate and promotes it on pass.
// Returns whether it graduated and the rejection reason otherwise.
func (g *Gate) Consider(ctx context.Context, c *domain.Candidate) (bool, string) {
	reason := g.evaluate(c)

	verdict := domain.VerdictGraduated
	if reason != "" {
		verdict = domain.VerdictBlocked
	}
	g.record(ctx, c, verdict, reason)

	if reason != "" {
		if g.m != nil {
			g.m.Blocked.WithLabelValues(reason).Inc()
		}
		g.logger.Printf("blocked %s (%s): %s", c.Symbol, c.Mint, reason)
		return false, reason
	}

	g.promote(c)
	return true, ""
}

// evaluate runs the predicate chain and returns the first failure, or
// "" when the candidate passes.
func (g *Gate) evaluate(c *domain.Candidate) string {
	if !g.cfg.AcceptNew {
		return ReasonPaused
	}
	if g.isDuplicate(c.Name, c.Symbol) {
		return ReasonDuplicate
	}

	a := c.Audit
	if a == nil {
		return ReasonNoAudit
	}

	cfg := g.cfg
	switch {
	case a.DevHoldPct > cfg.MaxDevHoldPct:
		return ReasonDevHold
	case a.DevSoldPct > cfg.MaxDevSoldPct:
		return ReasonDevSold
	case a.ReplyCount < cfg.MinReplies:
		return ReasonReplies
	case a.ReplyUniqueness < cfg.MinReplyUnique:
		return ReasonReplyUnique
	case a.HolderCount < cfg.MinHolders:
		return ReasonHolders
	case a.Top10HoldPct > cfg.MaxTop10HoldPct:
		return ReasonTop10
	case a.SuspicionScore > cfg.MaxSuspicion:
		return ReasonSuspicion
	case cfg.RequireTwitter && !a.HasTwitter:
		return ReasonTwitter
	case cfg.RequireTelegram && !a.HasTelegram:
		return ReasonTelegram
	case cfg.RequireWebsite && !a.HasWebsite:
		return ReasonWebsite
	case a.TradeCount < cfg.MinTrades:
		return ReasonTrades
	case a.BuyRatio < cfg.MinBuyRatio:
		return ReasonBuyRatio
	case a.BuyVolumeRatio < cfg.MinBuyVolumeRatio:
		return ReasonBuyVolumeRatio
	}
	return ""
}

// isDuplicate reports whether the name+symbol pair was seen recently,
// and remembers it either way. Relaunching a just-seen token under the
// same metadata is the cheapest copycat play, so the first arrival
// wins the pair for the dedupe window.
func (g *Gate) isDuplicate(name, symbol string) bool {
	key := strings.ToLower(name) + "|" + strings.ToLower(symbol)
	now := g.nowMs()
	cutoff := now - g.cfg.DedupeWindow.Std().Milliseconds()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Drop entries past the window front-first; the slice stays sorted
	// by arrival.
	i := 0
	for i < len(g.recent) && g.recent[i].seenAt < cutoff {
		i++
	}
	g.recent = g.recent[i:]

	for _, e := range g.recent {
		if e.key == key {
			return true
		}
	}

	g.recent = append(g.recent, dedupeEntry{key: key, seenAt: now})
	if len(g.recent) > g.cfg.DedupeHistory && g.cfg.DedupeHistory > 0 {
		g.recent = g.recent[len(g.recent)-g.cfg.DedupeHistory:]
	}
	return false
}

func (g *Gate) promote(c *domain.Candidate) {
	adm := position.Admission{
		Mint:   c.Mint,
		Name:   c.Name,
		Symbol: c.Symbol,
		Source: domain.SourceDiscovery,
		Prices: c.Prices,
	}
	if n := len(c.Prices); n > 0 {
		adm.Price = c.Prices[n-1].Price
		adm.MarketCap = c.Prices[n-1].MarketCap
	}

	if !g.book.Admit(adm) {
		g.logger.Printf("graduate %s already tracked, skipping", c.Mint)
		return
	}
	if g.whales != nil {
		g.whales.Seed(c.Mint, c.Holders)
	}
	if g.m != nil {
		g.m.Graduated.Inc()
	}
	g.logger.Printf("graduated %s (%s) cap=%.2f holders=%d",
		c.Symbol, c.Mint, adm.MarketCap, c.HolderCount())
}

func (g *Gate) record(ctx context.Context, c *domain.Candidate, verdict, reason string) {
	if g.records == nil || c.Audit == nil {
		return
	}
	rec := &domain.AuditRecord{
		Mint:      c.Mint,
		Score:     *c.Audit,
		Verdict:   verdict,
		Reason:    reason,
		CreatedAt: g.nowMs(),
	}
	if err := g.records.Insert(ctx, rec); err != nil {
		g.logger.Printf("audit record insert %s: %v", c.Mint, err)
	}
}

func (g *Gate) nowMs() int64 {
	return g.now()
}
