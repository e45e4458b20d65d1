// Package discovery tracks newly created tokens from the feed until
// they graduate or die. Candidates are owned by a single goroutine:
// all methods except the audit goroutines it spawns must be called
// from the reactor.
package discovery

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"solana-token-agent/internal/audit"
	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/solkey"
)

// Auditor runs the off-thread probe battery for a candidate snapshot.
type Auditor interface {
	Run(ctx context.Context, snap audit.Snapshot) (*domain.AuditScore, error)
}

// Admitter decides whether a graduated candidate becomes a position.
type Admitter interface {
	Consider(ctx context.Context, c *domain.Candidate) (bool, string)
}

// AuditResult is a completed audit delivered back to the reactor.
type AuditResult struct {
	Mint  string
	Score *domain.AuditScore
	Err   error
}

// Observer is the pre-admission candidate tracker.
type Observer struct {
	cfg     config.Discovery
	auditor Auditor
	gate    Admitter
	logger  *log.Logger
	m       *observability.Metrics

	candidates map[string]*domain.Candidate
	results    chan AuditResult
	now        func() int64
}

// New creates an observer. auditor and gate may be nil in tests.
func New(cfg config.Discovery, auditor Auditor, gate Admitter, logger *log.Logger, m *observability.Metrics) *Observer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Observer{
		cfg:        cfg,
		auditor:    auditor,
		gate:       gate,
		logger:     logger,
		m:          m,
		candidates: make(map[string]*domain.Candidate),
		results:    make(chan AuditResult, 64),
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock replaces the millisecond clock, for tests.
func (o *Observer) SetClock(now func() int64) { o.now = now }

// AuditResults is drained by the reactor and fed to Apply.
func (o *Observer) AuditResults() <-chan AuditResult { return o.results }

// Tracks reports whether the mint is under observation.
func (o *Observer) Tracks(mint string) bool {
	_, ok := o.candidates[mint]
	return ok
}

// Count returns the number of tracked candidates.
func (o *Observer) Count() int { return len(o.candidates) }

// Get returns the tracked candidate for a mint.
func (o *Observer) Get(mint string) (*domain.Candidate, bool) {
	c, ok := o.candidates[mint]
	return c, ok
}

// Snapshot returns shallow copies of all candidates for the ops surface.
func (o *Observer) Snapshot() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(o.candidates))
	for _, c := range o.candidates {
		out = append(out, *c)
	}
	return out
}

// Observe handles a token creation event. The eligibility filter runs
// here; an ineligible token is never tracked.
func (o *Observer) Observe(ev *domain.TradeEvent) {
	if _, ok := o.candidates[ev.Mint]; ok {
		return
	}
	if rule := o.eligibility(ev); rule != "" {
		if o.m != nil {
			o.m.CandidatesFiltered.WithLabelValues(rule).Inc()
		}
		o.logger.Printf("filtered %s (%s): %s", ev.Mint, ev.Symbol, rule)
		return
	}

	now := o.nowMs(ev.Timestamp)
	c := &domain.Candidate{
		Mint:           ev.Mint,
		Name:           ev.Name,
		Symbol:         ev.Symbol,
		Developer:      ev.Trader,
		Pool:           ev.Pool,
		CreatedAt:      now,
		State:          domain.CandidateDiscovered,
		Holders:        make(map[string]float64),
		LastActivityAt: now,
	}
	// The creation event usually carries the developer's initial buy.
	if ev.TokenAmt > 0 {
		c.Holders[ev.Trader] = ev.TokenAmt
		c.DevInitialHold = ev.TokenAmt
	}
	o.applyMarket(c, ev)
	o.candidates[ev.Mint] = c
	o.updateGauge()
	o.logger.Printf("tracking %s (%s) by %s, %d candidates", ev.Mint, ev.Symbol, ev.Trader, len(o.candidates))
}

// eligibility returns the name of the filter rule that rejects the
// event, or "" if the token may be tracked.
func (o *Observer) eligibility(ev *domain.TradeEvent) string {
	if !solkey.ValidAddress(ev.Mint) {
		return "invalid_mint"
	}
	for _, m := range o.cfg.AllowMints {
		if m == ev.Mint {
			return ""
		}
	}
	for _, m := range o.cfg.DenyMints {
		if m == ev.Mint {
			return "deny_mint"
		}
	}
	text := strings.ToLower(ev.Name + " " + ev.Symbol)
	for _, p := range o.cfg.DenyPatterns {
		if strings.Contains(text, strings.ToLower(p)) {
			return "deny_pattern"
		}
	}
	if len(o.cfg.AllowPatterns) > 0 {
		allowed := false
		for _, p := range o.cfg.AllowPatterns {
			if strings.Contains(text, strings.ToLower(p)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "allow_pattern"
		}
	}
	if o.cfg.MaxCandidates > 0 && len(o.candidates) >= o.cfg.MaxCandidates {
		return "capacity"
	}
	return ""
}

// OnTrade folds a buy or sell on a tracked mint into its candidate and
// runs the audit and graduation triggers.
func (o *Observer) OnTrade(ctx context.Context, ev *domain.TradeEvent) {
	c, ok := o.candidates[ev.Mint]
	if !ok {
		return
	}

	c.LastActivityAt = o.nowMs(ev.Timestamp)
	o.applyHolder(c, ev)

	if ev.IsBuy() {
		c.BuyCount++
		c.BuyVolume += ev.SolAmt
	} else if ev.IsSell() {
		c.SellCount++
		c.SellVolume += ev.SolAmt
	}
	o.applyMarket(c, ev)

	if c.State == domain.CandidateDiscovered {
		c.State = domain.CandidateObserving
	}

	o.maybeAudit(ctx, c)
	o.maybeGraduate(ctx, c)
}

// applyHolder updates the trader's tracked balance. An authoritative
// balance from the feed replaces; otherwise the trade amount is
// delta-applied. Zeroed wallets leave the holder set.
func (o *Observer) applyHolder(c *domain.Candidate, ev *domain.TradeEvent) {
	var balance float64
	if ev.NewBalance != nil {
		balance = *ev.NewBalance
	} else {
		balance = c.Holders[ev.Trader]
		if ev.IsBuy() {
			balance += ev.TokenAmt
		} else {
			balance -= ev.TokenAmt
		}
	}
	if balance <= 0 {
		delete(c.Holders, ev.Trader)
		return
	}
	c.Holders[ev.Trader] = balance

	if ev.Trader == c.Developer && c.DevInitialHold == 0 && ev.IsBuy() {
		c.DevInitialHold = balance
	}
}

// applyMarket updates progress and appends a price sample.
func (o *Observer) applyMarket(c *domain.Candidate, ev *domain.TradeEvent) {
	if p := o.progressOf(ev.SolReserve); p > c.Progress {
		c.Progress = p
	}
	if ev.MarketCap > 0 {
		point := domain.PricePoint{
			TimestampMs: o.nowMs(ev.Timestamp),
			MarketCap:   ev.MarketCap,
		}
		if ev.TokenAmt > 0 {
			point.Price = ev.SolAmt / ev.TokenAmt
		}
		c.Prices = append(c.Prices, point)
	}
}

// progressOf maps the virtual SOL reserve onto the bonding curve's
// completion percentage.
func (o *Observer) progressOf(reserve float64) float64 {
	span := o.cfg.GraduationSolReserve - o.cfg.InitialSolReserve
	if span <= 0 || reserve <= o.cfg.InitialSolReserve {
		return 0
	}
	p := (reserve - o.cfg.InitialSolReserve) / span * 100
	if p > 100 {
		p = 100
	}
	return p
}

// maybeAudit starts an audit once progress crosses the audit threshold
// and no valid audit exists. At most one audit runs per candidate.
func (o *Observer) maybeAudit(ctx context.Context, c *domain.Candidate) {
	if o.auditor == nil || c.AuditInFlight {
		return
	}
	if c.Progress < o.cfg.AuditProgressPct {
		return
	}
	if c.Audit != nil && !o.auditStale(c) {
		return
	}

	c.AuditInFlight = true
	snap := audit.SnapshotOf(c)
	go func() {
		score, err := o.auditor.Run(ctx, snap)
		select {
		case o.results <- AuditResult{Mint: snap.Mint, Score: score, Err: err}:
		case <-ctx.Done():
			// The loop is gone; nobody will drain the channel.
			o.logger.Printf("audit result for %s discarded: %v", snap.Mint, ctx.Err())
		}
	}()
}

// auditStale reports whether the candidate's audit has outlived its
// validity and must be redone before graduation.
func (o *Observer) auditStale(c *domain.Candidate) bool {
	validity := o.cfg.AuditValidity.Std()
	if validity <= 0 {
		return false
	}
	return o.nowMs(0)-c.AuditedAt > validity.Milliseconds()
}

// Apply folds a completed audit back into its candidate. Called from
// the reactor after draining AuditResults.
func (o *Observer) Apply(ctx context.Context, res AuditResult) {
	c, ok := o.candidates[res.Mint]
	if !ok {
		return
	}
	c.AuditInFlight = false
	if res.Err != nil {
		o.logger.Printf("audit failed for %s: %v", res.Mint, res.Err)
		return
	}
	c.Audit = res.Score
	c.AuditedAt = o.nowMs(0)
	c.State = domain.CandidateAudited
	o.maybeGraduate(ctx, c)
}

// maybeGraduate hands the candidate to the admission gate once it has
// enough progress and a valid audit. Either verdict ends observation.
func (o *Observer) maybeGraduate(ctx context.Context, c *domain.Candidate) {
	if o.gate == nil || c.Progress < o.cfg.GraduateProgress {
		return
	}
	if c.Audit == nil || o.auditStale(c) {
		// Graduation waits for a fresh audit; the trigger above
		// will have started one.
		o.maybeAudit(ctx, c)
		return
	}

	admitted, reason := o.gate.Consider(ctx, c)
	if admitted {
		c.State = domain.CandidateGraduated
		o.logger.Printf("graduated %s (%s)", c.Mint, c.Symbol)
	} else {
		o.logger.Printf("blocked %s (%s): %s", c.Mint, c.Symbol, reason)
	}
	o.remove(c.Mint)
}

// Sweep removes candidates with no trade activity inside the
// inactivity timeout. Returns the removed mints so the caller can tear
// down their per-mint resources.
func (o *Observer) Sweep() []string {
	timeout := o.cfg.InactivityTimeout.Std()
	if timeout <= 0 {
		return nil
	}
	cutoff := o.nowMs(0) - timeout.Milliseconds()

	var removed []string
	for mint, c := range o.candidates {
		if c.LastActivityAt < cutoff {
			o.remove(mint)
			removed = append(removed, mint)
			if o.m != nil {
				o.m.CandidatesExpired.Inc()
			}
		}
	}
	if len(removed) > 0 {
		o.logger.Printf("swept %d inactive candidates, %d remain", len(removed), len(o.candidates))
	}
	return removed
}

// Remove drops a candidate from observation.
func (o *Observer) Remove(mint string) { o.remove(mint) }

func (o *Observer) remove(mint string) {
	delete(o.candidates, mint)
	o.updateGauge()
}

func (o *Observer) updateGauge() {
	if o.m != nil {
		o.m.CandidatesTracked.Set(float64(len(o.candidates)))
	}
}

// nowMs prefers the event timestamp, falling back to the clock.
func (o *Observer) nowMs(eventTs int64) int64 {
	if eventTs > 0 {
		return eventTs
	}
	return o.now()
}
