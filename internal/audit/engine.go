// Package audit scores a candidate by probing the venue for developer
// history, community activity, and holder concentration. An audit is
// fail-closed: if any probe cannot fetch its data the whole run is
// invalid and produces no score.
package audit

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/venue"
)

// TotalSupply is the fixed token supply minted at creation.
const TotalSupply = 1_000_000_000

// topHolderLimit is how deep the holder leaderboard probe looks.
const topHolderLimit = 10

// Snapshot carries the candidate fields an audit reads. Audits run off
// the reactor goroutine, so the caller takes the snapshot while it
// still owns the candidate.
type Snapshot struct {
	Mint           string
	Developer      string
	DevInitialHold float64
	DevCurrentHold float64
	HolderCount    int
	TradeCount     int
	BuyRatio       float64
	BuyVolumeRatio float64
}

// SnapshotOf copies the audit-relevant fields out of a candidate.
func SnapshotOf(c *domain.Candidate) Snapshot {
	return Snapshot{
		Mint:           c.Mint,
		Developer:      c.Developer,
		DevInitialHold: c.DevInitialHold,
		DevCurrentHold: c.Holders[c.Developer],
		HolderCount:    c.HolderCount(),
		TradeCount:     c.TradeCount(),
		BuyRatio:       c.BuyRatio(),
		BuyVolumeRatio: c.BuyVolumeRatio(),
	}
}

// Engine runs audits against a venue client.
type Engine struct {
	venue  venue.Client
	logger *log.Logger
	m      *observability.Metrics
}

// New creates an audit engine. metrics may be nil.
func New(v venue.Client, logger *log.Logger, m *observability.Metrics) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{venue: v, logger: logger, m: m}
}

// Run executes all probes concurrently and assembles the score. Any
// probe failure invalidates the whole run.
func (e *Engine) Run(ctx context.Context, snap Snapshot) (*domain.AuditScore, error) {
	start := time.Now()
	if e.m != nil {
		e.m.AuditsRun.Inc()
	}

	score := &domain.AuditScore{
		Mint:           snap.Mint,
		AuditedAt:      start.UnixMilli(),
		HolderCount:    snap.HolderCount,
		TradeCount:     snap.TradeCount,
		BuyRatio:       snap.BuyRatio,
		BuyVolumeRatio: snap.BuyVolumeRatio,
	}

	var (
		wg   sync.WaitGroup
		errs [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		errs[0] = e.probeDeveloper(ctx, snap, score)
	}()
	go func() {
		defer wg.Done()
		errs[1] = e.probeReplies(ctx, snap.Mint, score)
	}()
	go func() {
		defer wg.Done()
		errs[2] = e.probeSocials(ctx, snap.Mint, score)
	}()
	go func() {
		defer wg.Done()
		errs[3] = e.probeHolders(ctx, snap.Mint, score)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			if e.m != nil {
				e.m.AuditsFailed.Inc()
			}
			return nil, fmt.Errorf("audit %s: %w", snap.Mint, err)
		}
	}

	if e.m != nil {
		e.m.AuditDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Printf("audited %s in %s: holders=%d top10=%.1f%% suspicion=%.0f dev_hold=%.1f%%",
		snap.Mint, time.Since(start).Round(time.Millisecond),
		score.HolderCount, score.Top10HoldPct, score.SuspicionScore, score.DevHoldPct)
	return score, nil
}

func (e *Engine) probeDeveloper(ctx context.Context, snap Snapshot, score *domain.AuditScore) error {
	tokens, err := e.venue.DeveloperTokens(ctx, snap.Developer)
	if err != nil {
		return fmt.Errorf("developer probe: %w", err)
	}

	other := 0
	for _, t := range tokens {
		if t.Mint != snap.Mint {
			other++
		}
	}
	score.DevOtherTokens = other
	score.DevHoldPct = snap.DevCurrentHold / TotalSupply * 100
	score.DevSoldPct = devSoldPct(snap.DevInitialHold, snap.DevCurrentHold)
	return nil
}

func (e *Engine) probeReplies(ctx context.Context, mint string, score *domain.AuditScore) error {
	replies, err := e.venue.TokenReplies(ctx, mint)
	if err != nil {
		return fmt.Errorf("reply probe: %w", err)
	}

	score.ReplyCount = replies.Total
	if replies.Total > 0 {
		score.ReplyUniqueness = float64(replies.UniqueRepliers) / float64(replies.Total)
	}
	return nil
}

func (e *Engine) probeSocials(ctx context.Context, mint string, score *domain.AuditScore) error {
	socials, err := e.venue.TokenSocials(ctx, mint)
	if err != nil {
		return fmt.Errorf("social probe: %w", err)
	}

	score.HasTwitter = socials.Twitter
	score.HasTelegram = socials.Telegram
	score.HasWebsite = socials.Website
	return nil
}

func (e *Engine) probeHolders(ctx context.Context, mint string, score *domain.AuditScore) error {
	holders, err := e.venue.TopHolders(ctx, mint, topHolderLimit)
	if err != nil {
		return fmt.Errorf("holder probe: %w", err)
	}

	var top float64
	for _, h := range holders {
		top += h.Amount
	}
	score.Top10HoldPct = top / TotalSupply * 100
	score.SuspicionScore = suspicionScore(holders)
	return nil
}

// devSoldPct is the share of the initial developer holding sold off,
// clamped to [0, 100]. Buys after creation can push the current holding
// above the initial one.
func devSoldPct(initial, current float64) float64 {
	if initial <= 0 {
		return 0
	}
	sold := (initial - current) / initial * 100
	if sold < 0 {
		return 0
	}
	if sold > 100 {
		return 100
	}
	return sold
}

// suspicionScore flags bundled launches. Wallets funded by one script
// buy near-identical amounts, so a suspiciously uniform top-holder
// distribution scores high. The score is 100*(1 - cv) where cv is the
// coefficient of variation of the top balances, clamped to [0, 100].
func suspicionScore(holders []venue.TopHolder) float64 {
	if len(holders) < 2 {
		return 0
	}

	var sum float64
	for _, h := range holders {
		sum += h.Amount
	}
	mean := sum / float64(len(holders))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, h := range holders {
		d := h.Amount - mean
		variance += d * d
	}
	variance /= float64(len(holders))

	cv := math.Sqrt(variance) / mean
	score := 100 * (1 - cv)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
