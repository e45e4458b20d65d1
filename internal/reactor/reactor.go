// Package reactor is the single event loop at the center of the agent.
// It owns the dispatch order: every feed event lands here, gets routed
// to the discovery observer or the live position store, and is archived.
// Candidate and position state is only ever touched from this loop, so
// the engines behind it stay free of cross-goroutine ownership.
package reactor

import (
	"context"
	"io"
	"log"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/discovery"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/storage"
	"solana-token-agent/internal/whale"
)

const (
	tickFlushInterval = 5 * time.Second
	tickBatchSize     = 500
)

// Feed is the market event source. The WebSocket client implements it.
type Feed interface {
	Events() <-chan *domain.TradeEvent
	SubscribeTrades(mints ...string) error
	UnsubscribeTrades(mints ...string) error
}

// Reactor routes feed events through the agent's engines.
type Reactor struct {
	feed      Feed
	observer  *discovery.Observer
	positions *position.Store
	whales    *whale.Gate
	ticks     storage.TickArchiveStore
	logger    *log.Logger
	m         *observability.Metrics

	discoverySweep time.Duration
	positionSweep  time.Duration

	// snapReq serves candidate snapshots from inside the loop so the
	// ops surface never touches loop-owned state directly.
	snapReq chan chan []domain.Candidate

	pending []*domain.Tick
}

// New wires the reactor. ticks may be nil to disable archiving.
func New(cfg *config.Config, feed Feed, observer *discovery.Observer, positions *position.Store,
	whales *whale.Gate, ticks storage.TickArchiveStore, logger *log.Logger, m *observability.Metrics) *Reactor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reactor{
		feed:           feed,
		observer:       observer,
		positions:      positions,
		whales:         whales,
		ticks:          ticks,
		logger:         logger,
		m:              m,
		discoverySweep: cfg.Discovery.SweepInterval.Std(),
		positionSweep:  cfg.Trading.SweepInterval.Std(),
		snapReq:        make(chan chan []domain.Candidate),
	}
}

// Run processes events until the context is cancelled or the feed
// channel closes. Blocking; callers run it on a dedicated goroutine.
func (r *Reactor) Run(ctx context.Context) error {
	discoveryTicker := time.NewTicker(r.sweepOr(r.discoverySweep))
	defer discoveryTicker.Stop()
	positionTicker := time.NewTicker(r.sweepOr(r.positionSweep))
	defer positionTicker.Stop()
	flushTicker := time.NewTicker(tickFlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flushTicks(context.Background())
			return ctx.Err()
		case ev, ok := <-r.feed.Events():
			if !ok {
				r.flushTicks(context.Background())
				return nil
			}
			r.dispatch(ctx, ev)
		case res := <-r.observer.AuditResults():
			r.observer.Apply(ctx, res)
			// A blocked graduate leaves both stores here.
			if !r.observer.Tracks(res.Mint) && !r.positions.Has(res.Mint) {
				r.drop(res.Mint)
			}
		case <-discoveryTicker.C:
			for _, mint := range r.observer.Sweep() {
				r.drop(mint)
			}
		case <-positionTicker.C:
			for _, mint := range r.positions.SweepInactive() {
				r.drop(mint)
			}
		case <-flushTicker.C:
			r.flushTicks(ctx)
		case reply := <-r.snapReq:
			reply <- r.observer.Snapshot()
		}
	}
}

// Candidates returns a snapshot of the tracked candidates, served by
// the event loop. Returns nil when the loop is not running.
func (r *Reactor) Candidates(ctx context.Context) []domain.Candidate {
	reply := make(chan []domain.Candidate, 1)
	select {
	case r.snapReq <- reply:
	case <-ctx.Done():
		return nil
	}
	select {
	case snap := <-reply:
		return snap
	case <-ctx.Done():
		return nil
	}
}

func (r *Reactor) sweepOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// dispatch routes one event. A panic in any engine is contained here:
// one poisoned event must not take the loop down.
func (r *Reactor) dispatch(ctx context.Context, ev *domain.TradeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("panic on %s event for %s: %v", ev.Type, ev.Mint, rec)
		}
	}()

	switch {
	case ev.Type == domain.EventCreate:
		r.observer.Observe(ev)
		if r.observer.Tracks(ev.Mint) {
			if err := r.feed.SubscribeTrades(ev.Mint); err != nil {
				r.logger.Printf("subscribe trades %s: %v", ev.Mint, err)
			}
		}

	case ev.IsBuy() || ev.IsSell():
		r.archive(ev)
		switch {
		case r.positions.Has(ev.Mint):
			r.positions.OnTrade(ev)
			r.whales.OnTrade(ev)
		case r.observer.Tracks(ev.Mint):
			r.observer.OnTrade(ctx, ev)
			// Graduation removes the candidate; a rejected graduate also
			// stops being tracked. Keep the subscription only while the
			// mint lives in one of the two stores.
			if !r.observer.Tracks(ev.Mint) && !r.positions.Has(ev.Mint) {
				r.drop(ev.Mint)
			}
		default:
			r.drop(ev.Mint)
		}
	}
}

// drop tears down the per-mint feed subscription and whale roster for
// a mint that left both stores.
func (r *Reactor) drop(mint string) {
	if err := r.feed.UnsubscribeTrades(mint); err != nil {
		r.logger.Printf("unsubscribe trades %s: %v", mint, err)
	}
	r.whales.Remove(mint)
}

// archive buffers the trade for the tick archive.
func (r *Reactor) archive(ev *domain.TradeEvent) {
	if r.ticks == nil {
		return
	}
	t := &domain.Tick{
		Mint:        ev.Mint,
		TimestampMs: ev.Timestamp,
		Side:        string(ev.Type),
		MarketCap:   ev.MarketCap,
		TokenAmt:    ev.TokenAmt,
		SolAmt:      ev.SolAmt,
	}
	if ev.TokenAmt > 0 {
		t.Price = ev.SolAmt / ev.TokenAmt
	}
	r.pending = append(r.pending, t)
	if len(r.pending) >= tickBatchSize {
		r.flushTicks(context.Background())
	}
}

// flushTicks writes the buffered batch. A failed write drops the batch
// after logging; the archive is best-effort and must not stall trading.
func (r *Reactor) flushTicks(ctx context.Context) {
	if r.ticks == nil || len(r.pending) == 0 {
		return
	}
	batch := r.pending
	r.pending = nil
	if err := r.ticks.InsertBulk(ctx, batch); err != nil {
		r.logger.Printf("tick archive write failed, dropped %d ticks: %v", len(batch), err)
	}
}
