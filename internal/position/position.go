// Package position owns live-position state: holdings, PnL, pending
// conditional orders, and the peak-drop exit ladder. All trade-tick
// mutation happens on the reactor goroutine; asynchronous fill callbacks
// from the execution engine re-enter through ApplyFill under the store
// lock, and per-position flags keep order evaluation from overlapping.
package position

import (
	"context"

	"solana-token-agent/internal/domain"
)

// Trader executes trades against the venue. Implemented by the
// execution engine; calls may block for the confirmation window, so the
// store only invokes them off the reactor goroutine.
type Trader interface {
	// Buy spends amountSOL on the mint. Returns SOL actually spent, 0
	// on failure or rejection.
	Buy(ctx context.Context, mint string, amountSOL float64, reason string, retries int, window domain.ValuationWindow) float64

	// Sell exits pct percent of current holdings. Returns SOL
	// received, 0 on failure.
	Sell(ctx context.Context, mint string, pct float64, reason string, retries int, window domain.ValuationWindow) float64
}

// Position is the live state for one admitted mint.
// Fields are guarded by the owning Store's lock.
type Position struct {
	Mint   string
	Name   string
	Symbol string
	Source string

	Price     float64
	MarketCap float64
	PeakCap   float64

	Quantity    float64
	TotalBought float64 // cumulative SOL spent
	TotalSold   float64 // cumulative SOL received
	Fees        float64 // cumulative SOL fees

	PnL          float64 // SOL
	PnLPct       float64
	PeakPnLPct   float64
	TroughPnLPct float64

	Orders []*domain.PendingOrder

	EntryReasons []string
	ExitReasons  []string

	RegisteredAt   int64
	LastActivityAt int64
	LastSignalAt   int64

	prices []domain.PricePoint // bounded ring, oldest first

	executedDrops map[int]bool // peak-drop ladder steps already fired

	evaluating bool // order evaluation or fired-order execution in progress
	removing   bool // teardown in progress, blocks re-entry
	hasPeak    bool // PeakPnLPct/TroughPnLPct initialized
}

// appendPrice pushes a sample onto the bounded ring.
func (p *Position) appendPrice(pt domain.PricePoint, limit int) {
	p.prices = append(p.prices, pt)
	if limit > 0 && len(p.prices) > limit {
		p.prices = p.prices[len(p.prices)-limit:]
	}
}

// Prices returns a copy of the price history, oldest first.
func (p *Position) Prices() []domain.PricePoint {
	return append([]domain.PricePoint(nil), p.prices...)
}

// recomputePnL refreshes PnL from current holdings and mark price.
// Returns true when a new PnL-percentage peak was set.
func (p *Position) recomputePnL() bool {
	p.PnL = p.TotalSold + p.Quantity*p.Price - p.TotalBought - p.Fees
	if p.TotalBought > 0 {
		p.PnLPct = p.PnL / p.TotalBought * 100
	} else {
		p.PnLPct = 0
	}

	newPeak := false
	if !p.hasPeak {
		p.hasPeak = true
		p.PeakPnLPct = p.PnLPct
		p.TroughPnLPct = p.PnLPct
		newPeak = p.PnLPct > 0
	} else {
		if p.PnLPct > p.PeakPnLPct {
			p.PeakPnLPct = p.PnLPct
			newPeak = true
		}
		if p.PnLPct < p.TroughPnLPct {
			p.TroughPnLPct = p.PnLPct
		}
	}
	return newPeak
}

// orderTriggered applies the trigger sign convention: a positive trigger
// fires when the valuation reaches it from below, a negative trigger
// fires when the valuation falls to its magnitude.
func orderTriggered(trigger, valuation float64) bool {
	if trigger >= 0 {
		return valuation >= trigger
	}
	return valuation <= -trigger
}

// retrail recomputes a trailing order's trigger from the peak valuation.
// The trigger magnitude only ever moves up; a stale higher stop is never
// loosened.
func retrail(o *domain.PendingOrder, peakCap float64) {
	if !o.Trailing || o.TrailPct <= 0 {
		return
	}
	stop := peakCap * (1 - o.TrailPct/100)
	if stop <= 0 {
		return
	}
	if -o.Trigger < stop {
		o.Trigger = -stop
	}
}

// snapToZero clamps dust and negative quantities to exactly zero.
func snapToZero(qty, epsilon float64) float64 {
	if qty < epsilon {
		return 0
	}
	return qty
}

// Snapshot produces the read-only view for UI rendering.
func (p *Position) Snapshot() domain.PositionSnapshot {
	orders := make([]domain.PendingOrder, len(p.Orders))
	for i, o := range p.Orders {
		orders[i] = *o
	}
	return domain.PositionSnapshot{
		Mint:         p.Mint,
		Name:         p.Name,
		Symbol:       p.Symbol,
		Source:       p.Source,
		Price:        p.Price,
		MarketCap:    p.MarketCap,
		Quantity:     p.Quantity,
		TotalBought:  p.TotalBought,
		TotalSold:    p.TotalSold,
		Fees:         p.Fees,
		PnL:          p.PnL,
		PnLPct:       p.PnLPct,
		PeakPnLPct:   p.PeakPnLPct,
		TroughPnLPct: p.TroughPnLPct,
		Orders:       orders,
		EntryReasons: append([]string(nil), p.EntryReasons...),
		ExitReasons:  append([]string(nil), p.ExitReasons...),
		RegisteredAt: p.RegisteredAt,
		UpdatedAt:    p.LastActivityAt,
	}
}
