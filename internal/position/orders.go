package position

import (
	"context"

	"solana-token-agent/internal/domain"
)

// action is one trade decided during a tick, executed off the store
// lock. For fired conditional orders the order pointer identifies what
// to remove on success; ladder and signal actions carry a nil order.
type action struct {
	order  *domain.PendingOrder
	side   domain.OrderSide
	amount float64 // SOL for entries, percentage of holdings for exits
	reason string
	window domain.ValuationWindow
}

// OnTrade is the central per-tick update for a live position: price and
// PnL bookkeeping, trailing recomputation on new PnL peaks, conditional
// order evaluation, and the peak-drop ladder. Evaluation is guarded by
// the per-position evaluating flag so a fired order's confirmation
// goroutine can never overlap another evaluation of the same order list.
func (s *Store) OnTrade(ev *domain.TradeEvent) {
	s.mu.Lock()

	p, ok := s.positions[ev.Mint]
	if !ok || p.removing {
		s.mu.Unlock()
		return
	}

	now := ev.Timestamp
	if now == 0 {
		now = s.now()
	}

	if ev.TokenAmt > 0 && ev.SolAmt > 0 {
		p.Price = ev.SolAmt / ev.TokenAmt
	}
	if ev.MarketCap > 0 {
		p.MarketCap = ev.MarketCap
		if p.MarketCap > p.PeakCap {
			p.PeakCap = p.MarketCap
		}
	}
	p.appendPrice(domain.PricePoint{TimestampMs: now, Price: p.Price, MarketCap: p.MarketCap}, s.cfg.PriceHistory)
	p.LastActivityAt = now

	// Trailing triggers move only when a new PnL peak is set.
	if p.recomputePnL() {
		for _, o := range p.Orders {
			if o.Side == domain.OrderExit {
				retrail(o, p.PeakCap)
			}
		}
	}

	if p.evaluating || s.trader == nil {
		s.mu.Unlock()
		return
	}
	p.evaluating = true

	acts := s.planLocked(p, now)
	if len(acts) == 0 {
		p.evaluating = false
		s.removeIfDrainedLocked(p)
		s.mu.Unlock()
		return
	}
	trader := s.trader
	s.mu.Unlock()

	go s.runActions(p.Mint, trader, acts)
}

// planLocked walks the pending order list once, dropping expired orders
// as a side effect, then the peak-drop ladder, then the signal engine.
// Ladder steps are marked executed at decision time: at most once per
// position lifetime even if the resulting sell fails.
func (s *Store) planLocked(p *Position, now int64) []action {
	var acts []action
	age := now - p.RegisteredAt

	for i := 0; i < len(p.Orders); i++ {
		o := p.Orders[i]

		if o.MaxAgeMs > 0 && age > o.MaxAgeMs {
			p.Orders = append(p.Orders[:i], p.Orders[i+1:]...)
			i--
			if s.m != nil {
				s.m.OrdersExpired.Inc()
			}
			continue
		}
		if o.MinAgeMs > 0 && age < o.MinAgeMs {
			continue
		}
		// BandMaxPnL zero means unbounded above, same as the peak-drop
		// ladder.
		if o.Trailing && p.PnLPct < o.BandMinPnL {
			continue
		}
		if o.Trailing && o.BandMaxPnL != 0 && p.PnLPct > o.BandMaxPnL {
			continue
		}
		if o.Side == domain.OrderExit && p.Quantity <= 0 {
			continue
		}
		if !orderTriggered(o.Trigger, p.MarketCap) {
			continue
		}

		acts = append(acts, action{
			order:  o,
			side:   o.Side,
			amount: o.Amount,
			reason: o.Reason,
			window: s.windowFor(o.Side, p.MarketCap),
		})
		if s.m != nil {
			s.m.OrdersFired.WithLabelValues(string(o.Side)).Inc()
		}
	}

	for i, rule := range s.cfg.PeakDrop {
		if p.executedDrops[i] || p.Quantity <= 0 {
			continue
		}
		if p.PnLPct < rule.MinPnL {
			continue
		}
		if rule.MaxPnL != 0 && p.PnLPct > rule.MaxPnL {
			continue
		}
		if p.PeakPnLPct-p.PnLPct < rule.DropPct {
			continue
		}
		p.executedDrops[i] = true
		acts = append(acts, action{
			side:   domain.OrderExit,
			amount: rule.SellPct,
			reason: domain.ReasonPeakDrop,
			window: s.windowFor(domain.OrderExit, p.MarketCap),
		})
	}

	if s.eval != nil && now-p.LastSignalAt >= s.cfg.SignalBar.Std().Milliseconds() {
		p.LastSignalAt = now
		rec := s.eval.Evaluate(p.Mint, p.prices)
		switch {
		case rec.Buy && p.Quantity <= 0:
			acts = append(acts, action{
				side:   domain.OrderEnter,
				amount: s.cfg.BuyAmountSOL,
				reason: domain.ReasonSignalBuy,
				window: s.windowFor(domain.OrderEnter, p.MarketCap),
			})
		case rec.Sell && p.Quantity > 0:
			acts = append(acts, action{
				side:   domain.OrderExit,
				amount: 100,
				reason: domain.ReasonSignalSell,
				window: s.windowFor(domain.OrderExit, p.MarketCap),
			})
		}
	}

	return acts
}

// windowFor derives the retry validity window from the current cap.
func (s *Store) windowFor(side domain.OrderSide, val float64) domain.ValuationWindow {
	w := s.cfg.RetryWindowPct / 100
	if side == domain.OrderEnter {
		return domain.ValuationWindow{Min: 0, Max: val * (1 + w)}
	}
	return domain.ValuationWindow{Min: val * (1 - w), Max: 0}
}

// runActions executes planned trades sequentially for one mint, then
// clears the evaluating flag. Successful order fires remove the exact
// order that fired; failed fires leave the order pending for the next
// tick.
func (s *Store) runActions(mint string, trader Trader, acts []action) {
	ctx := context.Background()

	for _, a := range acts {
		var result float64
		if a.side == domain.OrderEnter {
			result = trader.Buy(ctx, mint, a.amount, a.reason, s.cfg.DefaultRetries, a.window)
		} else {
			result = trader.Sell(ctx, mint, a.amount, a.reason, s.cfg.DefaultRetries, a.window)
		}

		if result > 0 && a.order != nil {
			s.removeOrder(mint, a.order)
		}
		if result == 0 {
			s.logger.Printf("%s %s failed (%s), order stays pending", a.side, mint, a.reason)
		}
	}

	s.mu.Lock()
	if p, ok := s.positions[mint]; ok {
		p.evaluating = false
		s.removeIfDrainedLocked(p)
	}
	s.mu.Unlock()
}

// removeOrder removes the order by identity, correcting for any index
// shifts caused by expiries or other removals since planning.
func (s *Store) removeOrder(mint string, o *domain.PendingOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return
	}
	for i := range p.Orders {
		if p.Orders[i] == o {
			p.Orders = append(p.Orders[:i], p.Orders[i+1:]...)
			return
		}
	}
}

// removeIfDrainedLocked removes a flat position whose valuation has
// fallen below the floor.
func (s *Store) removeIfDrainedLocked(p *Position) {
	if p.Quantity <= 0 && p.TotalBought > 0 && p.MarketCap < s.cfg.RemoveFloorCap {
		s.removeLocked(p.Mint)
	}
}
