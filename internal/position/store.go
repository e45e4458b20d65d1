package position

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/signal"
)

// Admission carries everything needed to create a live position.
type Admission struct {
	Mint      string
	Name      string
	Symbol    string
	Source    string
	Price     float64
	MarketCap float64
	Prices    []domain.PricePoint // observed pre-admission history
}

// Store is the in-memory map of live positions.
type Store struct {
	mu     sync.Mutex
	cfg    config.Trading
	trader Trader
	eval   signal.Evaluator
	logger *log.Logger
	m      *observability.Metrics

	positions map[string]*Position
	now       func() int64 // ms clock, replaceable in tests
}

// NewStore creates an empty position store. The trader is attached
// later via SetTrader because the execution engine needs the store too.
func NewStore(cfg config.Trading, eval signal.Evaluator, logger *log.Logger, m *observability.Metrics) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		cfg:       cfg,
		eval:      eval,
		logger:    logger,
		m:         m,
		positions: make(map[string]*Position),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SetTrader attaches the execution engine. Must be called before the
// first trade event is processed.
func (s *Store) SetTrader(t Trader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trader = t
}

// SetClock replaces the millisecond clock, for tests.
func (s *Store) SetClock(now func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Admit creates a live position. Returns false when the mint is already
// tracked.
func (s *Store) Admit(a Admission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[a.Mint]; exists {
		return false
	}

	now := s.now()
	p := &Position{
		Mint:           a.Mint,
		Name:           a.Name,
		Symbol:         a.Symbol,
		Source:         a.Source,
		Price:          a.Price,
		MarketCap:      a.MarketCap,
		PeakCap:        a.MarketCap,
		RegisteredAt:   now,
		LastActivityAt: now,
		executedDrops:  make(map[int]bool),
	}
	for _, pt := range a.Prices {
		p.appendPrice(pt, s.cfg.PriceHistory)
	}
	s.positions[a.Mint] = p

	// Auto-order templates are anchored on the admission valuation.
	// Recovered holdings arrive without one and get no orders.
	if a.MarketCap > 0 {
		for _, tpl := range s.cfg.AutoOrders {
			o := orderFromTemplate(tpl, a.MarketCap)
			p.Orders = append(p.Orders, o)
		}
	}

	s.updateOpenGauge()
	s.logger.Printf("admitted %s (%s) source=%s cap=%.2f orders=%d",
		a.Symbol, a.Mint, a.Source, a.MarketCap, len(p.Orders))
	return true
}

// orderFromTemplate instantiates a configured auto-order template
// against the admission market cap.
func orderFromTemplate(tpl config.OrderTemplate, admissionCap float64) *domain.PendingOrder {
	o := &domain.PendingOrder{
		Side:       domain.OrderSide(tpl.Side),
		Trigger:    tpl.TriggerX * admissionCap,
		Amount:     tpl.Amount,
		MinAgeMs:   tpl.MinAge.Std().Milliseconds(),
		MaxAgeMs:   tpl.MaxAge.Std().Milliseconds(),
		Trailing:   tpl.Trailing,
		TrailPct:   tpl.TrailPct,
		BandMinPnL: tpl.BandMinPnL,
		BandMaxPnL: tpl.BandMaxPnL,
		Reason:     domain.ReasonAutoEntry,
	}
	if o.Side == domain.OrderExit {
		o.Reason = domain.ReasonLimitOrder
		if o.Trigger < 0 {
			o.Reason = domain.ReasonStopLoss
		}
		if o.Trailing {
			o.Reason = domain.ReasonTrailingStop
		}
	}
	return o
}

// Has reports whether the mint is tracked.
func (s *Store) Has(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[mint]
	return ok
}

// Get returns a snapshot of one position.
func (s *Store) Get(mint string) (domain.PositionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return domain.PositionSnapshot{}, false
	}
	return p.Snapshot(), true
}

// All returns snapshots of every position, ordered by mint.
func (s *Store) All() []domain.PositionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PositionSnapshot, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// HeldCount returns the number of positions with non-zero holdings.
// Used by the execution engine's concurrent-position cap.
func (s *Store) HeldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.positions {
		if p.Quantity > 0 {
			n++
		}
	}
	return n
}

// Valuation returns the current market cap for a mint, 0 if untracked.
func (s *Store) Valuation(mint string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[mint]; ok {
		return p.MarketCap
	}
	return 0
}

// Quantity returns the token quantity held for a mint, 0 if untracked.
func (s *Store) Quantity(mint string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[mint]; ok {
		return p.Quantity
	}
	return 0
}

// ReconcileQuantity overwrites the held quantity with the amount the
// venue reports. Cost basis is untouched; the delta shows up as PnL.
func (s *Store) ReconcileQuantity(mint string, qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return
	}
	if qty < s.cfg.AmountEpsilon {
		qty = 0
	}
	if p.Quantity != qty {
		s.logger.Printf("reconcile %s quantity %.6f -> %.6f", mint, p.Quantity, qty)
		p.Quantity = qty
		p.recomputePnL()
	}
}

// PnL returns the current PnL percentage and whether the mint holds a
// position. Consumed by the whale gate's exit ladder.
func (s *Store) PnL(mint string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return 0, false
	}
	return p.PnLPct, p.Quantity > 0
}

// RegisterOrder appends a pending order for the mint.
func (s *Store) RegisterOrder(mint string, o domain.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return fmt.Errorf("register order: %s not tracked", mint)
	}
	cp := o
	p.Orders = append(p.Orders, &cp)
	return nil
}

// DeleteOrder removes the order at index for the mint.
func (s *Store) DeleteOrder(mint string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mint]
	if !ok {
		return fmt.Errorf("delete order: %s not tracked", mint)
	}
	if index < 0 || index >= len(p.Orders) {
		return fmt.Errorf("delete order: index %d out of range", index)
	}
	p.Orders = append(p.Orders[:index], p.Orders[index+1:]...)
	return nil
}

// Remove tears down a position. Idempotent; a removal in progress makes
// subsequent calls no-ops.
func (s *Store) Remove(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(mint)
}

func (s *Store) removeLocked(mint string) bool {
	p, ok := s.positions[mint]
	if !ok || p.removing {
		return false
	}
	p.removing = true
	p.Orders = nil
	delete(s.positions, mint)
	s.updateOpenGauge()
	s.logger.Printf("removed %s (%s)", p.Symbol, mint)
	return true
}

// ApplyFill records a confirmed trade against the position. Called by
// the execution engine from its confirmation goroutine.
func (s *Store) ApplyFill(mint, side string, tokenAmt, solAmt, fee float64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[mint]
	if !ok || p.removing {
		return
	}

	switch side {
	case domain.TradeSideBuy:
		p.Quantity += tokenAmt
		p.TotalBought += solAmt
		p.EntryReasons = append(p.EntryReasons, reason)
	case domain.TradeSideSell:
		p.Quantity -= tokenAmt
		p.TotalSold += solAmt
		p.ExitReasons = append(p.ExitReasons, reason)
	}
	p.Fees += fee
	p.Quantity = snapToZero(p.Quantity, s.cfg.AmountEpsilon)
	p.recomputePnL()
	s.updateOpenGauge()
}

func (s *Store) updateOpenGauge() {
	if s.m == nil {
		return
	}
	n := 0
	for _, p := range s.positions {
		if p.Quantity > 0 {
			n++
		}
	}
	s.m.OpenPositions.Set(float64(n))
}

// SweepInactive removes positions that are flat and idle past the
// configured timeout. Run periodically, independent of the event
// stream. Returns the removed mints so the caller can tear down their
// per-mint resources.
func (s *Store) SweepInactive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now() - s.cfg.FlatTimeout.Std().Milliseconds()
	var removed []string
	for mint, p := range s.positions {
		if p.Quantity <= 0 && p.LastActivityAt < cutoff && !p.evaluating {
			if s.removeLocked(mint) {
				removed = append(removed, mint)
			}
		}
	}
	return removed
}
