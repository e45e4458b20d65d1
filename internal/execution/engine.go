// Package execution issues trades to the venue and reconciles them by
// transaction-signature confirmation. One logical trade may span several
// submissions; the accumulated signature cache guarantees a late-
// confirming earlier attempt is recognized instead of double-filled.
package execution

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/idhash"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/storage"
	"solana-token-agent/internal/venue"
)

// Book is the position-store surface the engine needs. *position.Store
// satisfies it.
type Book interface {
	Has(mint string) bool
	HeldCount() int
	Valuation(mint string) float64
	Quantity(mint string) float64
	ApplyFill(mint, side string, tokenAmt, solAmt, fee float64, reason string)
	RegisterOrder(mint string, o domain.PendingOrder) error
	Admit(a position.Admission) bool
	ReconcileQuantity(mint string, qty float64)
	All() []domain.PositionSnapshot
}

// EntryGate supplies the whale entry veto.
type EntryGate interface {
	GateEntry(mint string) bool
	MarkSelf(mint string, tokenAmt float64, timestampMs int64)
}

// Notifier receives fire-and-forget trade notifications.
type Notifier interface {
	Notify(text string)
}

// Engine submits, confirms, and retries trades.
type Engine struct {
	venue    venue.Client
	book     Book
	gate     EntryGate
	tradeLog storage.TradeLogStore
	notifier Notifier
	logger   *log.Logger
	m        *observability.Metrics
	cfg      config.Trading

	recovering atomic.Bool
	sigLimit   int
	sleep      func(context.Context, time.Duration) error
}

// New creates an execution engine. tradeLog, gate, notifier, and metrics
// may be nil.
func New(v venue.Client, book Book, gate EntryGate, tradeLog storage.TradeLogStore, notifier Notifier, cfg config.Trading, logger *log.Logger, m *observability.Metrics) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		venue:    v,
		book:     book,
		gate:     gate,
		tradeLog: tradeLog,
		notifier: notifier,
		logger:   logger,
		m:        m,
		cfg:      cfg,
		sigLimit: 100,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Compile-time interface check.
var _ position.Trader = (*Engine)(nil)

// attemptOutcome is the typed result of one submit-confirm round.
type attemptOutcome int

const (
	outcomeSettled attemptOutcome = iota
	outcomeRetried
	outcomeAbandoned
	outcomeFailed
)

// Buy spends amountSOL on the mint. Returns SOL spent on confirmation,
// 0 on rejection, submission failure, or abandonment.
func (e *Engine) Buy(ctx context.Context, mint string, amountSOL float64, reason string, retries int, window domain.ValuationWindow) float64 {
	if amountSOL <= 0 {
		return 0
	}
	if held := e.book.HeldCount(); held >= e.cfg.MaxOpenPositions && e.book.Quantity(mint) <= 0 {
		e.logger.Printf("buy %s rejected: %d positions open (cap %d)", mint, held, e.cfg.MaxOpenPositions)
		return 0
	}
	if e.gate != nil && !e.gate.GateEntry(mint) {
		e.logger.Printf("buy %s vetoed by whale gate", mint)
		if e.m != nil {
			e.m.WhaleVetoes.Inc()
		}
		return 0
	}

	req := venue.SubmitRequest{
		Action:      domain.TradeSideBuy,
		Mint:        mint,
		Amount:      amountSOL,
		SlippagePct: e.cfg.SlippagePct,
		PriorityFee: e.cfg.PriorityFeeSOL,
	}
	h := e.trade(ctx, req, reason, retries, window, nil)
	if h == nil {
		return 0
	}

	e.book.ApplyFill(mint, domain.TradeSideBuy, h.TokenAmt, h.SolAmt, h.Fee, reason)
	e.registerEntryStop(mint)
	return h.SolAmt
}

// Sell exits pct percent of current holdings. Returns SOL received on
// confirmation, 0 otherwise. A full exit triggers a reconciliation pass.
func (e *Engine) Sell(ctx context.Context, mint string, pct float64, reason string, retries int, window domain.ValuationWindow) float64 {
	if pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	qty := e.book.Quantity(mint)
	if qty <= 0 {
		return 0
	}
	tokenAmt := qty * pct / 100

	req := venue.SubmitRequest{
		Action:      domain.TradeSideSell,
		Mint:        mint,
		Amount:      tokenAmt,
		SlippagePct: e.cfg.SlippagePct,
		PriorityFee: e.cfg.PriorityFeeSOL,
	}
	h := e.trade(ctx, req, reason, retries, window, nil)
	if h == nil {
		return 0
	}

	e.book.ApplyFill(mint, domain.TradeSideSell, h.TokenAmt, h.SolAmt, h.Fee, reason)
	if pct >= 100 {
		go e.Recovery(context.Background())
	}
	return h.SolAmt
}

// trade runs the submit-confirm-retry loop for one logical trade.
// sigCache accumulates the signatures of every attempt so far; any of
// them confirming settles the trade without a duplicate fill.
func (e *Engine) trade(ctx context.Context, req venue.SubmitRequest, reason string, retries int, window domain.ValuationWindow, sigCache []string) *venue.TxHandle {
	nonce := uuid.NewString()
	attemptID := idhash.ComputeAttemptID(req.Mint, req.Action, nonce)
	retriesUsed := 0

	for {
		req.ClientNonce = uuid.NewString()
		h, err := e.venue.Submit(ctx, req)
		if err != nil {
			// Submission failures surface to the caller; they are
			// not retried here.
			e.logger.Printf("submit %s %s failed: %v", req.Action, req.Mint, err)
			e.notify(fmt.Sprintf("%s %s failed: %v", req.Action, req.Mint, err))
			return nil
		}
		if e.m != nil {
			e.m.TradesSubmitted.WithLabelValues(req.Action).Inc()
		}
		sigCache = append(sigCache, h.Signature)

		outcome := e.confirm(ctx, req.Mint, sigCache, window, retries)
		switch outcome {
		case outcomeSettled:
			if e.m != nil {
				e.m.TradesConfirmed.WithLabelValues(req.Action).Inc()
			}
			e.record(attemptID, req, h, reason, retriesUsed)
			e.markSelf(req, h)
			e.notify(fmt.Sprintf("%s %s: %.6f SOL (%s)", req.Action, req.Mint, h.SolAmt, reason))
			return h
		case outcomeRetried:
			retries--
			retriesUsed++
			if e.m != nil {
				e.m.TradesRetried.Inc()
			}
			e.logger.Printf("%s %s unconfirmed, retrying (%d left, %d cached sigs)",
				req.Action, req.Mint, retries, len(sigCache))
			continue
		default:
			if e.m != nil {
				e.m.TradesAbandoned.Inc()
			}
			e.logger.Printf("%s %s abandoned after %d retries", req.Action, req.Mint, retriesUsed)
			return nil
		}
	}
}

// confirm waits the confirmation delay, then checks every cached
// attempt signature against the venue's recent confirmations.
func (e *Engine) confirm(ctx context.Context, mint string, sigCache []string, window domain.ValuationWindow, retriesLeft int) attemptOutcome {
	if err := e.sleep(ctx, e.cfg.ConfirmDelay.Std()); err != nil {
		return outcomeAbandoned
	}

	recent, err := e.venue.RecentSignatures(ctx, e.sigLimit)
	if err == nil {
		confirmed := make(map[string]bool, len(recent))
		for _, sig := range recent {
			confirmed[sig] = true
		}
		for _, sig := range sigCache {
			if confirmed[sig] {
				return outcomeSettled
			}
		}
	}

	if retriesLeft > 0 && window.Contains(e.book.Valuation(mint)) {
		return outcomeRetried
	}
	return outcomeAbandoned
}

// registerEntryStop places the protective stop that accompanies every
// confirmed entry.
func (e *Engine) registerEntryStop(mint string) {
	if e.cfg.EntryStopPct <= 0 {
		return
	}
	val := e.book.Valuation(mint)
	if val <= 0 {
		return
	}
	stop := domain.PendingOrder{
		Side:    domain.OrderExit,
		Trigger: -(val * (1 - e.cfg.EntryStopPct/100)),
		Amount:  100,
		Reason:  domain.ReasonStopLoss,
	}
	if err := e.book.RegisterOrder(mint, stop); err != nil {
		e.logger.Printf("register entry stop for %s: %v", mint, err)
	}
}

func (e *Engine) record(attemptID string, req venue.SubmitRequest, h *venue.TxHandle, reason string, retries int) {
	if e.tradeLog == nil {
		return
	}
	entry := &domain.TradeLog{
		AttemptID:  attemptID,
		Mint:       req.Mint,
		Side:       req.Action,
		TokenAmt:   h.TokenAmt,
		SolAmt:     h.SolAmt,
		Price:      h.Price,
		Fee:        h.Fee,
		Reason:     reason,
		Signature:  h.Signature,
		Retries:    retries,
		ExecutedAt: time.Now().UnixMilli(),
	}
	if err := e.tradeLog.Insert(context.Background(), entry); err != nil {
		e.logger.Printf("trade log insert: %v", err)
	}
}

func (e *Engine) markSelf(req venue.SubmitRequest, h *venue.TxHandle) {
	if e.gate == nil {
		return
	}
	amt := h.TokenAmt
	if req.Action == domain.TradeSideSell {
		amt = -amt
	}
	e.gate.MarkSelf(req.Mint, amt, time.Now().UnixMilli())
}

func (e *Engine) notify(text string) {
	if e.notifier != nil {
		e.notifier.Notify(text)
	}
}
