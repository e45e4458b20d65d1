package execution

import (
	"context"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/position"
)

// Recovery reconciles tracked positions with the wallet holdings the
// venue reports. Tracked quantities are overwritten, holdings the book
// does not know about are admitted with no cost basis, and tracked
// mints absent from the wallet are zeroed. Runs at startup and after
// every full exit. Concurrent calls collapse into one.
func (e *Engine) Recovery(ctx context.Context) {
	if !e.recovering.CompareAndSwap(false, true) {
		return
	}
	defer e.recovering.Store(false)

	holdings, err := e.venue.Holdings(ctx)
	if err != nil {
		e.logger.Printf("recovery: fetch holdings: %v", err)
		return
	}

	held := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		held[h.Mint] = h.Amount
	}

	admitted, reconciled := 0, 0
	for mint, amount := range held {
		if amount <= 0 {
			continue
		}
		if e.book.Has(mint) {
			e.book.ReconcileQuantity(mint, amount)
			reconciled++
			continue
		}
		if e.book.Admit(position.Admission{Mint: mint, Source: domain.SourceRecovery}) {
			e.book.ReconcileQuantity(mint, amount)
			admitted++
		}
	}

	// Tracked positions the wallet no longer holds.
	for _, snap := range e.book.All() {
		if snap.Quantity <= 0 {
			continue
		}
		if _, ok := held[snap.Mint]; !ok {
			e.book.ReconcileQuantity(snap.Mint, 0)
			reconciled++
		}
	}

	e.logger.Printf("recovery: %d holdings, %d reconciled, %d admitted",
		len(held), reconciled, admitted)
}
