// Package signal defines the technical-signal contract consumed by the
// position store, plus a default momentum evaluator. The store treats
// the evaluator as opaque; any implementation can be wired in.
package signal

import "solana-token-agent/internal/domain"

// Recommendation is one evaluation of a price series.
type Recommendation struct {
	Buy         bool
	Sell        bool
	StopPrice   float64 // protective stop for a fresh entry
	Description string
}

// Evaluator produces a recommendation from recent price history.
// Called once per new price bar per mint.
type Evaluator interface {
	Evaluate(mint string, prices []domain.PricePoint) Recommendation
}
