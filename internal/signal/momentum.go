package signal

import (
	"fmt"

	"solana-token-agent/internal/domain"
)

// MomentumEvaluator recommends entry when the last price sits above its
// moving average by a threshold, and exit when it sits below.
type MomentumEvaluator struct {
	Lookback    int     // bars in the moving average
	BuyEdgePct  float64 // entry when price exceeds SMA by this percent
	SellEdgePct float64 // exit when price trails SMA by this percent
	StopPct     float64 // protective stop below current price
}

// NewMomentumEvaluator creates an evaluator with the given parameters.
func NewMomentumEvaluator(lookback int, buyEdgePct, sellEdgePct, stopPct float64) *MomentumEvaluator {
	return &MomentumEvaluator{
		Lookback:    lookback,
		BuyEdgePct:  buyEdgePct,
		SellEdgePct: sellEdgePct,
		StopPct:     stopPct,
	}
}

var _ Evaluator = (*MomentumEvaluator)(nil)

// Evaluate compares the last price against the lookback SMA.
// Series shorter than the lookback produce a neutral recommendation.
func (m *MomentumEvaluator) Evaluate(_ string, prices []domain.PricePoint) Recommendation {
	if len(prices) < m.Lookback || m.Lookback <= 0 {
		return Recommendation{Description: "insufficient history"}
	}

	window := prices[len(prices)-m.Lookback:]
	var sum float64
	for _, p := range window {
		sum += p.Price
	}
	sma := sum / float64(m.Lookback)
	last := prices[len(prices)-1].Price
	if sma <= 0 {
		return Recommendation{Description: "flat series"}
	}

	edge := (last - sma) / sma * 100
	rec := Recommendation{
		StopPrice:   last * (1 - m.StopPct/100),
		Description: fmt.Sprintf("edge %.2f%% vs SMA(%d)", edge, m.Lookback),
	}
	switch {
	case edge >= m.BuyEdgePct:
		rec.Buy = true
	case edge <= -m.SellEdgePct:
		rec.Sell = true
	}
	return rec
}
