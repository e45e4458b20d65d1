package domain

// CandidateState tracks a candidate's progress through discovery.
type CandidateState string

const (
	CandidateDiscovered CandidateState = "DISCOVERED"
	CandidateObserving  CandidateState = "OBSERVING"
	CandidateAudited    CandidateState = "AUDITED"
	CandidateGraduated  CandidateState = "GRADUATED"
	CandidateRemoved    CandidateState = "REMOVED"
)

// Candidate is a pre-admission token under observation.
// Owned by the discovery observer; mutated only by the reactor goroutine.
type Candidate struct {
	Mint      string // token mint address
	Name      string
	Symbol    string
	Developer string // creator wallet address
	Pool      string // bonding curve address
	CreatedAt int64  // Unix timestamp in milliseconds

	State CandidateState

	// Holder balances by wallet address. Full replacement when the feed
	// supplies an authoritative balance, delta-applied otherwise.
	Holders map[string]float64

	// Developer position at creation, for sell-ratio probes.
	DevInitialHold float64

	BuyCount   int
	SellCount  int
	BuyVolume  float64 // cumulative SOL bought
	SellVolume float64 // cumulative SOL sold

	// Progress is the bonding-curve completion percentage, monotonic.
	Progress float64

	// Price history observed pre-admission, seeded into the live
	// position on graduation.
	Prices []PricePoint

	Audit          *AuditScore // nil until the first audit completes
	AuditedAt      int64       // when Audit was produced (ms)
	AuditInFlight  bool        // at most one audit runs per candidate
	LastActivityAt int64       // last trade event for this mint (ms)
}

// PricePoint is one observed price/valuation sample.
type PricePoint struct {
	TimestampMs int64
	Price       float64 // SOL per token
	MarketCap   float64 // valuation in SOL
}

// HolderCount returns the number of wallets with a non-zero balance.
func (c *Candidate) HolderCount() int { return len(c.Holders) }

// TradeCount returns total buys plus sells seen for the candidate.
func (c *Candidate) TradeCount() int { return c.BuyCount + c.SellCount }

// BuyRatio returns the buy-side share of trade count, 0 when no trades.
func (c *Candidate) BuyRatio() float64 {
	total := c.BuyCount + c.SellCount
	if total == 0 {
		return 0
	}
	return float64(c.BuyCount) / float64(total)
}

// BuyVolumeRatio returns the buy-side share of traded volume, 0 when flat.
func (c *Candidate) BuyVolumeRatio() float64 {
	total := c.BuyVolume + c.SellVolume
	if total == 0 {
		return 0
	}
	return c.BuyVolume / total
}
