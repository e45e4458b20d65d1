package domain

// TradeLog is one confirmed trade, persisted to the trade log store.
type TradeLog struct {
	AttemptID   string  // deterministic hash, see idhash
	Mint        string
	Side        string  // "buy" | "sell"
	TokenAmt    float64 // tokens filled
	SolAmt      float64 // SOL spent or received
	Price       float64 // SOL per token at fill
	Fee         float64 // SOL fee paid
	Reason      string  // entry/exit reason code
	Signature   string  // confirmed transaction signature
	Retries     int     // retries consumed before confirmation
	ExecutedAt  int64   // Unix timestamp in milliseconds
}

// Trade sides, shared with the feed event model.
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// ValuationWindow is the market-cap range within which retrying a trade
// is still considered sane. A zero Max means unbounded above.
type ValuationWindow struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the window.
func (w ValuationWindow) Contains(v float64) bool {
	if v < w.Min {
		return false
	}
	if w.Max > 0 && v > w.Max {
		return false
	}
	return true
}

// AuditRecord pairs a produced score with the admission outcome, for
// offline threshold tuning.
type AuditRecord struct {
	Mint      string
	Score     AuditScore
	Verdict   string // "graduated" | "blocked" | "pending"
	Reason    string // rejection reason when blocked
	CreatedAt int64  // Unix timestamp in milliseconds
}

// Audit verdicts.
const (
	VerdictGraduated = "graduated"
	VerdictBlocked   = "blocked"
	VerdictPending   = "pending"
)

// Tick is one archived market observation, written to the tick archive.
type Tick struct {
	Mint        string
	TimestampMs int64
	Side        string
	Price       float64
	MarketCap   float64
	TokenAmt    float64
	SolAmt      float64
}
