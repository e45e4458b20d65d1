package domain

// AuditScore is the flat record produced by one audit run. Immutable once
// produced; a re-audit after the validity window replaces it wholesale.
type AuditScore struct {
	Mint      string
	AuditedAt int64 // Unix timestamp in milliseconds

	// Developer probes
	DevOtherTokens int     // other mints created by the same developer
	DevHoldPct     float64 // developer's share of supply, percent
	DevSoldPct     float64 // share of initial developer holding sold, percent

	// Community probes
	ReplyCount      int
	ReplyUniqueness float64 // unique repliers / total replies, 0..1
	HasTwitter      bool
	HasTelegram     bool
	HasWebsite      bool

	// Holder probes
	HolderCount    int
	Top10HoldPct   float64 // top-10 holder share of supply, percent
	SuspicionScore float64 // dispersion-based bundling suspicion, 0..100

	// Trade probes
	TradeCount     int
	BuyRatio       float64 // buy trades / total trades, 0..1
	BuyVolumeRatio float64 // buy SOL volume / total SOL volume, 0..1
}
