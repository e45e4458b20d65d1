package domain

// Admission source tags.
const (
	SourceDiscovery = "discovery"
	SourceManual    = "manual"
	SourceRecovery  = "recovery"
)

// Entry/exit reason codes recorded against a position.
const (
	ReasonSignalBuy    = "SIGNAL_BUY"
	ReasonSignalSell   = "SIGNAL_SELL"
	ReasonLimitOrder   = "LIMIT_ORDER"
	ReasonStopLoss     = "STOP_LOSS"
	ReasonTrailingStop = "TRAILING_STOP"
	ReasonPeakDrop     = "PEAK_DROP"
	ReasonWhaleExit    = "WHALE_EXIT"
	ReasonManual       = "MANUAL"
	ReasonAutoEntry    = "AUTO_ENTRY"
)

// OrderSide is the direction of a pending conditional order.
type OrderSide string

const (
	OrderEnter OrderSide = "enter"
	OrderExit  OrderSide = "exit"
)

// PendingOrder is a conditional order evaluated against market cap on
// every trade tick.
//
// Trigger sign convention: a positive trigger fires when valuation >=
// trigger; a negative trigger fires when valuation <= |trigger|. The side
// only selects buy vs sell, so a negative exit trigger is a stop-loss and
// a positive one a take-profit.
type PendingOrder struct {
	Side    OrderSide
	Trigger float64 // signed trigger valuation in SOL, see convention above
	Amount  float64 // SOL amount for entries, percentage of holdings for exits

	// Optional eligibility window relative to position registration.
	// Zero means unbounded. An order past MaxAgeMs is dropped during
	// evaluation.
	MinAgeMs int64
	MaxAgeMs int64

	// Trailing exit orders follow new PnL peaks: the trigger is
	// recomputed from TrailPct below the peak valuation whenever a new
	// PnL high is set, and the order is only eligible while PnL percent
	// lies within [BandMinPnL, BandMaxPnL]. A zero BandMaxPnL means
	// unbounded above.
	Trailing   bool
	TrailPct   float64
	BandMinPnL float64
	BandMaxPnL float64

	Reason string // reason code recorded when the order fires
}

// PositionSnapshot is the read-only view of a live position exposed to
// the UI layer.
type PositionSnapshot struct {
	Mint         string
	Name         string
	Symbol       string
	Source       string
	Price        float64
	MarketCap    float64
	Quantity     float64
	TotalBought  float64
	TotalSold    float64
	Fees         float64
	PnL          float64
	PnLPct       float64
	PeakPnLPct   float64
	TroughPnLPct float64
	Orders       []PendingOrder
	EntryReasons []string
	ExitReasons  []string
	RegisteredAt int64
	UpdatedAt    int64
}
