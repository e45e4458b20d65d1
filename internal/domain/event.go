package domain

// EventType classifies market feed events.
type EventType string

const (
	EventCreate EventType = "create"
	EventBuy    EventType = "buy"
	EventSell   EventType = "sell"
)

// TradeEvent is one event from the market feed: a token creation or a
// buy/sell against its pool. The feed layer normalizes transport framing
// into this shape; engines never see raw wire messages.
type TradeEvent struct {
	Type       EventType
	Mint       string   // token mint address
	Name       string   // token name (creation events)
	Symbol     string   // token symbol (creation events)
	URI        string   // metadata URI (creation events)
	Pool       string   // venue pool / bonding curve address
	Trader     string   // trader wallet address
	TokenAmt   float64  // traded token amount
	SolAmt     float64  // counter amount in SOL
	NewBalance *float64 // trader's resulting token balance, when the feed supplies it
	SolReserve float64  // virtual SOL in the bonding curve after the trade
	MarketCap  float64  // valuation metric in SOL
	Timestamp  int64    // Unix timestamp in milliseconds
	Signature  string   // transaction signature
}

// IsBuy reports whether the event is a buy-side trade.
func (e *TradeEvent) IsBuy() bool { return e.Type == EventBuy }

// IsSell reports whether the event is a sell-side trade.
func (e *TradeEvent) IsSell() bool { return e.Type == EventSell }
