package domain

// Whale is a tracked top holder of one mint.
type Whale struct {
	Trader      string  // wallet address
	AtCreation  bool    // held at entity creation time
	InitialHold float64 // balance when tracking began
	CurrentHold float64
	BoughtTotal float64 // cumulative tokens bought since tracking began
	SoldTotal   float64 // cumulative tokens sold since tracking began
	Deltas      []WhaleDelta
	SelfMarker  bool // true when this entry mirrors the operator's own wallet
}

// WhaleDelta is one observed balance change for a tracked whale.
type WhaleDelta struct {
	TimestampMs int64
	Amount      float64 // signed token amount, negative for sells
	Self        bool    // operator's own trade
}

// SoldPct returns the share of the initial holding sold so far, percent.
// Zero initial holdings report zero.
func (w *Whale) SoldPct() float64 {
	if w.InitialHold <= 0 {
		return 0
	}
	pct := w.SoldTotal / w.InitialHold * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
