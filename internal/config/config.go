// Package config loads the agent's rules file: audit gates, admission
// thresholds, order templates, peak-drop and whale ladders, and timing
// scalars. Endpoint/DSN wiring stays on flags in cmd, per-deployment;
// everything an operator tunes between runs lives here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML parsing ("90s", "10m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Discovery configures the pre-admission observer.
type Discovery struct {
	MaxCandidates     int      `yaml:"max_candidates"`
	AuditProgressPct  float64  `yaml:"audit_progress_pct"`
	GraduateProgress  float64  `yaml:"graduate_progress_pct"`
	AuditValidity     Duration `yaml:"audit_validity"`
	InactivityTimeout Duration `yaml:"inactivity_timeout"`
	SweepInterval     Duration `yaml:"sweep_interval"`

	// Bonding curve shape: progress is derived from the virtual SOL
	// reserve moving from InitialSolReserve to GraduationSolReserve.
	InitialSolReserve    float64 `yaml:"initial_sol_reserve"`
	GraduationSolReserve float64 `yaml:"graduation_sol_reserve"`

	// Eligibility filter. Deny patterns are checked against name and
	// symbol, case-insensitive substring match. An empty allow list
	// allows everything not denied.
	DenyPatterns  []string `yaml:"deny_patterns"`
	AllowPatterns []string `yaml:"allow_patterns"`
	DenyMints     []string `yaml:"deny_mints"`
	AllowMints    []string `yaml:"allow_mints"`
}

// Admission configures the graduate gate. Threshold predicates are
// evaluated in the field order documented in admission.Gate.
type Admission struct {
	AcceptNew     bool     `yaml:"accept_new"`
	DedupeHistory int      `yaml:"dedupe_history"` // recent name+symbol pairs remembered
	DedupeWindow  Duration `yaml:"dedupe_window"`

	MaxDevHoldPct     float64 `yaml:"max_dev_hold_pct"`
	MaxDevSoldPct     float64 `yaml:"max_dev_sold_pct"`
	MinReplies        int     `yaml:"min_replies"`
	MinReplyUnique    float64 `yaml:"min_reply_uniqueness"`
	MinHolders        int     `yaml:"min_holders"`
	MaxTop10HoldPct   float64 `yaml:"max_top10_hold_pct"`
	MaxSuspicion      float64 `yaml:"max_suspicion"`
	RequireTwitter    bool    `yaml:"require_twitter"`
	RequireTelegram   bool    `yaml:"require_telegram"`
	RequireWebsite    bool    `yaml:"require_website"`
	MinTrades         int     `yaml:"min_trades"`
	MinBuyRatio       float64 `yaml:"min_buy_ratio"`
	MinBuyVolumeRatio float64 `yaml:"min_buy_volume_ratio"`
}

// OrderTemplate is a pending order registered automatically on admission.
// Trigger values are relative: multiplied by the market cap at admission.
type OrderTemplate struct {
	Side       string   `yaml:"side"`
	TriggerX   float64  `yaml:"trigger_x"` // signed multiple of admission market cap
	Amount     float64  `yaml:"amount"`    // SOL for entries, pct of holdings for exits
	MinAge     Duration `yaml:"min_age"`
	MaxAge     Duration `yaml:"max_age"`
	Trailing   bool     `yaml:"trailing"`
	TrailPct   float64  `yaml:"trail_pct"`
	BandMinPnL float64  `yaml:"band_min_pnl"`
	BandMaxPnL float64  `yaml:"band_max_pnl"`
}

// PeakDropRule is one step of the peak-retracement exit ladder.
type PeakDropRule struct {
	MinPnL  float64 `yaml:"min_pnl"`  // percent, inclusive
	MaxPnL  float64 `yaml:"max_pnl"`  // percent, inclusive; 0 means unbounded
	DropPct float64 `yaml:"drop_pct"` // retracement from peak PnL, percentage points
	SellPct float64 `yaml:"sell_pct"` // share of holdings to exit
}

// Trading configures the live position store and execution engine.
type Trading struct {
	AmountEpsilon    float64  `yaml:"amount_epsilon"`
	MaxOpenPositions int      `yaml:"max_open_positions"`
	FlatTimeout      Duration `yaml:"flat_timeout"`
	SweepInterval    Duration `yaml:"sweep_interval"`
	RemoveFloorCap   float64  `yaml:"remove_floor_cap"` // market cap floor for flat removal

	BuyAmountSOL   float64  `yaml:"buy_amount_sol"`
	EntryStopPct   float64  `yaml:"entry_stop_pct"` // protective stop below entry cap
	DefaultRetries int      `yaml:"default_retries"`
	ConfirmDelay   Duration `yaml:"confirm_delay"`
	SlippagePct    float64  `yaml:"slippage_pct"`
	PriorityFeeSOL float64  `yaml:"priority_fee_sol"`
	RetryWindowPct float64  `yaml:"retry_window_pct"` // validity window half-width around current cap
	SignalBar      Duration `yaml:"signal_bar"`       // min spacing between signal evaluations

	AutoOrders []OrderTemplate `yaml:"auto_orders"`
	PeakDrop   []PeakDropRule  `yaml:"peak_drop"`

	PriceHistory int `yaml:"price_history"` // ring size per position
}

// WhaleEntryRule vetoes entry when Count holders ranked within
// [RankFrom, RankTo] have sold at least SoldPct of their initial holding.
type WhaleEntryRule struct {
	RankFrom int     `yaml:"rank_from"` // 1-based, inclusive
	RankTo   int     `yaml:"rank_to"`
	SoldPct  float64 `yaml:"sold_pct"`
	Count    int     `yaml:"count"`
}

// WhaleExitRule triggers a partial exit, once per position, when whale
// selling meets the rule while PnL is within the band.
type WhaleExitRule struct {
	RankFrom int     `yaml:"rank_from"`
	RankTo   int     `yaml:"rank_to"`
	SoldPct  float64 `yaml:"sold_pct"`
	Count    int     `yaml:"count"`
	MinPnL   float64 `yaml:"min_pnl"`
	MaxPnL   float64 `yaml:"max_pnl"`
	SellPct  float64 `yaml:"sell_pct"`
}

// Whales configures the top-holder gate.
type Whales struct {
	RosterSize int              `yaml:"roster_size"`
	EntryRules []WhaleEntryRule `yaml:"entry_rules"`
	ExitRules  []WhaleExitRule  `yaml:"exit_rules"`
}

// Config is the full rules file.
type Config struct {
	Discovery Discovery `yaml:"discovery"`
	Admission Admission `yaml:"admission"`
	Trading   Trading   `yaml:"trading"`
	Whales    Whales    `yaml:"whales"`
}

// Default returns the built-in rule set.
func Default() *Config {
	return &Config{
		Discovery: Discovery{
			MaxCandidates:        200,
			AuditProgressPct:     55,
			GraduateProgress:     85,
			AuditValidity:        Duration(10 * time.Minute),
			InactivityTimeout:    Duration(120 * time.Second),
			SweepInterval:        Duration(15 * time.Second),
			InitialSolReserve:    30,
			GraduationSolReserve: 115,
		},
		Admission: Admission{
			AcceptNew:         true,
			DedupeHistory:     50,
			DedupeWindow:      Duration(24 * time.Hour),
			MaxDevHoldPct:     30,
			MaxDevSoldPct:     50,
			MinReplies:        10,
			MinReplyUnique:    0.5,
			MinHolders:        30,
			MaxTop10HoldPct:   40,
			MaxSuspicion:      60,
			MinTrades:         50,
			MinBuyRatio:       0.5,
			MinBuyVolumeRatio: 0.5,
		},
		Trading: Trading{
			AmountEpsilon:    1e-9,
			MaxOpenPositions: 5,
			FlatTimeout:      Duration(300 * time.Second),
			SweepInterval:    Duration(30 * time.Second),
			RemoveFloorCap:   25,
			BuyAmountSOL:     0.5,
			EntryStopPct:     20,
			DefaultRetries:   2,
			ConfirmDelay:     Duration(15 * time.Second),
			SlippagePct:      5,
			PriorityFeeSOL:   0.0005,
			RetryWindowPct:   50,
			SignalBar:        Duration(5 * time.Second),
			PriceHistory:     256,
			PeakDrop: []PeakDropRule{
				{MinPnL: 0, MaxPnL: 0, DropPct: 25, SellPct: 50},
				{MinPnL: 0, MaxPnL: 0, DropPct: 40, SellPct: 100},
			},
		},
		Whales: Whales{
			RosterSize: 10,
			EntryRules: []WhaleEntryRule{
				{RankFrom: 1, RankTo: 5, SoldPct: 50, Count: 2},
			},
			ExitRules: []WhaleExitRule{
				{RankFrom: 1, RankTo: 5, SoldPct: 60, Count: 2, MinPnL: -10, MaxPnL: 200, SellPct: 50},
			},
		},
	}
}

// Load reads a YAML rules file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	d := &c.Discovery
	if d.AuditProgressPct >= d.GraduateProgress {
		return fmt.Errorf("audit progress %.1f must be below graduate progress %.1f",
			d.AuditProgressPct, d.GraduateProgress)
	}
	if d.GraduationSolReserve <= d.InitialSolReserve {
		return fmt.Errorf("graduation reserve must exceed initial reserve")
	}
	if c.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be positive")
	}
	if c.Trading.AmountEpsilon <= 0 {
		return fmt.Errorf("amount_epsilon must be positive")
	}
	for i, r := range c.Trading.PeakDrop {
		if r.DropPct <= 0 || r.SellPct <= 0 || r.SellPct > 100 {
			return fmt.Errorf("peak_drop rule %d: invalid drop/sell percentages", i)
		}
	}
	for i, r := range c.Whales.EntryRules {
		if r.RankFrom < 1 || r.RankTo < r.RankFrom {
			return fmt.Errorf("whale entry rule %d: invalid rank window", i)
		}
	}
	for i, r := range c.Whales.ExitRules {
		if r.RankFrom < 1 || r.RankTo < r.RankFrom {
			return fmt.Errorf("whale exit rule %d: invalid rank window", i)
		}
		if r.SellPct <= 0 || r.SellPct > 100 {
			return fmt.Errorf("whale exit rule %d: invalid sell percentage", i)
		}
	}
	return nil
}
