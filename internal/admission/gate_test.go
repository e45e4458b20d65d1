package admission

import (
	"context"
	"testing"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/storage/memory"
)

type fakePromoter struct {
	admitted []position.Admission
	reject   bool
}

func (p *fakePromoter) Admit(a position.Admission) bool {
	if p.reject {
		return false
	}
	p.admitted = append(p.admitted, a)
	return true
}

type fakeSeeder struct {
	seeded map[string]map[string]float64
}

func (s *fakeSeeder) Seed(mint string, holders map[string]float64) {
	if s.seeded == nil {
		s.seeded = make(map[string]map[string]float64)
	}
	s.seeded[mint] = holders
}

// passingCandidate clears every default threshold.
func passingCandidate(mint, name, symbol string) *domain.Candidate {
	return &domain.Candidate{
		Mint:    mint,
		Name:    name,
		Symbol:  symbol,
		Holders: map[string]float64{"w1": 100, "w2": 50},
		Prices: []domain.PricePoint{
			{TimestampMs: 1000, Price: 0.00003, MarketCap: 30000},
		},
		Audit: &domain.AuditScore{
			Mint:            mint,
			DevHoldPct:      5,
			DevSoldPct:      10,
			ReplyCount:      25,
			ReplyUniqueness: 0.8,
			HolderCount:     60,
			Top10HoldPct:    25,
			SuspicionScore:  10,
			TradeCount:      100,
			BuyRatio:        0.65,
			BuyVolumeRatio:  0.6,
		},
	}
}

func TestConsiderGraduates(t *testing.T) {
	book := &fakePromoter{}
	whales := &fakeSeeder{}
	records := memory.NewAuditRecordStore()
	gate := New(config.Default().Admission, book, whales, records, nil, nil)

	ok, reason := gate.Consider(context.Background(), passingCandidate("mint1", "Token", "TOK"))
	if !ok || reason != "" {
		t.Fatalf("Consider = (%v, %q), want (true, \"\")", ok, reason)
	}

	if len(book.admitted) != 1 {
		t.Fatalf("Expected 1 admission, got %d", len(book.admitted))
	}
	adm := book.admitted[0]
	if adm.Source != domain.SourceDiscovery {
		t.Errorf("Source = %s, want %s", adm.Source, domain.SourceDiscovery)
	}
	if adm.MarketCap != 30000 {
		t.Errorf("MarketCap = %f, want 30000 (last observed price point)", adm.MarketCap)
	}
	if _, ok := whales.seeded["mint1"]; !ok {
		t.Error("Whale roster not seeded on graduation")
	}

	recs, _ := records.GetByVerdict(context.Background(), domain.VerdictGraduated)
	if len(recs) != 1 {
		t.Errorf("Expected 1 graduated audit record, got %d", len(recs))
	}
}

func TestConsiderFirstFailureWins(t *testing.T) {
	gate := New(config.Default().Admission, &fakePromoter{}, nil, nil, nil, nil)

	// Fails dev_hold AND trades; dev_hold is checked first.
	c := passingCandidate("mint1", "Token", "TOK")
	c.Audit.DevHoldPct = 90
	c.Audit.TradeCount = 1

	ok, reason := gate.Consider(context.Background(), c)
	if ok {
		t.Fatal("Expected rejection")
	}
	if reason != ReasonDevHold {
		t.Errorf("Reason = %q, want %q (first failing predicate)", reason, ReasonDevHold)
	}
}

func TestConsiderRejectionReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Candidate)
		want   string
	}{
		{"dev sold", func(c *domain.Candidate) { c.Audit.DevSoldPct = 80 }, ReasonDevSold},
		{"replies", func(c *domain.Candidate) { c.Audit.ReplyCount = 2 }, ReasonReplies},
		{"uniqueness", func(c *domain.Candidate) { c.Audit.ReplyUniqueness = 0.1 }, ReasonReplyUnique},
		{"holders", func(c *domain.Candidate) { c.Audit.HolderCount = 3 }, ReasonHolders},
		{"top10", func(c *domain.Candidate) { c.Audit.Top10HoldPct = 95 }, ReasonTop10},
		{"suspicion", func(c *domain.Candidate) { c.Audit.SuspicionScore = 99 }, ReasonSuspicion},
		{"trades", func(c *domain.Candidate) { c.Audit.TradeCount = 5 }, ReasonTrades},
		{"buy ratio", func(c *domain.Candidate) { c.Audit.BuyRatio = 0.2 }, ReasonBuyRatio},
		{"buy volume", func(c *domain.Candidate) { c.Audit.BuyVolumeRatio = 0.1 }, ReasonBuyVolumeRatio},
		{"no audit", func(c *domain.Candidate) { c.Audit = nil }, ReasonNoAudit},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := New(config.Default().Admission, &fakePromoter{}, nil, nil, nil, nil)
			c := passingCandidate("mint1", "Token", string(rune('A'+i)))
			tc.mutate(c)

			ok, reason := gate.Consider(context.Background(), c)
			if ok {
				t.Fatal("Expected rejection")
			}
			if reason != tc.want {
				t.Errorf("Reason = %q, want %q", reason, tc.want)
			}
		})
	}
}

func TestConsiderSocialRequirements(t *testing.T) {
	cfg := config.Default().Admission
	cfg.RequireTwitter = true
	gate := New(cfg, &fakePromoter{}, nil, nil, nil, nil)

	c := passingCandidate("mint1", "Token", "TOK")
	ok, reason := gate.Consider(context.Background(), c)
	if ok || reason != ReasonTwitter {
		t.Errorf("Consider = (%v, %q), want (false, %q)", ok, reason, ReasonTwitter)
	}

	c2 := passingCandidate("mint2", "Other", "OTH")
	c2.Audit.HasTwitter = true
	if ok, _ := gate.Consider(context.Background(), c2); !ok {
		t.Error("Candidate with required social should pass")
	}
}

func TestConsiderDedupe(t *testing.T) {
	book := &fakePromoter{}
	gate := New(config.Default().Admission, book, nil, nil, nil, nil)
	now := int64(1_000_000)
	gate.SetClock(func() int64 { return now })

	if ok, _ := gate.Consider(context.Background(), passingCandidate("mint1", "Token", "TOK")); !ok {
		t.Fatal("First candidate should graduate")
	}

	ok, reason := gate.Consider(context.Background(), passingCandidate("mint2", "token", "tok"))
	if ok || reason != ReasonDuplicate {
		t.Errorf("Copycat metadata: Consider = (%v, %q), want (false, %q)", ok, reason, ReasonDuplicate)
	}

	// Same pair well past the dedupe window is fresh again.
	now += config.Default().Admission.DedupeWindow.Std().Milliseconds() + 1
	if ok, reason := gate.Consider(context.Background(), passingCandidate("mint3", "Token", "TOK")); !ok {
		t.Errorf("Pair past window rejected: %q", reason)
	}
}

func TestConsiderPaused(t *testing.T) {
	cfg := config.Default().Admission
	cfg.AcceptNew = false
	gate := New(cfg, &fakePromoter{}, nil, nil, nil, nil)

	ok, reason := gate.Consider(context.Background(), passingCandidate("mint1", "Token", "TOK"))
	if ok || reason != ReasonPaused {
		t.Errorf("Consider = (%v, %q), want (false, %q)", ok, reason, ReasonPaused)
	}
}

func TestBlockedCandidateRecorded(t *testing.T) {
	records := memory.NewAuditRecordStore()
	gate := New(config.Default().Admission, &fakePromoter{}, nil, records, nil, nil)

	c := passingCandidate("mint1", "Token", "TOK")
	c.Audit.Top10HoldPct = 95
	gate.Consider(context.Background(), c)

	recs, _ := records.GetByVerdict(context.Background(), domain.VerdictBlocked)
	if len(recs) != 1 {
		t.Fatalf("Expected 1 blocked record, got %d", len(recs))
	}
	if recs[0].Reason != ReasonTop10 {
		t.Errorf("Recorded reason = %q, want %q", recs[0].Reason, ReasonTop10)
	}
}
