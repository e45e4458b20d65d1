// Package stub provides a configurable in-memory venue.Client for tests.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-token-agent/internal/venue"
)

// ErrUnavailable is returned when a probe endpoint is marked failing.
var ErrUnavailable = errors.New("venue unavailable")

// Client implements venue.Client for testing. All fields may be mutated
// between calls; access is mutex-guarded so async confirmation
// goroutines can race against test setup safely.
type Client struct {
	mu sync.Mutex

	// Submit behavior
	SubmitErr   error           // returned by Submit when non-nil
	FillPrice   float64         // SOL per token applied to fills
	Fee         float64         // fee reported per fill
	Submissions []venue.SubmitRequest
	nextSig     int

	// Confirmation behavior: signatures listed here are "confirmed".
	Confirmed map[string]bool

	// Data reads
	WalletHoldings []venue.Holding
	Holders        map[string][]venue.TopHolder
	DevTokens      map[string][]venue.DeveloperToken
	ReplyBoards    map[string]*venue.Replies
	Socials        map[string]*venue.SocialLinks

	// FailProbes makes all data reads fail, for fail-closed audit tests.
	FailProbes bool
}

// NewClient creates a stub with sane fill defaults.
func NewClient() *Client {
	return &Client{
		FillPrice:   0.00001,
		Fee:         0.0005,
		Confirmed:   make(map[string]bool),
		Holders:     make(map[string][]venue.TopHolder),
		DevTokens:   make(map[string][]venue.DeveloperToken),
		ReplyBoards: make(map[string]*venue.Replies),
		Socials:     make(map[string]*venue.SocialLinks),
	}
}

var _ venue.Client = (*Client)(nil)

// Submit records the request and returns a handle with a fresh signature.
func (c *Client) Submit(_ context.Context, req venue.SubmitRequest) (*venue.TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubmitErr != nil {
		return nil, c.SubmitErr
	}

	c.Submissions = append(c.Submissions, req)
	c.nextSig++
	sig := fmt.Sprintf("stub-sig-%d", c.nextSig)

	h := &venue.TxHandle{Signature: sig, Price: c.FillPrice, Fee: c.Fee}
	if req.Action == "buy" {
		h.SolAmt = req.Amount
		h.TokenAmt = req.Amount / c.FillPrice
	} else {
		h.TokenAmt = req.Amount
		h.SolAmt = req.Amount * c.FillPrice
	}
	return h, nil
}

// Confirm marks a signature as confirmed.
func (c *Client) Confirm(sig string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Confirmed[sig] = true
}

// LastSignature returns the most recently issued stub signature.
func (c *Client) LastSignature() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("stub-sig-%d", c.nextSig)
}

// SubmitCount returns how many submissions were recorded.
func (c *Client) SubmitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Submissions)
}

// RecentSignatures returns all confirmed signatures.
func (c *Client) RecentSignatures(_ context.Context, _ int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sigs := make([]string, 0, len(c.Confirmed))
	for sig := range c.Confirmed {
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Holdings returns the configured wallet holdings.
func (c *Client) Holdings(_ context.Context) ([]venue.Holding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]venue.Holding(nil), c.WalletHoldings...), nil
}

// TopHolders returns the configured leaderboard for a mint.
func (c *Client) TopHolders(_ context.Context, mint string, limit int) ([]venue.TopHolder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailProbes {
		return nil, ErrUnavailable
	}
	holders := c.Holders[mint]
	if limit > 0 && limit < len(holders) {
		holders = holders[:limit]
	}
	return append([]venue.TopHolder(nil), holders...), nil
}

// DeveloperTokens returns the configured developer token list.
func (c *Client) DeveloperTokens(_ context.Context, wallet string) ([]venue.DeveloperToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailProbes {
		return nil, ErrUnavailable
	}
	return append([]venue.DeveloperToken(nil), c.DevTokens[wallet]...), nil
}

// TokenReplies returns the configured reply board.
func (c *Client) TokenReplies(_ context.Context, mint string) (*venue.Replies, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailProbes {
		return nil, ErrUnavailable
	}
	if r, ok := c.ReplyBoards[mint]; ok {
		cp := *r
		return &cp, nil
	}
	return &venue.Replies{}, nil
}

// TokenSocials returns the configured social links.
func (c *Client) TokenSocials(_ context.Context, mint string) (*venue.SocialLinks, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailProbes {
		return nil, ErrUnavailable
	}
	if s, ok := c.Socials[mint]; ok {
		cp := *s
		return &cp, nil
	}
	return &venue.SocialLinks{}, nil
}
