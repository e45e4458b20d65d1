// Package venue abstracts the external trading venue: order submission,
// confirmation-signature reads, holdings queries, and the public token
// data the audit probes consume.
package venue

import "context"

// SubmitRequest describes one trade instruction.
type SubmitRequest struct {
	Action      string  // "buy" | "sell"
	Mint        string
	Amount      float64 // SOL for buys, token amount for sells
	SlippagePct float64
	PriorityFee float64 // SOL
	ClientNonce string  // idempotency key, uuid
}

// TxHandle is the venue's acceptance of a submitted instruction.
// Fills are estimates until the signature confirms.
type TxHandle struct {
	Signature string
	TokenAmt  float64 // estimated tokens filled
	SolAmt    float64 // estimated SOL moved
	Price     float64 // estimated SOL per token
	Fee       float64 // SOL fee, including priority fee
}

// Holding is one token balance on the operator's wallet.
type Holding struct {
	Mint   string
	Amount float64
}

// TopHolder is one entry of a token's holder leaderboard.
type TopHolder struct {
	Address string
	Amount  float64
}

// DeveloperToken is one other mint created by a developer wallet.
type DeveloperToken struct {
	Mint      string
	Name      string
	CreatedAt int64
}

// Replies is the reply-board summary for a mint.
type Replies struct {
	Total          int
	UniqueRepliers int
}

// SocialLinks reports which social channels a token's metadata carries.
type SocialLinks struct {
	Twitter  bool
	Telegram bool
	Website  bool
}

// Client is the venue contract consumed by the execution and audit
// engines. Implementations must be safe for concurrent use.
type Client interface {
	// Submit issues one trade instruction. A returned handle means the
	// venue accepted the instruction, not that it confirmed.
	Submit(ctx context.Context, req SubmitRequest) (*TxHandle, error)

	// RecentSignatures returns recently confirmed transaction
	// signatures for the operator's wallet, newest first.
	RecentSignatures(ctx context.Context, limit int) ([]string, error)

	// Holdings returns the operator's current token balances.
	Holdings(ctx context.Context) ([]Holding, error)

	// TopHolders returns the holder leaderboard for a mint, largest
	// first, at most limit entries.
	TopHolders(ctx context.Context, mint string, limit int) ([]TopHolder, error)

	// DeveloperTokens returns other mints created by the wallet.
	DeveloperTokens(ctx context.Context, wallet string) ([]DeveloperToken, error)

	// TokenReplies returns the reply-board summary for a mint.
	TokenReplies(ctx context.Context, mint string) (*Replies, error)

	// TokenSocials returns a mint's social link presence.
	TokenSocials(ctx context.Context, mint string) (*SocialLinks, error)
}
