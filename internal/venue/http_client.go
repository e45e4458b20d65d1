package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client against the venue's JSON HTTP API.
type HTTPClient struct {
	baseURL     string
	wallet      string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for data reads.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithAPIKey sets the venue API key sent on trade submissions.
func WithAPIKey(key string) ClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

// NewHTTPClient creates a venue client for the given API base URL and
// operator wallet address.
func NewHTTPClient(baseURL, wallet string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		wallet:      wallet,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type submitPayload struct {
	Action       string  `json:"action"`
	Mint         string  `json:"mint"`
	Amount       float64 `json:"amount"`
	Slippage     float64 `json:"slippage"`
	PriorityFee  float64 `json:"priorityFee"`
	ClientNonce  string  `json:"clientNonce"`
	WalletPubkey string  `json:"walletPubkey"`
}

type submitResponse struct {
	Signature string  `json:"signature"`
	TokenAmt  float64 `json:"tokenAmount"`
	SolAmt    float64 `json:"solAmount"`
	Price     float64 `json:"price"`
	Fee       float64 `json:"fee"`
	Error     string  `json:"error,omitempty"`
}

// Submit issues one trade instruction. Submissions are never retried
// here; retry discipline belongs to the execution engine, which tracks
// attempt signatures to avoid double-fills.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (*TxHandle, error) {
	payload := submitPayload{
		Action:       req.Action,
		Mint:         req.Mint,
		Amount:       req.Amount,
		Slippage:     req.SlippagePct,
		PriorityFee:  req.PriorityFee,
		ClientNonce:  req.ClientNonce,
		WalletPubkey: c.wallet,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal submit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trade", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit: HTTP %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var sr submitResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if sr.Error != "" {
		return nil, fmt.Errorf("submit rejected: %s", sr.Error)
	}
	if sr.Signature == "" {
		return nil, fmt.Errorf("submit accepted without signature")
	}

	return &TxHandle{
		Signature: sr.Signature,
		TokenAmt:  sr.TokenAmt,
		SolAmt:    sr.SolAmt,
		Price:     sr.Price,
		Fee:       sr.Fee,
	}, nil
}

// RecentSignatures returns recently confirmed signatures for the wallet.
func (c *HTTPClient) RecentSignatures(ctx context.Context, limit int) ([]string, error) {
	var out struct {
		Signatures []string `json:"signatures"`
	}
	params := url.Values{"wallet": {c.wallet}, "limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "/signatures?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Signatures, nil
}

// Holdings returns the operator's token balances.
func (c *HTTPClient) Holdings(ctx context.Context) ([]Holding, error) {
	var out struct {
		Holdings []Holding `json:"holdings"`
	}
	params := url.Values{"wallet": {c.wallet}}
	if err := c.get(ctx, "/holdings?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}

// TopHolders returns the holder leaderboard for a mint.
func (c *HTTPClient) TopHolders(ctx context.Context, mint string, limit int) ([]TopHolder, error) {
	var out struct {
		Holders []TopHolder `json:"holders"`
	}
	path := fmt.Sprintf("/coins/%s/holders?limit=%d", url.PathEscape(mint), limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Holders, nil
}

// DeveloperTokens returns other mints created by the wallet.
func (c *HTTPClient) DeveloperTokens(ctx context.Context, wallet string) ([]DeveloperToken, error) {
	var out struct {
		Tokens []DeveloperToken `json:"tokens"`
	}
	path := "/developers/" + url.PathEscape(wallet) + "/tokens"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// TokenReplies returns the reply-board summary for a mint.
func (c *HTTPClient) TokenReplies(ctx context.Context, mint string) (*Replies, error) {
	var out Replies
	path := "/coins/" + url.PathEscape(mint) + "/replies"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenSocials returns a mint's social link presence.
func (c *HTTPClient) TokenSocials(ctx context.Context, mint string) (*SocialLinks, error) {
	var raw struct {
		Twitter  string `json:"twitter"`
		Telegram string `json:"telegram"`
		Website  string `json:"website"`
	}
	path := "/coins/" + url.PathEscape(mint)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return &SocialLinks{
		Twitter:  raw.Twitter != "",
		Telegram: raw.Telegram != "",
		Website:  raw.Website != "",
	}, nil
}

// get performs a GET with bounded retries and exponential backoff.
// Only data reads retry; Submit never does.
func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.doGet(ctx, path, result)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("GET %s after %d attempts: %w", path, c.maxRetries+1, lastErr)
}

func (c *HTTPClient) doGet(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return json.Unmarshal(raw, result)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
