// Package feed maintains the market WebSocket: token creations plus
// trades on subscribed mints, normalized into domain.TradeEvent. The
// connection self-heals; subscriptions are replayed after a reconnect.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-token-agent/internal/domain"
	"solana-token-agent/internal/observability"
)

// Config configures connection and keepalive behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client is the market feed connection.
type Client struct {
	endpoint string
	config   Config
	logger   *log.Logger
	m        *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// tradeMints holds per-mint trade subscriptions for replay after a
	// reconnect.
	tradeMints   map[string]bool
	tradeMintsMu sync.Mutex

	events chan *domain.TradeEvent
	done   chan struct{}
	wg     sync.WaitGroup

	reconnecting atomic.Bool
}

// New connects to the feed endpoint and subscribes to token creations.
func New(ctx context.Context, endpoint string, config *Config, logger *log.Logger, m *observability.Metrics) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	c := &Client{
		endpoint:   endpoint,
		config:     cfg,
		logger:     logger,
		m:          m,
		tradeMints: make(map[string]bool),
		events:     make(chan *domain.TradeEvent, 10000),
		done:       make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.writeJSON(wireRequest{Method: "subscribeNewToken"}); err != nil {
		c.conn.Close()
		return nil, fmt.Errorf("subscribe new tokens: %w", err)
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Events delivers normalized feed events. The channel closes on Close.
// Sends block rather than drop; the buffer absorbs bursts.
func (c *Client) Events() <-chan *domain.TradeEvent { return c.events }

// SubscribeTrades starts per-trade delivery for the given mints.
func (c *Client) SubscribeTrades(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}
	c.tradeMintsMu.Lock()
	for _, m := range mints {
		c.tradeMints[m] = true
	}
	c.tradeMintsMu.Unlock()
	return c.writeJSON(wireRequest{Method: "subscribeTokenTrade", Keys: mints})
}

// UnsubscribeTrades stops per-trade delivery for the given mints.
func (c *Client) UnsubscribeTrades(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}
	c.tradeMintsMu.Lock()
	for _, m := range mints {
		delete(c.tradeMints, m)
	}
	c.tradeMintsMu.Unlock()
	return c.writeJSON(wireRequest{Method: "unsubscribeTokenTrade", Keys: mints})
}

// Close shuts the connection down and closes the event channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// readLoop reads messages and dispatches events, reconnecting with
// exponential backoff on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect re-dials and replays the new-token and per-mint trade
// subscriptions.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("reconnect failed: %v", err)
		return
	}
	if c.m != nil {
		c.m.FeedReconnects.Inc()
	}
	c.logger.Printf("reconnected to %s", c.endpoint)

	if err := c.writeJSON(wireRequest{Method: "subscribeNewToken"}); err != nil {
		c.logger.Printf("resubscribe new tokens: %v", err)
		return
	}

	c.tradeMintsMu.Lock()
	mints := make([]string, 0, len(c.tradeMints))
	for m := range c.tradeMints {
		mints = append(mints, m)
	}
	c.tradeMintsMu.Unlock()

	if len(mints) > 0 {
		if err := c.writeJSON(wireRequest{Method: "subscribeTokenTrade", Keys: mints}); err != nil {
			c.logger.Printf("resubscribe %d mints: %v", len(mints), err)
		}
	}
}

// handleMessage parses one wire message and emits the event, if any.
func (c *Client) handleMessage(message []byte) {
	ev, ok := parseMessage(message)
	if !ok {
		return
	}
	if c.m != nil {
		c.m.FeedEventsProcessed.WithLabelValues(string(ev.Type)).Inc()
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Wire messages

type wireRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// wireMessage is the superset of creation and trade payloads.
type wireMessage struct {
	TxType                string   `json:"txType"`
	Mint                  string   `json:"mint"`
	Name                  string   `json:"name"`
	Symbol                string   `json:"symbol"`
	URI                   string   `json:"uri"`
	BondingCurveKey       string   `json:"bondingCurveKey"`
	TraderPublicKey       string   `json:"traderPublicKey"`
	InitialBuy            float64  `json:"initialBuy"`
	TokenAmount           float64  `json:"tokenAmount"`
	SolAmount             float64  `json:"solAmount"`
	NewTokenBalance       *float64 `json:"newTokenBalance"`
	VSolInBondingCurve    float64  `json:"vSolInBondingCurve"`
	VTokensInBondingCurve float64  `json:"vTokensInBondingCurve"`
	MarketCapSol          float64  `json:"marketCapSol"`
	Signature             string   `json:"signature"`
}

// parseMessage normalizes a wire message to a TradeEvent. Subscription
// acks and unknown txTypes are dropped.
func parseMessage(message []byte) (*domain.TradeEvent, bool) {
	var w wireMessage
	if err := json.Unmarshal(message, &w); err != nil {
		return nil, false
	}
	if w.Mint == "" {
		return nil, false
	}

	ev := &domain.TradeEvent{
		Mint:       w.Mint,
		Name:       w.Name,
		Symbol:     w.Symbol,
		URI:        w.URI,
		Pool:       w.BondingCurveKey,
		Trader:     w.TraderPublicKey,
		SolAmt:     w.SolAmount,
		NewBalance: w.NewTokenBalance,
		SolReserve: w.VSolInBondingCurve,
		MarketCap:  w.MarketCapSol,
		Timestamp:  time.Now().UnixMilli(),
		Signature:  w.Signature,
	}

	switch w.TxType {
	case "create":
		ev.Type = domain.EventCreate
		ev.TokenAmt = w.InitialBuy
	case "buy":
		ev.Type = domain.EventBuy
		ev.TokenAmt = w.TokenAmount
	case "sell":
		ev.Type = domain.EventSell
		ev.TokenAmt = w.TokenAmount
	default:
		return nil, false
	}
	return ev, true
}
