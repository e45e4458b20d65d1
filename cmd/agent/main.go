// Package main runs the trading agent: the market feed drives a single
// reactor loop that routes events through discovery, audit, admission,
// and the live position book, with trade execution against the venue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-token-agent/internal/admission"
	"solana-token-agent/internal/audit"
	"solana-token-agent/internal/config"
	"solana-token-agent/internal/discovery"
	"solana-token-agent/internal/execution"
	"solana-token-agent/internal/feed"
	"solana-token-agent/internal/notify"
	"solana-token-agent/internal/observability"
	"solana-token-agent/internal/position"
	"solana-token-agent/internal/reactor"
	"solana-token-agent/internal/signal"
	"solana-token-agent/internal/storage"
	chstore "solana-token-agent/internal/storage/clickhouse"
	"solana-token-agent/internal/storage/memory"
	"solana-token-agent/internal/storage/migrations"
	pgstore "solana-token-agent/internal/storage/postgres"
	"solana-token-agent/internal/venue"
	"solana-token-agent/internal/venue/stub"
	"solana-token-agent/internal/whale"
)

// agentStores holds the persistence backends.
type agentStores struct {
	tradeLog     storage.TradeLogStore
	auditRecords storage.AuditRecordStore
	tickArchive  storage.TickArchiveStore
}

func main() {
	// Load .env if present; explicit env vars win.
	_ = godotenv.Load()

	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Market feed WebSocket endpoint")
	venueEndpoint := flag.String("venue-endpoint", os.Getenv("VENUE_API_ENDPOINT"), "Venue HTTP API endpoint")
	wallet := flag.String("wallet", os.Getenv("WALLET_ADDRESS"), "Trading wallet address")
	apiKey := flag.String("api-key", os.Getenv("VENUE_API_KEY"), "Venue API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	rulesPath := flag.String("rules", os.Getenv("RULES_FILE"), "YAML rules file (defaults apply when empty)")
	webhookURL := flag.String("webhook-url", os.Getenv("WEBHOOK_URL"), "Notification webhook URL (empty disables)")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for metrics and status")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	dryRun := flag.Bool("dry-run", false, "Use the stub venue: no real orders leave the process")

	flag.Parse()

	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lshortfile)

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if !*dryRun && (*venueEndpoint == "" || *wallet == "") {
		logger.Fatal("--venue-endpoint and --wallet are required (use --dry-run for the stub venue)")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	cfg, err := config.Load(*rulesPath)
	if err != nil {
		logger.Fatalf("load rules: %v", err)
	}

	m := observability.NewMetrics("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	var venueClient venue.Client
	if *dryRun {
		logger.Println("dry run: orders go to the stub venue")
		venueClient = stub.NewClient()
	} else {
		venueClient = venue.NewHTTPClient(*venueEndpoint, *wallet, venue.WithAPIKey(*apiKey))
	}

	var notifier execution.Notifier = notify.Nop{}
	if *webhookURL != "" {
		notifier = notify.NewWebhook(*webhookURL, log.New(os.Stdout, "[notify] ", log.LstdFlags))
	}

	// The book, whale gate, and execution engine reference each other;
	// the two setters below close the loops.
	eval := signal.NewMomentumEvaluator(20, 3, 5, 15)
	positions := position.NewStore(cfg.Trading, eval, log.New(os.Stdout, "[position] ", log.LstdFlags), m)
	whales := whale.New(cfg.Whales, positions, nil, cfg.Trading.DefaultRetries,
		log.New(os.Stdout, "[whale] ", log.LstdFlags), m)
	engine := execution.New(venueClient, positions, whales, stores.tradeLog, notifier, cfg.Trading,
		log.New(os.Stdout, "[execution] ", log.LstdFlags), m)
	positions.SetTrader(engine)
	whales.SetSeller(engine)

	auditor := audit.New(venueClient, log.New(os.Stdout, "[audit] ", log.LstdFlags), m)
	gate := admission.New(cfg.Admission, positions, whales, stores.auditRecords,
		log.New(os.Stdout, "[admission] ", log.LstdFlags), m)
	observer := discovery.New(cfg.Discovery, auditor, gate,
		log.New(os.Stdout, "[discovery] ", log.LstdFlags), m)

	feedClient, err := feed.New(ctx, *feedEndpoint, nil, log.New(os.Stdout, "[feed] ", log.LstdFlags), m)
	if err != nil {
		logger.Fatalf("connect feed: %v", err)
	}
	defer feedClient.Close()

	r := reactor.New(cfg, feedClient, observer, positions, whales, stores.tickArchive,
		log.New(os.Stdout, "[reactor] ", log.LstdFlags), m)

	// Reconcile the book with what the wallet actually holds before the
	// first event arrives.
	engine.Recovery(ctx)

	started := time.Now()
	go startHTTPServer(*httpAddr, r, positions, started, logger)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Printf("agent started: feed=%s rules=%s", *feedEndpoint, *rulesPath)
	err = r.Run(ctx)
	done <- err

	if err != nil && err != context.Canceled {
		logger.Fatalf("reactor error: %v", err)
	}
	logger.Println("shutdown complete")
}

// createStores builds the persistence layer, running migrations on the
// database-backed path.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*agentStores, func(), error) {
	if useMemory {
		stores := &agentStores{
			tradeLog:     memory.NewTradeLogStore(),
			auditRecords: memory.NewAuditRecordStore(),
			tickArchive:  memory.NewTickArchiveStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &agentStores{
		tradeLog:     pgstore.NewTradeLogStore(pool),
		auditRecords: pgstore.NewAuditRecordStore(pool),
		tickArchive:  chstore.NewTickArchiveStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// startHTTPServer serves health, metrics, and state snapshots.
func startHTTPServer(addr string, r *reactor.Reactor, positions *position.Store, started time.Time, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status": "running",
			"uptime": time.Since(started).String(),
		})
	})

	mux.HandleFunc("/positions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, positions.All())
	})

	mux.HandleFunc("/candidates", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		writeJSON(w, r.Candidates(ctx))
	})

	logger.Printf("HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
