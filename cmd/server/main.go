// Package main provides the unified balance-history service:
// - Ledger API: mint/burn/transfer with snapshot bookkeeping
// - Oracle API: historical average-balance queries
// - Event stream: websocket feed of recorded snapshots
// - Optional ClickHouse audit sink for emitted events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/events"
	"twab-ledger/internal/indexer"
	"twab-ledger/internal/ledger"
	"twab-ledger/internal/observability"
	"twab-ledger/internal/oracle"
	"twab-ledger/internal/storage"
	chstore "twab-ledger/internal/storage/clickhouse"
	"twab-ledger/internal/storage/memory"
	"twab-ledger/internal/storage/migrations"
	pgstore "twab-ledger/internal/storage/postgres"
	"twab-ledger/internal/stream"
	"twab-ledger/internal/twab"
)

// Server wires the ledger, oracle and event plumbing behind HTTP.
type Server struct {
	ledger *ledger.Ledger
	oracle *oracle.Oracle
	hub    *stream.Hub
	logger *log.Logger
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "API listen address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse audit sink connection string (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	tokenName := flag.String("token-name", envOr("TOKEN_NAME", "Ticket"), "Token name")
	tokenSymbol := flag.String("token-symbol", envOr("TOKEN_SYMBOL", "TKT"), "Token symbol")
	tokenDecimals := flag.Uint("token-decimals", 9, "Token decimals (must be > 0)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *tokenDecimals == 0 || *tokenDecimals > 255 {
		logger.Fatal("--token-decimals must be between 1 and 255")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	// Create stores
	balances, histories, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Event bus feeding the websocket hub and the optional audit sink
	bus := events.NewBus()

	ldg, err := ledger.New(ledger.Config{
		Name:     *tokenName,
		Symbol:   *tokenSymbol,
		Decimals: uint8(*tokenDecimals),
	}, balances, histories, bus)
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	server := &Server{
		ledger: ldg,
		oracle: oracle.New(histories, ldg),
		hub:    stream.NewHub(bus, logger),
		logger: logger,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.hub.Run(ctx)
	}()

	// Optional ClickHouse audit sink
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse audit sink: %v", err)
		}
		defer conn.Close()

		sink := indexer.NewSink(bus, chstore.NewSnapshotEventStore(conn), indexer.Options{
			Logger: log.New(os.Stdout, "[audit] ", log.LstdFlags),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(ctx)
		}()
		logger.Println("ClickHouse audit sink enabled")
	}

	// Metrics server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("Metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	// API server
	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Printf("API listening on %s (storage: %s)", *listenAddr, storageKind(*useMemory))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}

	cancel()
	wg.Wait()
	logger.Println("Shutdown complete")
}

func storageKind(useMemory bool) string {
	if useMemory {
		return "memory"
	}
	return "postgres"
}

// createStores creates balance and history stores.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (storage.BalanceStore, storage.HistoryStore, func(), error) {
	if useMemory {
		return memory.NewBalanceStore(), memory.NewHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	return pgstore.NewBalanceStore(pool), pgstore.NewHistoryStore(pool), pool.Close, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /v1/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/balance-at", s.handleBalanceAt)
	mux.HandleFunc("POST /v1/balances-at", s.handleBalancesAt)
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/mint", s.handleMint)
	mux.HandleFunc("POST /v1/burn", s.handleBurn)
	mux.Handle("/ws", s.hub)

	return mux
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccount(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := s.ledger.BalanceOf(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, map[string]any{
		"account": account,
		"balance": balance,
	})
}

func (s *Server) handleBalanceAt(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccount(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := parseTimestamp(r.URL.Query().Get("t"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := s.oracle.GetBalanceAt(r.Context(), account, target, nowSeconds())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, map[string]any{
		"account": account,
		"target":  target,
		"balance": balance,
	})
}

func (s *Server) handleBalancesAt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string   `json:"account"`
		Targets []uint32 `json:"targets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	account, err := domain.ParseAccount(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balances, err := s.oracle.GetBalancesAt(r.Context(), account, req.Targets, nowSeconds())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, map[string]any{
		"account":  account,
		"targets":  req.Targets,
		"balances": balances,
	})
}

type moveRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	from, err := domain.ParseAccount(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}
	to, err := domain.ParseAccount(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}

	if err := s.ledger.Transfer(r.Context(), from, to, req.Amount, nowSeconds()); err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	to, err := domain.ParseAccount(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}

	if err := s.ledger.Mint(r.Context(), to, req.Amount, nowSeconds()); err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	from, err := domain.ParseAccount(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}

	if err := s.ledger.Burn(r.Context(), from, req.Amount, nowSeconds()); err != nil {
		writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// ledgerStatus maps ledger errors to HTTP statuses. Accumulator overflow
// is an invariant-level failure, not a client error.
func ledgerStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, domain.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, twab.ErrAmountOverflow):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// nowSeconds returns the current wall-clock time truncated to 32-bit
// Unix seconds, the granularity of all recorded timestamps.
func nowSeconds() uint32 {
	return uint32(time.Now().Unix())
}

func parseTimestamp(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("missing timestamp parameter")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return uint32(v), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
