// Package main replays a transfer log through an in-memory ledger and
// answers historical balance queries against the rebuilt histories.
//
// Input is JSONL, one transfer per line:
//
//	{"from":"<base58|empty for mint>","to":"<base58|empty for burn>","amount":10,"timestamp":1700000000}
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/ledger"
	"twab-ledger/internal/oracle"
	"twab-ledger/internal/storage/memory"
	"twab-ledger/internal/verification"
)

// auditEmitter captures every emitted snapshot event synchronously so a
// replay can be cross-checked against its own audit trail.
type auditEmitter struct {
	store *memory.SnapshotEventStore
}

func (e auditEmitter) Emit(ctx context.Context, ev domain.SnapshotRecorded) {
	_ = e.store.InsertBulk(ctx, []*domain.SnapshotRecorded{&ev})
}

func main() {
	// Parse flags
	input := flag.String("input", "", "Transfer log file, JSONL (required)")
	account := flag.String("account", "", "Account to query (required)")
	at := flag.String("at", "", "Comma-separated Unix-second timestamps to query (required)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	verify := flag.Bool("verify", false, "Cross-check rebuilt histories against the replay's audit trail")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *input == "" {
		logger.Fatal("--input is required")
	}
	if *account == "" {
		logger.Fatal("--account is required")
	}
	if *at == "" {
		logger.Fatal("--at is required")
	}

	queryAccount, err := domain.ParseAccount(*account)
	if err != nil {
		logger.Fatalf("invalid --account: %v", err)
	}

	targets, err := parseTargets(*at)
	if err != nil {
		logger.Fatalf("invalid --at: %v", err)
	}

	ctx := context.Background()

	balances := memory.NewBalanceStore()
	histories := memory.NewHistoryStore()
	auditLog := memory.NewSnapshotEventStore()

	ldg, err := ledger.New(ledger.Config{
		Name:     "Replay",
		Symbol:   "RPL",
		Decimals: 9,
	}, balances, histories, auditEmitter{store: auditLog})
	if err != nil {
		logger.Fatalf("create ledger: %v", err)
	}

	applied, maxTimestamp, accounts, err := replayLog(ctx, ldg, *input)
	if err != nil {
		logger.Fatalf("replay %s: %v", *input, err)
	}
	logger.Printf("Replayed %d transfers from %s", applied, *input)

	if *verify {
		verifier := verification.New(histories, auditLog)
		report, err := verifier.VerifyAccounts(ctx, accounts)
		if err != nil {
			logger.Fatalf("verify replay: %v", err)
		}
		if report.DivergentAccounts > 0 {
			for _, result := range report.Results {
				for _, d := range result.Divergences {
					logger.Printf("divergence %s %s: audit log has %v, history has %v",
						result.Account, d.Field, d.Expected, d.Actual)
				}
			}
			logger.Fatalf("verification failed: %d of %d accounts diverged",
				report.DivergentAccounts, report.TotalAccounts)
		}
		logger.Printf("Verified %d accounts against the audit trail", report.TotalAccounts)
	}

	// Queries are bounded by the newest replayed event, not wall time,
	// so replays of historical logs stay deterministic.
	now := maxTimestamp
	if wall := uint32(time.Now().Unix()); wall > now {
		now = wall
	}

	orc := oracle.New(histories, ldg)
	results, err := orc.GetBalancesAt(ctx, queryAccount, targets, now)
	if err != nil {
		logger.Fatalf("query balances: %v", err)
	}

	if *outputJSON {
		out := make([]map[string]any, len(targets))
		for i := range targets {
			out[i] = map[string]any{
				"account": queryAccount,
				"target":  targets[i],
				"balance": results[i],
			}
		}
		json.NewEncoder(os.Stdout).Encode(out)
		return
	}

	for i := range targets {
		fmt.Printf("%s @ %d: %d\n", queryAccount, targets[i], results[i])
	}
}

// replayLog feeds every transfer line through the ledger in file order.
// Returns the number of applied transfers, the newest timestamp seen and
// the non-zero accounts touched, in first-seen order.
func replayLog(ctx context.Context, ldg *ledger.Ledger, path string) (int, uint32, []domain.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	var (
		applied      int
		maxTimestamp uint32
		lineNo       int
		accounts     []domain.Account
	)
	seen := make(map[domain.Account]struct{})
	touch := func(a domain.Account) {
		if a.IsZero() {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		accounts = append(accounts, a)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rec domain.TransferRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return applied, maxTimestamp, accounts, fmt.Errorf("line %d: %w", lineNo, err)
		}

		from, err := resolveAccount(rec.From)
		if err != nil {
			return applied, maxTimestamp, accounts, fmt.Errorf("line %d from: %w", lineNo, err)
		}
		to, err := resolveAccount(rec.To)
		if err != nil {
			return applied, maxTimestamp, accounts, fmt.Errorf("line %d to: %w", lineNo, err)
		}

		switch {
		case from.IsZero():
			err = ldg.Mint(ctx, to, rec.Amount, rec.Timestamp)
		case to.IsZero():
			err = ldg.Burn(ctx, from, rec.Amount, rec.Timestamp)
		default:
			err = ldg.Transfer(ctx, from, to, rec.Amount, rec.Timestamp)
		}
		if err != nil {
			return applied, maxTimestamp, accounts, fmt.Errorf("line %d: %w", lineNo, err)
		}

		applied++
		touch(from)
		touch(to)
		if rec.Timestamp > maxTimestamp {
			maxTimestamp = rec.Timestamp
		}
	}
	if err := scanner.Err(); err != nil {
		return applied, maxTimestamp, accounts, err
	}

	return applied, maxTimestamp, accounts, nil
}

func resolveAccount(s string) (domain.Account, error) {
	if s == "" || domain.Account(s) == domain.ZeroAccount {
		return domain.ZeroAccount, nil
	}
	return domain.ParseAccount(s)
}

func parseTargets(s string) ([]uint32, error) {
	var targets []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", part, err)
		}
		targets = append(targets, uint32(v))
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no timestamps given")
	}
	return targets, nil
}
