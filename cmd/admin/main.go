package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/notification"
	"banksync/internal/domain/syncer"
	"banksync/internal/infrastructure/birbank"
	"banksync/internal/infrastructure/crypto"
	"banksync/internal/infrastructure/postgres"
	"banksync/internal/shared/config"
)

const usage = `Banksync Admin CLI - Management commands for the bank connector

Usage:
  admin <command> [options]

Commands:
  list-connections   List bank connections and their sync state
  connect            Run account discovery and journal auto-linking for a connection
  sync-now           Trigger a statement sync pass immediately
  rotate-secret      Replace a connection's credentials and reset it to draft

Examples:
  # List every connection
  admin list-connections

  # Discover and link accounts for a freshly created connection
  admin connect --connection-id=3f1c...

  # Sync one connection now
  admin sync-now --connection-id=3f1c...

  # Sync several connections, or everything that is ready
  admin sync-now --connection-id=3f1c...,9a2e...
  admin sync-now --all

  # Sync only the lines destined for one journal
  admin sync-now --connection-id=3f1c... --journal=7b44...

  # Rotate credentials (connection returns to draft, links are cleared)
  admin rotate-secret --connection-id=3f1c... --username=acme --secret=...
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "list-connections":
		runListConnections(os.Args[2:])
	case "connect":
		runConnect(os.Args[2:])
	case "sync-now":
		runSyncNow(os.Args[2:])
	case "rotate-secret":
		runRotateSecret(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// cliDeps holds the pieces a CLI command needs. Alerts raised from the CLI
// are record-only: no push delivery without the server's FCM client.
type cliDeps struct {
	db           *postgres.DB
	connections  *postgres.ConnectionRepository
	orchestrator *syncer.Orchestrator
}

func newCLIDeps(cfg *config.Config) (*cliDeps, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	connectionRepo := postgres.NewConnectionRepository(db, encryptor)
	journalRepo := postgres.NewJournalRepository(db)
	statementRepo := postgres.NewStatementRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	headers := birbank.NewBrowserHeaders()
	client := birbank.NewClient(
		cfg.Birbank.ProductionURL,
		cfg.Birbank.SandboxURL,
		cfg.Birbank.RequestTimeout,
		cfg.Birbank.StatementTimeout,
		headers,
	)

	notificationService := notification.NewService(alertRepo, nil)

	tokens := connection.NewTokenManager(client)
	guard := connection.NewGuard()
	discovery := syncer.NewDiscoveryService(client, tokens, journalRepo)
	txSync := syncer.NewTransactionSync(client, tokens, statementRepo)
	orchestrator := syncer.NewOrchestrator(
		connectionRepo, journalRepo, discovery, txSync,
		tokens, headers, guard, notificationService,
		cfg.Sync.MaxRetries, cfg.Sync.RetryBackoff,
	)

	return &cliDeps{
		db:           db,
		connections:  connectionRepo,
		orchestrator: orchestrator,
	}, nil
}

func (d *cliDeps) close() {
	d.db.Close()
}

func mustDeps() *cliDeps {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	deps, err := newCLIDeps(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	log.Println("Connected to database")
	return deps
}

func runListConnections(args []string) {
	fs := flag.NewFlagSet("list-connections", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	deps := mustDeps()
	defer deps.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	connections, err := deps.connections.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list connections: %v", err)
	}

	if len(connections) == 0 {
		fmt.Println("No connections configured")
		return
	}

	for _, conn := range connections {
		fmt.Printf("\n=== %s ===\n", conn.ID)
		fmt.Printf("  Name:         %s\n", conn.Name)
		fmt.Printf("  Environment:  %s\n", conn.Environment)
		fmt.Printf("  Status:       %s\n", conn.Status)
		if conn.LastSuccessAt != nil {
			fmt.Printf("  Last success: %s\n", conn.LastSuccessAt.Format(time.RFC3339))
		} else {
			fmt.Printf("  Last success: never\n")
		}
		if conn.LastError != "" {
			fmt.Printf("  Last error:   %s\n", conn.LastError)
		}
	}
}

func runConnect(args []string) {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)

	connID := fs.String("connection-id", "", "Connection ID to discover and link")
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation (e.g., 1m, 10m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin connect [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin connect --connection-id=3f1c...")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *connID == "" {
		fmt.Println("Error: must specify --connection-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	deps := mustDeps()
	defer deps.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Printf("Starting discovery for connection %s", *connID)
	startTime := time.Now()

	result, err := deps.orchestrator.Connect(ctx, *connID)
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}

	fmt.Printf("\n=== Connection %s ===\n", result.ConnectionID)
	fmt.Printf("  Accounts found:  %d\n", result.AccountsFound)
	fmt.Printf("  Newly linked:    %d\n", result.Linked)
	fmt.Printf("  Already linked:  %d\n", result.AlreadyLinked)
	if len(result.Pending) > 0 {
		fmt.Printf("  Unmatched accounts (no journal with this IBAN):\n")
		for _, label := range result.Pending {
			fmt.Printf("    - %s\n", label)
		}
	}

	log.Printf("Discovery completed in %v", time.Since(startTime))
}

func runSyncNow(args []string) {
	fs := flag.NewFlagSet("sync-now", flag.ExitOnError)

	connIDStr := fs.String("connection-id", "", "Connection ID(s) to sync (comma-separated for multiple)")
	allConns := fs.Bool("all", false, "Sync every connection that is ready")
	journalID := fs.String("journal", "", "Restrict the pass to one linked journal (single connection only)")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync-now [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin sync-now --connection-id=3f1c...")
		fmt.Println("  admin sync-now --connection-id=3f1c...,9a2e...")
		fmt.Println("  admin sync-now --all")
		fmt.Println("  admin sync-now --connection-id=3f1c... --journal=7b44...")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *connIDStr == "" && !*allConns {
		fmt.Println("Error: must specify --connection-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	deps := mustDeps()
	defer deps.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var connIDs []string

	if *allConns {
		connections, err := deps.connections.ListSyncable(ctx)
		if err != nil {
			log.Fatalf("Failed to list connections: %v", err)
		}
		for _, conn := range connections {
			connIDs = append(connIDs, conn.ID)
		}
		log.Printf("Found %d connection(s) ready to sync", len(connIDs))
	} else {
		for _, p := range strings.Split(*connIDStr, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				connIDs = append(connIDs, p)
			}
		}
	}

	if len(connIDs) == 0 {
		log.Println("No connections to sync")
		return
	}

	if *journalID != "" && len(connIDs) != 1 {
		log.Fatalf("--journal requires exactly one --connection-id")
	}

	log.Printf("Starting sync for %d connection(s)", len(connIDs))
	startTime := time.Now()

	failures := 0
	for _, id := range connIDs {
		var result *syncer.Result
		var err error
		if *journalID != "" {
			result, err = deps.orchestrator.RunSyncForJournal(ctx, id, *journalID)
		} else {
			result, err = deps.orchestrator.RunSync(ctx, id)
		}
		if err != nil {
			failures++
			log.Printf("Sync failed for %s: %v", id, err)
			continue
		}
		printSyncResult(result)
	}

	log.Printf("Sync completed in %v (%d failed)", time.Since(startTime), failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func printSyncResult(result *syncer.Result) {
	fmt.Printf("\n=== Connection %s ===\n", result.ConnectionID)
	fmt.Printf("  Accounts synced:   %d\n", result.Accounts)
	fmt.Printf("  Records fetched:   %d\n", result.Found)
	fmt.Printf("  Imported:          %d\n", result.Imported)
	fmt.Printf("  Duplicates:        %d\n", result.Duplicates)
	fmt.Printf("  Parse failures:    %d\n", result.ParseFailures)
	fmt.Printf("  Before history:    %d\n", result.HistorySkipped)
	if !result.LatestDate.IsZero() {
		fmt.Printf("  Latest record:     %s\n", result.LatestDate.Format("2006-01-02"))
	}
}

func runRotateSecret(args []string) {
	fs := flag.NewFlagSet("rotate-secret", flag.ExitOnError)

	connID := fs.String("connection-id", "", "Connection ID to rotate")
	username := fs.String("username", "", "New bank username")
	secret := fs.String("secret", "", "New bank secret")
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin rotate-secret [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin rotate-secret --connection-id=3f1c... --username=acme --secret=...")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *connID == "" || *username == "" || *secret == "" {
		fmt.Println("Error: must specify --connection-id, --username and --secret")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	deps := mustDeps()
	defer deps.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := deps.orchestrator.Reset(ctx, *connID, *username, *secret); err != nil {
		log.Fatalf("Rotate failed: %v", err)
	}

	fmt.Printf("Credentials rotated for %s; connection is back in draft, run 'admin connect' to relink\n", *connID)
}
