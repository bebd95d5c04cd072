package main

import (
	"context"
	"log"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/notification"
	"banksync/internal/domain/syncer"
	"banksync/internal/infrastructure/birbank"
	"banksync/internal/infrastructure/crypto"
	"banksync/internal/infrastructure/firebase"
	"banksync/internal/infrastructure/postgres"
	httphandlers "banksync/internal/interfaces/http"
	"banksync/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	ConnectionHandler *httphandlers.ConnectionHandler
	AlertHandler      *httphandlers.AlertHandler
	JournalHandler    *httphandlers.JournalHandler

	// Lifecycle (for the scheduler job provider)
	ConnectionRepo *postgres.ConnectionRepository
	Orchestrator   *syncer.Orchestrator
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	connectionRepo := postgres.NewConnectionRepository(db, encryptor)
	journalRepo := postgres.NewJournalRepository(db)
	statementRepo := postgres.NewStatementRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	// Initialize the bank client with rotating browser headers
	headers := birbank.NewBrowserHeaders()
	client := birbank.NewClient(
		cfg.Birbank.ProductionURL,
		cfg.Birbank.SandboxURL,
		cfg.Birbank.RequestTimeout,
		cfg.Birbank.StatementTimeout,
		headers,
	)

	// FCM is optional: without credentials, alerts are record-only
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, alertRepo.DeactivateToken)
		if err != nil {
			return nil, err
		}
		messenger = fcm
		log.Println("FCM push delivery enabled")
	} else {
		log.Println("FCM credentials not configured, alerts are record-only")
	}
	notificationService := notification.NewService(alertRepo, messenger)

	// Initialize sync services
	tokens := connection.NewTokenManager(client)
	guard := connection.NewGuard()
	discovery := syncer.NewDiscoveryService(client, tokens, journalRepo)
	txSync := syncer.NewTransactionSync(client, tokens, statementRepo)
	orchestrator := syncer.NewOrchestrator(
		connectionRepo, journalRepo, discovery, txSync,
		tokens, headers, guard, notificationService,
		cfg.Sync.MaxRetries, cfg.Sync.RetryBackoff,
	)

	// Initialize handlers
	connectionHandler := httphandlers.NewConnectionHandler(connectionRepo, journalRepo, orchestrator, cfg.Sync.HistoryDefaultDays)
	alertHandler := httphandlers.NewAlertHandler(notificationService)
	journalHandler := httphandlers.NewJournalHandler(journalRepo, statementRepo)

	return &Dependencies{
		DB:                db,
		ConnectionHandler: connectionHandler,
		AlertHandler:      alertHandler,
		JournalHandler:    journalHandler,
		ConnectionRepo:    connectionRepo,
		Orchestrator:      orchestrator,
	}, nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
