package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Encryption EncryptionConfig
	Birbank    BirbankConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type EncryptionConfig struct {
	Key string
}

// BirbankConfig holds endpoints and timeouts for the Birbank Business B2B API.
// Base URLs are overridable so sandbox tests can point at a local server.
type BirbankConfig struct {
	ProductionURL    string
	SandboxURL       string
	RequestTimeout   time.Duration
	StatementTimeout time.Duration
}

// SyncConfig holds the orchestrator's retry policy and history defaults.
type SyncConfig struct {
	HistoryDefaultDays int
	MaxRetries         int
	RetryBackoff       time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type FirebaseConfig struct {
	CredentialsFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	// Parse scheduler configuration
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true)
	schedulerTimes := strings.Split(getEnv("SCHEDULER_TIMES", "06:00,12:00,18:00"), ",")
	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}
	schedulerRunOnStartup := getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false)

	requestTimeout, err := time.ParseDuration(getEnv("BIRBANK_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIRBANK_REQUEST_TIMEOUT: %w", err)
	}
	statementTimeout, err := time.ParseDuration(getEnv("BIRBANK_STATEMENT_TIMEOUT", "45s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIRBANK_STATEMENT_TIMEOUT: %w", err)
	}

	historyDays, err := strconv.Atoi(getEnv("SYNC_HISTORY_DEFAULT_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_HISTORY_DEFAULT_DAYS: %w", err)
	}
	maxRetries, err := strconv.Atoi(getEnv("SYNC_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_MAX_RETRIES: %w", err)
	}
	retryBackoff, err := time.ParseDuration(getEnv("SYNC_RETRY_BACKOFF", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_RETRY_BACKOFF: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "banksync"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "banksync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Birbank: BirbankConfig{
			ProductionURL:    getEnv("BIRBANK_PRODUCTION_URL", "https://my.birbank.business/api/b2b"),
			SandboxURL:       getEnv("BIRBANK_SANDBOX_URL", "https://pre-my.birbank.business/api/b2b"),
			RequestTimeout:   requestTimeout,
			StatementTimeout: statementTimeout,
		},
		Sync: SyncConfig{
			HistoryDefaultDays: historyDays,
			MaxRetries:         maxRetries,
			RetryBackoff:       retryBackoff,
		},
		Scheduler: SchedulerConfig{
			Enabled:       schedulerEnabled,
			ScheduleTimes: schedulerTimes,
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  schedulerRunOnStartup,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "banksync-connector"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.Sync.MaxRetries < 1 {
		return nil, fmt.Errorf("SYNC_MAX_RETRIES must be at least 1")
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
