package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	ReadOnly    bool

	CORSAllowedOrigins []string

	JWTSecret           string
	APIClientID         string
	APIClientSecretHash string

	StatementSource      string
	StatementAPIURL      string
	StatementBearerToken string
	PSUID                string
	ConsentID            string
	DefaultAccountID     string
	FetchTimeout         time.Duration
	PageSize             int

	ClassificationFields []string

	PlaidClientID    string
	PlaidSecret      string
	PlaidEnv         string
	PlaidAccessToken string

	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	// Cron expression or descriptor; defaults to "@every <SchedulerInterval>".
	SchedulerCron     string
	SchedulerDaysBack int
	// Defaults to DefaultAccountID when unset.
	SchedulerAccountIDs []string

	RulesSeedFile string
}

const (
	SourceStatement = "statement"
	SourcePlaid     = "plaid"
)

var DefaultClassificationFields = []string{
	"remittanceInfo",
	"creditorName",
	"debtorName",
	"proprietaryBankTransactionCode",
}

func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults and validating
// the values the server cannot start without.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	getEnv := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}

	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		APIClientID:          getEnv("API_CLIENT_ID", ""),
		APIClientSecretHash:  getEnv("API_CLIENT_SECRET_HASH", ""),
		StatementSource:      strings.ToLower(getEnv("STATEMENT_SOURCE", SourceStatement)),
		StatementAPIURL:      getEnv("STATEMENT_API_URL", ""),
		StatementBearerToken: getEnv("STATEMENT_BEARER_TOKEN", ""),
		PSUID:                getEnv("PSU_ID", ""),
		ConsentID:            getEnv("CONSENT_ID", ""),
		DefaultAccountID:     getEnv("DEFAULT_ACCOUNT_ID", ""),
		PlaidClientID:        getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:          getEnv("PLAID_SECRET", ""),
		PlaidEnv:             getEnv("PLAID_ENV", "sandbox"),
		PlaidAccessToken:     getEnv("PLAID_ACCESS_TOKEN", ""),
		RulesSeedFile:        getEnv("RULES_SEED_FILE", ""),
		ClassificationFields: splitList(getEnv("CLASSIFICATION_FIELDS", "")),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		SchedulerAccountIDs:  splitList(getEnv("SCHEDULER_ACCOUNT_IDS", "")),
	}
	if len(cfg.ClassificationFields) == 0 {
		cfg.ClassificationFields = append([]string(nil), DefaultClassificationFields...)
	}

	if len(cfg.SchedulerAccountIDs) == 0 && cfg.DefaultAccountID != "" {
		cfg.SchedulerAccountIDs = []string{cfg.DefaultAccountID}
	}

	var err error
	if cfg.ReadOnly, err = parseBool("READ_ONLY", getEnv("READ_ONLY", "false")); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerEnabled, err = parseBool("SCHEDULER_ENABLED", getEnv("SCHEDULER_ENABLED", "false")); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", getEnv("FETCH_TIMEOUT", "30s")); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerInterval, err = parseDuration("SCHEDULER_INTERVAL", getEnv("SCHEDULER_INTERVAL", "1h")); err != nil {
		return Config{}, err
	}
	cfg.SchedulerCron = getEnv("SCHEDULER_CRON", "@every "+cfg.SchedulerInterval.String())
	if _, err := cron.ParseStandard(cfg.SchedulerCron); err != nil {
		return Config{}, fmt.Errorf("invalid SCHEDULER_CRON %q: %w", cfg.SchedulerCron, err)
	}
	if cfg.PageSize, err = parsePositiveInt("PAGE_SIZE", getEnv("PAGE_SIZE", "100")); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerDaysBack, err = parsePositiveInt("SCHEDULER_DAYS_BACK", getEnv("SCHEDULER_DAYS_BACK", "1")); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SchedulerEnabled && len(cfg.SchedulerAccountIDs) == 0 {
		return Config{}, fmt.Errorf("SCHEDULER_ACCOUNT_IDS or DEFAULT_ACCOUNT_ID is required when SCHEDULER_ENABLED=true")
	}
	switch cfg.StatementSource {
	case SourceStatement:
		if cfg.StatementAPIURL == "" {
			return Config{}, fmt.Errorf("STATEMENT_API_URL is required when STATEMENT_SOURCE=%s", SourceStatement)
		}
	case SourcePlaid:
		if cfg.PlaidClientID == "" || cfg.PlaidSecret == "" {
			return Config{}, fmt.Errorf("PLAID_CLIENT_ID and PLAID_SECRET are required when STATEMENT_SOURCE=%s", SourcePlaid)
		}
	default:
		return Config{}, fmt.Errorf("invalid STATEMENT_SOURCE %q", cfg.StatementSource)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, value)
	}
	return n, nil
}
