package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":      "postgres://localhost/bankflow",
		"JWT_SECRET":        "secret",
		"STATEMENT_API_URL": "http://localhost:9090",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SourceStatement, cfg.StatementSource)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
	assert.Equal(t, "@every 1h0m0s", cfg.SchedulerCron)
	assert.Equal(t, 1, cfg.SchedulerDaysBack)
	assert.False(t, cfg.SchedulerEnabled)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, DefaultClassificationFields, cfg.ClassificationFields)
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["PAGE_SIZE"] = "50"
	env["CLASSIFICATION_FIELDS"] = "remittanceInfo, additionalInfo ,"
	env["SCHEDULER_ENABLED"] = "true"
	env["SCHEDULER_INTERVAL"] = "15m"
	env["READ_ONLY"] = "1"
	env["DEFAULT_ACCOUNT_ID"] = "ACC1"
	env["CORS_ALLOWED_ORIGINS"] = "https://app.example.com"

	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, []string{"remittanceInfo", "additionalInfo"}, cfg.ClassificationFields)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, "@every 15m0s", cfg.SchedulerCron)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, []string{"ACC1"}, cfg.SchedulerAccountIDs)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_SchedulerNeedsAccounts(t *testing.T) {
	env := baseEnv()
	env["SCHEDULER_ENABLED"] = "true"
	_, err := FromEnv(lookupFrom(env))
	require.Error(t, err)

	env["SCHEDULER_ACCOUNT_IDS"] = "ACC1,ACC2"
	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC1", "ACC2"}, cfg.SchedulerAccountIDs)
}

func TestFromEnv_SchedulerCron(t *testing.T) {
	env := baseEnv()
	env["SCHEDULER_CRON"] = "0 6 * * 1-5"
	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, "0 6 * * 1-5", cfg.SchedulerCron)

	env["SCHEDULER_CRON"] = "every morning"
	_, err = FromEnv(lookupFrom(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_CRON")
}

func TestFromEnv_MissingDatabaseURL(t *testing.T) {
	env := baseEnv()
	delete(env, "DATABASE_URL")
	_, err := FromEnv(lookupFrom(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestFromEnv_InvalidPageSize(t *testing.T) {
	env := baseEnv()
	env["PAGE_SIZE"] = "0"
	_, err := FromEnv(lookupFrom(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}

func TestFromEnv_PlaidRequiresCredentials(t *testing.T) {
	env := baseEnv()
	env["STATEMENT_SOURCE"] = "plaid"
	_, err := FromEnv(lookupFrom(env))
	require.Error(t, err)

	env["PLAID_CLIENT_ID"] = "id"
	env["PLAID_SECRET"] = "secret"
	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, SourcePlaid, cfg.StatementSource)
	assert.Equal(t, "sandbox", cfg.PlaidEnv)
}

func TestFromEnv_UnknownSource(t *testing.T) {
	env := baseEnv()
	env["STATEMENT_SOURCE"] = "ftp"
	_, err := FromEnv(lookupFrom(env))
	assert.Error(t, err)
}
