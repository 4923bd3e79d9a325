package cli

import (
	"context"
	"fmt"

	"bankflow-server/src/classify"
	"bankflow-server/src/config"
	"bankflow-server/src/db"
	sqldb "bankflow-server/src/db/sql"
	"bankflow-server/src/fetch"
	"bankflow-server/src/ingest"
	"bankflow-server/src/models"
	"bankflow-server/src/override"
	"bankflow-server/src/plaid"
	"bankflow-server/src/search"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// App holds the wired components shared by every command.
type App struct {
	Config       config.Config
	Log          zerolog.Logger
	Pool         *pgxpool.Pool
	Cache        *db.Cache
	Transactions *sqldb.TransactionStore
	Rules        *sqldb.RuleStore
	RuleSource   *db.CachedRuleSource
	Pipeline     *ingest.Pipeline
	Search       *search.Engine
	Override     *override.Service
	Reclassifier *classify.Reclassifier
}

func NewApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	engine, err := classify.NewEngine(cfg.ClassificationFields, log)
	if err != nil {
		return nil, fmt.Errorf("invalid CLASSIFICATION_FIELDS: %w", err)
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("DB connection failed: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	cache, err := db.NewCache()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	transactions := sqldb.NewTransactionStore(pool)
	rules := sqldb.NewRuleStore(pool)
	ruleSource := db.NewCachedRuleSource(cache, rules)

	return &App{
		Config:       cfg,
		Log:          log,
		Pool:         pool,
		Cache:        cache,
		Transactions: transactions,
		Rules:        rules,
		RuleSource:   ruleSource,
		Pipeline:     ingest.NewPipeline(fetcher, ruleSource, transactions, engine, cfg.PageSize, log),
		Search:       search.NewEngine(transactions),
		Override:     override.NewService(transactions, ruleSource, engine, log),
		Reclassifier: classify.NewReclassifier(engine, ruleSource, transactions, log),
	}, nil
}

func (a *App) Close() {
	a.Cache.Close()
	a.Pool.Close()
}

// RemoteAuth is the credential set handed to every ingestion run.
func (a *App) RemoteAuth() models.AuthContext {
	return remoteAuth(a.Config)
}

func remoteAuth(cfg config.Config) models.AuthContext {
	return models.AuthContext{
		BearerToken: cfg.StatementBearerToken,
		PSUID:       cfg.PSUID,
		ConsentID:   cfg.ConsentID,
		AccessToken: cfg.PlaidAccessToken,
	}
}

func newFetcher(cfg config.Config) (ingest.Fetcher, error) {
	switch cfg.StatementSource {
	case config.SourcePlaid:
		client, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			return nil, err
		}
		return fetch.NewPlaidFetcher(client), nil
	case config.SourceStatement:
		return fetch.NewStatementClient(cfg.StatementAPIURL, cfg.FetchTimeout), nil
	}
	return nil, fmt.Errorf("invalid STATEMENT_SOURCE %q", cfg.StatementSource)
}
