// Package ingest downloads statement pages and persists new transactions.
//
// Pages are read at a fixed size starting from offset 0. A full page means
// more data may follow; a short or empty page ends the run. A source whose
// last page is exactly page-size long costs one extra, empty request.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankflow-server/src/classify"
	"bankflow-server/src/mapper"
	"bankflow-server/src/models"

	"github.com/rs/zerolog"
)

const DefaultPageSize = 100

var ErrRemoteFetch = errors.New("remote fetch failed")

// IngestError reports where a run stopped. Pages before Offset were persisted
// and are not rolled back.
type IngestError struct {
	AccountID string
	Offset    int
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingestion of account %s stopped at offset %d: %v", e.AccountID, e.Offset, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

type Fetcher interface {
	FetchPage(ctx context.Context, req models.PageRequest, auth models.AuthContext) ([]models.RawTransaction, error)
}

type RuleSource interface {
	ListAllRules(ctx context.Context) ([]models.ClassificationRule, error)
}

type Store interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	InsertIfAbsent(ctx context.Context, t *models.Transaction) (bool, error)
}

type Result struct {
	Pages      int `json:"pages"`
	Fetched    int `json:"fetched"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

type Pipeline struct {
	fetcher  Fetcher
	rules    RuleSource
	store    Store
	engine   *classify.Engine
	pageSize int
	log      zerolog.Logger
}

func NewPipeline(fetcher Fetcher, rules RuleSource, store Store, engine *classify.Engine, pageSize int, log zerolog.Logger) *Pipeline {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pipeline{
		fetcher:  fetcher,
		rules:    rules,
		store:    store,
		engine:   engine,
		pageSize: pageSize,
		log:      log,
	}
}

// Ingest fetches every transaction of accountID booked within [from, to]
// (dates, inclusive) and stores the ones not seen before.
func (p *Pipeline) Ingest(ctx context.Context, accountID string, from, to time.Time, auth models.AuthContext) (Result, error) {
	var result Result
	fromStr, toStr := from.Format(time.DateOnly), to.Format(time.DateOnly)
	log := p.log.With().Str("account_id", accountID).Str("from", fromStr).Str("to", toStr).Logger()
	log.Info().Msg("Starting transaction download")

	rules, err := p.rules.ListAllRules(ctx)
	if err != nil {
		return result, &IngestError{AccountID: accountID, Offset: 0, Err: fmt.Errorf("failed to fetch classification rules: %w", err)}
	}
	ruleSet := p.engine.Compile(rules)

	offset := 0
	for {
		log.Debug().Int("offset", offset).Msg("Fetching page")
		page, err := p.fetcher.FetchPage(ctx, models.PageRequest{
			AccountID: accountID,
			From:      fromStr,
			To:        toStr,
			Limit:     p.pageSize,
			Offset:    offset,
		}, auth)
		if err != nil {
			log.Error().Err(err).Int("offset", offset).Msg("Failed to fetch page, stopping download")
			return result, &IngestError{AccountID: accountID, Offset: offset, Err: fmt.Errorf("%w: %w", ErrRemoteFetch, err)}
		}
		result.Pages++
		if len(page) == 0 {
			break
		}
		result.Fetched += len(page)

		for _, raw := range page {
			if err := p.persist(ctx, raw, accountID, ruleSet, &result); err != nil {
				log.Error().Err(err).Int("offset", offset).Msg("Failed to persist transaction, stopping download")
				return result, &IngestError{AccountID: accountID, Offset: offset, Err: err}
			}
		}

		offset += p.pageSize
		if len(page) < p.pageSize {
			break
		}
	}

	log.Info().Int("pages", result.Pages).Int("fetched", result.Fetched).Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).Int("skipped", result.Skipped).Msg("Transaction download completed")
	return result, nil
}

// IngestRecords classifies and stores records pushed by the bank, skipping
// the ones already stored. Records without an account id are attributed to
// accountID. On failure the IngestError offset is the index of the failing
// record; earlier records stay stored.
func (p *Pipeline) IngestRecords(ctx context.Context, accountID string, records []models.RawTransaction) (Result, error) {
	var result Result
	log := p.log.With().Str("account_id", accountID).Int("records", len(records)).Logger()
	log.Info().Msg("Receiving pushed transactions")

	rules, err := p.rules.ListAllRules(ctx)
	if err != nil {
		return result, &IngestError{AccountID: accountID, Offset: 0, Err: fmt.Errorf("failed to fetch classification rules: %w", err)}
	}
	ruleSet := p.engine.Compile(rules)

	result.Fetched = len(records)
	for i, raw := range records {
		if err := p.persist(ctx, raw, accountID, ruleSet, &result); err != nil {
			log.Error().Err(err).Int("offset", i).Msg("Failed to persist pushed transaction")
			return result, &IngestError{AccountID: accountID, Offset: i, Err: err}
		}
	}

	log.Info().Int("inserted", result.Inserted).Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).Msg("Pushed transactions stored")
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, raw models.RawTransaction, accountID string, rs classify.RuleSet, result *Result) error {
	t, err := mapper.ToTransaction(raw)
	if err != nil {
		p.log.Warn().Err(err).Str("account_id", accountID).Msg("Skipping unmappable transaction")
		result.Skipped++
		return nil
	}
	if t.AccountID == "" {
		p.log.Warn().Str("external_id", t.ExternalID).Str("account_id", accountID).
			Msg("Transaction has no account id, using the requested one")
		t.AccountID = accountID
	}

	t.Category = p.engine.Classify(&t, rs)

	inserted, err := p.upsertIfNew(ctx, &t)
	if err != nil {
		return err
	}
	if inserted {
		result.Inserted++
	} else {
		result.Duplicates++
	}
	return nil
}

// upsertIfNew stores t unless its external id is already known. Existing rows
// are left untouched. The store's uniqueness constraint settles races between
// concurrent runs.
func (p *Pipeline) upsertIfNew(ctx context.Context, t *models.Transaction) (bool, error) {
	_, err := p.store.FindByExternalID(ctx, t.ExternalID)
	if err == nil {
		p.log.Debug().Str("external_id", t.ExternalID).Msg("Transaction already stored")
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("failed to look up transaction %s: %w", t.ExternalID, err)
	}

	inserted, err := p.store.InsertIfAbsent(ctx, t)
	if err != nil {
		return false, fmt.Errorf("failed to save transaction %s: %w", t.ExternalID, err)
	}
	if inserted {
		p.log.Debug().Str("external_id", t.ExternalID).Str("category", string(t.Category)).Msg("Transaction stored")
	}
	return inserted, nil
}
