package classify

import (
	"context"
	"fmt"

	"bankflow-server/src/models"

	"github.com/rs/zerolog"
)

type RuleSource interface {
	ListAllRules(ctx context.Context) ([]models.ClassificationRule, error)
}

type ReclassifyStore interface {
	ListAutoClassified(ctx context.Context, accountID string) ([]models.Transaction, error)
	UpdateClassification(ctx context.Context, t *models.Transaction) error
}

type Reclassifier struct {
	engine *Engine
	rules  RuleSource
	store  ReclassifyStore
	log    zerolog.Logger
}

func NewReclassifier(engine *Engine, rules RuleSource, store ReclassifyStore, log zerolog.Logger) *Reclassifier {
	return &Reclassifier{engine: engine, rules: rules, store: store, log: log}
}

// ReclassifyAll re-runs the current rule set over every automatically
// classified transaction (one account, or all when accountID is empty) and
// persists only the ones whose category changed. It returns that count.
func (r *Reclassifier) ReclassifyAll(ctx context.Context, accountID string) (int, error) {
	rules, err := r.rules.ListAllRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch classification rules: %w", err)
	}
	rs := r.engine.Compile(rules)

	txns, err := r.store.ListAutoClassified(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	changed := 0
	for i := range txns {
		t := &txns[i]
		old := t.Category
		if !r.engine.Apply(t, rs) {
			continue
		}
		if err := r.store.UpdateClassification(ctx, t); err != nil {
			return changed, fmt.Errorf("failed to update transaction %s: %w", t.ExternalID, err)
		}
		r.log.Debug().Str("external_id", t.ExternalID).Str("from", string(old)).Str("to", string(t.Category)).
			Msg("Transaction reclassified")
		changed++
	}

	r.log.Info().Int("scanned", len(txns)).Int("reclassified", changed).Str("account_id", accountID).
		Msg("Reclassification completed")
	return changed, nil
}
