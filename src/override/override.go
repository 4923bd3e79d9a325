// Package override applies and removes manual transaction categories.
package override

import (
	"context"
	"errors"
	"fmt"

	"bankflow-server/src/classify"
	"bankflow-server/src/models"

	"github.com/rs/zerolog"
)

var (
	ErrRecordNotFound  = errors.New("transaction not found")
	ErrInvalidCategory = errors.New("manual category must be COST or PROFIT")
)

type Store interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	UpdateClassification(ctx context.Context, t *models.Transaction) error
}

type Service struct {
	store  Store
	rules  classify.RuleSource
	engine *classify.Engine
	log    zerolog.Logger
}

func NewService(store Store, rules classify.RuleSource, engine *classify.Engine, log zerolog.Logger) *Service {
	return &Service{store: store, rules: rules, engine: engine, log: log}
}

// SetManualCategory pins the transaction to category. Pinned transactions
// are skipped by automatic classification until cleared.
func (s *Service) SetManualCategory(ctx context.Context, externalID string, category models.Category) (*models.Transaction, error) {
	if !category.Assignable() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCategory, category)
	}

	t, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}

	t.Category = category
	t.ManuallyClassified = true
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info().Str("external_id", externalID).Str("category", string(category)).Msg("Manual category set")
	return t, nil
}

// ClearManualCategory releases the pin and classifies the transaction again
// against the current rules.
func (s *Service) ClearManualCategory(ctx context.Context, externalID string) (*models.Transaction, error) {
	t, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.ListAllRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classification rules: %w", err)
	}

	t.ManuallyClassified = false
	t.Category = s.engine.Classify(t, s.engine.Compile(rules))
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info().Str("external_id", externalID).Str("category", string(t.Category)).Msg("Manual category cleared")
	return t, nil
}

func (s *Service) find(ctx context.Context, externalID string) (*models.Transaction, error) {
	t, err := s.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", externalID, err)
	}
	return t, nil
}

func (s *Service) save(ctx context.Context, t *models.Transaction) error {
	err := s.store.UpdateClassification(ctx, t)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, t.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", t.ExternalID, err)
	}
	return nil
}
