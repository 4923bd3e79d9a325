// Package search answers account-scoped transaction queries.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankflow-server/src/models"
)

var (
	ErrMissingAccount      = errors.New("account id is required")
	ErrIncompleteDateRange = errors.New("from and to must be supplied together")
	ErrInvertedDateRange   = errors.New("from must not be after to")
)

type Store interface {
	Query(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Search returns the account's transactions, optionally restricted to the
// calendar days from..to (both inclusive, UTC) and to one category. No match
// is an empty slice, not an error.
func (e *Engine) Search(ctx context.Context, accountID string, from, to *time.Time, category *models.Category) ([]models.Transaction, error) {
	filter, err := BuildFilter(accountID, from, to, category)
	if err != nil {
		return nil, err
	}
	transactions, err := e.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions for account %s: %w", accountID, err)
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	return transactions, nil
}

// BuildFilter turns the optional inputs into a store predicate. The date
// range becomes [start of from, start of the day after to).
func BuildFilter(accountID string, from, to *time.Time, category *models.Category) (models.TransactionFilter, error) {
	if accountID == "" {
		return models.TransactionFilter{}, ErrMissingAccount
	}
	filter := models.TransactionFilter{AccountID: accountID}

	if (from == nil) != (to == nil) {
		return models.TransactionFilter{}, ErrIncompleteDateRange
	}
	if from != nil {
		start := StartOfDay(*from)
		end := StartOfDay(*to).AddDate(0, 0, 1)
		if !start.Before(end) {
			return models.TransactionFilter{}, ErrInvertedDateRange
		}
		filter.BookedFrom = &start
		filter.BookedBefore = &end
	}

	if category != nil {
		if !category.Valid() {
			return models.TransactionFilter{}, fmt.Errorf("%w: %q", models.ErrInvalidCategory, *category)
		}
		c := *category
		filter.Category = &c
	}
	return filter, nil
}

// StartOfDay truncates t to midnight UTC of its calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
