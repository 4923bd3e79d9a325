package db

import (
	"context"
	"errors"
	"fmt"

	"bankflow-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `
	id, external_id, account_id, booking_ts, value_ts, amount::text, COALESCE(currency, ''),
	COALESCE(remittance_info, ''), COALESCE(creditor_name, ''), COALESCE(debtor_name, ''),
	COALESCE(bank_transaction_code, ''), COALESCE(proprietary_bank_transaction_code, ''),
	COALESCE(additional_info, ''), category, manually_classified, created_at, updated_at`

type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var amount, category string
	err := row.Scan(&t.ID, &t.ExternalID, &t.AccountID, &t.BookingTimestamp, &t.ValueTimestamp, &amount, &t.Currency,
		&t.RemittanceInfo, &t.CreditorName, &t.DebtorName, &t.BankTransactionCode, &t.ProprietaryBankTransactionCode,
		&t.AdditionalInfo, &category, &t.ManuallyClassified, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q for transaction %s: %w", amount, t.ExternalID, err)
	}
	t.Category = models.Category(category)
	return &t, nil
}

func (s *TransactionStore) FindByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_id = $1`
	t, err := scanTransaction(s.pool.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertIfAbsent writes t unless a row with the same external id exists.
// It reports whether a row was written; t.ID and timestamps are filled on insert.
func (s *TransactionStore) InsertIfAbsent(ctx context.Context, t *models.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (external_id, account_id, booking_ts, value_ts, amount, currency,
			remittance_info, creditor_name, debtor_name, bank_transaction_code,
			proprietary_bank_transaction_code, additional_info, category, manually_classified)
		VALUES ($1, $2, $3, $4, $5::text::numeric, NULLIF($6::text, ''),
			NULLIF($7::text, ''), NULLIF($8::text, ''), NULLIF($9::text, ''), NULLIF($10::text, ''),
			NULLIF($11::text, ''), NULLIF($12::text, ''), $13, $14)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		t.ExternalID,
		t.AccountID,
		t.BookingTimestamp,
		t.ValueTimestamp,
		t.Amount.String(),
		t.Currency,
		t.RemittanceInfo,
		t.CreditorName,
		t.DebtorName,
		t.BankTransactionCode,
		t.ProprietaryBankTransactionCode,
		t.AdditionalInfo,
		string(t.Category),
		t.ManuallyClassified,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *TransactionStore) UpdateClassification(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET category = $1, manually_classified = $2, updated_at = NOW()
		WHERE external_id = $3
		RETURNING updated_at
	`
	err := s.pool.QueryRow(ctx, query, string(t.Category), t.ManuallyClassified, t.ExternalID).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// Query evaluates filter with a single fixed statement; unset filter fields
// are bound as NULL and disable their predicate.
func (s *TransactionStore) Query(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		  AND ($2::timestamptz IS NULL OR booking_ts >= $2)
		  AND ($3::timestamptz IS NULL OR booking_ts < $3)
		  AND ($4::text IS NULL OR category = $4)
		ORDER BY booking_ts, id
	`
	var category *string
	if filter.Category != nil {
		c := string(*filter.Category)
		category = &c
	}
	return s.list(ctx, query, filter.AccountID, filter.BookedFrom, filter.BookedBefore, category)
}

// ListAutoClassified returns every transaction eligible for automatic
// reclassification. An empty accountID means all accounts.
func (s *TransactionStore) ListAutoClassified(ctx context.Context, accountID string) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE manually_classified = FALSE
		  AND ($1::text IS NULL OR account_id = $1)
		ORDER BY id
	`
	var account *string
	if accountID != "" {
		account = &accountID
	}
	return s.list(ctx, query, account)
}

func (s *TransactionStore) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}
