// Package mapper converts statement API records into stored transactions.
package mapper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bankflow-server/src/models"
)

var ErrMissingExternalID = errors.New("record has no transaction id")

// ToTransaction maps one raw record. The result is unclassified (UNDEFINED)
// and its AccountID may be empty if the source omitted it.
func ToTransaction(raw models.RawTransaction) (models.Transaction, error) {
	externalID := strings.TrimSpace(raw.TransactionID)
	if externalID == "" {
		return models.Transaction{}, ErrMissingExternalID
	}

	t := models.Transaction{
		ExternalID:                     externalID,
		AccountID:                      strings.TrimSpace(raw.AccountID),
		RemittanceInfo:                 raw.RemittanceInformationUnstructured,
		CreditorName:                   raw.CreditorName,
		DebtorName:                     raw.DebtorName,
		BankTransactionCode:            raw.BankTransactionCode,
		ProprietaryBankTransactionCode: raw.ProprietaryBankTransactionCode,
		AdditionalInfo:                 raw.AdditionalInformation,
		Category:                       models.CategoryUndefined,
	}

	var err error
	if t.BookingTimestamp, err = ParseTimestamp(raw.BookingDate); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: booking date: %w", externalID, err)
	}
	if t.ValueTimestamp, err = ParseTimestamp(raw.ValueDate); err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: value date: %w", externalID, err)
	}

	if raw.TransactionAmount != nil {
		t.Amount = raw.TransactionAmount.Amount
		t.Currency = strings.ToUpper(strings.TrimSpace(raw.TransactionAmount.Currency))
		if t.Currency != "" && len(t.Currency) != 3 {
			return models.Transaction{}, fmt.Errorf("transaction %s: invalid currency %q", externalID, raw.TransactionAmount.Currency)
		}
	}

	return t, nil
}

// ParseTimestamp accepts an ISO offset date-time or a plain date, which is
// read as midnight UTC. An empty string yields nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("unrecognised timestamp %q", s)
	}
	return &ts, nil
}
