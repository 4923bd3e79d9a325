package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type Transaction struct {
	ID                             int64           `json:"id"`
	ExternalID                     string          `json:"external_id"`
	AccountID                      string          `json:"account_id"`
	BookingTimestamp               *time.Time      `json:"booking_timestamp,omitempty"`
	ValueTimestamp                 *time.Time      `json:"value_timestamp,omitempty"`
	Amount                         decimal.Decimal `json:"amount"`
	Currency                       string          `json:"currency"`
	RemittanceInfo                 string          `json:"remittance_info,omitempty"`
	CreditorName                   string          `json:"creditor_name,omitempty"`
	DebtorName                     string          `json:"debtor_name,omitempty"`
	BankTransactionCode            string          `json:"bank_transaction_code,omitempty"`
	ProprietaryBankTransactionCode string          `json:"proprietary_bank_transaction_code,omitempty"`
	AdditionalInfo                 string          `json:"additional_info,omitempty"`
	Category                       Category        `json:"category"`
	ManuallyClassified             bool            `json:"manually_classified"`
	CreatedAt                      time.Time       `json:"created_at"`
	UpdatedAt                      time.Time       `json:"updated_at"`
}
