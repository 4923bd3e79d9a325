package models

import "github.com/shopspring/decimal"

// RawTransaction is one booked entry as returned by the statement API.
type RawTransaction struct {
	TransactionID                     string             `json:"transactionId"`
	AccountID                         string             `json:"accountId"`
	BookingDate                       string             `json:"bookingDate"`
	ValueDate                         string             `json:"valueDate"`
	TransactionAmount                 *TransactionAmount `json:"transactionAmount"`
	RemittanceInformationUnstructured string             `json:"remittanceInformationUnstructured"`
	CreditorName                      string             `json:"creditorName"`
	DebtorName                        string             `json:"debtorName"`
	BankTransactionCode               string             `json:"bankTransactionCode"`
	ProprietaryBankTransactionCode    string             `json:"proprietaryBankTransactionCode"`
	AdditionalInformation             string             `json:"additionalInformation"`
}

type TransactionAmount struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransactionPage struct {
	Booked []RawTransaction `json:"booked"`
}

type PageRequest struct {
	AccountID string
	From      string // YYYY-MM-DD
	To        string // YYYY-MM-DD
	Limit     int
	Offset    int
}
