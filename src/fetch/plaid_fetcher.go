package fetch

import (
	"context"
	"fmt"

	"bankflow-server/src/models"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

// PlaidFetcher reads pages from Plaid /transactions/get, which paginates by
// count/offset. The item access token comes from AuthContext.AccessToken.
type PlaidFetcher struct {
	client *plaid.APIClient
}

func NewPlaidFetcher(client *plaid.APIClient) *PlaidFetcher {
	return &PlaidFetcher{client: client}
}

func (f *PlaidFetcher) FetchPage(ctx context.Context, req models.PageRequest, auth models.AuthContext) ([]models.RawTransaction, error) {
	if auth.AccessToken == "" {
		return nil, fmt.Errorf("plaid access token is required")
	}

	options := plaid.NewTransactionsGetRequestOptions()
	options.SetCount(int32(req.Limit))
	options.SetOffset(int32(req.Offset))
	options.SetAccountIds([]string{req.AccountID})

	request := plaid.NewTransactionsGetRequest(auth.AccessToken, req.From, req.To)
	request.SetOptions(*options)

	resp, _, err := f.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid transactions/get failed: %w", err)
	}

	txns := resp.GetTransactions()
	out := make([]models.RawTransaction, 0, len(txns))
	for _, txn := range txns {
		out = append(out, fromPlaid(txn))
	}
	return out, nil
}

// Plaid reports outflows as positive amounts; stored amounts are signed the
// other way round (debits negative).
func fromPlaid(txn plaid.Transaction) models.RawTransaction {
	raw := models.RawTransaction{
		TransactionID:                     txn.GetTransactionId(),
		AccountID:                         txn.GetAccountId(),
		BookingDate:                       txn.GetDate(),
		ValueDate:                         txn.GetAuthorizedDate(),
		RemittanceInformationUnstructured: txn.GetName(),
		TransactionAmount: &models.TransactionAmount{
			Currency: txn.GetIsoCurrencyCode(),
			Amount:   decimal.NewFromFloat(txn.GetAmount()).Neg(),
		},
	}

	meta := txn.GetPaymentMeta()
	raw.CreditorName = meta.GetPayee()
	raw.DebtorName = meta.GetPayer()
	if raw.CreditorName == "" {
		raw.CreditorName = txn.GetMerchantName()
	}
	raw.AdditionalInformation = meta.GetReferenceNumber()
	return raw
}
