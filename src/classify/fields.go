package classify

import (
	"fmt"

	"bankflow-server/src/models"
)

type fieldGetter func(t *models.Transaction) string

var fieldGetters = map[string]fieldGetter{
	"remittanceInfo":                 func(t *models.Transaction) string { return t.RemittanceInfo },
	"creditorName":                   func(t *models.Transaction) string { return t.CreditorName },
	"debtorName":                     func(t *models.Transaction) string { return t.DebtorName },
	"bankTransactionCode":            func(t *models.Transaction) string { return t.BankTransactionCode },
	"proprietaryBankTransactionCode": func(t *models.Transaction) string { return t.ProprietaryBankTransactionCode },
	"additionalInfo":                 func(t *models.Transaction) string { return t.AdditionalInfo },
}

// Names used by rule definitions written against the statement API payload.
var fieldAliases = map[string]string{
	"remittanceInformation":             "remittanceInfo",
	"remittanceInformationUnstructured": "remittanceInfo",
	"CreditorName":                      "creditorName",
	"DebtorName":                        "debtorName",
	"propietaryBankTransactionCode":     "proprietaryBankTransactionCode",
	"additionalInformation":             "additionalInfo",
}

func lookupField(name string) (fieldGetter, error) {
	if canonical, ok := fieldAliases[name]; ok {
		name = canonical
	}
	getter, ok := fieldGetters[name]
	if !ok {
		return nil, fmt.Errorf("unknown transaction field %q", name)
	}
	return getter, nil
}
