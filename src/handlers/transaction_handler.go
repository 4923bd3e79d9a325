package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"bankflow-server/src/ingest"
	"bankflow-server/src/logger"
	"bankflow-server/src/models"
	"bankflow-server/src/override"
	"bankflow-server/src/search"
	"bankflow-server/src/util"

	"github.com/go-chi/chi/v5"
)

type Ingester interface {
	Ingest(ctx context.Context, accountID string, from, to time.Time, auth models.AuthContext) (ingest.Result, error)
}

type RecordIngester interface {
	IngestRecords(ctx context.Context, accountID string, records []models.RawTransaction) (ingest.Result, error)
}

type Searcher interface {
	Search(ctx context.Context, accountID string, from, to *time.Time, category *models.Category) ([]models.Transaction, error)
}

type Overrider interface {
	SetManualCategory(ctx context.Context, externalID string, category models.Category) (*models.Transaction, error)
	ClearManualCategory(ctx context.Context, externalID string) (*models.Transaction, error)
}

// accountParam falls back to the configured account when the query omits it.
func accountParam(r *http.Request, defaultAccountID string) (string, bool) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if accountID == "" {
		accountID = defaultAccountID
	}
	return accountID, util.ValidateAccountID(accountID)
}

func DownloadTransactions(ingester Ingester, auth models.AuthContext, defaultAccountID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		accountID, ok := accountParam(r, defaultAccountID)
		if !ok {
			http.Error(w, "invalid or missing account id", http.StatusBadRequest)
			return
		}
		from, to, err := util.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := ingester.Ingest(r.Context(), accountID, *from, *to, auth)
		if err != nil {
			var ingestErr *ingest.IngestError
			if errors.As(err, &ingestErr) {
				log.Error().Err(err).Str("account_id", accountID).Int("offset", ingestErr.Offset).
					Msg("Failed to download transactions")
				writeJSON(w, http.StatusBadGateway, map[string]any{
					"error":  "download interrupted",
					"offset": ingestErr.Offset,
					"result": result,
				})
				return
			}
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to download transactions")
			http.Error(w, "failed to download transactions", http.StatusInternalServerError)
			return
		}

		log.Info().Str("account_id", accountID).Int("inserted", result.Inserted).Msg("Downloaded transactions")
		writeJSON(w, http.StatusOK, result)
	}
}

const maxPushBodyBytes = 10 << 20

// ReceiveTransactions stores a statement page pushed by the bank. The body has
// the same shape as a downloaded page; unknown fields are ignored.
func ReceiveTransactions(receiver RecordIngester, defaultAccountID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		accountID, ok := accountParam(r, defaultAccountID)
		if !ok {
			http.Error(w, "invalid or missing account id", http.StatusBadRequest)
			return
		}

		var page models.TransactionPage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBodyBytes)).Decode(&page); err != nil {
			log.Warn().Err(err).Msg("Failed to decode pushed transactions")
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if page.Booked == nil {
			http.Error(w, "request body has no booked transactions", http.StatusBadRequest)
			return
		}

		result, err := receiver.IngestRecords(r.Context(), accountID, page.Booked)
		if err != nil {
			var ingestErr *ingest.IngestError
			if errors.As(err, &ingestErr) {
				log.Error().Err(err).Str("account_id", accountID).Int("offset", ingestErr.Offset).
					Msg("Failed to store pushed transactions")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error":  "failed to store transactions",
					"offset": ingestErr.Offset,
					"result": result,
				})
				return
			}
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to store pushed transactions")
			http.Error(w, "failed to store transactions", http.StatusInternalServerError)
			return
		}

		log.Info().Str("account_id", accountID).Int("inserted", result.Inserted).Msg("Received pushed transactions")
		writeJSON(w, http.StatusOK, result)
	}
}

func SearchTransactions(searcher Searcher, defaultAccountID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		accountID, ok := accountParam(r, defaultAccountID)
		if !ok {
			http.Error(w, "invalid or missing account id", http.StatusBadRequest)
			return
		}
		q := r.URL.Query()
		from, to, err := util.ParseDateRange(q.Get("from"), q.Get("to"), false)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		category, err := util.ParseOptionalCategory(q.Get("category"))
		if err != nil {
			http.Error(w, "invalid category, expected one of COST, PROFIT, UNDEFINED", http.StatusBadRequest)
			return
		}

		transactions, err := searcher.Search(r.Context(), accountID, from, to, category)
		if err != nil {
			if errors.Is(err, search.ErrIncompleteDateRange) || errors.Is(err, search.ErrInvertedDateRange) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to search transactions")
			http.Error(w, "failed to search transactions", http.StatusInternalServerError)
			return
		}

		log.Debug().Str("account_id", accountID).Int("count", len(transactions)).Msg("Searched transactions")
		writeJSON(w, http.StatusOK, transactions)
	}
}

func SetTransactionCategory(overrider Overrider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		externalID := chi.URLParam(r, "external_id")

		var req struct {
			Category string `json:"category"`
		}
		if err := decodeJSON(r, &req); err != nil {
			log.Warn().Err(err).Msg("Failed to decode set category request body")
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		category, err := models.ParseCategory(req.Category)
		if err != nil {
			http.Error(w, "invalid category, expected COST or PROFIT", http.StatusBadRequest)
			return
		}

		updated, err := overrider.SetManualCategory(r.Context(), externalID, category)
		if err != nil {
			writeOverrideError(w, r, externalID, err)
			return
		}

		log.Info().Str("external_id", externalID).Str("category", string(updated.Category)).Msg("Set manual category")
		writeJSON(w, http.StatusOK, updated)
	}
}

func ClearTransactionCategory(overrider Overrider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := chi.URLParam(r, "external_id")

		updated, err := overrider.ClearManualCategory(r.Context(), externalID)
		if err != nil {
			writeOverrideError(w, r, externalID, err)
			return
		}

		log := logger.FromContext(r.Context())
		log.Info().Str("external_id", externalID).
			Str("category", string(updated.Category)).Msg("Cleared manual category")
		writeJSON(w, http.StatusOK, updated)
	}
}

func writeOverrideError(w http.ResponseWriter, r *http.Request, externalID string, err error) {
	switch {
	case errors.Is(err, override.ErrRecordNotFound):
		http.Error(w, "transaction not found", http.StatusNotFound)
	case errors.Is(err, override.ErrInvalidCategory):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("external_id", externalID).
			Msg("Failed to update transaction category")
		http.Error(w, "failed to update transaction category", http.StatusInternalServerError)
	}
}
