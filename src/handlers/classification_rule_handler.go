package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bankflow-server/src/classify"
	db "bankflow-server/src/db/sql"
	"bankflow-server/src/logger"
	"bankflow-server/src/models"

	"github.com/go-chi/chi/v5"
)

type RuleStore interface {
	CreateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error)
	GetRuleByID(ctx context.Context, ruleID int) (*models.ClassificationRule, error)
	ListAllRules(ctx context.Context) ([]models.ClassificationRule, error)
	UpdateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error)
	DeleteRule(ctx context.Context, ruleID int) error
}

// RuleCache is notified after every successful rule mutation.
type RuleCache interface {
	Invalidate()
}

type Reclassifier interface {
	ReclassifyAll(ctx context.Context, accountID string) (int, error)
}

type ruleRequest struct {
	Kind       models.RuleKind `json:"kind"`
	Keyword    string          `json:"keyword"`
	Conditions json.RawMessage `json:"conditions"`
	Category   string          `json:"category"`
}

// toRule validates the request body. Kind may be omitted and is inferred
// from whichever of keyword or conditions is present.
func (req ruleRequest) toRule() (*models.ClassificationRule, error) {
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if !category.Assignable() {
		return nil, errors.New("rule category must be COST or PROFIT")
	}

	rule := &models.ClassificationRule{
		Kind:     req.Kind,
		Keyword:  strings.TrimSpace(req.Keyword),
		Category: category,
	}
	if len(req.Conditions) > 0 && string(req.Conditions) != "null" {
		rule.Conditions = req.Conditions
	}
	if rule.Kind == "" {
		rule.Kind = models.RuleKindKeyword
		if rule.Keyword == "" && rule.Conditions != nil {
			rule.Kind = models.RuleKindConditions
		}
	}
	switch rule.Kind {
	case models.RuleKindKeyword:
		rule.Conditions = nil
	case models.RuleKindConditions:
		rule.Keyword = ""
	}
	if err := classify.ValidateRule(*rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func parseRuleID(r *http.Request) (int, bool) {
	ruleIDStr := chi.URLParam(r, "rule_id")
	ruleID, err := strconv.Atoi(ruleIDStr)
	if err != nil || ruleID <= 0 {
		log := logger.FromContext(r.Context())
		log.Warn().Str("rule_id", ruleIDStr).Msg("Invalid rule id param")
		return 0, false
	}
	return ruleID, true
}

func CreateClassificationRule(store RuleStore, cache RuleCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req ruleRequest
		if err := decodeJSON(r, &req); err != nil {
			log.Warn().Err(err).Msg("Failed to decode create rule request body")
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		rule, err := req.toRule()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		created, err := store.CreateRule(r.Context(), rule)
		if err != nil {
			if errors.Is(err, db.ErrDuplicateKeyword) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			log.Error().Err(err).Msg("Failed to create classification rule")
			http.Error(w, "failed to create classification rule", http.StatusInternalServerError)
			return
		}
		cache.Invalidate()

		log.Info().Int("rule_id", created.ID).Str("kind", string(created.Kind)).Msg("Created classification rule")
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetClassificationRuleByID(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID, ok := parseRuleID(r)
		if !ok {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}
		rule, err := store.GetRuleByID(r.Context(), ruleID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				http.Error(w, "classification rule not found", http.StatusNotFound)
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Int("rule_id", ruleID).Msg("Failed to get classification rule")
			http.Error(w, "failed to get classification rule", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func GetAllClassificationRules(store RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := store.ListAllRules(r.Context())
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("Failed to get classification rules")
			http.Error(w, "failed to get classification rules", http.StatusInternalServerError)
			return
		}
		if rules == nil {
			rules = []models.ClassificationRule{}
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func UpdateClassificationRule(store RuleStore, cache RuleCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		ruleID, ok := parseRuleID(r)
		if !ok {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		var req ruleRequest
		if err := decodeJSON(r, &req); err != nil {
			log.Warn().Err(err).Int("rule_id", ruleID).Msg("Failed to decode update rule request body")
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		rule, err := req.toRule()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rule.ID = ruleID

		updated, err := store.UpdateRule(r.Context(), rule)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				http.Error(w, "classification rule not found", http.StatusNotFound)
			case errors.Is(err, db.ErrDuplicateKeyword):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				log.Error().Err(err).Int("rule_id", ruleID).Msg("Failed to update classification rule")
				http.Error(w, "failed to update classification rule", http.StatusInternalServerError)
			}
			return
		}
		cache.Invalidate()

		log.Info().Int("rule_id", updated.ID).Msg("Updated classification rule")
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteClassificationRule(store RuleStore, cache RuleCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		ruleID, ok := parseRuleID(r)
		if !ok {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		if err := store.DeleteRule(r.Context(), ruleID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				http.Error(w, "classification rule not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Int("rule_id", ruleID).Msg("Failed to delete classification rule")
			http.Error(w, "failed to delete classification rule", http.StatusInternalServerError)
			return
		}
		cache.Invalidate()

		log.Info().Int("rule_id", ruleID).Msg("Deleted classification rule")
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReclassifyTransactions(reclassifier Reclassifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))

		changed, err := reclassifier.ReclassifyAll(r.Context(), accountID)
		if err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to reclassify transactions")
			http.Error(w, "failed to reclassify transactions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"reclassified": changed})
	}
}
