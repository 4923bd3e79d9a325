package db

import (
	"context"
	"errors"

	"bankflow-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateKeyword = errors.New("a rule with this keyword already exists")

const ruleColumns = `id, kind, COALESCE(keyword, ''), conditions, category, created_at, updated_at`

type RuleStore struct {
	pool *pgxpool.Pool
}

func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

func scanRule(row rowScanner) (*models.ClassificationRule, error) {
	var r models.ClassificationRule
	var kind, category string
	err := row.Scan(&r.ID, &kind, &r.Keyword, &r.Conditions, &category, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = models.RuleKind(kind)
	r.Category = models.Category(category)
	return &r, nil
}

func conditionsArg(rule *models.ClassificationRule) any {
	if len(rule.Conditions) == 0 {
		return nil
	}
	return string(rule.Conditions)
}

func mapRuleError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateKeyword
	}
	return err
}

func (s *RuleStore) CreateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error) {
	query := `
		INSERT INTO classification_rules (kind, keyword, conditions, category)
		VALUES ($1, NULLIF($2::text, ''), $3::text::jsonb, $4)
		RETURNING ` + ruleColumns
	r, err := scanRule(s.pool.QueryRow(ctx, query, string(rule.Kind), rule.Keyword, conditionsArg(rule), string(rule.Category)))
	if err != nil {
		return nil, mapRuleError(err)
	}
	return r, nil
}

func (s *RuleStore) GetRuleByID(ctx context.Context, ruleID int) (*models.ClassificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM classification_rules WHERE id = $1`
	r, err := scanRule(s.pool.QueryRow(ctx, query, ruleID))
	if err != nil {
		return nil, mapRuleError(err)
	}
	return r, nil
}

// ListAllRules returns rules in creation order, which is the evaluation order.
func (s *RuleStore) ListAllRules(ctx context.Context) ([]models.ClassificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM classification_rules ORDER BY id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.ClassificationRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *RuleStore) UpdateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error) {
	query := `
		UPDATE classification_rules
		SET kind = $1, keyword = NULLIF($2::text, ''), conditions = $3::text::jsonb, category = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + ruleColumns
	r, err := scanRule(s.pool.QueryRow(ctx, query, string(rule.Kind), rule.Keyword, conditionsArg(rule), string(rule.Category), rule.ID))
	if err != nil {
		return nil, mapRuleError(err)
	}
	return r, nil
}

func (s *RuleStore) DeleteRule(ctx context.Context, ruleID int) error {
	query := `DELETE FROM classification_rules WHERE id = $1`
	cmd, err := s.pool.Exec(ctx, query, ruleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *RuleStore) CountRules(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM classification_rules`).Scan(&n)
	return n, err
}
