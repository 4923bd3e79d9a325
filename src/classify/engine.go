// Package classify assigns COST/PROFIT/UNDEFINED to transactions from an
// ordered rule set.
//
// Both rule shapes are evaluated in rule id order and the first matching rule
// wins. A transaction no rule matches is UNDEFINED. Manually classified
// transactions are never touched.
package classify

import (
	"bankflow-server/src/models"

	"github.com/rs/zerolog"
)

type Engine struct {
	searchable []fieldGetter
	log        zerolog.Logger
}

// NewEngine validates the searchable field names used by keyword rules.
func NewEngine(searchableFields []string, log zerolog.Logger) (*Engine, error) {
	e := &Engine{log: log}
	for _, name := range searchableFields {
		getter, err := lookupField(name)
		if err != nil {
			return nil, err
		}
		e.searchable = append(e.searchable, getter)
	}
	return e, nil
}

// Compile turns stored rules into a RuleSet, preserving their order.
// Rules that fail to parse are logged and left out.
func (e *Engine) Compile(rules []models.ClassificationRule) RuleSet {
	rs := RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		m, err := compileRule(rule, e.searchable)
		if err != nil {
			e.log.Warn().Err(err).Int("rule_id", rule.ID).Msg("Skipping classification rule")
			continue
		}
		rs.rules = append(rs.rules, compiledRule{id: rule.ID, category: rule.Category, matcher: m})
	}
	return rs
}

func (e *Engine) Classify(t *models.Transaction, rs RuleSet) models.Category {
	if t.ManuallyClassified {
		e.log.Debug().Str("external_id", t.ExternalID).Msg("Transaction manually classified, skipping automatic classification")
		return t.Category
	}

	for _, rule := range rs.rules {
		if rule.matcher.Match(t) {
			e.log.Debug().Str("external_id", t.ExternalID).Int("rule_id", rule.id).
				Str("category", string(rule.category)).Msg("Classification rule matched")
			return rule.category
		}
	}
	return models.CategoryUndefined
}

// Apply classifies t in place and reports whether its category changed.
func (e *Engine) Apply(t *models.Transaction, rs RuleSet) bool {
	category := e.Classify(t, rs)
	if category == t.Category {
		return false
	}
	t.Category = category
	return true
}
