package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bankflow-server/src/models"
)

var ErrRuleParse = errors.New("invalid classification rule")

// Matcher is one compiled rule.
type Matcher interface {
	Match(t *models.Transaction) bool
}

type keywordMatcher struct {
	keyword string
	fields  []fieldGetter
}

func (m keywordMatcher) Match(t *models.Transaction) bool {
	for _, get := range m.fields {
		if strings.Contains(strings.ToLower(get(t)), m.keyword) {
			return true
		}
	}
	return false
}

type compiledCondition struct {
	field    fieldGetter
	keywords []string
}

// conditionsMatcher requires every condition; a condition holds when any of
// its keywords is found in its field.
type conditionsMatcher struct {
	conditions []compiledCondition
}

func (m conditionsMatcher) Match(t *models.Transaction) bool {
	for _, c := range m.conditions {
		value := strings.ToLower(c.field(t))
		matched := false
		for _, kw := range c.keywords {
			if strings.Contains(value, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

type compiledRule struct {
	id       int
	category models.Category
	matcher  Matcher
}

// RuleSet is an ordered, compiled rule list. The zero value matches nothing.
type RuleSet struct {
	rules []compiledRule
}

func (rs RuleSet) Len() int {
	return len(rs.rules)
}

func compileRule(rule models.ClassificationRule, searchable []fieldGetter) (Matcher, error) {
	if !rule.Category.Assignable() {
		return nil, fmt.Errorf("%w: rule %d has category %q", ErrRuleParse, rule.ID, rule.Category)
	}

	switch rule.Kind {
	case models.RuleKindKeyword:
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty keyword", ErrRuleParse, rule.ID)
		}
		return keywordMatcher{keyword: keyword, fields: searchable}, nil

	case models.RuleKindConditions:
		conditions, err := ParseConditions(rule.Conditions)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrRuleParse, rule.ID, err)
		}
		m := conditionsMatcher{}
		for _, c := range conditions {
			getter, err := lookupField(c.Field)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: %v", ErrRuleParse, rule.ID, err)
			}
			cc := compiledCondition{field: getter}
			for _, kw := range c.Keywords {
				if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
					cc.keywords = append(cc.keywords, kw)
				}
			}
			if len(cc.keywords) == 0 {
				return nil, fmt.Errorf("%w: rule %d: condition on %q has no keywords", ErrRuleParse, rule.ID, c.Field)
			}
			m.conditions = append(m.conditions, cc)
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: rule %d has unknown kind %q", ErrRuleParse, rule.ID, rule.Kind)
}

// ParseConditions decodes the JSONB conditions column. Both a bare array and
// {"conditions": [...]} are accepted.
func ParseConditions(raw json.RawMessage) ([]models.Condition, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, errors.New("conditions are empty")
	}

	var conditions []models.Condition
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &conditions); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Conditions []models.Condition `json:"conditions"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		conditions = wrapped.Conditions
	}

	if len(conditions) == 0 {
		return nil, errors.New("conditions are empty")
	}
	return conditions, nil
}

// ValidateRule reports whether rule would compile. Rule administration uses
// it to reject definitions the engine would otherwise skip.
func ValidateRule(rule models.ClassificationRule) error {
	_, err := compileRule(rule, nil)
	return err
}
