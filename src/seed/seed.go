// Package seed loads the initial classification rules from YAML.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"bankflow-server/src/classify"
	"bankflow-server/src/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// ruleEntry expands to one keyword rule per entry of Keywords, or to a
// single conditions rule when Conditions is set.
type ruleEntry struct {
	Category   string             `yaml:"category"`
	Keyword    string             `yaml:"keyword"`
	Keywords   []string           `yaml:"keywords"`
	Conditions []models.Condition `yaml:"conditions"`
}

type Store interface {
	CountRules(ctx context.Context) (int, error)
	CreateRule(ctx context.Context, rule *models.ClassificationRule) (*models.ClassificationRule, error)
}

// ParseRules decodes a seed document into rules in file order.
func ParseRules(data []byte) ([]models.ClassificationRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rule seed: %w", err)
	}

	var rules []models.ClassificationRule
	for i, e := range f.Rules {
		category, err := models.ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("rule seed entry %d: %w", i, err)
		}

		var entryRules []models.ClassificationRule
		if len(e.Conditions) > 0 {
			raw, err := json.Marshal(e.Conditions)
			if err != nil {
				return nil, fmt.Errorf("rule seed entry %d: %w", i, err)
			}
			entryRules = append(entryRules, models.ClassificationRule{Kind: models.RuleKindConditions, Conditions: raw, Category: category})
		}
		keywords := e.Keywords
		if e.Keyword != "" {
			keywords = append([]string{e.Keyword}, keywords...)
		}
		for _, kw := range keywords {
			entryRules = append(entryRules, models.ClassificationRule{Kind: models.RuleKindKeyword, Keyword: kw, Category: category})
		}
		if len(entryRules) == 0 {
			return nil, fmt.Errorf("rule seed entry %d has neither keywords nor conditions", i)
		}

		for _, r := range entryRules {
			if err := classify.ValidateRule(r); err != nil {
				return nil, fmt.Errorf("rule seed entry %d: %w", i, err)
			}
		}
		rules = append(rules, entryRules...)
	}
	return rules, nil
}

// Apply inserts the seed rules when the rule table is empty. path may be
// empty to use the built-in defaults. It returns the number of rules created.
func Apply(ctx context.Context, store Store, path string, log zerolog.Logger) (int, error) {
	count, err := store.CountRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count classification rules: %w", err)
	}
	if count > 0 {
		log.Debug().Int("existing", count).Msg("Classification rules already present, skipping seed")
		return 0, nil
	}

	data := defaultRules
	if path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return 0, fmt.Errorf("failed to read rule seed %s: %w", path, err)
		}
	}
	rules, err := ParseRules(data)
	if err != nil {
		return 0, err
	}

	for i := range rules {
		if _, err := store.CreateRule(ctx, &rules[i]); err != nil {
			return i, fmt.Errorf("failed to create seed rule %d: %w", i, err)
		}
	}
	log.Info().Int("rules", len(rules)).Str("source", seedSource(path)).Msg("Seeded classification rules")
	return len(rules), nil
}

func seedSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
