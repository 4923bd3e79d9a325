package models

import (
	"encoding/json"
	"time"
)

type RuleKind string

const (
	RuleKindKeyword    RuleKind = "keyword"
	RuleKindConditions RuleKind = "conditions"
)

type ClassificationRule struct {
	ID         int             `json:"id"`
	Kind       RuleKind        `json:"kind"`
	Keyword    string          `json:"keyword,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"` // JSONB
	Category   Category        `json:"category"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
