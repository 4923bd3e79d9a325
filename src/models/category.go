package models

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryCost      Category = "COST"
	CategoryProfit    Category = "PROFIT"
	CategoryUndefined Category = "UNDEFINED"
)

var ErrInvalidCategory = errors.New("invalid category")

// ParseCategory accepts the canonical names case-insensitively, plus the
// Italian labels older clients still send.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COST", "COSTO":
		return CategoryCost, nil
	case "PROFIT", "PROFITTO":
		return CategoryProfit, nil
	case "UNDEFINED":
		return CategoryUndefined, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	return c == CategoryCost || c == CategoryProfit || c == CategoryUndefined
}

// Assignable reports whether a rule or a manual override may carry c.
func (c Category) Assignable() bool {
	return c == CategoryCost || c == CategoryProfit
}
