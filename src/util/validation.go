package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bankflow-server/src/models"
	"bankflow-server/src/search"
)

var ErrMissingDateRange = errors.New("from and to are required")

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

func ValidateAccountID(accountID string) bool {
	return accountIDPattern.MatchString(accountID)
}

// ParseDate reads a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseDateRange parses an optional from/to pair. Both or neither must be
// present; when required is set, neither is an error too. Range errors are
// the search package's, so callers check a single set of sentinels.
func ParseDateRange(fromStr, toStr string, required bool) (*time.Time, *time.Time, error) {
	fromStr, toStr = strings.TrimSpace(fromStr), strings.TrimSpace(toStr)
	if fromStr == "" && toStr == "" {
		if required {
			return nil, nil, ErrMissingDateRange
		}
		return nil, nil, nil
	}
	if fromStr == "" || toStr == "" {
		return nil, nil, search.ErrIncompleteDateRange
	}

	from, err := ParseDate(fromStr)
	if err != nil {
		return nil, nil, err
	}
	to, err := ParseDate(toStr)
	if err != nil {
		return nil, nil, err
	}
	if from.After(to) {
		return nil, nil, search.ErrInvertedDateRange
	}
	return &from, &to, nil
}

// ParseOptionalCategory returns nil for an empty string.
func ParseOptionalCategory(s string) (*models.Category, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := models.ParseCategory(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
