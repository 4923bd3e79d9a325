package models

import "time"

// TransactionFilter is the search predicate handed to the record store.
// AccountID is always required; nil fields are not constrained.
type TransactionFilter struct {
	AccountID    string
	BookedFrom   *time.Time // inclusive
	BookedBefore *time.Time // exclusive
	Category     *Category
}
