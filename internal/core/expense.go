package core

import (
	"errors"
	"math"
	"strings"
)

// Expense is one ledger record. The ID is assigned by the store on insert and
// never changes afterwards. Date is an opaque caller-supplied string; no
// calendar validation is performed on it.
type Expense struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Note        string  `json:"note"`
}

var (
	ErrEmptyDate     = errors.New("empty date")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidAmount = errors.New("amount must be a finite number")
)

// Validate checks the record for insertion. Negative amounts are allowed
// (refunds and credits); NaN and infinities are not.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Date) == "" {
		return ErrEmptyDate
	}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// ExpenseUpdate carries the mutable fields of a record, each as a pointer so
// "not supplied" is distinguishable from "supplied empty string". Only
// non-nil fields are applied; nil fields keep their stored value.
type ExpenseUpdate struct {
	Date        *string  `json:"date"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Subcategory *string  `json:"subcategory"`
	Note        *string  `json:"note"`
}

// IsEmpty reports whether no field was supplied at all. An all-nil update is
// a no-op, reported to callers as a warning rather than an error.
func (u ExpenseUpdate) IsEmpty() bool {
	return u.Date == nil && u.Amount == nil && u.Category == nil &&
		u.Subcategory == nil && u.Note == nil
}

// Validate checks the supplied fields only. An update may carry any subset of
// fields, including empty strings; a supplied amount must still be finite.
func (u ExpenseUpdate) Validate() error {
	if u.Amount != nil && (math.IsNaN(*u.Amount) || math.IsInf(*u.Amount, 0)) {
		return ErrInvalidAmount
	}
	return nil
}

// Apply returns a copy of e with the supplied fields replaced. The store
// performs the same substitution in SQL; this exists for in-memory callers
// and tests.
func (u ExpenseUpdate) Apply(e Expense) Expense {
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.Subcategory != nil {
		e.Subcategory = *u.Subcategory
	}
	if u.Note != nil {
		e.Note = *u.Note
	}
	return e
}
