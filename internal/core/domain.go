// Package core holds the expense domain: records, currencies, rate tables,
// conversion and report shapes. Everything here is pure; persistence and
// transport live elsewhere.
package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Currency is one of the closed set of tokens a cost may be priced in.
// USD is the reference currency every conversion pivots through.
type Currency string

const (
	USD  Currency = "USD"
	GBP  Currency = "GBP"
	EURO Currency = "EURO"
	ILS  Currency = "ILS"
)

// Currencies returns the supported tokens in display order.
func Currencies() []Currency {
	return []Currency{USD, GBP, EURO, ILS}
}

type (
	// Record is a stored cost. Year, Month and Day are denormalized from
	// CreatedAt so period scans can hit the (year, month) index;
	// InsertionDay is the day of month the record was first written and
	// never changes afterwards.
	Record struct {
		ID           int64     `json:"id"`
		Sum          float64   `json:"sum"`
		Currency     Currency  `json:"currency"`
		Category     string    `json:"category"`
		Description  string    `json:"description"`
		CreatedAt    time.Time `json:"createdAt"`
		Year         int       `json:"year"`
		Month        int       `json:"month"` // 1-12
		Day          int       `json:"day"`
		InsertionDay int       `json:"insertionDay"`
	}

	// Draft is a cost as a collaborator submits it, before validation
	// and normalization.
	Draft struct {
		Sum         float64 `json:"sum"`
		Currency    string  `json:"currency"`
		Category    string  `json:"category"`
		Description string  `json:"description"`
	}

	// Patch is a partial update; nil fields keep their stored value.
	// Date replaces the record's timestamp only when it parses.
	Patch struct {
		Sum         *float64 `json:"sum"`
		Currency    *string  `json:"currency"`
		Category    *string  `json:"category"`
		Description *string  `json:"description"`
		Date        *string  `json:"date"`
	}

	// Period selects one calendar month of records.
	Period struct {
		Year  int `json:"year"`
		Month int `json:"month"` // 1-12
	}
)

var (
	ErrInvalidSum       = errors.New("invalid sum")
	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidRates     = errors.New("invalid rate table")
)

// ValidationError names the field that made a draft, patch or period
// unusable. It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ParseCurrency normalizes a collaborator-supplied token to its canonical
// upper-case form, rejecting anything outside the supported set.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case USD, GBP, EURO, ILS:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
}

// ValidateSum accepts strictly positive, finite amounts.
func ValidateSum(sum float64) error {
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum <= 0 {
		return ErrInvalidSum
	}
	return nil
}

func (d Draft) Validate() error {
	if err := ValidateSum(d.Sum); err != nil {
		return invalid("sum", err)
	}
	if _, err := ParseCurrency(d.Currency); err != nil {
		return invalid("currency", err)
	}
	if strings.TrimSpace(d.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if strings.TrimSpace(d.Description) == "" {
		return invalid("description", ErrEmptyDescription)
	}
	return nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return invalid("month", ErrInvalidMonth)
	}
	if p.Year < 1 {
		return invalid("year", ErrInvalidYear)
	}
	return nil
}

// DateParts returns the UTC calendar breakdown persisted alongside a
// timestamp.
func DateParts(t time.Time) (year, month, day int) {
	t = t.UTC()
	return t.Year(), int(t.Month()), t.Day()
}

// dateLayouts are the timestamp shapes collaborators send on update.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a collaborator-supplied date string into a UTC
// timestamp. The second return reports whether the value was usable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NewRecord builds the stored form of a draft: trimmed text fields,
// canonical currency, timestamp and derived date parts stamped from now.
// The draft never reaches storage when invalid.
func NewRecord(d Draft, now time.Time) (Record, error) {
	if err := d.Validate(); err != nil {
		return Record{}, err
	}
	cur, _ := ParseCurrency(d.Currency)
	// Second precision: the stored timestamp format has no finer grain,
	// and a record must read back equal to what Add returned.
	now = now.UTC().Truncate(time.Second)
	year, month, day := DateParts(now)
	return Record{
		Sum:          d.Sum,
		Currency:     cur,
		Category:     strings.TrimSpace(d.Category),
		Description:  strings.TrimSpace(d.Description),
		CreatedAt:    now,
		Year:         year,
		Month:        month,
		Day:          day,
		InsertionDay: day,
	}, nil
}

// Apply merges the supplied fields into a copy of rec, validating each one
// like a draft's. A Date that does not parse is ignored and the stored
// timestamp kept; collaborators have always sent free-form dates and a bad
// one must not fail the rest of the update. InsertionDay is never touched.
func (p Patch) Apply(rec Record) (Record, error) {
	if p.Sum != nil {
		if err := ValidateSum(*p.Sum); err != nil {
			return Record{}, invalid("sum", err)
		}
		rec.Sum = *p.Sum
	}
	if p.Currency != nil {
		cur, err := ParseCurrency(*p.Currency)
		if err != nil {
			return Record{}, invalid("currency", err)
		}
		rec.Currency = cur
	}
	if p.Category != nil {
		v := strings.TrimSpace(*p.Category)
		if v == "" {
			return Record{}, invalid("category", ErrEmptyCategory)
		}
		rec.Category = v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		if v == "" {
			return Record{}, invalid("description", ErrEmptyDescription)
		}
		rec.Description = v
	}
	if p.Date != nil {
		if t, ok := ParseDate(*p.Date); ok {
			rec.CreatedAt = t
			rec.Year, rec.Month, rec.Day = DateParts(t)
		}
	}
	return rec, nil
}
