package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// DateLayout is the exchange format for dates (ISO YYYY-MM-DD).
const DateLayout = "2006-01-02"

type (
	TxType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID       int64           `json:"id"` // assigned by the store, zero before persistence
		UserID   int64           `json:"user_id"`
		Date     Date            `json:"date"`
		Type     TxType          `json:"type"`
		Amount   decimal.Decimal `json:"amount"`
		Category string          `json:"category"`
		Content  string          `json:"content"` // free-form memo
	}

	Goal struct {
		ID       int64           `json:"id"`
		UserID   int64           `json:"user_id"`
		Type     TxType          `json:"type"`
		Category string          `json:"category"` // empty means a whole-type goal
		Year     int             `json:"year"`
		Month    int             `json:"month"` // 1-12
		Target   decimal.Decimal `json:"target"`
	}
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive number")
	ErrInvalidTarget   = errors.New("target amount must be a positive number")
	ErrInvalidType     = errors.New("type must be income or expense")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("category not in vocabulary")
	ErrEmptyContent    = errors.New("empty content")
	ErrMissingDate     = errors.New("date not selected")
	ErrInvalidPeriod   = errors.New("invalid year or month")
)

// ValidationError is the structured rejection returned for bad input.
// It is always detected before any store access.
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

// ParseTxType accepts the canonical names as well as the 수입/지출 labels.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "수입":
		return Income, nil
	case "expense", "지출":
		return Expense, nil
	}
	return "", ErrInvalidType
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the display label used in exports.
func (t TxType) Label() string {
	switch t {
	case Income:
		return "수입"
	case Expense:
		return "지출"
	}
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD string. This is the only place a
// textual date is turned into its structured form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// In reports whether the date falls in the given year and month.
func (d Date) In(year, month int) bool {
	return !d.IsZero() && d.Year() == year && d.Month() == month
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func ValidPeriod(year, month int) bool {
	return year > 0 && month >= 1 && month <= 12
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return invalid("date", ErrMissingDate)
	}
	if !t.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if strings.TrimSpace(t.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if strings.TrimSpace(t.Content) == "" {
		return invalid("content", ErrEmptyContent)
	}
	return nil
}

// WholeType reports whether the goal covers every category of its type.
func (g Goal) WholeType() bool {
	return g.Category == ""
}

func (g Goal) Validate() error {
	if !g.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if !ValidPeriod(g.Year, g.Month) {
		return invalid("period", ErrInvalidPeriod)
	}
	if !g.Target.IsPositive() {
		return invalid("target", ErrInvalidTarget)
	}
	return nil
}

// CategoryLabel is the goal's category as shown to the user, WholeCategory
// for a whole-type goal.
func (g Goal) CategoryLabel() string {
	if g.WholeType() {
		return WholeCategory
	}
	return g.Category
}

func (g Goal) String() string {
	return fmt.Sprintf("%d-%02d %s goal (%s): %s", g.Year, g.Month, g.Type.Label(), g.CategoryLabel(), g.Target.String())
}
