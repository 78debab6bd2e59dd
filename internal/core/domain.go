package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the on-disk representation of an expense date.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID          int64  `json:"id"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	// NewExpenseInput is what a caller supplies to record a new expense.
	// ID and Date are assigned by the ledger.
	NewExpenseInput struct {
		Amount      Money
		Category    string
		Description string
	}

	// Snapshot is the full persisted state of a ledger.
	Snapshot struct {
		Expenses   []Expense `json:"expenses"`
		Categories []string  `json:"categories"`
		NextID     int64     `json:"next_id,omitempty"`
	}
)

// DefaultCategories seeds every new category vocabulary.
var DefaultCategories = []string{"Food", "Transport", "Entertainment", "Utilities", "Other"}

var (
	ErrValidation       = errors.New("invalid expense")
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrEmptyCategory    = errors.New("category is required")
	ErrEmptyDescription = errors.New("description is required")

	ErrSnapshotNotFound = errors.New("no saved ledger")
	ErrSnapshotCorrupt  = errors.New("saved ledger is unreadable")
)

var titleCaser = cases.Title(language.Und)

// NormalizeCategory trims the label and title-cases it ("fast food" -> "Fast Food").
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)}
}

// Today returns the calendar day of t in t's location.
func Today(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD"; an empty string or null leaves the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", b)
	}
	s := strings.TrimSpace(string(b[1 : len(b)-1]))
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the add-expense preconditions. The returned error matches
// ErrValidation and the specific constraint that failed.
func (in NewExpenseInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyCategory)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyDescription)
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Expenses:   append([]Expense(nil), s.Expenses...),
		Categories: append([]string(nil), s.Categories...),
		NextID:     s.NextID,
	}
}

// MaxID returns the largest record id, or 0 when there are none.
func (s Snapshot) MaxID() int64 {
	var max int64
	for _, e := range s.Expenses {
		if e.ID > max {
			max = e.ID
		}
	}
	return max
}
