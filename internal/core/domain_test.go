package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"food":         "Food",
		"  FOOD ":      "Food",
		"fast food":    "Fast Food",
		"Transport":    "Transport",
		"   ":          "",
		"eating OUT":   "Eating Out",
		"o'neil's bar": "O'neil's Bar",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCategory(in), in)
	}
}

func TestNewExpenseInputValidate(t *testing.T) {
	good := NewExpenseInput{Amount: Money{Cents: 100}, Category: "Food", Description: "lunch"}
	require.NoError(t, good.Validate())

	cases := []struct {
		name string
		in   NewExpenseInput
		want error
	}{
		{"zero amount", NewExpenseInput{Amount: Money{}, Category: "c", Description: "d"}, ErrInvalidAmount},
		{"negative amount", NewExpenseInput{Amount: Money{Cents: -5}, Category: "c", Description: "d"}, ErrInvalidAmount},
		{"blank category", NewExpenseInput{Amount: Money{Cents: 1}, Category: "  ", Description: "d"}, ErrEmptyCategory},
		{"blank description", NewExpenseInput{Amount: Money{Cents: 1}, Category: "c", Description: "\t"}, ErrEmptyDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 3, 9)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-09"`, string(b))

	var got Date
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "2025-03-09", got.String())

	require.NoError(t, json.Unmarshal([]byte(`""`), &got))
	assert.True(t, got.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"09/03/2025"`), &got))
	assert.Error(t, json.Unmarshal([]byte(`20250309`), &got))
}

func TestToday(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-01", Today(now).String())
}

func TestSnapshotHelpers(t *testing.T) {
	s := Snapshot{
		Expenses:   []Expense{{ID: 3}, {ID: 7}, {ID: 2}},
		Categories: []string{"Food"},
	}
	assert.Equal(t, int64(7), s.MaxID())
	assert.Equal(t, int64(0), Snapshot{}.MaxID())

	c := s.Clone()
	c.Expenses[0].ID = 99
	c.Categories[0] = "Other"
	assert.Equal(t, int64(3), s.Expenses[0].ID)
	assert.Equal(t, "Food", s.Categories[0])
}
