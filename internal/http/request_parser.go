package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const maxBodyBytes = 64 << 10

// AddExpenseRequest is the body of POST /api/expenses. Amount accepts a JSON
// number or a decimal string such as "12.50".
type AddExpenseRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

var errMalformedBody = errors.New("malformed request body")

// decodeJSON reads a single JSON object, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON object", errMalformedBody)
	}
	return nil
}

// parseAmount turns the raw amount field into Money. An absent or
// unparseable amount yields core.ErrInvalidAmount.
func parseAmount(raw json.RawMessage) (core.Money, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return core.Money{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrInvalidAmount)
	}
	var (
		m   core.Money
		err error
	)
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return core.Money{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrInvalidAmount)
		}
		m, err = core.ParseMoney(str)
	} else {
		// Bare JSON numbers may use exponent notation.
		var d decimal.Decimal
		if d, err = decimal.NewFromString(s); err == nil {
			m, err = core.MoneyFromDecimal(d)
		}
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrInvalidAmount)
	}
	return m, nil
}

// parseID reads the {id} path value as a positive integer.
func parseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
