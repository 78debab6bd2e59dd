package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/ledger"
	applog "budget/internal/log"
	"budget/internal/storage/memory"
)

type flakyStore struct {
	*memory.Store
	saveErr error
	loadErr error
}

func (f *flakyStore) Save(ctx context.Context, s core.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, s)
}

func (f *flakyStore) Load(ctx context.Context) (core.Snapshot, error) {
	if f.loadErr != nil {
		return core.Snapshot{}, f.loadErr
	}
	return f.Store.Load(ctx)
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

func newTestServer(t *testing.T, store ledger.Store, opts ...Option) (*Server, *ledger.Ledger) {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 5, 10, 9, 0, 0, 0, time.Local) }
	l, _ := ledger.Open(context.Background(), store, ledger.WithClock(clock))
	srv := NewServer(":0", l, append([]Option{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, l
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	down, _ := newTestServer(t, memory.New(), WithReadiness(func(context.Context) error {
		return errors.New("data directory missing")
	}))
	rr = do(t, down, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "backend not ready", decode[ErrorBody](t, rr).Error)
}

func TestAddExpense(t *testing.T) {
	store := memory.New()
	srv, l := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount": 50, "category": "  food ", "description": "Lunch\u0007"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/api/expenses/1", rr.Header().Get("Location"))

	e := decode[core.Expense](t, rr)
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, int64(5000), e.Amount.Cents)
	assert.Equal(t, "Food", e.Category)
	assert.Equal(t, "Lunch", e.Description)
	assert.Equal(t, "2025-05-10", e.Date.String())
	assert.Contains(t, rr.Body.String(), `"amount":50.00`)

	rr = do(t, srv, http.MethodPost, "/api/expenses", `{"amount": "12,5", "category": "Transport", "description": "bus"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(1250), decode[core.Expense](t, rr).Amount.Cents)

	rr = do(t, srv, http.MethodPost, "/api/expenses", `{"amount": 1e2, "category": "Utilities", "description": "power"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, int64(10000), decode[core.Expense](t, rr).Amount.Cents)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 3, store.Saves())
}

func TestAddExpenseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"zero amount", `{"amount": 0, "category": "Food", "description": "x"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount": -5, "category": "Food", "description": "x"}`, http.StatusUnprocessableEntity},
		{"missing amount", `{"category": "Food", "description": "x"}`, http.StatusUnprocessableEntity},
		{"text amount", `{"amount": "abc", "category": "Food", "description": "x"}`, http.StatusUnprocessableEntity},
		{"huge amount", `{"amount": 1e20, "category": "Food", "description": "x"}`, http.StatusUnprocessableEntity},
		{"blank category", `{"amount": 5, "category": "   ", "description": "x"}`, http.StatusUnprocessableEntity},
		{"blank description", `{"amount": 5, "category": "Food", "description": ""}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"amount": 5, "category": "Food", "description": "x", "id": 9}`, http.StatusBadRequest},
		{"not json", `amount=5`, http.StatusBadRequest},
		{"two objects", `{"amount": 5, "category": "Food", "description": "x"}{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			srv, l := newTestServer(t, store)

			rr := do(t, srv, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[ErrorBody](t, rr).Error)
			assert.Zero(t, l.Len())
			assert.Zero(t, store.Saves())
		})
	}
}

func TestAddExpenseStorageFailureKeepsRecord(t *testing.T) {
	store := &flakyStore{Store: memory.New(), saveErr: errors.New("disk full")}
	srv, l := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount": 5, "category": "Food", "description": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"expense":{"id":1`)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Dirty())

	rr = do(t, srv, http.MethodPost, "/api/ledger/save", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	store.saveErr = nil
	rr = do(t, srv, http.MethodPost, "/api/ledger/save", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, l.Dirty())
}

func TestDeleteExpense(t *testing.T) {
	srv, l := newTestServer(t, memory.New())
	e, err := l.Add(context.Background(), core.Money{Cents: 100}, "Food", "x")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/api/expenses/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/api/expenses/0", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/expenses/42", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/expenses/1", "").Code)
	assert.Zero(t, l.Len())
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/expenses/1", "").Code)
	assert.Contains(t, l.Categories(), e.Category)
}

func TestListSummaryAndCategories(t *testing.T) {
	srv, l := newTestServer(t, memory.New())
	ctx := context.Background()
	_, _ = l.Add(ctx, core.Money{Cents: 5000}, "Food", "lunch")
	_, _ = l.Add(ctx, core.Money{Cents: 2000}, "Transport", "bus")

	rr := do(t, srv, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Expenses []core.Expense `json:"expenses"`
	}](t, rr)
	require.Len(t, list.Expenses, 2)
	assert.Equal(t, int64(2), list.Expenses[0].ID)

	rr = do(t, srv, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[core.Summary](t, rr)
	assert.Equal(t, int64(7000), summary.Total.Cents)
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Food", summary.ByCategory[0].Name)
	assert.InDelta(t, 71.4, summary.ByCategory[0].Percent, 0.05)

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	cats := decode[map[string][]string](t, rr)["categories"]
	assert.Equal(t, []string{"Entertainment", "Food", "Other", "Transport", "Utilities"}, cats)
}

func TestEmptySummary(t *testing.T) {
	srv, _ := newTestServer(t, memory.New())
	rr := do(t, srv, http.MethodGet, "/api/summary", "")
	assert.JSONEq(t, `{"total":0.00,"categories":[]}`, rr.Body.String())
}

func TestReload(t *testing.T) {
	store := &flakyStore{Store: memory.NewWithSnapshot(core.Snapshot{
		Expenses: []core.Expense{{ID: 3, Amount: core.Money{Cents: 100}, Category: "Food", Description: "x", Date: core.NewDate(2025, 1, 1)}},
	})}
	srv, l := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/ledger/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"outcome":"restored","records":1}`, rr.Body.String())

	store.loadErr = core.ErrSnapshotCorrupt
	rr = do(t, srv, http.MethodPost, "/api/ledger/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "failed", body["load"].(map[string]any)["outcome"])
	assert.Equal(t, 1, l.Len())
}

func TestExportXLSX(t *testing.T) {
	srv, l := newTestServer(t, memory.New())
	_, _ = l.Add(context.Background(), core.Money{Cents: 5000}, "Food", "lunch")

	rr := do(t, srv, http.MethodGet, "/api/export.xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.XLSXContentType, rr.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.ExpensesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, memory.New())
	rr := do(t, srv, http.MethodPut, "/api/expenses", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), WithRateLimit(2))
	body := `{"amount": 1, "category": "Food", "description": "x"}`

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/expenses", body).Code)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/expenses", body).Code)
	rr := do(t, srv, http.MethodPost, "/api/expenses", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/expenses", "").Code)
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t, memory.New())
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, srv.Shutdown(context.Background()))
}
