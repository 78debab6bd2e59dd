package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	goption "google.golang.org/api/option"

	"budget/internal/core"
)

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: 2, Amount: core.Money{Cents: 2000}, Category: "Transport", Description: "bus", Date: core.NewDate(2025, 4, 2)},
		{ID: 1, Amount: core.Money{Cents: 5000}, Category: "Food", Description: "lunch", Date: core.NewDate(2025, 4, 1)},
	}
}

func TestWriteXLSX(t *testing.T) {
	expenses := sampleExpenses()
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, expenses, core.Summarize(expenses)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{ExpensesSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ExpensesSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, expenseHeaders, rows[0])
	assert.Equal(t, []string{"2", "2025-04-02", "Transport", "bus", "20"}, rows[1])
	assert.Equal(t, []string{"1", "2025-04-01", "Food", "lunch", "50"}, rows[2])

	summary, err := f.GetRows(SummarySheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, "Food", summary[1][0])
	assert.Equal(t, "Transport", summary[2][0])
	assert.Equal(t, []string{"Total", "70"}, summary[3])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, core.Summarize(nil)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(ExpensesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

type fakeSheetsAPI struct {
	mu      sync.Mutex
	cleared []string
	updates []map[string]any
	paths   []string
	query   []string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.cleared = append(f.cleared, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-123"})
	case r.Method == http.MethodPut:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.updates = append(f.updates, body)
		f.query = append(f.query, r.URL.Query().Get("valueInputOption"))
		rows := len(body["values"].([]any))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-123",
			"updatedRows":   rows,
			"updatedCells":  rows * 5,
		})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestExporter(t *testing.T, api http.Handler) *SheetsExporter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	exp, err := NewSheetsExporter(context.Background(),
		SheetsConfig{SpreadsheetID: "sheet-123", SheetName: "Ledger"},
		nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return exp
}

func TestSheetsExport(t *testing.T) {
	api := &fakeSheetsAPI{}
	exp := newTestExporter(t, api)

	n, err := exp.Export(context.Background(), sampleExpenses())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, api.cleared, 1)
	assert.Contains(t, api.cleared[0], "/v4/spreadsheets/sheet-123/values/Ledger!A:E")
	require.Len(t, api.updates, 1)
	assert.Equal(t, "RAW", api.query[0])

	values := api.updates[0]["values"].([]any)
	require.Len(t, values, 3)
	assert.Equal(t, []any{"ID", "Date", "Category", "Description", "Amount"}, values[0])
	assert.Equal(t, []any{float64(2), "2025-04-02", "Transport", "bus", float64(20)}, values[1])
	assert.Equal(t, "Ledger!A1:E3", api.updates[0]["range"])
}

func TestSheetsExportPropagatesAPIErrors(t *testing.T) {
	exp := newTestExporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks permission"}}`))
	}))

	_, err := exp.Export(context.Background(), sampleExpenses())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear sheet Ledger")
}

func TestNewSheetsExporterRequiresCredentials(t *testing.T) {
	_, err := NewSheetsExporter(context.Background(), SheetsConfig{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = NewSheetsExporter(context.Background(), SheetsConfig{}, nil)
	assert.Error(t, err)
}
