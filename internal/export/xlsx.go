// Package export writes the ledger to external formats: an Excel workbook and
// a Google Sheets tab.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"budget/internal/core"
)

const (
	ExpensesSheet = "Expenses"
	SummarySheet  = "Summary"

	// XLSXContentType is the media type of a workbook written by WriteXLSX.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// built-in "#,##0.00"
	numFmtMoney = 4
)

var expenseHeaders = []string{"ID", "Date", "Category", "Description", "Amount"}

// BuildXLSX returns a workbook with the expenses in the given order on one
// sheet and the summary on another.
func BuildXLSX(expenses []core.Expense, summary core.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	index, err := f.NewSheet(ExpensesSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create %s sheet: %w", ExpensesSheet, err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create %s sheet: %w", SummarySheet, err)
	}
	f.SetActiveSheet(index)
	if defaultSheet != ExpensesSheet && defaultSheet != SummarySheet {
		f.DeleteSheet(defaultSheet)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create money style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for i, h := range expenseHeaders {
		write(ExpensesSheet, i+1, 1, h)
	}
	_ = f.SetCellStyle(ExpensesSheet, "A1", "E1", bold)
	for i, e := range expenses {
		row := i + 2
		write(ExpensesSheet, 1, row, e.ID)
		write(ExpensesSheet, 2, row, e.Date.String())
		write(ExpensesSheet, 3, row, e.Category)
		write(ExpensesSheet, 4, row, e.Description)
		write(ExpensesSheet, 5, row, e.Amount.Dollars())
	}
	if n := len(expenses); n > 0 {
		_ = f.SetCellStyle(ExpensesSheet, "E2", fmt.Sprintf("E%d", n+1), money)
	}
	_ = f.SetColWidth(ExpensesSheet, "A", "A", 8)
	_ = f.SetColWidth(ExpensesSheet, "B", "B", 12)
	_ = f.SetColWidth(ExpensesSheet, "C", "C", 18)
	_ = f.SetColWidth(ExpensesSheet, "D", "D", 40)
	_ = f.SetColWidth(ExpensesSheet, "E", "E", 14)

	write(SummarySheet, 1, 1, "Category")
	write(SummarySheet, 2, 1, "Amount")
	write(SummarySheet, 3, 1, "Percent")
	_ = f.SetCellStyle(SummarySheet, "A1", "C1", bold)
	row := 2
	for _, c := range summary.ByCategory {
		write(SummarySheet, 1, row, c.Name)
		write(SummarySheet, 2, row, c.Amount.Dollars())
		write(SummarySheet, 3, row, c.Percent)
		row++
	}
	write(SummarySheet, 1, row, "Total")
	write(SummarySheet, 2, row, summary.Total.Dollars())
	_ = f.SetCellStyle(SummarySheet, "A"+fmt.Sprint(row), "B"+fmt.Sprint(row), bold)
	_ = f.SetCellStyle(SummarySheet, "B2", fmt.Sprintf("B%d", row), money)
	_ = f.SetColWidth(SummarySheet, "A", "A", 18)
	_ = f.SetColWidth(SummarySheet, "B", "C", 14)

	return f, nil
}

// WriteXLSX builds the workbook and streams it to w.
func WriteXLSX(w io.Writer, expenses []core.Expense, summary core.Summary) error {
	f, err := BuildXLSX(expenses, summary)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
