package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
)

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// SheetsExporter mirrors the expense list into one tab of a spreadsheet.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// NewSheetsExporter authenticates with service account credentials from the
// config. Extra client options are appended after the credentials; passing
// any skips the credential requirement.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *slog.Logger, opts ...goption.ClientOption) (*SheetsExporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = ExpensesSheet
	}

	var clientOpts []goption.ClientOption
	if len(opts) == 0 {
		credentials, err := loadCredentials(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func loadCredentials(ctx context.Context, cfg SheetsConfig, logger *slog.Logger) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read credentials file", "path", cfg.CredentialsFile, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set sheets_credentials_json or sheets_credentials_file)")
	}
}

// Export clears the tab and writes a header row followed by one row per
// expense, in the order given. It returns the number of rows written.
func (s *SheetsExporter) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	clearRange := fmt.Sprintf("%s!A:E", s.sheetName)
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("clear sheet %s: %w", s.sheetName, err)
	}

	values := make([][]any, 0, len(expenses)+1)
	header := make([]any, len(expenseHeaders))
	for i, h := range expenseHeaders {
		header[i] = h
	}
	values = append(values, header)
	for _, e := range expenses {
		values = append(values, []any{e.ID, e.Date.String(), e.Category, e.Description, e.Amount.Dollars()})
	}

	writeRange := fmt.Sprintf("%s!A1:E%d", s.sheetName, len(values))
	vr := &gsheet.ValueRange{Range: writeRange, MajorDimension: "ROWS", Values: values}
	resp, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("write sheet %s: %w", s.sheetName, err)
	}

	s.logger.InfoContext(ctx, "Exported ledger to Google Sheets",
		"spreadsheet_id", s.spreadsheetID,
		"sheet", s.sheetName,
		"rows", len(expenses),
		"updated_cells", resp.UpdatedCells)
	return len(expenses), nil
}
