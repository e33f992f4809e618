package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"resourcehive/internal/config"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// SheetsExporter mirrors report aggregations into a Google spreadsheet for
// the admin office, which tracks procurement in Sheets. Credentials come from
// GOOGLE_SHEETS_CREDENTIALS_JSON or, for local development, a credentials
// file on disk.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	reports       *ReportRepository
	log           *zap.Logger
}

func NewSheetsExporter(ctx context.Context, cfg *config.Config, reports *ReportRepository, log *zap.Logger) (*SheetsExporter, error) {
	raw := []byte(cfg.GoogleCredentialsJSON)
	if len(raw) == 0 {
		b, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read Google credentials file: %w", err)
		}
		raw = b
	}

	credentials, err := google.CredentialsFromJSON(ctx, raw, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("cannot load Google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, credentials.TokenSource)
	service, err := sheets.New(client)
	if err != nil {
		return nil, fmt.Errorf("cannot create Google Sheets client: %w", err)
	}

	return &SheetsExporter{
		service:       service,
		spreadsheetID: cfg.ReportSpreadsheetID,
		reports:       reports,
		log:           log,
	}, nil
}

// ExportTopSupplies writes the top-requested-supplies ranking into the
// TopSupplies sheet, replacing its previous contents. Returns the number of
// data rows written.
func (e *SheetsExporter) ExportTopSupplies(ctx context.Context, from, to time.Time, limit int) (int, error) {
	rows, err := e.reports.TopRequestedSupplies(from, to, limit)
	if err != nil {
		return 0, err
	}

	values := [][]interface{}{
		{"Supply ID", "Supply", "Requests", "Total Quantity"},
	}
	for _, row := range rows {
		values = append(values, []interface{}{
			strconv.Itoa(row.SupplyID), row.SupplyName, row.RequestCount, row.TotalQuantity,
		})
	}

	if err := e.write(ctx, "TopSupplies!A1", values); err != nil {
		return 0, err
	}

	e.log.Info("exported top supplies to sheet",
		zap.Int("rows", len(rows)),
		zap.Time("from", from),
		zap.Time("to", to))
	return len(rows), nil
}

// ExportDepartments writes per-department request counts into the
// Departments sheet.
func (e *SheetsExporter) ExportDepartments(ctx context.Context, from, to time.Time) (int, error) {
	rows, err := e.reports.RequestsByDepartment(from, to)
	if err != nil {
		return 0, err
	}

	values := [][]interface{}{
		{"Department", "Supply Requests", "Borrow Requests", "Reservations"},
	}
	for _, row := range rows {
		values = append(values, []interface{}{
			row.Department, row.SupplyRequests, row.BorrowRequests, row.Reservations,
		})
	}

	if err := e.write(ctx, "Departments!A1", values); err != nil {
		return 0, err
	}

	e.log.Info("exported department counts to sheet", zap.Int("rows", len(rows)))
	return len(rows), nil
}

func (e *SheetsExporter) write(ctx context.Context, writeRange string, values [][]interface{}) error {
	body := &sheets.ValueRange{Values: values}
	_, err := e.service.Spreadsheets.Values.
		Update(e.spreadsheetID, writeRange, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("cannot write range %s: %w", writeRange, err)
	}
	return nil
}
