// Package export renders the invoice ledger as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// Sheet names
const (
	InvoicesSheet = "Invoices"
	HistorySheet  = "History"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	invoiceHeader = []interface{}{
		"ID", "Invoice Number", "Provider", "Issue Date", "Due Date",
		"Total", "Taxes", "State", "Source File", "Created At", "Updated At",
	}
	historyHeader = []interface{}{"Invoice ID", "From", "To", "Timestamp", "Comment"}
)

// LedgerExporter writes one row per invoice and one row per history entry
type LedgerExporter struct {
	logger *zap.Logger
}

var _ port.LedgerExporter = (*LedgerExporter)(nil)

// NewLedgerExporter creates a new exporter
func NewLedgerExporter(logger *zap.Logger) *LedgerExporter {
	return &LedgerExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *LedgerExporter) ContentType() string {
	return xlsxContentType
}

// Export builds the workbook in memory and streams it to w
func (e *LedgerExporter) Export(w io.Writer, invoices []*entity.Invoice, history []*entity.HistoryEntry) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		return fmt.Errorf("failed to create history sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, InvoicesSheet, 1, invoiceHeader); err != nil {
		return err
	}
	for i, inv := range invoices {
		row := []interface{}{
			inv.ID,
			entity.Deref(inv.Fields.InvoiceNumber, ""),
			entity.Deref(inv.Fields.ProviderName, ""),
			entity.Deref(inv.Fields.IssueDate, ""),
			entity.Deref(inv.Fields.DueDate, ""),
			entity.Deref(inv.Fields.TotalAmount, ""),
			entity.Deref(inv.Fields.Taxes, ""),
			inv.State.String(),
			inv.SourceFile,
			formatTime(inv.CreatedAt),
			formatTime(inv.UpdatedAt),
		}
		if err := writeRow(f, InvoicesSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, HistorySheet, 1, historyHeader); err != nil {
		return err
	}
	for i, h := range history {
		row := []interface{}{
			h.InvoiceID,
			h.FromState.String(),
			h.ToState.String(),
			formatTime(h.Timestamp),
			h.Comment,
		}
		if err := writeRow(f, HistorySheet, i+2, row); err != nil {
			return err
		}
	}

	for _, sheet := range []string{InvoicesSheet, HistorySheet} {
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Ledger exported",
		zap.Int("invoice_count", len(invoices)),
		zap.Int("history_count", len(history)))
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
