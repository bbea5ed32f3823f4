package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `id, provider_name, invoice_number, issue_date, due_date, total_amount, taxes,
	raw_text, source_file, state, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice and sets its ID
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			provider_name, invoice_number, issue_date, due_date, total_amount, taxes,
			raw_text, source_file, state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	f := invoice.Fields
	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		nullable(f.ProviderName),
		nullable(f.InvoiceNumber),
		nullable(f.IssueDate),
		nullable(f.DueDate),
		nullable(f.TotalAmount),
		nullable(f.Taxes),
		invoice.RawText,
		invoice.SourceFile,
		string(invoice.State),
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by ID. It returns nil, nil when no row exists.
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	row := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id)
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return invoice, nil
}

// UpdateState moves the invoice to the target state only while it is still in from
func (r *InvoiceRepository) UpdateState(ctx context.Context, id int64, from, to workflow.State, at time.Time) (bool, error) {
	query := `UPDATE invoices SET state = ?, updated_at = ? WHERE id = ? AND state = ?`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, string(to), at, id, string(from))
	if err != nil {
		r.logger.Error("Failed to update invoice state",
			zap.Int64("id", id),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to update invoice state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// List returns invoices newest first
func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(s rowScanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var provider, number, issued, due, total, taxes, state sql.NullString
	err := s.Scan(
		&invoice.ID,
		&provider,
		&number,
		&issued,
		&due,
		&total,
		&taxes,
		&invoice.RawText,
		&invoice.SourceFile,
		&state,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Fields = entity.Fields{
		ProviderName:  fromNullable(provider),
		InvoiceNumber: fromNullable(number),
		IssueDate:     fromNullable(issued),
		DueDate:       fromNullable(due),
		TotalAmount:   fromNullable(total),
		Taxes:         fromNullable(taxes),
	}
	invoice.State = workflow.State(state.String)
	if !invoice.State.IsValid() {
		return nil, fmt.Errorf("%w: invoice %d has state %q", workflow.ErrInvalidState, invoice.ID, state.String)
	}
	return &invoice, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
