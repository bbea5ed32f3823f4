package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository.
// The table rejects UPDATE and DELETE, so only inserts and reads live here.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO invoice_history (invoice_id, from_state, to_state, comment, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.InvoiceID,
		string(entry.FromState),
		string(entry.ToState),
		entry.Comment,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history entry",
			zap.Int64("invoice_id", entry.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByInvoiceID returns the ledger of one invoice in write order
func (r *HistoryRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, invoice_id, from_state, to_state, comment, timestamp
		FROM invoice_history
		WHERE invoice_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get history by invoice ID", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// ListAll returns every entry grouped by invoice
func (r *HistoryRepository) ListAll(ctx context.Context) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, invoice_id, from_state, to_state, comment, timestamp
		FROM invoice_history
		ORDER BY invoice_id ASC, timestamp ASC, id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]*entity.HistoryEntry, error) {
	var entries []*entity.HistoryEntry
	for rows.Next() {
		var (
			entry    entity.HistoryEntry
			from, to string
		)
		if err := rows.Scan(&entry.ID, &entry.InvoiceID, &from, &to, &entry.Comment, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.FromState = workflow.State(from)
		entry.ToState = workflow.State(to)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
