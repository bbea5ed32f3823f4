package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
)

const receiptColumns = `id, source, payload, received_at, outcome, error, invoice_id, processed_at`

// WebhookReceiptRepository implements port.WebhookReceiptRepository
type WebhookReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookReceiptRepository creates a new webhook receipt repository
func NewWebhookReceiptRepository(db *sql.DB, logger *zap.Logger) port.WebhookReceiptRepository {
	return &WebhookReceiptRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records an inbound payload
func (r *WebhookReceiptRepository) Create(ctx context.Context, receipt *entity.WebhookReceipt) error {
	query := `
		INSERT INTO webhook_receipts (id, source, payload, received_at, outcome, error, invoice_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if receipt.Outcome == "" {
		receipt.Outcome = entity.ReceiptOutcomePending
	}
	if receipt.Source == "" {
		receipt.Source = entity.DefaultWebhookSource
	}
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = r.now()
	}

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		receipt.ID,
		receipt.Source,
		receipt.Payload,
		receipt.ReceivedAt,
		receipt.Outcome,
		receipt.Error,
		receipt.InvoiceID,
	)
	if err != nil {
		r.logger.Error("Failed to create webhook receipt", zap.String("id", receipt.ID), zap.Error(err))
		return fmt.Errorf("failed to create webhook receipt: %w", err)
	}
	return nil
}

// UpdateOutcome finalizes a receipt after processing
func (r *WebhookReceiptRepository) UpdateOutcome(ctx context.Context, id string, outcome, errMsg string, invoiceID *int64) error {
	query := `
		UPDATE webhook_receipts
		SET outcome = ?, error = ?, invoice_id = COALESCE(?, invoice_id), processed_at = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, outcome, errMsg, invoiceID, r.now(), id)
	if err != nil {
		r.logger.Error("Failed to update webhook receipt",
			zap.String("id", id),
			zap.String("outcome", outcome),
			zap.Error(err))
		return fmt.Errorf("failed to update webhook receipt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook receipt not found: %s", id)
	}
	return nil
}

// GetByID retrieves a receipt. It returns nil, nil when no row exists.
func (r *WebhookReceiptRepository) GetByID(ctx context.Context, id string) (*entity.WebhookReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM webhook_receipts WHERE id = ?`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to get webhook receipt", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook receipt: %w", err)
	}
	defer rows.Close()

	receipts, err := scanReceipts(rows)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	return receipts[0], nil
}

// ListRecent returns the newest receipts first
func (r *WebhookReceiptRepository) ListRecent(ctx context.Context, limit int) ([]*entity.WebhookReceipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM webhook_receipts
		ORDER BY received_at DESC, rowid DESC
		LIMIT ?`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list webhook receipts", zap.Error(err))
		return nil, fmt.Errorf("failed to list webhook receipts: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

func scanReceipts(rows *sql.Rows) ([]*entity.WebhookReceipt, error) {
	var receipts []*entity.WebhookReceipt
	for rows.Next() {
		var (
			rc          entity.WebhookReceipt
			invoiceID   sql.NullInt64
			processedAt sql.NullTime
		)
		err := rows.Scan(
			&rc.ID,
			&rc.Source,
			&rc.Payload,
			&rc.ReceivedAt,
			&rc.Outcome,
			&rc.Error,
			&invoiceID,
			&processedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook receipt: %w", err)
		}
		if invoiceID.Valid {
			id := invoiceID.Int64
			rc.InvoiceID = &id
		}
		if processedAt.Valid {
			t := processedAt.Time
			rc.ProcessedAt = &t
		}
		receipts = append(receipts, &rc)
	}
	return receipts, rows.Err()
}

// Verify interface compliance
var _ port.WebhookReceiptRepository = (*WebhookReceiptRepository)(nil)
