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

const notificationColumns = `id, invoice_id, transport, recipient, status, attempts,
	error_message, sent_at, created_at, updated_at`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records a notification before its first delivery attempt
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			invoice_id, transport, recipient, status, attempts,
			error_message, sent_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.UpdatedAt = now
	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		notification.InvoiceID,
		notification.Transport,
		notification.Recipient,
		notification.Status,
		notification.Attempts,
		notification.ErrorMessage,
		notification.SentAt,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("invoice_id", notification.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// MarkSent records a successful delivery attempt
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, error_message = '', sent_at = ?, updated_at = ?
		WHERE id = ?
	`
	return r.update(ctx, "mark notification sent", id, query,
		entity.NotificationStatusSent, sentAt, r.now(), id)
}

// MarkFailed records a failed delivery attempt
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, error_message = ?, updated_at = ?
		WHERE id = ?
	`
	return r.update(ctx, "mark notification failed", id, query,
		entity.NotificationStatusFailed, errMsg, r.now(), id)
}

// MarkSkipped retires a notification without another attempt
func (r *NotificationRepository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE notifications
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`
	return r.update(ctx, "mark notification skipped", id, query,
		entity.NotificationStatusSkipped, reason, r.now(), id)
}

func (r *NotificationRepository) update(ctx context.Context, op string, id int64, query string, args ...interface{}) error {
	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification not found: %d", id)
	}
	return nil
}

// GetRetryable returns FAILED notifications that still have attempts left, oldest first
func (r *NotificationRepository) GetRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = ? AND attempts < ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query,
		entity.NotificationStatusFailed, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to get retryable notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to get retryable notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByInvoiceID returns every notification of an invoice
func (r *NotificationRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE invoice_id = ?
		ORDER BY id ASC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get notifications by invoice ID", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]*entity.Notification, error) {
	var notifications []*entity.Notification
	for rows.Next() {
		var (
			n      entity.Notification
			sentAt sql.NullTime
		)
		err := rows.Scan(
			&n.ID,
			&n.InvoiceID,
			&n.Transport,
			&n.Recipient,
			&n.Status,
			&n.Attempts,
			&n.ErrorMessage,
			&sentAt,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
