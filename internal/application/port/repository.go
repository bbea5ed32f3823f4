package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	// UpdateState moves the invoice from -> to only if it is still in from.
	// It returns false when no row matched.
	UpdateState(ctx context.Context, id int64, from, to workflow.State, at time.Time) (bool, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, error)
}

// InvoiceFilter narrows List results
type InvoiceFilter struct {
	State  workflow.State
	Limit  int
	Offset int
}

// HistoryRepository defines persistence operations for the append-only history ledger
type HistoryRepository interface {
	Create(ctx context.Context, entry *entity.HistoryEntry) error
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.HistoryEntry, error)
	ListAll(ctx context.Context) ([]*entity.HistoryEntry, error)
}

// WebhookReceiptRepository defines persistence operations for WebhookReceipt
type WebhookReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.WebhookReceipt) error
	UpdateOutcome(ctx context.Context, id string, outcome, errMsg string, invoiceID *int64) error
	GetByID(ctx context.Context, id string) (*entity.WebhookReceipt, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.WebhookReceipt, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	MarkSkipped(ctx context.Context, id int64, reason string) error
	GetRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error)
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
