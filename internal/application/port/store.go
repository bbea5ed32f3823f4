package port

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// InvoiceStore is the only writer of invoice state and history
type InvoiceStore interface {
	Create(ctx context.Context, fields entity.Fields, rawText, sourceFile, comment string) (*entity.Invoice, error)
	Get(ctx context.Context, id int64) (*entity.Invoice, error)
	History(ctx context.Context, id int64) ([]*entity.HistoryEntry, error)
	AllHistory(ctx context.Context) ([]*entity.HistoryEntry, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, error)
	// Transition returns applied=false without side effects when the invoice is already terminal
	Transition(ctx context.Context, id int64, action workflow.Action, comment string) (*entity.Invoice, bool, error)
}
