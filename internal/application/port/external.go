package port

import (
	"context"
	"io"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

// TextSource converts a stored document into raw text
type TextSource interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// FieldExtractor turns raw text into best-effort structured fields
type FieldExtractor interface {
	Extract(rawText string) entity.Fields
}

// NotificationMessage is everything a notifier needs to ask for a decision
type NotificationMessage struct {
	Recipient  string
	Invoice    *entity.Invoice
	ApproveURL string
	RejectURL  string
}

// Notifier delivers approval requests through one transport
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg *NotificationMessage) error
}

// Locker serializes work on a single invoice id
type Locker interface {
	// Lock blocks until the lock for invoiceID is held or ctx ends.
	// The returned release func must be called exactly once.
	Lock(ctx context.Context, invoiceID int64) (release func(), err error)
}

// TokenCodec mints and verifies action tokens
type TokenCodec interface {
	Mint(invoiceID int64, action workflow.Action) (string, error)
	Verify(tok string) (*token.Claim, error)
}

// LedgerExporter renders invoices and their history into a downloadable document
type LedgerExporter interface {
	ContentType() string
	Export(w io.Writer, invoices []*entity.Invoice, history []*entity.HistoryEntry) error
}
