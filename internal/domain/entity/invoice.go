package entity

import (
	"strconv"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// Fields holds the structured values extracted from an invoice document.
// Every field is optional; nil means the extractor found nothing.
type Fields struct {
	ProviderName  *string `json:"provider_name"`
	InvoiceNumber *string `json:"invoice_number"`
	IssueDate     *string `json:"issue_date"`
	DueDate       *string `json:"due_date"`
	TotalAmount   *string `json:"total_amount"`
	Taxes         *string `json:"taxes"`
}

// Invoice is the unit of work routed through the approval workflow
type Invoice struct {
	ID         int64          `json:"id"`
	Fields     Fields         `json:"extracted"`
	RawText    string         `json:"-"`
	SourceFile string         `json:"source_file,omitempty"`
	State      workflow.State `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// DisplayName returns the invoice number when known, otherwise "#<id>"
func (i *Invoice) DisplayName() string {
	if v := i.Fields.InvoiceNumber; v != nil && *v != "" {
		return *v
	}
	return "#" + strconv.FormatInt(i.ID, 10)
}

// StringPtr returns nil for empty strings
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value or the fallback when nil
func Deref(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
