package entity

import "time"

// Webhook receipt outcomes
const (
	ReceiptOutcomePending = "pending"
	ReceiptOutcomeOK      = "ok"
	ReceiptOutcomeError   = "error"
)

// WebhookReceipt logs one inbound decision payload and how it was processed
type WebhookReceipt struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Payload     string     `json:"payload"`
	ReceivedAt  time.Time  `json:"received_at"`
	Outcome     string     `json:"outcome"`
	Error       string     `json:"error,omitempty"`
	InvoiceID   *int64     `json:"invoice_id,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
