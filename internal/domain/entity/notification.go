package entity

import "time"

// Notification records one delivery of approve/reject links for an invoice
type Notification struct {
	ID           int64      `json:"id"`
	InvoiceID    int64      `json:"invoice_id"`
	Transport    string     `json:"transport"`
	Recipient    string     `json:"recipient"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
