package event

// Type identifies the type of domain event
type Type string

const (
	TypeInvoiceCreated     Type = "invoice.created"
	TypeInvoiceApproved    Type = "invoice.approved"
	TypeInvoiceRejected    Type = "invoice.rejected"
	TypeDecisionIgnored    Type = "invoice.decision_ignored"
	TypeNotificationFailed Type = "notification.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceCreated,
		TypeInvoiceApproved,
		TypeInvoiceRejected,
		TypeDecisionIgnored,
		TypeNotificationFailed:
		return true
	default:
		return false
	}
}
