package dispatcher

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// NewAuditHandler writes one structured log line per event. Ignored decisions
// never reach the history ledger, so this is where they are recorded.
func NewAuditHandler(logger Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		kv := []interface{}{
			"event_type", evt.Type,
			"event_id", evt.ID,
			"invoice_id", evt.InvoiceID,
			"correlation_id", evt.CorrelationID,
		}
		for _, key := range []string{"channel", "action", "from", "to", "state", "source", "transport", "error"} {
			if v, ok := evt.Payload[key]; ok {
				kv = append(kv, key, v)
			}
		}

		switch evt.Type {
		case event.TypeNotificationFailed:
			logger.Error("audit", kv...)
		default:
			logger.Info("audit", kv...)
		}
		return nil
	}
}
