package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// LogNotifier writes the action links to the log instead of delivering them
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, msg *port.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Info("Approval request",
		zap.Int64("invoice_id", msg.Invoice.ID),
		zap.String("subject", Subject(msg.Invoice)),
		zap.String("recipient", msg.Recipient),
		zap.String("approve_url", msg.ApproveURL),
		zap.String("reject_url", msg.RejectURL))
	return nil
}
