package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// ResendSDKNotifier sends approval requests through the Resend Go client
type ResendSDKNotifier struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewResendSDKNotifier creates a notifier. httpClient may be nil; baseURL may be empty.
func NewResendSDKNotifier(apiKey, from, baseURL string, httpClient *http.Client, logger *zap.Logger) (*ResendSDKNotifier, error) {
	client := resend.NewCustomClient(httpClient, apiKey)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendSDKNotifier{client: client, from: from, logger: logger}, nil
}

func (n *ResendSDKNotifier) Name() string { return "resend-sdk" }

// Send delivers the email, retrying rate limits and server errors within ctx
func (n *ResendSDKNotifier) Send(ctx context.Context, msg *port.NotificationMessage) error {
	html, err := RenderHTML(msg)
	if err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{msg.Recipient},
		Subject: Subject(msg.Invoice),
		Html:    html,
	}

	var emailID string
	err = retry(ctx, func() error {
		resp, err := n.client.Emails.SendWithContext(ctx, req)
		if err != nil {
			if isPermanentResendError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		emailID = resp.Id
		return nil
	})
	if err != nil {
		return fmt.Errorf("resend sdk: %w", err)
	}

	n.logger.Info("Email sent",
		zap.String("transport", n.Name()),
		zap.Int64("invoice_id", msg.Invoice.ID),
		zap.String("email_id", emailID))
	return nil
}

// isPermanentResendError treats answers from the API as final except rate limits.
// Transport errors carry no "[ERROR]" prefix and are retried.
func isPermanentResendError(err error) bool {
	if errors.Is(err, resend.ErrRateLimit) {
		return false
	}
	return strings.HasPrefix(err.Error(), "[ERROR]")
}
