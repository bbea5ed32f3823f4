package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// ResendHTTPNotifier posts to the Resend REST API directly
type ResendHTTPNotifier struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
	logger  *zap.Logger
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NewResendHTTPNotifier creates a notifier. httpClient may be nil.
func NewResendHTTPNotifier(apiKey, from, baseURL string, httpClient *http.Client, logger *zap.Logger) *ResendHTTPNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ResendHTTPNotifier{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		logger:  logger,
	}
}

func (n *ResendHTTPNotifier) Name() string { return "resend-http" }

// Send posts the email; 200 and 202 are success
func (n *ResendHTTPNotifier) Send(ctx context.Context, msg *port.NotificationMessage) error {
	html, err := RenderHTML(msg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(resendPayload{
		From:    n.from,
		To:      []string{msg.Recipient},
		Subject: Subject(msg.Invoice),
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	err = retry(ctx, func() error {
		return n.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("resend http: %w", err)
	}

	n.logger.Info("Email sent",
		zap.String("transport", n.Name()),
		zap.Int64("invoice_id", msg.Invoice.ID))
	return nil
}

func (n *ResendHTTPNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	if retryableStatus(resp.StatusCode) {
		return err
	}
	return backoff.Permanent(err)
}
