package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// larkRateLimited is the open platform code for request frequency limits
const larkRateLimited = 99991400

type createMessageFunc func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)

// LarkNotifier sends an interactive card with approve/reject buttons through Lark IM
type LarkNotifier struct {
	create createMessageFunc
	logger *zap.Logger
}

// NewLarkNotifier creates a notifier backed by the Lark SDK client
func NewLarkNotifier(appID, appSecret string, logger *zap.Logger) *LarkNotifier {
	client := lark.NewClient(appID, appSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &LarkNotifier{
		create: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
			return client.Im.Message.Create(ctx, req)
		},
		logger: logger,
	}
}

func (n *LarkNotifier) Name() string { return "lark" }

// Send addresses the recipient by email
func (n *LarkNotifier) Send(ctx context.Context, msg *port.NotificationMessage) error {
	body, err := newCardMessage(msg)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("email").
		Body(body).
		Build()

	var messageID string
	err = retry(ctx, func() error {
		resp, err := n.create(ctx, req)
		if err != nil {
			return err
		}
		if !resp.Success() {
			apiErr := fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
			if resp.Code == larkRateLimited {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if resp.Data != nil && resp.Data.MessageId != nil {
			messageID = *resp.Data.MessageId
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lark: %w", err)
	}

	n.logger.Info("Card sent",
		zap.String("transport", n.Name()),
		zap.Int64("invoice_id", msg.Invoice.ID),
		zap.String("message_id", messageID))
	return nil
}

// newCardMessage builds the interactive card addressed to the recipient
func newCardMessage(msg *port.NotificationMessage) (*larkim.CreateMessageReqBody, error) {
	card, err := json.Marshal(buildCard(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal card content: %w", err)
	}
	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(msg.Recipient).
		MsgType("interactive").
		Content(string(card)).
		Build(), nil
}

func buildCard(msg *port.NotificationMessage) map[string]interface{} {
	s := summarize(msg)
	details := fmt.Sprintf("**Provider:** %s\n**Issue date:** %s\n**Due date:** %s\n**Total:** %s\n**Taxes:** %s",
		s.Provider, s.IssueDate, s.DueDate, s.Total, s.Taxes)

	button := func(label, kind, url string) map[string]interface{} {
		return map[string]interface{}{
			"tag":  "button",
			"text": map[string]string{"tag": "plain_text", "content": label},
			"type": kind,
			"url":  url,
		}
	}

	return map[string]interface{}{
		"config": map[string]bool{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": "blue",
			"title":    map[string]string{"tag": "plain_text", "content": Subject(msg.Invoice)},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]string{"tag": "lark_md", "content": details},
			},
			map[string]interface{}{
				"tag": "action",
				"actions": []interface{}{
					button("Approve", "primary", s.ApproveURL),
					button("Reject", "danger", s.RejectURL),
				},
			},
		},
	}
}
