package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/garyjia/invoice-approval/internal/apierror"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/webhook"
)

const maxWebhookBody = 1 << 20

// WebhookDecisionRequest is the body of POST /webhooks/decision
type WebhookDecisionRequest struct {
	InvoiceID int64  `json:"invoice_id"`
	Action    string `json:"action"`
	Comment   string `json:"comment,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Validate checks the required fields and the allowed actions
func (r *WebhookDecisionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.InvoiceID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Action, validation.Required,
			validation.In(workflow.ActionApprove.String(), workflow.ActionReject.String())),
		validation.Field(&r.Source, validation.Length(0, 100)),
		validation.Field(&r.Comment, validation.Length(0, 2000)),
	)
}

// WebhookDecisionResponse reports the state after the decision
type WebhookDecisionResponse struct {
	Status    string         `json:"status"`
	InvoiceID int64          `json:"invoice_id"`
	NewState  workflow.State `json:"new_state"`
	Applied   bool           `json:"applied"`
	Outcome   string         `json:"outcome"`
}

// WebhookDecision handles POST /webhooks/decision. Every readable body is
// recorded as a receipt before any validation so rejected calls stay auditable.
func (h *Handlers) WebhookDecision(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: unreadable body", workflow.ErrInvalidPayload))
		return
	}

	var req WebhookDecisionRequest
	decodeErr := json.Unmarshal(body, &req)

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = entity.DefaultWebhookSource
	}
	receipt := h.services.Webhooks.Receive(ctx, source, body)

	if err := h.services.Verifier.VerifySignature(c.GetHeader(webhook.SignatureHeader), body); err != nil {
		h.services.Webhooks.Fail(ctx, receipt, err)
		h.logger.Info("Webhook rejected", "reason", err.Error(), "source", source)
		h.writeError(c, apierror.NewAPIError(apierror.ErrUnauthorized, err.Error(), nil))
		return
	}

	if decodeErr != nil {
		err := fmt.Errorf("%w: body must be a JSON object with invoice_id and action", workflow.ErrInvalidPayload)
		h.services.Webhooks.Fail(ctx, receipt, err)
		h.writeError(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", workflow.ErrInvalidPayload, err)
		h.services.Webhooks.Fail(ctx, receipt, err)
		h.writeError(c, err)
		return
	}

	decision, err := h.services.Webhooks.Process(ctx, receipt, appwf.WebhookDecision{
		InvoiceID: req.InvoiceID,
		Action:    req.Action,
		Comment:   req.Comment,
		Source:    source,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookDecisionResponse{
		Status:    "ok",
		InvoiceID: decision.Invoice.ID,
		NewState:  decision.Invoice.State,
		Applied:   decision.Applied,
		Outcome:   decision.Outcome(),
	})
}

// ListWebhookReceipts handles GET /webhooks/receipts
func (h *Handlers) ListWebhookReceipts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, fmt.Errorf("%w: limit must be an integer", workflow.ErrInvalidPayload))
			return
		}
		limit = n
	}

	receipts, err := h.services.Webhooks.Recent(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"receipts": receipts,
			"count":    len(receipts),
		},
	})
}
