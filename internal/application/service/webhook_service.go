package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-approval/internal/application/port"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// WebhookService records inbound decision payloads and applies them
type WebhookService interface {
	// Receive records the raw payload as pending. Recording failures are logged
	// and yield nil; processing continues without a receipt.
	Receive(ctx context.Context, source string, payload []byte) *entity.WebhookReceipt

	// Process applies the decision and finalizes the receipt
	Process(ctx context.Context, receipt *entity.WebhookReceipt, req appwf.WebhookDecision) (*appwf.Decision, error)

	// Fail finalizes the receipt as an error without processing
	Fail(ctx context.Context, receipt *entity.WebhookReceipt, reason error)

	// Recent lists the newest receipts
	Recent(ctx context.Context, limit int) ([]*entity.WebhookReceipt, error)
}

type webhookServiceImpl struct {
	receipts port.WebhookReceiptRepository
	engine   appwf.Engine
	logger   Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(receipts port.WebhookReceiptRepository, engine appwf.Engine, logger Logger) WebhookService {
	return &webhookServiceImpl{
		receipts: receipts,
		engine:   engine,
		logger:   logger,
	}
}

func (s *webhookServiceImpl) Receive(ctx context.Context, source string, payload []byte) *entity.WebhookReceipt {
	receipt := &entity.WebhookReceipt{
		ID:      uuid.NewString(),
		Source:  source,
		Payload: string(payload),
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		s.logger.Error("Failed to record webhook receipt", "error", err)
		return nil
	}
	return receipt
}

func (s *webhookServiceImpl) Process(ctx context.Context, receipt *entity.WebhookReceipt, req appwf.WebhookDecision) (*appwf.Decision, error) {
	if receipt != nil && req.Source == "" {
		req.Source = receipt.Source
	}

	decision, err := s.engine.DecideViaWebhook(ctx, req)
	if err != nil {
		s.Fail(ctx, receipt, err)
		return nil, err
	}

	if receipt != nil {
		id := decision.Invoice.ID
		if err := s.receipts.UpdateOutcome(ctx, receipt.ID, entity.ReceiptOutcomeOK, "", &id); err != nil {
			s.logger.Error("Failed to finalize webhook receipt", "receipt_id", receipt.ID, "error", err)
		} else {
			receipt.Outcome = entity.ReceiptOutcomeOK
			receipt.InvoiceID = &id
		}
	}
	return decision, nil
}

func (s *webhookServiceImpl) Fail(ctx context.Context, receipt *entity.WebhookReceipt, reason error) {
	if receipt == nil {
		return
	}
	if reason == nil {
		reason = errors.New("unknown error")
	}
	if err := s.receipts.UpdateOutcome(ctx, receipt.ID, entity.ReceiptOutcomeError, reason.Error(), nil); err != nil {
		s.logger.Error("Failed to finalize webhook receipt", "receipt_id", receipt.ID, "error", err)
		return
	}
	receipt.Outcome = entity.ReceiptOutcomeError
	receipt.Error = reason.Error()
}

func (s *webhookServiceImpl) Recent(ctx context.Context, limit int) ([]*entity.WebhookReceipt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	receipts, err := s.receipts.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []*entity.WebhookReceipt{}
	}
	return receipts, nil
}
