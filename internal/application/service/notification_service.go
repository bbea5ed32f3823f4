package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// NotificationService asks a reviewer for a decision and records each delivery attempt
type NotificationService interface {
	// Notify sends approve/reject links for a pending invoice. A delivery failure
	// returns the FAILED record together with an ErrNotificationFailure error.
	Notify(ctx context.Context, invoice *entity.Invoice, recipient string) (*entity.Notification, error)

	// Resend retries a recorded notification, or marks it SKIPPED when the invoice is decided
	Resend(ctx context.Context, notification *entity.Notification) error

	// ActionLinks builds the approve and reject URLs for an invoice
	ActionLinks(invoiceID int64) (approveURL, rejectURL string, err error)
}

// NotificationConfig holds the settings NotificationService needs
type NotificationConfig struct {
	BaseURL string
	Timeout time.Duration
}

type notificationServiceImpl struct {
	store            port.InvoiceStore
	notificationRepo port.NotificationRepository
	notifier         port.Notifier
	codec            port.TokenCodec
	dispatcher       dispatcher.Dispatcher
	cfg              NotificationConfig
	logger           Logger
}

// NewNotificationService creates a new NotificationService. disp may be nil.
func NewNotificationService(
	store port.InvoiceStore,
	notificationRepo port.NotificationRepository,
	notifier port.Notifier,
	codec port.TokenCodec,
	disp dispatcher.Dispatcher,
	cfg NotificationConfig,
	logger Logger,
) NotificationService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &notificationServiceImpl{
		store:            store,
		notificationRepo: notificationRepo,
		notifier:         notifier,
		codec:            codec,
		dispatcher:       disp,
		cfg:              cfg,
		logger:           logger,
	}
}

func (s *notificationServiceImpl) ActionLinks(invoiceID int64) (string, string, error) {
	approve, err := s.codec.Mint(invoiceID, workflow.ActionApprove)
	if err != nil {
		return "", "", fmt.Errorf("mint approve token: %w", err)
	}
	reject, err := s.codec.Mint(invoiceID, workflow.ActionReject)
	if err != nil {
		return "", "", fmt.Errorf("mint reject token: %w", err)
	}
	return s.actionURL(approve), s.actionURL(reject), nil
}

func (s *notificationServiceImpl) actionURL(tok string) string {
	return s.cfg.BaseURL + "/action/" + url.PathEscape(tok)
}

func (s *notificationServiceImpl) Notify(ctx context.Context, invoice *entity.Invoice, recipient string) (*entity.Notification, error) {
	notification := &entity.Notification{
		InvoiceID: invoice.ID,
		Transport: s.notifier.Name(),
		Recipient: recipient,
		Status:    entity.NotificationStatusPending,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		// delivery still proceeds; the retry worker just will not see this attempt
		s.logger.Error("Failed to record notification", "invoice_id", invoice.ID, "error", err)
		notification.ID = 0
	}

	if err := s.deliver(ctx, invoice, notification); err != nil {
		return notification, err
	}
	return notification, nil
}

func (s *notificationServiceImpl) Resend(ctx context.Context, notification *entity.Notification) error {
	invoice, err := s.store.Get(ctx, notification.InvoiceID)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}

	if invoice.State.IsTerminal() {
		reason := fmt.Sprintf("invoice already %s", strings.ToLower(invoice.State.Label()))
		if err := s.notificationRepo.MarkSkipped(ctx, notification.ID, reason); err != nil {
			return fmt.Errorf("mark skipped: %w", err)
		}
		notification.Status = entity.NotificationStatusSkipped
		notification.ErrorMessage = reason
		s.logger.Info("Notification skipped", "notification_id", notification.ID, "invoice_id", invoice.ID, "state", invoice.State)
		return nil
	}

	return s.deliver(ctx, invoice, notification)
}

// deliver sends within the configured timeout and stores the result on the record
func (s *notificationServiceImpl) deliver(ctx context.Context, invoice *entity.Invoice, notification *entity.Notification) error {
	approveURL, rejectURL, err := s.ActionLinks(invoice.ID)
	if err != nil {
		return s.fail(ctx, notification, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err = s.notifier.Send(sendCtx, &port.NotificationMessage{
		Recipient:  notification.Recipient,
		Invoice:    invoice,
		ApproveURL: approveURL,
		RejectURL:  rejectURL,
	})
	if err != nil {
		return s.fail(ctx, notification, err)
	}

	now := time.Now().UTC()
	notification.Status = entity.NotificationStatusSent
	notification.Attempts++
	notification.ErrorMessage = ""
	notification.SentAt = &now
	if notification.ID != 0 {
		if err := s.notificationRepo.MarkSent(ctx, notification.ID, now); err != nil {
			s.logger.Error("Failed to mark notification sent", "notification_id", notification.ID, "error", err)
		}
	}

	s.logger.Info("Notification sent",
		"invoice_id", invoice.ID,
		"transport", notification.Transport,
		"recipient", notification.Recipient,
	)
	return nil
}

func (s *notificationServiceImpl) fail(ctx context.Context, notification *entity.Notification, cause error) error {
	notification.Status = entity.NotificationStatusFailed
	notification.Attempts++
	notification.ErrorMessage = cause.Error()

	s.logger.Error("Notification failed",
		"invoice_id", notification.InvoiceID,
		"transport", notification.Transport,
		"error", cause,
	)

	if notification.ID != 0 {
		// the send deadline may have consumed ctx
		if err := s.notificationRepo.MarkFailed(context.WithoutCancel(ctx), notification.ID, cause.Error()); err != nil {
			s.logger.Error("Failed to mark notification failed", "notification_id", notification.ID, "error", err)
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeNotificationFailed, notification.InvoiceID, map[string]interface{}{
			"transport": notification.Transport,
			"error":     cause.Error(),
		}))
	}

	return fmt.Errorf("%w: %w", workflow.ErrNotificationFailure, cause)
}
