package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

// Upload origins
const (
	OriginAPI     = "api"
	OriginWebForm = "web"
)

// Upload is one document submitted for approval
type Upload struct {
	FileName string
	Content  io.Reader
	NotifyTo string
	Origin   string
}

// IntakeResult reports the created invoice and, when requested, the notification attempt
type IntakeResult struct {
	Invoice           *entity.Invoice
	Notification      *entity.Notification
	NotificationError error
}

// IntakeService turns uploaded documents into pending invoices
type IntakeService interface {
	Submit(ctx context.Context, upload Upload) (*IntakeResult, error)
}

type intakeServiceImpl struct {
	storage       port.FileStorage
	textSource    port.TextSource
	extractor     port.FieldExtractor
	store         port.InvoiceStore
	notifications NotificationService
	dispatcher    dispatcher.Dispatcher
	maxBytes      int64
	logger        Logger
}

// NewIntakeService creates a new IntakeService. disp may be nil.
func NewIntakeService(
	storage port.FileStorage,
	textSource port.TextSource,
	extractor port.FieldExtractor,
	store port.InvoiceStore,
	notifications NotificationService,
	disp dispatcher.Dispatcher,
	maxBytes int64,
	logger Logger,
) IntakeService {
	return &intakeServiceImpl{
		storage:       storage,
		textSource:    textSource,
		extractor:     extractor,
		store:         store,
		notifications: notifications,
		dispatcher:    disp,
		maxBytes:      maxBytes,
		logger:        logger,
	}
}

func (s *intakeServiceImpl) Submit(ctx context.Context, upload Upload) (*IntakeResult, error) {
	if upload.Content == nil || strings.TrimSpace(upload.FileName) == "" {
		return nil, fmt.Errorf("%w: a file is required", workflow.ErrInvalidPayload)
	}
	recipient := strings.TrimSpace(upload.NotifyTo)
	if recipient != "" {
		if err := utils.ValidateEmail(recipient); err != nil {
			return nil, fmt.Errorf("%w: notify_to: %v", workflow.ErrInvalidPayload, err)
		}
	}

	path, err := s.storage.SaveUpload(ctx, upload.FileName, upload.Content, s.maxBytes)
	if err != nil {
		s.logger.Error("Failed to store upload", "file_name", upload.FileName, "error", err)
		if errors.Is(err, workflow.ErrInvalidPayload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: save upload: %w", workflow.ErrStorageUnavailable, err)
	}

	rawText, err := s.textSource.ExtractText(ctx, s.storage.GetFullPath(path))
	if err != nil {
		s.logger.Error("Failed to extract text", "path", path, "error", err)
		s.discard(ctx, path)
		return nil, fmt.Errorf("extract text: %w", err)
	}

	fields := s.extractor.Extract(rawText)

	comment := entity.CreatedViaAPI
	if upload.Origin == OriginWebForm {
		comment = entity.CreatedViaWebForm
	}

	invoice, err := s.store.Create(ctx, fields, rawText, path, comment)
	if err != nil {
		s.logger.Error("Failed to create invoice", "path", path, "error", err)
		s.discard(ctx, path)
		return nil, err
	}

	s.logger.Info("Invoice created",
		"invoice_id", invoice.ID,
		"invoice_number", entity.Deref(fields.InvoiceNumber, ""),
		"origin", upload.Origin,
	)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeInvoiceCreated, invoice.ID, map[string]interface{}{
			"to":      invoice.State.String(),
			"channel": upload.Origin,
		}))
	}

	result := &IntakeResult{Invoice: invoice}
	if recipient == "" {
		return result, nil
	}

	notification, err := s.notifications.Notify(ctx, invoice, recipient)
	result.Notification = notification
	if err != nil {
		// the invoice stays created; the caller reports the failed notification
		result.NotificationError = err
	}
	return result, nil
}

// discard removes an upload that did not become an invoice
func (s *intakeServiceImpl) discard(ctx context.Context, path string) {
	if err := s.storage.Delete(ctx, path); err != nil {
		s.logger.Error("Failed to remove rejected upload", "path", path, "error", err)
	}
}
