package http

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/apierror"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// multipart framing and the notify_to field on top of the file itself
const multipartOverhead = 1 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool               `json:"success"`
	Data    interface{}        `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
	Code    apierror.ErrorCode `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// NotificationResponse reports the notification attempt made at upload time
type NotificationResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// InvoiceCreatedResponse is returned by POST /invoices/upload
type InvoiceCreatedResponse struct {
	ID           int64                 `json:"id"`
	State        workflow.State        `json:"state"`
	Extracted    entity.Fields         `json:"extracted"`
	Notification *NotificationResponse `json:"notification,omitempty"`
}

// InvoiceResponse is an invoice with its history
type InvoiceResponse struct {
	ID         int64                  `json:"id"`
	State      workflow.State         `json:"state"`
	Extracted  entity.Fields          `json:"extracted"`
	SourceFile string                 `json:"source_file,omitempty"`
	History    []*entity.HistoryEntry `json:"history"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	State  string `form:"state"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.services.Health == nil {
		c.JSON(http.StatusOK, Response{Success: true, Data: resp})
		return
	}

	healthy, components := h.services.Health.Health(c.Request.Context())
	resp.Components = components
	if !healthy {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Code: apierror.ErrStorageUnavailable})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// UploadInvoice handles POST /invoices/upload
func (h *Handlers) UploadInvoice(c *gin.Context) {
	result, err := h.submitUpload(c, service.OriginAPI)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := InvoiceCreatedResponse{
		ID:        result.Invoice.ID,
		State:     result.Invoice.State,
		Extracted: result.Invoice.Fields,
	}
	if n := result.Notification; n != nil {
		resp.Notification = &NotificationResponse{Status: n.Status, Error: n.ErrorMessage}
	} else if result.NotificationError != nil {
		resp.Notification = &NotificationResponse{
			Status: entity.NotificationStatusFailed,
			Error:  result.NotificationError.Error(),
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// submitUpload reads the multipart file and notify_to fields shared by the API and the web form
func (h *Handlers) submitUpload(c *gin.Context, origin string) (*service.IntakeResult, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: file exceeds %d bytes", workflow.ErrInvalidPayload, h.maxUploadBytes)
		}
		return nil, fmt.Errorf("%w: a file is required", workflow.ErrInvalidPayload)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable upload", workflow.ErrInvalidPayload)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	return h.services.Intake.Submit(c.Request.Context(), service.Upload{
		FileName: fileHeader.Filename,
		Content:  file,
		NotifyTo: c.PostForm("notify_to"),
		Origin:   origin,
	})
}

// GetInvoice handles GET /invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, fmt.Errorf("%w: invoice id must be a positive integer", workflow.ErrInvalidPayload))
		return
	}

	view, err := h.services.Query.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, InvoiceResponse{
		ID:         view.Invoice.ID,
		State:      view.Invoice.State,
		Extracted:  view.Invoice.Fields,
		SourceFile: view.Invoice.SourceFile,
		History:    view.History,
		CreatedAt:  view.Invoice.CreatedAt,
		UpdatedAt:  view.Invoice.UpdatedAt,
	})
}

// ListInvoices handles GET /invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: invalid query parameters", workflow.ErrInvalidPayload))
		return
	}

	filter := port.InvoiceFilter{Limit: req.Limit, Offset: req.Offset}
	if req.State != "" {
		state := workflow.State(strings.ToUpper(strings.TrimSpace(req.State)))
		if !state.IsValid() {
			h.writeError(c, fmt.Errorf("%w: unknown state %q", workflow.ErrInvalidPayload, req.State))
			return
		}
		filter.State = state
	}

	invoices, err := h.services.Query.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"invoices": invoices,
			"count":    len(invoices),
		},
	})
}

// ExportInvoices handles GET /invoices/export.xlsx
func (h *Handlers) ExportInvoices(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.services.Query.Export(c.Request.Context(), &buf); err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, h.services.Query.ExportContentType(), buf.Bytes())
}

// writeError maps err onto the API error taxonomy
func (h *Handlers) writeError(c *gin.Context, err error) {
	apiErr := apierror.FromError(err)
	status := apierror.MapErrorToHTTPStatus(apiErr)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, Response{
		Success: false,
		Error:   apiErr.Message,
		Code:    apiErr.Code,
	})
}
