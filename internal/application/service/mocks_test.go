package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockStore struct {
	createFunc     func(ctx context.Context, fields entity.Fields, rawText, sourceFile, comment string) (*entity.Invoice, error)
	getFunc        func(ctx context.Context, id int64) (*entity.Invoice, error)
	historyFunc    func(ctx context.Context, id int64) ([]*entity.HistoryEntry, error)
	allHistoryFunc func(ctx context.Context) ([]*entity.HistoryEntry, error)
	listFunc       func(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error)
}

func (m *mockStore) Create(ctx context.Context, fields entity.Fields, rawText, sourceFile, comment string) (*entity.Invoice, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, fields, rawText, sourceFile, comment)
	}
	now := time.Now()
	return &entity.Invoice{ID: 1, Fields: fields, RawText: rawText, SourceFile: sourceFile, State: workflow.StatePending, CreatedAt: now, UpdatedAt: now}, nil
}

func (m *mockStore) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &entity.Invoice{ID: id, State: workflow.StatePending}, nil
}

func (m *mockStore) History(ctx context.Context, id int64) ([]*entity.HistoryEntry, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockStore) AllHistory(ctx context.Context) ([]*entity.HistoryEntry, error) {
	if m.allHistoryFunc != nil {
		return m.allHistoryFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockStore) Transition(ctx context.Context, id int64, action workflow.Action, comment string) (*entity.Invoice, bool, error) {
	return nil, false, errors.New("not implemented")
}

type mockNotificationRepo struct {
	mu      sync.Mutex
	created []*entity.Notification
	sent    []int64
	failed  map[int64]string
	skipped map[int64]string

	createErr error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{failed: map[int64]string{}, skipped: map[int64]string{}}
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = errMsg
	return nil
}

func (m *mockNotificationRepo) MarkSkipped(ctx context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[id] = reason
	return nil
}

func (m *mockNotificationRepo) GetRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.Notification, error) {
	return nil, nil
}

type mockNotifier struct {
	sendFunc func(ctx context.Context, msg *port.NotificationMessage) error
	messages []*port.NotificationMessage
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Send(ctx context.Context, msg *port.NotificationMessage) error {
	m.messages = append(m.messages, msg)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return nil
}

type mockStorage struct {
	saveFunc func(ctx context.Context, fileName string, content io.Reader, maxBytes int64) (string, error)
	deleted  []string
}

func (m *mockStorage) SaveUpload(ctx context.Context, fileName string, content io.Reader, maxBytes int64) (string, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, fileName, content, maxBytes)
	}
	_, err := io.Copy(io.Discard, content)
	return "123_" + fileName, err
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) { return nil, nil }

func (m *mockStorage) Exists(ctx context.Context, path string) bool { return true }

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string { return "/uploads/" + relativePath }

type mockTextSource struct {
	extractFunc func(ctx context.Context, path string) (string, error)
}

func (m *mockTextSource) ExtractText(ctx context.Context, path string) (string, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, path)
	}
	return "ACME Corp\nInvoice No: A-100", nil
}

type mockExtractor struct{}

func (mockExtractor) Extract(rawText string) entity.Fields {
	return entity.Fields{InvoiceNumber: entity.StringPtr("A-100")}
}

type mockReceiptRepo struct {
	mu        sync.Mutex
	receipts  map[string]*entity.WebhookReceipt
	createErr error
}

func newMockReceiptRepo() *mockReceiptRepo {
	return &mockReceiptRepo{receipts: map[string]*entity.WebhookReceipt{}}
}

func (m *mockReceiptRepo) Create(ctx context.Context, r *entity.WebhookReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if r.Outcome == "" {
		r.Outcome = entity.ReceiptOutcomePending
	}
	cp := *r
	m.receipts[r.ID] = &cp
	return nil
}

func (m *mockReceiptRepo) UpdateOutcome(ctx context.Context, id string, outcome, errMsg string, invoiceID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return errors.New("not found")
	}
	r.Outcome = outcome
	r.Error = errMsg
	if invoiceID != nil {
		r.InvoiceID = invoiceID
	}
	return nil
}

func (m *mockReceiptRepo) GetByID(ctx context.Context, id string) (*entity.WebhookReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[id], nil
}

func (m *mockReceiptRepo) ListRecent(ctx context.Context, limit int) ([]*entity.WebhookReceipt, error) {
	return nil, nil
}

type mockEngine struct {
	webhookFunc func(ctx context.Context, req appwf.WebhookDecision) (*appwf.Decision, error)
	requests    []appwf.WebhookDecision
}

func (m *mockEngine) VerifyLink(tok string, expected workflow.Action) (*token.Claim, error) {
	return nil, token.ErrInvalidToken
}

func (m *mockEngine) DecideViaLink(ctx context.Context, tok string, expected workflow.Action, comment string) (*appwf.Decision, error) {
	return nil, token.ErrInvalidToken
}

func (m *mockEngine) DecideViaWebhook(ctx context.Context, req appwf.WebhookDecision) (*appwf.Decision, error) {
	m.requests = append(m.requests, req)
	if m.webhookFunc != nil {
		return m.webhookFunc(ctx, req)
	}
	return &appwf.Decision{
		Invoice: &entity.Invoice{ID: req.InvoiceID, State: workflow.StateApproved},
		Applied: true,
	}, nil
}

type mockExporter struct {
	invoices []*entity.Invoice
	history  []*entity.HistoryEntry
}

func (m *mockExporter) ContentType() string { return "text/plain" }

func (m *mockExporter) Export(w io.Writer, invoices []*entity.Invoice, history []*entity.HistoryEntry) error {
	m.invoices = invoices
	m.history = history
	_, err := io.WriteString(w, "ledger")
	return err
}
