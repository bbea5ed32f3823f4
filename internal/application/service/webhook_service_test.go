package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

func TestWebhookService_ProcessOK(t *testing.T) {
	repo := newMockReceiptRepo()
	engine := &mockEngine{}
	svc := NewWebhookService(repo, engine, &mockLogger{})
	ctx := context.Background()

	receipt := svc.Receive(ctx, "erp", []byte(`{"invoice_id":3,"action":"approve"}`))
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptOutcomePending, repo.receipts[receipt.ID].Outcome)

	d, err := svc.Process(ctx, receipt, appwf.WebhookDecision{InvoiceID: 3, Action: "approve"})
	require.NoError(t, err)
	assert.True(t, d.Applied)

	require.Len(t, engine.requests, 1)
	assert.Equal(t, "erp", engine.requests[0].Source, "receipt source fills a missing payload source")

	stored := repo.receipts[receipt.ID]
	assert.Equal(t, entity.ReceiptOutcomeOK, stored.Outcome)
	require.NotNil(t, stored.InvoiceID)
	assert.Equal(t, int64(3), *stored.InvoiceID)
}

func TestWebhookService_AlreadyDecidedIsOK(t *testing.T) {
	repo := newMockReceiptRepo()
	engine := &mockEngine{
		webhookFunc: func(ctx context.Context, req appwf.WebhookDecision) (*appwf.Decision, error) {
			return &appwf.Decision{Invoice: &entity.Invoice{ID: req.InvoiceID, State: workflow.StateRejected}}, nil
		},
	}
	svc := NewWebhookService(repo, engine, &mockLogger{})
	ctx := context.Background()

	receipt := svc.Receive(ctx, "", []byte(`{}`))
	d, err := svc.Process(ctx, receipt, appwf.WebhookDecision{InvoiceID: 8, Action: "approve", Source: "crm"})
	require.NoError(t, err)
	assert.Equal(t, appwf.OutcomeAlreadyDecided, d.Outcome())
	assert.Equal(t, entity.ReceiptOutcomeOK, repo.receipts[receipt.ID].Outcome)
	assert.Equal(t, "crm", engine.requests[0].Source)
}

func TestWebhookService_ProcessError(t *testing.T) {
	repo := newMockReceiptRepo()
	engine := &mockEngine{
		webhookFunc: func(ctx context.Context, req appwf.WebhookDecision) (*appwf.Decision, error) {
			return nil, workflow.ErrNotFound
		},
	}
	svc := NewWebhookService(repo, engine, &mockLogger{})
	ctx := context.Background()

	receipt := svc.Receive(ctx, "erp", []byte(`{"invoice_id":999999}`))
	_, err := svc.Process(ctx, receipt, appwf.WebhookDecision{InvoiceID: 999999, Action: "approve"})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	stored := repo.receipts[receipt.ID]
	assert.Equal(t, entity.ReceiptOutcomeError, stored.Outcome)
	assert.Equal(t, workflow.ErrNotFound.Error(), stored.Error)
}

func TestWebhookService_RecordingFailureDoesNotBlockDecision(t *testing.T) {
	repo := newMockReceiptRepo()
	repo.createErr = errors.New("database is locked")
	logger := &mockLogger{}
	svc := NewWebhookService(repo, &mockEngine{}, logger)
	ctx := context.Background()

	receipt := svc.Receive(ctx, "erp", []byte(`{}`))
	assert.Nil(t, receipt)
	assert.NotEmpty(t, logger.errors)

	d, err := svc.Process(ctx, receipt, appwf.WebhookDecision{InvoiceID: 1, Action: "approve"})
	require.NoError(t, err)
	assert.True(t, d.Applied)

	svc.Fail(ctx, nil, errors.New("ignored"))
}

func TestWebhookService_Fail(t *testing.T) {
	repo := newMockReceiptRepo()
	svc := NewWebhookService(repo, &mockEngine{}, &mockLogger{})
	ctx := context.Background()

	receipt := svc.Receive(ctx, "erp", []byte(`not json`))
	svc.Fail(ctx, receipt, errors.New("invalid JSON body"))

	assert.Equal(t, entity.ReceiptOutcomeError, repo.receipts[receipt.ID].Outcome)
	assert.Equal(t, "invalid JSON body", repo.receipts[receipt.ID].Error)
}
