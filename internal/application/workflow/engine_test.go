package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/store"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/infrastructure/lock"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/token"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// mockStore implements port.InvoiceStore with func fields
type mockStore struct {
	GetFunc        func(ctx context.Context, id int64) (*entity.Invoice, error)
	TransitionFunc func(ctx context.Context, id int64, action domainwf.Action, comment string) (*entity.Invoice, bool, error)

	mu       sync.Mutex
	comments []string
}

func (m *mockStore) Create(ctx context.Context, fields entity.Fields, rawText, sourceFile, comment string) (*entity.Invoice, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return &entity.Invoice{ID: id, State: domainwf.StatePending}, nil
}

func (m *mockStore) History(ctx context.Context, id int64) ([]*entity.HistoryEntry, error) {
	return nil, nil
}

func (m *mockStore) AllHistory(ctx context.Context) ([]*entity.HistoryEntry, error) {
	return nil, nil
}

func (m *mockStore) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	return nil, nil
}

func (m *mockStore) Transition(ctx context.Context, id int64, action domainwf.Action, comment string) (*entity.Invoice, bool, error) {
	m.mu.Lock()
	m.comments = append(m.comments, comment)
	m.mu.Unlock()
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, action, comment)
	}
	return &entity.Invoice{ID: id, State: action.TargetState()}, true, nil
}

// mockDispatcher records async events
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) SubscribeAll(name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Close() error { return nil }

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec("test-secret-key-0123456789", token.DefaultSalt)
	require.NoError(t, err)
	return codec
}

func TestEngine_VerifyLink(t *testing.T) {
	codec := newCodec(t)
	e := NewEngine(&mockStore{}, codec)

	approve, err := codec.Mint(5, domainwf.ActionApprove)
	require.NoError(t, err)

	tests := []struct {
		name     string
		tok      string
		expected domainwf.Action
		wantErr  bool
	}{
		{name: "any action", tok: approve, expected: ""},
		{name: "matching action", tok: approve, expected: domainwf.ActionApprove},
		{name: "wrong action for endpoint", tok: approve, expected: domainwf.ActionReject, wantErr: true},
		{name: "garbage", tok: "not-a-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, err := e.VerifyLink(tt.tok, tt.expected)
			if tt.wantErr {
				assert.ErrorIs(t, err, token.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(5), claim.InvoiceID)
			assert.Equal(t, domainwf.ActionApprove, claim.Action)
		})
	}
}

func TestEngine_DecideViaLink_Comments(t *testing.T) {
	codec := newCodec(t)

	tests := []struct {
		name    string
		action  domainwf.Action
		comment string
		want    string
	}{
		{name: "approve", action: domainwf.ActionApprove, want: "approved via email link"},
		{name: "approve with note", action: domainwf.ActionApprove, comment: "ok", want: "approved via email link: ok"},
		{name: "reject with reason", action: domainwf.ActionReject, comment: "wrong total", want: "wrong total"},
		{name: "reject without reason", action: domainwf.ActionReject, comment: "  ", want: "rejected via email link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockStore{}
			disp := &mockDispatcher{}
			e := NewEngine(s, codec, WithDispatcher(disp))

			tok, err := codec.Mint(9, tt.action)
			require.NoError(t, err)

			d, err := e.DecideViaLink(context.Background(), tok, tt.action, tt.comment)
			require.NoError(t, err)
			assert.True(t, d.Applied)
			assert.Equal(t, OutcomeApplied, d.Outcome())
			assert.Equal(t, entity.ChannelEmailLink, d.Channel)
			assert.Equal(t, []string{tt.want}, s.comments)

			require.Len(t, disp.events, 1)
			assert.Equal(t, int64(9), disp.events[0].InvoiceID)
		})
	}
}

func TestEngine_DecideViaLink_InvalidTokenNeverReachesStore(t *testing.T) {
	codec := newCodec(t)
	s := &mockStore{}
	e := NewEngine(s, codec)

	tok, err := codec.Mint(3, domainwf.ActionApprove)
	require.NoError(t, err)
	tampered := tok[:len(tok)-1] + "A"
	if tampered == tok {
		tampered = tok[:len(tok)-1] + "B"
	}

	_, err = e.DecideViaLink(context.Background(), tampered, "", "")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = e.DecideViaLink(context.Background(), tok, domainwf.ActionReject, "reason")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	assert.Empty(t, s.comments)
}

func TestEngine_DecideViaWebhook_Validation(t *testing.T) {
	notFound := &mockStore{
		GetFunc: func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return nil, domainwf.ErrNotFound
		},
	}

	tests := []struct {
		name    string
		store   *mockStore
		req     WebhookDecision
		wantErr error
	}{
		{
			name:    "unknown action",
			store:   &mockStore{},
			req:     WebhookDecision{InvoiceID: 7, Action: "maybe"},
			wantErr: domainwf.ErrInvalidPayload,
		},
		{
			name:    "upper case action",
			store:   &mockStore{},
			req:     WebhookDecision{InvoiceID: 7, Action: "REJECT"},
			wantErr: domainwf.ErrInvalidPayload,
		},
		{
			name:    "missing invoice id",
			store:   &mockStore{},
			req:     WebhookDecision{Action: "approve"},
			wantErr: domainwf.ErrInvalidPayload,
		},
		{
			name:    "negative invoice id",
			store:   &mockStore{},
			req:     WebhookDecision{InvoiceID: -1, Action: "approve"},
			wantErr: domainwf.ErrInvalidPayload,
		},
		{
			name:    "nonexistent invoice",
			store:   notFound,
			req:     WebhookDecision{InvoiceID: 999999, Action: "approve"},
			wantErr: domainwf.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.store, newCodec(t))
			_, err := e.DecideViaWebhook(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, tt.store.comments, "store must not be asked to transition")
		})
	}
}

func TestEngine_DecideViaWebhook_AnnotatesSource(t *testing.T) {
	tests := []struct {
		name string
		req  WebhookDecision
		want string
	}{
		{
			name: "approve with source",
			req:  WebhookDecision{InvoiceID: 1, Action: "approve", Source: "erp"},
			want: "approved via webhook (source=erp)",
		},
		{
			name: "reject with reason and default source",
			req:  WebhookDecision{InvoiceID: 1, Action: " reject ", Comment: "duplicate"},
			want: "rejected via webhook (source=webhook): duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockStore{}
			e := NewEngine(s, newCodec(t))

			d, err := e.DecideViaWebhook(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, entity.ChannelWebhook, d.Channel)
			assert.Equal(t, []string{tt.want}, s.comments)
		})
	}
}

func TestEngine_AlreadyDecidedIsNotAnError(t *testing.T) {
	s := &mockStore{
		TransitionFunc: func(ctx context.Context, id int64, action domainwf.Action, comment string) (*entity.Invoice, bool, error) {
			return &entity.Invoice{ID: id, State: domainwf.StateApproved}, false, nil
		},
	}
	disp := &mockDispatcher{}
	e := NewEngine(s, newCodec(t), WithDispatcher(disp))

	d, err := e.DecideViaWebhook(context.Background(), WebhookDecision{InvoiceID: 4, Action: "reject"})
	require.NoError(t, err)
	assert.False(t, d.Applied)
	assert.Equal(t, OutcomeAlreadyDecided, d.Outcome())
	assert.Equal(t, domainwf.StateApproved, d.Invoice.State)

	require.Len(t, disp.events, 1)
	assert.Equal(t, event.TypeDecisionIgnored, disp.events[0].Type)
	assert.Equal(t, "APPROVED", disp.events[0].GetPayloadString("state"))
	assert.Equal(t, "webhook", disp.events[0].GetPayloadString("source"))
}

func TestEngine_StorageErrorPropagates(t *testing.T) {
	storageErr := errors.Join(domainwf.ErrStorageUnavailable, errors.New("database is locked"))
	s := &mockStore{
		TransitionFunc: func(ctx context.Context, id int64, action domainwf.Action, comment string) (*entity.Invoice, bool, error) {
			return nil, false, storageErr
		},
	}
	e := NewEngine(s, newCodec(t))

	_, err := e.DecideViaWebhook(context.Background(), WebhookDecision{InvoiceID: 4, Action: "approve"})
	assert.ErrorIs(t, err, domainwf.ErrStorageUnavailable)
}

func newRealStore(t *testing.T) *store.InvoiceStore {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "engine.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	return store.New(
		repository.NewInvoiceRepository(db.DB, logger),
		repository.NewHistoryRepository(db.DB, logger),
		sqlite.NewDB(db.DB, logger),
		lock.NewMemoryLocker(),
	)
}

func TestEngine_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newRealStore(t)
	codec := newCodec(t)
	e := NewEngine(s, codec)

	inv, err := s.Create(ctx, entity.Fields{InvoiceNumber: entity.StringPtr("A-100")}, "Invoice A-100", "", entity.CreatedViaAPI)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, inv.State)

	history, err := s.History(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domainwf.State(""), history[0].FromState)
	assert.Equal(t, domainwf.StatePending, history[0].ToState)

	tok, err := codec.Mint(inv.ID, domainwf.ActionApprove)
	require.NoError(t, err)
	claim, err := e.VerifyLink(tok, "")
	require.NoError(t, err)
	assert.Equal(t, &token.Claim{InvoiceID: inv.ID, Action: domainwf.ActionApprove}, claim)

	d, err := e.DecideViaLink(ctx, tok, domainwf.ActionApprove, "")
	require.NoError(t, err)
	assert.True(t, d.Applied)
	assert.Equal(t, domainwf.StateApproved, d.Invoice.State)

	history, err = s.History(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domainwf.StateApproved, history[1].ToState)
	assert.Equal(t, "approved via email link", history[1].Comment)

	d, err = e.DecideViaLink(ctx, tok, domainwf.ActionApprove, "")
	require.NoError(t, err)
	assert.False(t, d.Applied)
	assert.Equal(t, domainwf.StateApproved, d.Invoice.State)

	history, err = s.History(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestEngine_LinkAndWebhookRace(t *testing.T) {
	ctx := context.Background()
	s := newRealStore(t)
	codec := newCodec(t)
	e := NewEngine(s, codec)

	for i := 0; i < 10; i++ {
		inv, err := s.Create(ctx, entity.Fields{}, "raw", "", entity.CreatedViaAPI)
		require.NoError(t, err)
		tok, err := codec.Mint(inv.ID, domainwf.ActionApprove)
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			linkD   *Decision
			hookD   *Decision
			linkErr error
			hookErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			linkD, linkErr = e.DecideViaLink(ctx, tok, domainwf.ActionApprove, "")
		}()
		go func() {
			defer wg.Done()
			hookD, hookErr = e.DecideViaWebhook(ctx, WebhookDecision{InvoiceID: inv.ID, Action: "reject", Source: "erp"})
		}()
		wg.Wait()

		require.NoError(t, linkErr)
		require.NoError(t, hookErr)
		assert.NotEqual(t, linkD.Applied, hookD.Applied, "exactly one channel wins")

		history, err := s.History(ctx, inv.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	}
}
