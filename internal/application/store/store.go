// Package store owns invoice records and their history ledger.
// All state changes go through Transition, which is atomic per invoice id.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// InvoiceStore persists invoices and serializes transitions per id
type InvoiceStore struct {
	invoices  port.InvoiceRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	locker    port.Locker
	now       func() time.Time
}

// Option configures an InvoiceStore
type Option func(*InvoiceStore)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceStore) {
		s.now = now
	}
}

// New creates an InvoiceStore
func New(
	invoices port.InvoiceRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	locker port.Locker,
	opts ...Option,
) *InvoiceStore {
	s := &InvoiceStore{
		invoices:  invoices,
		history:   history,
		txManager: txManager,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new PENDING invoice together with its creation history entry.
// Either both rows are written or neither is.
func (s *InvoiceStore) Create(ctx context.Context, fields entity.Fields, rawText, sourceFile, comment string) (*entity.Invoice, error) {
	now := s.now()
	invoice := &entity.Invoice{
		Fields:     fields,
		RawText:    rawText,
		SourceFile: sourceFile,
		State:      workflow.StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoices.Create(txCtx, invoice); err != nil {
			return storageErr(err)
		}
		return s.AppendHistory(txCtx, &entity.HistoryEntry{
			InvoiceID: invoice.ID,
			FromState: "",
			ToState:   workflow.StatePending,
			Timestamp: now,
			Comment:   comment,
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	return invoice, nil
}

// AppendHistory writes the creation entry of an invoice. Transition entries are
// written by Transition only.
func (s *InvoiceStore) AppendHistory(ctx context.Context, entry *entity.HistoryEntry) error {
	if entry.FromState != "" || entry.ToState != workflow.StatePending {
		return fmt.Errorf("%w: only the creation entry can be appended directly", workflow.ErrInvalidTransition)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return storageErr(err)
	}
	return nil
}

// Get returns the invoice or workflow.ErrNotFound
func (s *InvoiceStore) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: id=%d", workflow.ErrNotFound, id)
	}
	return invoice, nil
}

// History returns the ledger of an invoice ordered by timestamp
func (s *InvoiceStore) History(ctx context.Context, id int64) ([]*entity.HistoryEntry, error) {
	entries, err := s.history.GetByInvoiceID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

// AllHistory returns every ledger entry grouped by invoice
func (s *InvoiceStore) AllHistory(ctx context.Context) ([]*entity.HistoryEntry, error) {
	entries, err := s.history.ListAll(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

// List returns invoices matching filter, newest first
func (s *InvoiceStore) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return invoices, nil
}

// Transition moves a PENDING invoice to the state the action targets and appends
// one history entry. A terminal invoice is returned unchanged with applied=false.
// Concurrent calls for one id observe a strict order through the locker and the
// conditional update.
func (s *InvoiceStore) Transition(ctx context.Context, id int64, action workflow.Action, comment string) (*entity.Invoice, bool, error) {
	if !action.IsValid() {
		return nil, false, fmt.Errorf("%w: %q", workflow.ErrInvalidAction, action)
	}

	release, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, false, classify(err)
	}
	defer release()

	var (
		result  *entity.Invoice
		applied bool
	)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoices.GetByID(txCtx, id)
		if err != nil {
			return storageErr(err)
		}
		if invoice == nil {
			return fmt.Errorf("%w: id=%d", workflow.ErrNotFound, id)
		}

		from := invoice.State
		machine := workflow.BuildInvoiceStateMachine(from)
		if err := machine.Fire(txCtx, action.Trigger()); err != nil {
			if errors.Is(err, workflow.ErrInvalidTransition) {
				result = invoice
				return nil
			}
			return err
		}
		to := machine.State()

		now := s.now()
		ok, err := s.invoices.UpdateState(txCtx, id, from, to, now)
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			// another writer got there first without holding our lock
			current, err := s.invoices.GetByID(txCtx, id)
			if err != nil {
				return storageErr(err)
			}
			result = current
			return nil
		}

		if err := s.history.Create(txCtx, &entity.HistoryEntry{
			InvoiceID: id,
			FromState: from,
			ToState:   to,
			Timestamp: now,
			Comment:   comment,
		}); err != nil {
			return storageErr(err)
		}

		invoice.State = to
		invoice.UpdatedAt = now
		result = invoice
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, classify(err)
	}

	return result, applied, nil
}

// classify keeps domain and cancellation errors as they are and marks
// everything else, including begin/commit failures, as a storage failure
func classify(err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return storageErr(err)
}

func storageErr(err error) error {
	if errors.Is(err, workflow.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", workflow.ErrStorageUnavailable, err)
}

var _ port.InvoiceStore = (*InvoiceStore)(nil)
