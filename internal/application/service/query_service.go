package service

import (
	"context"
	"io"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// InvoiceView is an invoice with its full history
type InvoiceView struct {
	Invoice *entity.Invoice
	History []*entity.HistoryEntry
}

// InvoiceQueryService serves read-only views of invoices
type InvoiceQueryService interface {
	Get(ctx context.Context, id int64) (*InvoiceView, error)
	List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error)
	// Export writes every invoice and history entry through the ledger exporter
	Export(ctx context.Context, w io.Writer) error
	ExportContentType() string
}

type invoiceQueryServiceImpl struct {
	store    port.InvoiceStore
	exporter port.LedgerExporter
}

// NewInvoiceQueryService creates a new InvoiceQueryService
func NewInvoiceQueryService(store port.InvoiceStore, exporter port.LedgerExporter) InvoiceQueryService {
	return &invoiceQueryServiceImpl{store: store, exporter: exporter}
}

func (s *invoiceQueryServiceImpl) Get(ctx context.Context, id int64) (*InvoiceView, error) {
	invoice, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*entity.HistoryEntry{}
	}
	return &InvoiceView{Invoice: invoice, History: history}, nil
}

func (s *invoiceQueryServiceImpl) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	invoices, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []*entity.Invoice{}
	}
	return invoices, nil
}

func (s *invoiceQueryServiceImpl) Export(ctx context.Context, w io.Writer) error {
	invoices, err := s.store.List(ctx, port.InvoiceFilter{})
	if err != nil {
		return err
	}
	history, err := s.store.AllHistory(ctx)
	if err != nil {
		return err
	}
	return s.exporter.Export(w, invoices, history)
}

func (s *invoiceQueryServiceImpl) ExportContentType() string {
	return s.exporter.ContentType()
}
