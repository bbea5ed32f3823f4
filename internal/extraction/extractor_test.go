package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want entity.Fields
	}{
		{
			name: "spanish invoice",
			text: "ACME Corp S.A.\r\nFactura: F-001-234\r\nFecha: 12/03/2024\r\nVence: 11/04/2024\r\n" +
				"Subtotal 1.000,00\r\nIVA: 120,00\r\nTotal a pagar: 1.120,00\r\n",
			want: entity.Fields{
				ProviderName:  entity.StringPtr("ACME Corp S.A."),
				InvoiceNumber: entity.StringPtr("F-001-234"),
				IssueDate:     entity.StringPtr("12/03/2024"),
				DueDate:       entity.StringPtr("11/04/2024"),
				TotalAmount:   entity.StringPtr("1.120,00"),
				Taxes:         entity.StringPtr("120,00"),
			},
		},
		{
			name: "english invoice",
			text: "Globex LLC\nINVOICE # INV-2024/77\nDate 05-01-2024 Due 04-02-2024\nTax: 15.00\nAmount due 115.00",
			want: entity.Fields{
				ProviderName:  entity.StringPtr("Globex LLC"),
				InvoiceNumber: entity.StringPtr("INV-2024/77"),
				IssueDate:     entity.StringPtr("05-01-2024"),
				DueDate:       entity.StringPtr("04-02-2024"),
				TotalAmount:   entity.StringPtr("115.00"),
				Taxes:         entity.StringPtr("15.00"),
			},
		},
		{
			name: "total line takes its last amount",
			text: "Shop\nTotal 3 items 1.234,56",
			want: entity.Fields{
				ProviderName: entity.StringPtr("Shop"),
				TotalAmount:  entity.StringPtr("1.234,56"),
			},
		},
		{
			name: "amount fallback without total line",
			text: "  \nJust a memo\nplease pay 1,500.00 soon\n",
			want: entity.Fields{
				ProviderName: entity.StringPtr("Just a memo"),
				TotalAmount:  entity.StringPtr("1,500.00"),
			},
		},
		{
			name: "keyword on the first line keeps the first line",
			text: "Invoice copy\nGlobex LLC\nremit to",
			want: entity.Fields{
				ProviderName:  entity.StringPtr("Invoice copy"),
				InvoiceNumber: entity.StringPtr("copy"),
			},
		},
		{
			name: "empty text",
			text: "",
			want: entity.Fields{},
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text))
		})
	}
}

func TestExtractor_NumberFallback(t *testing.T) {
	got := New().Extract("Supplier\nNo 4455")
	assert.Equal(t, "4455", entity.Deref(got.InvoiceNumber, ""))

	got = New().Extract("Supplier\nNº 000123")
	assert.Equal(t, "000123", entity.Deref(got.InvoiceNumber, ""))
}

func TestExtractor_ProviderLookoutIsBounded(t *testing.T) {
	text := "first\nsecond\nthird\nfourth\nfifth\nsixth\nseventh\nInvoice 1"
	got := New().Extract(text)
	assert.Equal(t, "first", entity.Deref(got.ProviderName, ""))
}
