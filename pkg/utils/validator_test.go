package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"ap@example.com", false},
		{"first.last+tag@sub.example.co", false},
		{"no-at-sign", true},
		{"a@b", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFromAddress(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		wantErr bool
	}{
		{name: "display name", from: "Invoices <invoices@example.com>"},
		{name: "quoted display name", from: `"AP Team" <ap@example.com>`},
		{name: "bare address", from: "ap@example.com"},
		{name: "brackets without name", from: "<ap@example.com>", wantErr: true},
		{name: "broken brackets", from: "Invoices <ap@example.com", wantErr: true},
		{name: "empty", from: "  ", wantErr: true},
		{name: "bad domain", from: "Invoices <ap@localhost>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFromAddress(tt.from)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"invoice.pdf", "invoice.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan 01.png`, "scan_01.png"},
		{"factura\x00.jpg", "factura.jpg"},
		{"..", "upload"},
		{"", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}
