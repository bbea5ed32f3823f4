// Package extraction pulls best-effort invoice fields out of OCR or PDF text.
package extraction

import (
	"regexp"
	"strings"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const (
	moneyPattern = `(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2}))`

	// providerLookout bounds how far down the header keyword is searched
	providerLookout = 6
)

var (
	providerHint   = regexp.MustCompile(`(?i)factura|invoice|ruc|nit`)
	numberPattern  = regexp.MustCompile(`(?i)(Factura|Invoice|No\.|Nº|N°)\s*[:#]?\s*([A-Za-z0-9\-_/]+)`)
	numberFallback = regexp.MustCompile(`(?i)\bN(?:o|º|°)\s*[:#]?\s*([A-Za-z0-9\-_/]+)`)
	datePattern    = regexp.MustCompile(`(\d{1,2}[/\-.\s]\d{1,2}[/\-.\s]\d{2,4})`)
	totalLine      = regexp.MustCompile(`(?i)\b(total|importe a pagar|amount due|total a pagar|monto total)\b`)
	moneyRegexp    = regexp.MustCompile(moneyPattern)
	taxPattern     = regexp.MustCompile(`(?i)(IVA|Impuesto|Tax)[^0-9\n]*` + moneyPattern)
)

// Extractor applies regex heuristics; every field is optional
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract never fails; fields it cannot find stay nil
func (e *Extractor) Extract(rawText string) entity.Fields {
	lines := nonEmptyLines(rawText)
	joined := strings.Join(lines, "\n")

	fields := entity.Fields{
		ProviderName:  entity.StringPtr(provider(lines)),
		InvoiceNumber: entity.StringPtr(invoiceNumber(joined)),
		TotalAmount:   entity.StringPtr(total(lines, joined)),
	}

	if dates := datePattern.FindAllString(joined, 2); len(dates) > 0 {
		fields.IssueDate = entity.StringPtr(dates[0])
		if len(dates) > 1 {
			fields.DueDate = entity.StringPtr(dates[1])
		}
	}
	if m := taxPattern.FindStringSubmatch(joined); m != nil {
		fields.Taxes = entity.StringPtr(m[2])
	}
	return fields
}

func nonEmptyLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "\n")
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// provider is the line above the first header keyword, else the first line
func provider(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	limit := min(len(lines), providerLookout)
	for i := 1; i < limit; i++ {
		if providerHint.MatchString(lines[i]) {
			return lines[i-1]
		}
	}
	return lines[0]
}

func invoiceNumber(text string) string {
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		return m[2]
	}
	if m := numberFallback.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// total prefers the lowest line naming a total; otherwise the last amount in the text
func total(lines []string, joined string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if !totalLine.MatchString(lines[i]) {
			continue
		}
		if amounts := moneyRegexp.FindAllString(lines[i], -1); len(amounts) > 0 {
			return amounts[len(amounts)-1]
		}
	}
	if amounts := moneyRegexp.FindAllString(joined, -1); len(amounts) > 0 {
		return amounts[len(amounts)-1]
	}
	return ""
}

var _ port.FieldExtractor = (*Extractor)(nil)
