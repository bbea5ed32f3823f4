package notifier

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const missing = "N/A"

var emailTemplate = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>Invoice: {{.Number}}</h2>
    <p><strong>Provider:</strong> {{.Provider}}</p>
    <p>Issue date: {{.IssueDate}}</p>
    <p>Due date: {{.DueDate}}</p>
    <p>Total: {{.Total}}</p>
    <p>Taxes: {{.Taxes}}</p>
    <p>
      <a href="{{.ApproveURL}}" style="padding:10px 12px;background:#27ae60;color:white;border-radius:6px;text-decoration:none;">Approve</a>
      <a href="{{.RejectURL}}" style="padding:10px 12px;background:#e74c3c;color:white;border-radius:6px;text-decoration:none;">Reject</a>
    </p>
  </body>
</html>
`))

// summary is the rendered view of an invoice shared by every transport
type summary struct {
	Number     string
	Provider   string
	IssueDate  string
	DueDate    string
	Total      string
	Taxes      string
	ApproveURL string
	RejectURL  string
}

func summarize(msg *port.NotificationMessage) summary {
	f := msg.Invoice.Fields
	return summary{
		Number:     entity.Deref(f.InvoiceNumber, missing),
		Provider:   entity.Deref(f.ProviderName, missing),
		IssueDate:  entity.Deref(f.IssueDate, missing),
		DueDate:    entity.Deref(f.DueDate, missing),
		Total:      entity.Deref(f.TotalAmount, missing),
		Taxes:      entity.Deref(f.Taxes, missing),
		ApproveURL: msg.ApproveURL,
		RejectURL:  msg.RejectURL,
	}
}

// Subject returns the email subject for an approval request
func Subject(invoice *entity.Invoice) string {
	return fmt.Sprintf("Invoice review %s", invoice.DisplayName())
}

// RenderHTML renders the approval request body
func RenderHTML(msg *port.NotificationMessage) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, summarize(msg)); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}
