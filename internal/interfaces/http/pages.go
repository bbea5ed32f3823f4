package http

import (
	"html/template"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// Page template names
const (
	pageMessage      = "message"
	pageDecision     = "decision"
	pageRejectForm   = "reject_form"
	pageUploadForm   = "upload_form"
	pageUploadResult = "upload_result"
)

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; max-width: 560px; margin: 40px auto; color: #222; }
.summary td { padding: 2px 12px 2px 0; }
.btn { display: inline-block; padding: 10px 18px; border: 0; border-radius: 4px; color: #fff; background: #2e7d32; text-decoration: none; cursor: pointer; }
.btn.reject { background: #c62828; }
textarea, input[type=email] { width: 100%; box-sizing: border-box; }
</style>
</head>
<body>
<h2>{{.Title}}</h2>
{{end}}

{{define "foot"}}</body>
</html>
{{end}}

{{define "summary"}}<table class="summary">
<tr><td>Invoice</td><td>{{.Number}}</td></tr>
<tr><td>Provider</td><td>{{.Provider}}</td></tr>
<tr><td>Total</td><td>{{.Total}}</td></tr>
<tr><td>State</td><td>{{.State}}</td></tr>
</table>
{{end}}

{{define "message"}}{{template "head" .}}<p>{{.Message}}</p>
{{template "foot" .}}{{end}}

{{define "decision"}}{{template "head" .}}{{if .Applied}}<p>The invoice was {{.Verb}}.</p>
{{else}}<p>This invoice was already decided. Nothing was changed.</p>
{{end}}{{template "summary" .Invoice}}{{template "foot" .}}{{end}}

{{define "reject_form"}}{{template "head" .}}{{template "summary" .Invoice}}
<form method="post" action="/action/reject_confirm">
<input type="hidden" name="token" value="{{.Token}}">
<p><label for="comment">Reason for rejection</label></p>
<textarea id="comment" name="comment" rows="5"></textarea>
<p><button class="btn reject" type="submit">Reject invoice</button></p>
</form>
{{template "foot" .}}{{end}}

{{define "upload_form"}}{{template "head" .}}<form method="post" action="/upload" enctype="multipart/form-data">
<p><label for="file">Invoice document (PDF, PNG or JPG)</label><br>
<input id="file" type="file" name="file" accept=".pdf,.png,.jpg,.jpeg" required></p>
<p><label for="notify_to">Send approval request to (optional)</label><br>
<input id="notify_to" type="email" name="notify_to"></p>
<p><button class="btn" type="submit">Upload</button></p>
</form>
{{template "foot" .}}{{end}}

{{define "upload_result"}}{{template "head" .}}<p>Invoice {{.Invoice.Number}} was created with id {{.ID}}.</p>
{{template "summary" .Invoice}}{{with .Notification}}<p>Notification: {{.Status}}{{if .Error}} ({{.Error}}){{end}}</p>
{{end}}<p><a href="/upload">Upload another</a></p>
{{template "foot" .}}{{end}}
`))

// invoiceSummary is what every page shows about an invoice
type invoiceSummary struct {
	Number   string
	Provider string
	Total    string
	State    string
}

func summarize(inv *entity.Invoice) invoiceSummary {
	if inv == nil {
		return invoiceSummary{}
	}
	return invoiceSummary{
		Number:   inv.DisplayName(),
		Provider: entity.Deref(inv.Fields.ProviderName, "N/A"),
		Total:    entity.Deref(inv.Fields.TotalAmount, "N/A"),
		State:    inv.State.Label(),
	}
}

type messagePage struct {
	Title   string
	Message string
}

type decisionPage struct {
	Title   string
	Verb    string
	Applied bool
	Invoice invoiceSummary
}

type rejectFormPage struct {
	Title   string
	Token   string
	Invoice invoiceSummary
}

type uploadFormPage struct {
	Title string
}

type uploadResultPage struct {
	Title        string
	ID           int64
	Invoice      invoiceSummary
	Notification *NotificationResponse
}
