package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/apierror"
	"github.com/garyjia/invoice-approval/internal/application/service"
	appwf "github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// ActionLanding handles GET /action/:token. Approve links go straight to the
// confirmation step, reject links to the comment form.
func (h *Handlers) ActionLanding(c *gin.Context) {
	tok := c.Param("token")
	claim, err := h.services.Engine.VerifyLink(tok, "")
	if err != nil {
		h.renderError(c, err)
		return
	}

	target := "/action/confirm/" + tok
	if claim.Action == workflow.ActionReject {
		target = "/action/reject_form/" + tok
	}
	c.Redirect(http.StatusSeeOther, target)
}

// ConfirmApprove handles GET /action/confirm/:token
func (h *Handlers) ConfirmApprove(c *gin.Context) {
	decision, err := h.services.Engine.DecideViaLink(c.Request.Context(), c.Param("token"), workflow.ActionApprove, "")
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderDecision(c, decision)
}

// RejectForm handles GET /action/reject_form/:token
func (h *Handlers) RejectForm(c *gin.Context) {
	tok := c.Param("token")
	claim, err := h.services.Engine.VerifyLink(tok, workflow.ActionReject)
	if err != nil {
		h.renderError(c, err)
		return
	}

	view, err := h.services.Query.Get(c.Request.Context(), claim.InvoiceID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if view.Invoice.State.IsTerminal() {
		h.renderDecision(c, &appwf.Decision{Invoice: view.Invoice, Action: workflow.ActionReject})
		return
	}

	c.HTML(http.StatusOK, pageRejectForm, rejectFormPage{
		Title:   "Reject invoice",
		Token:   tok,
		Invoice: summarize(view.Invoice),
	})
}

// RejectConfirm handles POST /action/reject_confirm
func (h *Handlers) RejectConfirm(c *gin.Context) {
	decision, err := h.services.Engine.DecideViaLink(
		c.Request.Context(),
		c.PostForm("token"),
		workflow.ActionReject,
		c.PostForm("comment"),
	)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderDecision(c, decision)
}

// UploadForm handles GET /upload
func (h *Handlers) UploadForm(c *gin.Context) {
	c.HTML(http.StatusOK, pageUploadForm, uploadFormPage{Title: "Upload invoice"})
}

// UploadFormSubmit handles POST /upload
func (h *Handlers) UploadFormSubmit(c *gin.Context) {
	result, err := h.submitUpload(c, service.OriginWebForm)
	if err != nil {
		h.renderError(c, err)
		return
	}

	page := uploadResultPage{
		Title:   "Invoice uploaded",
		ID:      result.Invoice.ID,
		Invoice: summarize(result.Invoice),
	}
	if n := result.Notification; n != nil {
		page.Notification = &NotificationResponse{Status: n.Status, Error: n.ErrorMessage}
	}
	c.HTML(http.StatusCreated, pageUploadResult, page)
}

func (h *Handlers) renderDecision(c *gin.Context, d *appwf.Decision) {
	verb := "approved"
	if d.Action == workflow.ActionReject {
		verb = "rejected"
	}
	title := "Invoice " + verb
	if !d.Applied {
		title = "Already decided"
	}
	c.HTML(http.StatusOK, pageDecision, decisionPage{
		Title:   title,
		Verb:    verb,
		Applied: d.Applied,
		Invoice: summarize(d.Invoice),
	})
}

// renderError shows an HTML error page; token failures never reveal why
func (h *Handlers) renderError(c *gin.Context, err error) {
	apiErr := apierror.FromError(err)
	status := apierror.MapErrorToHTTPStatus(apiErr)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Page request failed", "path", c.FullPath(), "status", status, "error", err)
	}

	title := "Something went wrong"
	switch apiErr.Code {
	case apierror.ErrInvalidToken:
		title = "Invalid link"
	case apierror.ErrInvalidPayload:
		title = "Invalid request"
	case apierror.ErrNotFound:
		title = "Not found"
	}
	c.HTML(status, pageMessage, messagePage{Title: title, Message: apiErr.Message})
}
