// Package workflow applies approve/reject decisions arriving over the email
// link and webhook channels. Both channels converge on InvoiceStore.Transition,
// so whichever decision reaches the store first wins and the other reports
// already_decided.
package workflow

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

// Decision outcomes
const (
	OutcomeApplied        = "applied"
	OutcomeAlreadyDecided = "already_decided"
)

// Engine validates decision requests and applies them through the invoice store
type Engine interface {
	// VerifyLink checks a link token. A non-empty expected action must match the claim.
	VerifyLink(tok string, expected domainwf.Action) (*token.Claim, error)

	// DecideViaLink re-verifies the token and applies its action
	DecideViaLink(ctx context.Context, tok string, expected domainwf.Action, comment string) (*Decision, error)

	// DecideViaWebhook validates the payload and applies the decision
	DecideViaWebhook(ctx context.Context, req WebhookDecision) (*Decision, error)
}

// WebhookDecision is the decoded body of a webhook call
type WebhookDecision struct {
	InvoiceID int64
	Action    string
	Comment   string
	Source    string
}

// Decision reports what a decision request did
type Decision struct {
	Invoice *entity.Invoice
	Action  domainwf.Action
	Channel string
	Applied bool
}

// Outcome is applied or already_decided
func (d *Decision) Outcome() string {
	if d.Applied {
		return OutcomeApplied
	}
	return OutcomeAlreadyDecided
}
