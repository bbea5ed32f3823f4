package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type engineImpl struct {
	store      port.InvoiceStore
	codec      port.TokenCodec
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes decision events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// NewEngine creates a new workflow engine
func NewEngine(store port.InvoiceStore, codec port.TokenCodec, opts ...EngineOption) Engine {
	e := &engineImpl{
		store: store,
		codec: codec,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) VerifyLink(tok string, expected domainwf.Action) (*token.Claim, error) {
	claim, err := e.codec.Verify(tok)
	if err != nil {
		return nil, err
	}
	if expected != "" && claim.Action != expected {
		return nil, fmt.Errorf("%w: link is not for %s", token.ErrInvalidToken, expected)
	}
	return claim, nil
}

func (e *engineImpl) DecideViaLink(ctx context.Context, tok string, expected domainwf.Action, comment string) (*Decision, error) {
	claim, err := e.VerifyLink(tok, expected)
	if err != nil {
		return nil, err
	}

	return e.decide(ctx, claim.InvoiceID, claim.Action, entity.ChannelEmailLink, linkComment(claim.Action, comment), "")
}

func (e *engineImpl) DecideViaWebhook(ctx context.Context, req WebhookDecision) (*Decision, error) {
	if req.InvoiceID <= 0 {
		return nil, fmt.Errorf("%w: invoice_id must be a positive integer", domainwf.ErrInvalidPayload)
	}
	action, err := domainwf.ParseAction(req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: action must be approve or reject", domainwf.ErrInvalidPayload)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = entity.DefaultWebhookSource
	}

	if _, err := e.store.Get(ctx, req.InvoiceID); err != nil {
		return nil, err
	}

	return e.decide(ctx, req.InvoiceID, action, entity.ChannelWebhook, webhookComment(action, source, req.Comment), source)
}

func (e *engineImpl) decide(ctx context.Context, id int64, action domainwf.Action, channel, comment, source string) (*Decision, error) {
	invoice, applied, err := e.store.Transition(ctx, id, action, comment)
	if err != nil {
		e.logError("Decision failed", "invoice_id", id, "action", action, "channel", channel, "error", err)
		return nil, err
	}

	d := &Decision{
		Invoice: invoice,
		Action:  action,
		Channel: channel,
		Applied: applied,
	}

	e.logInfo("Decision processed",
		"invoice_id", id,
		"action", action,
		"channel", channel,
		"outcome", d.Outcome(),
		"state", invoice.State,
	)
	e.publish(ctx, d, source)

	return d, nil
}

func (e *engineImpl) publish(ctx context.Context, d *Decision, source string) {
	if e.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		"channel": d.Channel,
		"action":  d.Action.String(),
	}
	if source != "" {
		payload["source"] = source
	}

	var evtType event.Type
	switch {
	case !d.Applied:
		evtType = event.TypeDecisionIgnored
		payload["state"] = d.Invoice.State.String()
	case d.Action == domainwf.ActionApprove:
		evtType = event.TypeInvoiceApproved
		payload["from"] = domainwf.StatePending.String()
		payload["to"] = d.Invoice.State.String()
	default:
		evtType = event.TypeInvoiceRejected
		payload["from"] = domainwf.StatePending.String()
		payload["to"] = d.Invoice.State.String()
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(evtType, d.Invoice.ID, payload))
}

func linkComment(action domainwf.Action, comment string) string {
	comment = strings.TrimSpace(comment)
	if action == domainwf.ActionReject && comment != "" {
		return comment
	}
	note := "approved via email link"
	if action == domainwf.ActionReject {
		note = "rejected via email link"
	}
	if comment != "" {
		note += ": " + comment
	}
	return note
}

func webhookComment(action domainwf.Action, source, comment string) string {
	verb := "approved"
	if action == domainwf.ActionReject {
		verb = "rejected"
	}
	note := fmt.Sprintf("%s via webhook (source=%s)", verb, source)
	if c := strings.TrimSpace(comment); c != "" {
		note += ": " + c
	}
	return note
}

func (e *engineImpl) logInfo(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) logError(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}
