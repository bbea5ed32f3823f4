package entity

import (
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// HistoryEntry is one immutable row of an invoice's audit trail.
// FromState is empty for the creation entry.
type HistoryEntry struct {
	ID        int64          `json:"-"`
	InvoiceID int64          `json:"-"`
	FromState workflow.State `json:"from"`
	ToState   workflow.State `json:"to"`
	Timestamp time.Time      `json:"timestamp"`
	Comment   string         `json:"comment"`
}

// ReplayHistory folds the ledger from the creation entry and returns the final state.
// It reports false when an entry does not continue from the previous one.
func ReplayHistory(entries []*HistoryEntry) (workflow.State, bool) {
	var state workflow.State
	for i, e := range entries {
		if i == 0 {
			if e.FromState != "" || e.ToState != workflow.StatePending {
				return "", false
			}
			state = e.ToState
			continue
		}
		if e.FromState != state {
			return state, false
		}
		m := workflow.BuildInvoiceStateMachine(state)
		trigger := workflow.TriggerApprove
		if e.ToState == workflow.StateRejected {
			trigger = workflow.TriggerReject
		}
		if !m.CanFire(trigger) {
			return state, false
		}
		state = e.ToState
	}
	return state, len(entries) > 0
}
