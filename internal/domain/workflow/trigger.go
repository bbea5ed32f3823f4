package workflow

import (
	"fmt"
	"strings"
)

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Action is the decision carried by action tokens and webhook payloads
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts only the two wire values, case-sensitively after trimming
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.TrimSpace(s)); a {
	case ActionApprove, ActionReject:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// IsValid reports whether the action is approve or reject
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// Trigger maps the action onto the state machine trigger
func (a Action) Trigger() Trigger {
	if a == ActionReject {
		return TriggerReject
	}
	return TriggerApprove
}

// TargetState is the state a Pending invoice moves to under this action
func (a Action) TargetState() State {
	if a == ActionReject {
		return StateRejected
	}
	return StateApproved
}

func (a Action) String() string {
	return string(a)
}
