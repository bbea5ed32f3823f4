package workflow

// BuildInvoiceStateMachine creates the fixed three-state invoice machine.
// APPROVED and REJECTED have no outgoing transitions.
func BuildInvoiceStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return builder.Build(initialState)
}
