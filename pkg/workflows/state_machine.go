package workflows

// StateMachine enforces lifecycle status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewCreditStateMachine returns the state machine for credit lifecycles
func NewCreditStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"PENDING":      {"UNDER_REVIEW"},
			"UNDER_REVIEW": {"CERTIFIED", "REJECTED"},
			"CERTIFIED":    {"SOLD"},
			"SOLD":         {"RETIRED"},
			"REJECTED":     {},
			"RETIRED":      {},
		},
	}
}

// NewTransactionStateMachine returns the state machine for purchase transactions
func NewTransactionStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"REQUESTED": {"COMPLETED", "DECLINED", "CANCELLED", "EXPIRED"},
			"COMPLETED": {},
			"DECLINED":  {},
			"CANCELLED": {},
			"EXPIRED":   {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether a status has no outgoing transitions
func (sm *StateMachine) IsTerminal(status string) bool {
	return len(sm.GetAllowedTransitions(status)) == 0
}
