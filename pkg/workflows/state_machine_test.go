package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditStateMachine(t *testing.T) {
	sm := NewCreditStateMachine()

	assert.True(t, sm.CanTransition("PENDING", "UNDER_REVIEW"))
	assert.True(t, sm.CanTransition("UNDER_REVIEW", "CERTIFIED"))
	assert.True(t, sm.CanTransition("UNDER_REVIEW", "REJECTED"))
	assert.True(t, sm.CanTransition("CERTIFIED", "SOLD"))
	assert.True(t, sm.CanTransition("SOLD", "RETIRED"))

	// No skipping review, no leaving terminal states.
	assert.False(t, sm.CanTransition("PENDING", "CERTIFIED"))
	assert.False(t, sm.CanTransition("PENDING", "SOLD"))
	assert.False(t, sm.CanTransition("REJECTED", "UNDER_REVIEW"))
	assert.False(t, sm.CanTransition("RETIRED", "CERTIFIED"))
	assert.False(t, sm.CanTransition("SOLD", "CERTIFIED"))

	assert.True(t, sm.IsTerminal("REJECTED"))
	assert.True(t, sm.IsTerminal("RETIRED"))
	assert.False(t, sm.IsTerminal("CERTIFIED"))

	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
	assert.False(t, sm.CanTransition("UNKNOWN", "PENDING"))
}

func TestTransactionStateMachine(t *testing.T) {
	sm := NewTransactionStateMachine()

	for _, to := range []string{"COMPLETED", "DECLINED", "CANCELLED", "EXPIRED"} {
		assert.True(t, sm.CanTransition("REQUESTED", to))
		assert.True(t, sm.IsTerminal(to))
		assert.False(t, sm.CanTransition(to, "REQUESTED"))
	}
	assert.False(t, sm.IsTerminal("REQUESTED"))
}
