package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsValidation(Validation("bad input")))
	assert.True(t, IsConflict(Conflict(ReasonAlreadyRequested, "taken")))
	assert.True(t, IsNotFound(NotFound("missing")))
	assert.True(t, IsUnauthorized(Unauthorized("wrong actor")))
	assert.True(t, IsFraudHold(FraudHold("held")))
	assert.True(t, IsIntegrity(Integrity("broken")))

	assert.False(t, IsConflict(Validation("bad input")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestReasonSurvivesWrapping(t *testing.T) {
	inner := Conflict(ReasonNotAvailable, "credit HLC-2026-X is sold")
	wrapped := fmt.Errorf("request purchase: %w", inner)

	assert.True(t, IsConflict(wrapped))
	assert.Equal(t, ReasonNotAvailable, ReasonOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("token expired")
	err := Wrap(cause, KindUnauthorized, "invalid token")

	assert.True(t, IsUnauthorized(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid token")
	assert.Contains(t, err.Error(), "token expired")
}
