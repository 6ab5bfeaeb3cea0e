package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusNoShow, true},
		{StatusAccepted, StatusRejected, false},
		{StatusAccepted, StatusPending, false},
		{StatusCompleted, StatusAccepted, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusRejected, StatusAccepted, false},
		{StatusNoShow, StatusCompleted, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, ProviderCanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestPatientCanCancel(t *testing.T) {
	assert.True(t, PatientCanCancel(StatusPending))
	assert.True(t, PatientCanCancel(StatusAccepted))
	assert.False(t, PatientCanCancel(StatusCompleted))
	assert.False(t, PatientCanCancel(StatusRejected))
	assert.False(t, PatientCanCancel(StatusNoShow))
	assert.False(t, PatientCanCancel(StatusCancelled))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAccepted.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusNoShow.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestVenueFeeFor(t *testing.T) {
	v := &Venue{NewPatientFee: 1500, FollowUpFee: 600}

	assert.Equal(t, int64(1500), v.FeeFor(KindNewPatient))
	assert.Equal(t, int64(600), v.FeeFor(KindFollowUp))
	// Unknown kinds price as a new visit.
	assert.Equal(t, int64(1500), v.FeeFor(""))
}
