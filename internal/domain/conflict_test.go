package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConflict() *Conflict {
	return &Conflict{ID: "c-1", LeaveRequestID: "lr-1", State: ConflictUnresolved, ReplacementStatus: ReplacementNone, Version: 1}
}

func TestApplySuggestion_NoCandidates(t *testing.T) {
	c := newConflict()
	require.NoError(t, c.ApplySuggestion(nil, testNow))

	assert.Equal(t, ConflictUnresolved, c.State)
	assert.Nil(t, c.SuggestedDriverID)
	assert.Nil(t, c.ReplacementScore)
	assert.Equal(t, NoReplacementReason, c.ReplacementReason)
	assert.False(t, c.IsResolved)
}

func TestAccept_PendingThenActive(t *testing.T) {
	c := newConflict()
	pair := CandidatePair{DriverID: "d-2", VehicleID: "v-2", TotalScore: 81.5, Reason: "familiar"}
	require.NoError(t, c.ApplySuggestion(&pair, testNow))
	require.NoError(t, c.Accept(pair, "admin-1", "asg-1", LeavePending, testNow))

	assert.Equal(t, ConflictAccepted, c.State)
	assert.True(t, c.IsResolved)
	assert.Equal(t, ReplacementPending, c.ReplacementStatus)
	assert.True(t, c.ActivateReplacement(testNow))
	assert.Equal(t, ReplacementActive, c.ReplacementStatus)
	assert.False(t, c.ActivateReplacement(testNow), "already active")
}

func TestAccept_Twice(t *testing.T) {
	c := newConflict()
	pair := CandidatePair{DriverID: "d-2", VehicleID: "v-2"}
	require.NoError(t, c.ApplySuggestion(&pair, testNow))
	require.NoError(t, c.Accept(pair, "admin-1", "asg-1", LeaveApproved, testNow))
	assert.Equal(t, ReplacementActive, c.ReplacementStatus)

	err := c.Accept(CandidatePair{DriverID: "d-3", VehicleID: "v-3"}, "admin-2", "asg-2", LeaveApproved, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "d-2", *c.SuggestedDriverID)
}

func TestAccept_RequiresSuggestedState(t *testing.T) {
	c := newConflict()
	err := c.Accept(CandidatePair{DriverID: "d-2", VehicleID: "v-2"}, "admin-1", "asg", LeavePending, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectSuggestion_ThenRegenerate(t *testing.T) {
	c := newConflict()
	pair := CandidatePair{DriverID: "d-2", VehicleID: "v-2"}
	require.NoError(t, c.ApplySuggestion(&pair, testNow))
	require.NoError(t, c.RejectSuggestion("admin-1", testNow))
	assert.Equal(t, ConflictRejected, c.State)

	assert.ErrorIs(t, c.RejectSuggestion("admin-1", testNow), ErrInvalidState)
	require.NoError(t, c.ApplySuggestion(&pair, testNow))
	assert.Equal(t, ConflictSuggested, c.State)
}

func TestSupersede_RetractsMaterialisedReplacement(t *testing.T) {
	c := newConflict()
	pair := CandidatePair{DriverID: "d-2", VehicleID: "v-2"}
	require.NoError(t, c.ApplySuggestion(&pair, testNow))
	require.NoError(t, c.Accept(pair, "admin-1", "asg-1", LeavePending, testNow))

	require.NoError(t, c.Supersede(testNow))
	assert.Equal(t, ConflictSuperseded, c.State)
	assert.Equal(t, ReplacementRetracted, c.ReplacementStatus)
	assert.False(t, c.IsResolved)

	assert.ErrorIs(t, c.Supersede(testNow), ErrInvalidState)
}

func TestSeverityEscalate(t *testing.T) {
	assert.Equal(t, SeverityMedium, SeverityLow.Escalate())
	assert.Equal(t, SeverityCritical, SeverityHigh.Escalate())
	assert.Equal(t, SeverityCritical, SeverityCritical.Escalate())

	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		parsed, err := ParseSeverity(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
