package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *LeaveRequest {
	t.Helper()
	l, err := NewLeaveRequest("lr-1", "d-1", LeaveVacation,
		time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
		"family", true, testNow)
	require.NoError(t, err)
	return l
}

func TestNewLeaveRequest_Validation(t *testing.T) {
	start := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	_, err := NewLeaveRequest("x", "d-1", LeaveSick, start, start.AddDate(0, 0, -1), "", false, testNow)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLeaveRequest("x", "", LeaveSick, start, start, "", false, testNow)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLeaveRequest("x", "d-1", LeaveType("sabbatical"), start, start, "", false, testNow)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "leave_type", vErr.Field)

	l, err := NewLeaveRequest("x", "d-1", LeaveSick, start, start, "", false, testNow)
	require.NoError(t, err)
	assert.Equal(t, LeavePending, l.Status)
	assert.Equal(t, 1, l.Version)
}

func TestLeaveTransitions_Table(t *testing.T) {
	tests := []struct {
		from, to LeaveStatus
		ok       bool
	}{
		{LeavePending, LeaveApproved, true},
		{LeavePending, LeaveRejected, true},
		{LeavePending, LeaveCancelled, true},
		{LeaveApproved, LeaveCancelled, true},
		{LeaveApproved, LeaveRejected, false},
		{LeaveApproved, LeavePending, false},
		{LeaveRejected, LeaveCancelled, false},
		{LeaveCancelled, LeaveApproved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransitionLeave(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestApprove_NarrowsEffectiveRange(t *testing.T) {
	l := newPending(t)
	from := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Approve("admin-1", "ok", &from, &to, testNow))
	assert.Equal(t, LeaveApproved, l.Status)
	assert.Equal(t, from, l.StartDate)
	assert.Equal(t, to, l.EndDate)
	assert.Equal(t, "admin-1", l.ApprovedByAdminID)
	require.NotNil(t, l.ApprovedAt)
}

func TestApprove_EffectiveRangeOutsideRequest(t *testing.T) {
	l := newPending(t)
	to := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

	err := l.Approve("admin-1", "", nil, &to, testNow)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, LeavePending, l.Status, "failed approve must not change state")
}

func TestApprove_NotPending(t *testing.T) {
	l := newPending(t)
	require.NoError(t, l.Reject("admin-1", "staffing", testNow))

	err := l.Approve("admin-2", "", nil, nil, testNow)
	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "rejected", stateErr.Current)
}

func TestApprove_StateCheckedBeforeRange(t *testing.T) {
	l := newPending(t)
	require.NoError(t, l.Approve("admin-1", "", nil, nil, testNow))

	from := time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	err := l.Approve("admin-2", "", &from, &to, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "admin-1", l.ApprovedByAdminID)
}

func TestCancel_Ownership(t *testing.T) {
	l := newPending(t)

	err := l.Cancel(Actor{DriverID: "d-2"}, testNow)
	assert.ErrorIs(t, err, ErrValidation)

	err = l.Cancel(Actor{DriverID: "d-1", AdminID: "admin-1"}, testNow)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, l.Cancel(Actor{DriverID: "d-1"}, testNow))
	assert.Equal(t, LeaveCancelled, l.Status)
	assert.Equal(t, "driver:d-1", l.CancelledBy)

	err = l.Cancel(Actor{AdminID: "admin-1"}, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancel_AfterApprovalClearsReplacement(t *testing.T) {
	l := newPending(t)
	l.RecordReplacement("d-9", "v-9", testNow)
	require.NoError(t, l.Approve("admin-1", "", nil, nil, testNow))

	require.NoError(t, l.Cancel(Actor{AdminID: "admin-1"}, testNow))
	assert.Nil(t, l.SuggestedReplacementDriverID)
	assert.Nil(t, l.SuggestedReplacementVehicleID)
}

func TestErrorHelpers(t *testing.T) {
	stale := &StaleSuggestionError{ConflictID: "c", SuggestionID: "s"}
	assert.ErrorIs(t, stale, ErrStaleSuggestion)
	assert.ErrorIs(t, stale, ErrConflict)
	assert.True(t, IsClientError(stale))

	timeout := &DependencyTimeoutError{Dependency: "trip lookup", Timeout: time.Second}
	assert.True(t, IsRetryable(timeout))
	assert.False(t, IsClientError(timeout))

	partial := &PartialSuggestionFailure{
		LeaveRequestID: "lr",
		Failures:       []ConflictFailure{{ConflictID: "c1", Err: timeout}},
	}
	assert.ErrorIs(t, partial, ErrPartialSuggestion)
	assert.ErrorIs(t, partial, ErrDependencyTimeout)
	assert.Contains(t, partial.Error(), "c1")

	assert.True(t, IsNotFound(&NotFoundError{Entity: "leave request", ID: "x"}))
}
