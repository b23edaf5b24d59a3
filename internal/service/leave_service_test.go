package service

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }

func TestCreateLeaveRequest(t *testing.T) {
	h := newHarness(t)

	res, err := h.leaveSvc.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID:  "d-1",
		LeaveType: domain.LeaveVacation,
		StartDate: leaveDay.Add(10 * time.Hour),
		EndDate:   tuesday,
		Reason:    "family trip",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Suggestions)

	stored := h.leave(res.Leave.ID)
	assert.Equal(t, domain.LeavePending, stored.Status)
	assert.Equal(t, leaveDay, stored.StartDate, "dates are calendar days")
	assert.Equal(t, tuesday, stored.EndDate)
	assert.Equal(t, submittedAt, stored.RequestedAt)
	assert.Equal(t, []app.EventType{app.EventLeaveCreated}, h.sink.Types())
	assert.Equal(t, "driver:d-1", h.sink.Events()[0].Actor)
}

func TestCreateLeaveRequest_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		in    app.CreateLeaveInput
		field string
	}{
		{"missing driver", app.CreateLeaveInput{LeaveType: domain.LeaveSick, StartDate: leaveDay, EndDate: leaveDay}, "driver_id"},
		{"unknown type", app.CreateLeaveInput{DriverID: "d-1", LeaveType: "sabbatical", StartDate: leaveDay, EndDate: leaveDay}, "leave_type"},
		{"reversed range", app.CreateLeaveInput{DriverID: "d-1", LeaveType: domain.LeaveSick, StartDate: tuesday, EndDate: leaveDay}, "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.leaveSvc.CreateLeaveRequest(h.ctx, tt.in)
			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestCreateLeaveRequest_RejectsOverlap(t *testing.T) {
	h := newHarness(t)
	first := h.createLeave("d-1", leaveDay, tuesday)

	_, err := h.leaveSvc.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID: "d-1", LeaveType: domain.LeaveSick, StartDate: tuesday, EndDate: tuesday.AddDate(0, 0, 2),
	})
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, first.ID, conflictErr.ExistingID)

	// Other drivers are unaffected.
	h.createLeave("d-2", leaveDay, tuesday)

	_, err = h.leaveSvc.RejectLeaveRequest(h.ctx, app.RejectLeaveInput{LeaveRequestID: first.ID, AdminID: "admin-1", Reason: "short staffed"})
	require.NoError(t, err)
	h.createLeave("d-1", tuesday, tuesday)
}

func TestCreateLeaveRequest_InlineAutoReplacement(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)

	res, err := h.leaveSvc.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID: "d-1", LeaveType: domain.LeaveEmergency, StartDate: leaveDay, EndDate: leaveDay, AutoReplacement: true,
	})
	require.NoError(t, err)
	require.NoError(t, res.SuggestionError)
	require.NotNil(t, res.Suggestions)
	require.Len(t, res.Suggestions.Conflicts, 1)
	assert.Equal(t, domain.ConflictSuggested, res.Suggestions.Conflicts[0].Conflict.State)
	assert.NotNil(t, res.Leave.SuggestionGeneratedAt)
	assert.True(t, res.Leave.AutoReplacementEnabled)
}

func TestCreateLeaveRequest_InlineGenerationErrorIsReported(t *testing.T) {
	h := newHarness(t,
		withSettings(func(s *Settings) { s.LookupTimeout = 20 * time.Millisecond }),
		withCollaborators(func(c app.Collaborators) app.Collaborators {
			c.Trips = &testutil.SlowTrips{TripObligationLookup: c.Trips, Delay: time.Second}
			return c
		}),
	)

	res, err := h.leaveSvc.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID: "d-1", LeaveType: domain.LeaveSick, StartDate: leaveDay, EndDate: leaveDay, AutoReplacement: true,
	})
	require.NoError(t, err, "creation succeeds even when generation fails")
	assert.True(t, errors.Is(res.SuggestionError, domain.ErrDependencyTimeout))
	assert.Equal(t, domain.LeavePending, h.leave(res.Leave.ID).Status)
}

func TestCreateLeaveRequest_AsyncAutoReplacement(t *testing.T) {
	h := newHarness(t, withSettings(func(s *Settings) { s.AsyncGeneration = true }))
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	waker := &countingWaker{}
	leaves, suggestions := h.services(testutil.NewTestUoW(h.db), WithWaker(waker))

	res, err := leaves.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID: "d-1", LeaveType: domain.LeaveSick, StartDate: leaveDay, EndDate: leaveDay, AutoReplacement: true,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Suggestions)
	assert.Equal(t, int32(1), waker.n.Load())
	assert.Nil(t, h.leave(res.Leave.ID).SuggestionGeneratedAt)

	worker := NewSuggestionWorker(h.leaves, suggestions, time.Minute, 10, nil)
	done, err := worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.NotNil(t, h.leave(res.Leave.ID).SuggestionGeneratedAt)

	done, err = worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, done, "processed requests are not picked up again")
}

func TestApproveLeaveRequest_NarrowedRangeSupersedes(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	h.seedTrip("d-1", "v-1", tuesday)
	leave := h.createLeave("d-1", leaveDay, tuesday)
	views := h.generate(leave.ID).Conflicts
	require.Len(t, views, 2)
	_, err := h.accept(views[1], 1)
	require.NoError(t, err)

	to := leaveDay
	res, err := h.leaveSvc.ApproveLeaveRequest(h.ctx, app.ApproveLeaveInput{
		LeaveRequestID: leave.ID,
		AdminID:        "admin-1",
		Note:           "only Monday",
		EffectiveTo:    &to,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeaveApproved, res.Leave.Status)
	assert.Equal(t, leaveDay, res.Leave.EndDate)
	require.Len(t, res.Superseded, 1)
	assert.Equal(t, views[1].Conflict.ID, res.Superseded[0].ID)
	assert.Equal(t, domain.ReplacementRetracted, res.Superseded[0].ReplacementStatus)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, views[0].Conflict.ID, res.Gaps[0].ID)

	assert.Equal(t, int32(1), h.assignments.Retracted.Load())
	assert.Empty(t, h.activeAssignments())
	assert.Equal(t, domain.ConflictSuperseded, h.conflict(views[1].Conflict.ID).State)
	assert.Contains(t, h.sink.Types(), app.EventReplacementRetracted)
}

func TestApproveLeaveRequest_DetectsGapsWithoutGeneration(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay, testutil.WithStudents(35))
	leave := h.createLeave("d-1", leaveDay, leaveDay)

	res := h.approve(leave.ID)

	require.Len(t, res.Gaps, 1)
	assert.Equal(t, domain.SeverityCritical, res.Gaps[0].Severity)
	assert.Equal(t, domain.ConflictUnresolved, res.Gaps[0].State)

	views, err := h.suggestSvc.ListConflicts(h.ctx, leave.ID, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, res.Gaps[0].ID, views[0].Conflict.ID)

	var gapEvents int
	for _, e := range h.sink.Events() {
		if e.Type == app.EventOperationalGap {
			gapEvents++
			assert.Equal(t, "critical", e.Payload["severity"])
		}
	}
	assert.Equal(t, 1, gapEvents)
}

func TestApproveLeaveRequest_InvalidEffectiveRange(t *testing.T) {
	h := newHarness(t)
	leave := h.createLeave("d-1", leaveDay, leaveDay)

	from := tuesday
	_, err := h.leaveSvc.ApproveLeaveRequest(h.ctx, app.ApproveLeaveInput{
		LeaveRequestID: leave.ID, AdminID: "admin-1", EffectiveFrom: &from,
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, domain.LeavePending, h.leave(leave.ID).Status)
}

func TestLeaveLifecycle_TerminalTransitions(t *testing.T) {
	h := newHarness(t)
	leave := h.createLeave("d-1", leaveDay, leaveDay)
	h.approve(leave.ID)

	_, err := h.leaveSvc.RejectLeaveRequest(h.ctx, app.RejectLeaveInput{LeaveRequestID: leave.ID, AdminID: "admin-1"})
	var stateErr *domain.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, string(domain.LeaveApproved), stateErr.Current)

	_, err = h.leaveSvc.CancelLeaveRequest(h.ctx, app.CancelLeaveInput{LeaveRequestID: leave.ID, Actor: domain.Actor{AdminID: "admin-2"}})
	require.NoError(t, err)

	_, err = h.leaveSvc.ApproveLeaveRequest(h.ctx, app.ApproveLeaveInput{LeaveRequestID: leave.ID, AdminID: "admin-1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestCancelLeaveRequest_RetractsReplacements(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	leave := h.createLeave("d-1", leaveDay, leaveDay)
	view := h.generate(leave.ID).Conflicts[0]
	accepted, err := h.accept(view, 1)
	require.NoError(t, err)
	h.approve(leave.ID)

	res, err := h.leaveSvc.CancelLeaveRequest(h.ctx, app.CancelLeaveInput{
		LeaveRequestID: leave.ID,
		Actor:          domain.Actor{DriverID: "d-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeaveCancelled, res.Leave.Status)
	assert.Equal(t, "driver:d-1", res.Leave.CancelledBy)
	assert.Nil(t, res.Leave.SuggestedReplacementDriverID)
	assert.Equal(t, []string{accepted.AssignmentID}, res.Retracted)
	require.Len(t, res.Superseded, 1)
	assert.Empty(t, h.activeAssignments())

	c := h.conflict(view.Conflict.ID)
	assert.Equal(t, domain.ConflictSuperseded, c.State)
	assert.Equal(t, domain.ReplacementRetracted, c.ReplacementStatus)
	pairs, err := h.suggestions.ListByConflict(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	types := h.sink.Types()
	assert.Contains(t, types, app.EventLeaveCancelled)
	assert.Contains(t, types, app.EventReplacementRetracted)
}

func TestCancelLeaveRequest_OtherDriver(t *testing.T) {
	h := newHarness(t)
	leave := h.createLeave("d-1", leaveDay, leaveDay)

	_, err := h.leaveSvc.CancelLeaveRequest(h.ctx, app.CancelLeaveInput{LeaveRequestID: leave.ID, Actor: domain.Actor{DriverID: "d-2"}})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, domain.LeavePending, h.leave(leave.ID).Status)
}

func TestCancelLeaveRequest_RetractFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	leave := h.createLeave("d-1", leaveDay, leaveDay)
	view := h.generate(leave.ID).Conflicts[0]
	_, err := h.accept(view, 1)
	require.NoError(t, err)

	h.assignments.RetractErr = errors.New("assignment service down")
	_, err = h.leaveSvc.CancelLeaveRequest(h.ctx, app.CancelLeaveInput{LeaveRequestID: leave.ID, Actor: domain.Actor{AdminID: "admin-1"}})
	require.Error(t, err)

	assert.Equal(t, domain.LeavePending, h.leave(leave.ID).Status)
	assert.Equal(t, domain.ConflictAccepted, h.conflict(view.Conflict.ID).State)
	assert.Len(t, h.activeAssignments(), 1)

	h.assignments.RetractErr = nil
	_, err = h.leaveSvc.CancelLeaveRequest(h.ctx, app.CancelLeaveInput{LeaveRequestID: leave.ID, Actor: domain.Actor{AdminID: "admin-1"}})
	require.NoError(t, err)
	assert.Empty(t, h.activeAssignments())
}

func TestRejectLeaveRequest_Rollback(t *testing.T) {
	h := newHarness(t)
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	leave := h.createLeave("d-1", leaveDay, leaveDay)
	view := h.generate(leave.ID).Conflicts[0]

	// The leave update succeeds; superseding the conflict fails.
	uow := testutil.NewFaultyUoW(h.db, 1, fmt.Errorf("injected failure")).Matching("UPDATE conflicts")
	failing, _ := h.services(uow)
	_, err := failing.RejectLeaveRequest(h.ctx, app.RejectLeaveInput{LeaveRequestID: leave.ID, AdminID: "admin-1"})
	require.Error(t, err)

	assert.Equal(t, domain.LeavePending, h.leave(leave.ID).Status)
	assert.Equal(t, domain.ConflictSuggested, h.conflict(view.Conflict.ID).State)
	assert.Equal(t, 1, uow.Injected())
}

func TestListLeaveRequests(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		day := leaveDay.AddDate(0, 0, 7*i)
		h.createLeave("d-1", day, day)
		h.clock.Advance(time.Minute)
	}
	h.createLeave("d-2", leaveDay, leaveDay)

	page, err := h.leaveSvc.ListLeaveRequests(h.ctx, app.LeaveFilter{DriverID: "d-1"}, app.PageRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 2)
	for _, l := range page.Items {
		assert.Equal(t, "d-1", l.DriverID)
	}

	page, err = h.leaveSvc.ListLeaveRequests(h.ctx, app.LeaveFilter{}, app.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, app.DefaultLimit, page.Limit)

	_, err = h.leaveSvc.ListLeaveRequests(h.ctx, app.LeaveFilter{Status: "archived"}, app.PageRequest{})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestEventSinkFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.sink.Err = errors.New("broker unreachable")

	leave := h.createLeave("d-1", leaveDay, leaveDay)
	assert.Equal(t, domain.LeavePending, h.leave(leave.ID).Status)
	assert.Len(t, h.sink.Events(), 1)
}
