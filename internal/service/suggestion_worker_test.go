package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionWorker_RunWakesOnDemand(t *testing.T) {
	h := newHarness(t, withSettings(func(s *Settings) { s.AsyncGeneration = true }))
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)

	worker := NewSuggestionWorker(h.leaves, h.suggestSvc, time.Hour, 0, nil)
	leaves, _ := h.services(testutil.NewTestUoW(h.db), WithWaker(worker))

	ctx, cancel := context.WithCancel(h.ctx)
	stopped := make(chan error, 1)
	go func() { stopped <- worker.Run(ctx) }()

	res, err := leaves.CreateLeaveRequest(h.ctx, app.CreateLeaveInput{
		DriverID: "d-1", LeaveType: domain.LeaveSick, StartDate: leaveDay, EndDate: leaveDay, AutoReplacement: true,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		l, err := h.leaves.GetByID(h.ctx, res.Leave.ID)
		return err == nil && l.SuggestionGeneratedAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSuggestionWorker_WakeNeverBlocks(t *testing.T) {
	worker := NewSuggestionWorker(nil, nil, 0, 0, nil)
	for i := 0; i < 5; i++ {
		worker.Wake()
	}
	assert.Len(t, worker.wake, 1)
	assert.Equal(t, DefaultPollInterval, worker.interval)
	assert.Equal(t, DefaultBatchSize, worker.batch)
}

func TestSuggestionWorker_PartialFailureStaysQueued(t *testing.T) {
	h := newHarness(t, withCollaborators(func(c app.Collaborators) app.Collaborators {
		c.Vehicles = &testutil.FailingVehicles{VehicleAvailability: c.Vehicles}
		return c
	}))
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	leave := testutil.NewTestLeave("d-1", testutil.WithAutoReplacement())
	require.NoError(t, h.leaves.Create(h.ctx, leave))

	worker := NewSuggestionWorker(h.leaves, h.suggestSvc, time.Minute, 5, nil)
	done, err := worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	pending, err := h.leaves.ListAwaitingSuggestions(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, leave.ID, pending[0].ID)
}

func TestSuggestionWorker_LeavesRejectedConflictsAlone(t *testing.T) {
	var failAfternoon atomic.Bool
	failAfternoon.Store(true)
	h := newHarness(t, withCollaborators(func(c app.Collaborators) app.Collaborators {
		c.Vehicles = &testutil.FailingVehicles{
			VehicleAvailability: c.Vehicles,
			Fail: func(start, _ time.Time) bool {
				return failAfternoon.Load() && start.Hour() >= 12
			},
		}
		return c
	}))
	h.seedFleet()
	h.seedTrip("d-1", "v-1", leaveDay)
	afternoon := testutil.NewTestObligation("d-1", "v-1", leaveDay.Add(15*time.Hour), time.Hour)
	require.NoError(t, h.fleet.UpsertObligation(h.ctx, afternoon))
	leave := testutil.NewTestLeave("d-1", testutil.WithAutoReplacement())
	require.NoError(t, h.leaves.Create(h.ctx, leave))

	worker := NewSuggestionWorker(h.leaves, h.suggestSvc, time.Minute, 5, nil)
	done, err := worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	views, err := h.suggestSvc.ListConflicts(h.ctx, leave.ID, false)
	require.NoError(t, err)
	require.Len(t, views, 2)
	morning := views[0].Conflict
	require.Equal(t, domain.ConflictSuggested, morning.State)
	_, err = h.suggestSvc.RejectSuggestion(h.ctx, app.RejectSuggestionInput{ConflictID: morning.ID, AdminID: "admin-2"})
	require.NoError(t, err)

	failAfternoon.Store(false)
	done, err = worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	kept := h.conflict(morning.ID)
	assert.Equal(t, domain.ConflictRejected, kept.State, "the worker must not re-suggest a rejected conflict")
	assert.Equal(t, "admin-2", kept.ResolvedByAdminID)
	assert.Equal(t, domain.ConflictSuggested, h.conflict(views[1].Conflict.ID).State)
	assert.NotNil(t, h.leave(leave.ID).SuggestionGeneratedAt)

	// An explicit admin request still regenerates it.
	res := h.generate(leave.ID)
	require.Len(t, res.Conflicts, 2)
	assert.Equal(t, domain.ConflictSuggested, res.Conflicts[0].Conflict.State)
}

func TestSuggestionWorker_FailingRequestsDoNotStarveNewer(t *testing.T) {
	h := newHarness(t, withCollaborators(func(c app.Collaborators) app.Collaborators {
		c.Vehicles = &testutil.FailingVehicles{
			VehicleAvailability: c.Vehicles,
			Fail:                func(start, _ time.Time) bool { return start.Hour() >= 12 },
		}
		return c
	}))
	h.seedFleet()
	afternoon := testutil.NewTestObligation("d-1", "v-1", leaveDay.Add(15*time.Hour), time.Hour)
	require.NoError(t, h.fleet.UpsertObligation(h.ctx, afternoon))
	h.seedTrip("d-3", "v-3", tuesday)

	stuck := testutil.NewTestLeave("d-1", testutil.WithAutoReplacement())
	require.NoError(t, h.leaves.Create(h.ctx, stuck))
	newer := testutil.NewTestLeave("d-3", testutil.WithLeaveDates(tuesday, tuesday), testutil.WithAutoReplacement())
	newer.RequestedAt = stuck.RequestedAt.Add(time.Hour)
	require.NoError(t, h.leaves.Create(h.ctx, newer))

	worker := NewSuggestionWorker(h.leaves, h.suggestSvc, time.Minute, 1, nil, WithWorkerClock(h.clock))
	done, err := worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Nil(t, h.leave(stuck.ID).SuggestionGeneratedAt)

	h.clock.Advance(time.Minute)
	done, err = worker.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.NotNil(t, h.leave(newer.ID).SuggestionGeneratedAt)

	pending, err := h.leaves.ListAwaitingSuggestions(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stuck.ID, pending[0].ID)
}
