package scheduler

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaveOn(t *testing.T, driverID string, start, end time.Time, requestedAt time.Time) *domain.LeaveRequest {
	t.Helper()
	l, err := domain.NewLeaveRequest("lr-1", driverID, domain.LeaveVacation, start, end, "", true, requestedAt)
	require.NoError(t, err)
	return l
}

func TestBuildConflicts_ScenarioA(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	requested := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	leave := leaveOn(t, "d-1", day, day, requested)

	conflicts := BuildConflicts(leave, []domain.TripObligation{{
		ObligationID:   "ob-1",
		TripID:         "trip-1",
		DriverID:       "d-1",
		RouteID:        "r-1",
		RouteName:      "R1",
		Start:          day.Add(7 * time.Hour),
		End:            day.Add(8 * time.Hour),
		ActiveStudents: 15,
	}}, DefaultSeverityBands(), requested)

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, 15, c.AffectedStudents)
	assert.Equal(t, domain.SeverityHigh, c.Severity)
	assert.Equal(t, "R1", c.RouteName)
	assert.Equal(t, domain.ConflictUnresolved, c.State)
	assert.False(t, c.IsResolved)
	assert.Equal(t, 15, c.RequiredCapacity)
}

func TestBuildConflicts_ScenarioB_NoTrips(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	leave := leaveOn(t, "d-1", day, day, day.AddDate(0, 0, -5))

	assert.Empty(t, BuildConflicts(leave, nil, DefaultSeverityBands(), day))
}

func TestBuildConflicts_DedupByObligationAndFilter(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	leave := leaveOn(t, "d-1", day, day, day.AddDate(0, 0, -5))

	obligations := []domain.TripObligation{
		{ObligationID: "ob-2", Role: "primary", DriverID: "d-1", Start: day.Add(15 * time.Hour), End: day.Add(16 * time.Hour)},
		{ObligationID: "ob-1", Role: "secondary", DriverID: "d-1", Start: day.Add(7 * time.Hour), End: day.Add(8 * time.Hour)},
		{ObligationID: "ob-1", Role: "primary", DriverID: "d-1", Start: day.Add(7 * time.Hour), End: day.Add(8 * time.Hour)},
		{ObligationID: "ob-3", DriverID: "d-1", Start: day.AddDate(0, 0, 1), End: day.AddDate(0, 0, 1).Add(time.Hour)},
		{ObligationID: "ob-4", DriverID: "d-9", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
	}

	conflicts := BuildConflicts(leave, obligations, DefaultSeverityBands(), day)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "ob-1", conflicts[0].ObligationID)
	assert.Equal(t, "primary", conflicts[0].Role, "lowest role name wins deterministically")
	assert.Equal(t, "ob-2", conflicts[1].ObligationID)
}

func TestBuildConflicts_PropertySortedAndUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)
	leave := leaveOn(t, "d-1", start, end, start.AddDate(0, 0, -10))

	for iter := 0; iter < 50; iter++ {
		var obligations []domain.TripObligation
		for i := 0; i < 30; i++ {
			s := start.Add(time.Duration(rng.Intn(6*24)) * time.Hour)
			obligations = append(obligations, domain.TripObligation{
				ObligationID:   fmt.Sprintf("ob-%d", rng.Intn(15)),
				DriverID:       "d-1",
				Start:          s,
				End:            s.Add(time.Hour),
				ActiveStudents: rng.Intn(50),
			})
		}
		rng.Shuffle(len(obligations), func(i, j int) { obligations[i], obligations[j] = obligations[j], obligations[i] })

		conflicts := BuildConflicts(leave, obligations, DefaultSeverityBands(), start)
		seen := map[string]bool{}
		for i, c := range conflicts {
			assert.False(t, seen[c.ObligationID], "duplicate obligation %s", c.ObligationID)
			seen[c.ObligationID] = true
			assert.True(t, leave.Window().Overlaps(c.Window()))
			if i > 0 {
				assert.False(t, c.TripStartTime.Before(conflicts[i-1].TripStartTime), "conflicts must be sorted by trip start")
			}
		}

		again := BuildConflicts(leave, obligations, DefaultSeverityBands(), start)
		assert.Equal(t, conflicts, again, "detection must be deterministic")
	}
}
