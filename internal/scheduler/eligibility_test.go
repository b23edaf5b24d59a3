package scheduler

import (
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEligibleDrivers(t *testing.T) {
	expired := testDriver("d-expired", 6*60)
	expired.LicenseExpiry = monday.Add(7*time.Hour + 30*time.Minute)
	inactive := testDriver("d-inactive", 6*60)
	inactive.Active = false
	evening := testDriver("d-evening", 6*60)
	evening.WorkingHours = []domain.WorkingWindow{{Weekday: time.Monday, StartMinute: 16 * 60, EndMinute: 22 * 60}}

	drivers := []domain.Driver{
		testDriver("d-1", 6*60),
		testDriver("d-ok", 6*60),
		testDriver("d-leave", 6*60),
		expired, inactive, evening,
	}

	eligible, rejected := EligibleDrivers(drivers, EligibilityInput{
		Trip:               testTrip(),
		RequestingDriverID: "d-1",
		DriversOnLeave:     map[string]bool{"d-leave": true},
	})

	assert.Len(t, eligible, 1)
	assert.Equal(t, "d-ok", eligible[0].ID)

	reasons := map[string]string{}
	for _, r := range rejected {
		reasons[r.ID] = r.Reason
	}
	assert.Equal(t, "requesting driver", reasons["d-1"])
	assert.Equal(t, "on leave", reasons["d-leave"])
	assert.Equal(t, "inactive", reasons["d-inactive"])
	assert.Contains(t, reasons["d-expired"], "credentials")
	assert.Contains(t, reasons["d-evening"], "working hours")
}

func TestEligibleVehiclesAndCrossPairs(t *testing.T) {
	vehicles := []domain.Vehicle{
		{ID: "v-small", Capacity: 8, Active: true},
		{ID: "v-big", Capacity: 40, Active: true},
		{ID: "v-retired", Capacity: 40, Active: false},
	}
	eligible := EligibleVehicles(vehicles, 15)
	assert.Len(t, eligible, 1)

	pairs := CrossPairs([]domain.Driver{{ID: "d-a"}, {ID: "d-b"}}, eligible)
	assert.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Equal(t, "v-big", p.VehicleID)
		assert.True(t, p.IsAvailable)
	}
	assert.Empty(t, CrossPairs(nil, eligible))
}
