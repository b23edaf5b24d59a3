package scheduler

import (
	"github.com/fleetdesk/leaveguard/internal/domain"
)

type EligibilityInput struct {
	Trip               domain.Interval
	RequestingDriverID string
	// DriversOnLeave holds drivers with a non-terminal leave overlapping the trip.
	DriversOnLeave   map[string]bool
	RequiredCapacity int
}

type Rejection struct {
	ID     string
	Reason string
}

// EligibleDrivers filters the availability pool down to drivers that may
// take the trip: active, not the requester, not on leave, credentials valid
// through the trip end and working hours covering the trip.
func EligibleDrivers(drivers []domain.Driver, in EligibilityInput) ([]domain.Driver, []Rejection) {
	var eligible []domain.Driver
	var rejected []Rejection
	for _, d := range drivers {
		switch {
		case !d.Active:
			rejected = append(rejected, Rejection{ID: d.ID, Reason: "inactive"})
		case d.ID == in.RequestingDriverID:
			rejected = append(rejected, Rejection{ID: d.ID, Reason: "requesting driver"})
		case in.DriversOnLeave[d.ID]:
			rejected = append(rejected, Rejection{ID: d.ID, Reason: "on leave"})
		case !d.CredentialExpiry().After(in.Trip.End):
			rejected = append(rejected, Rejection{ID: d.ID, Reason: "credentials expire before trip end"})
		default:
			if _, ok := d.CoveringWindow(in.Trip); !ok {
				rejected = append(rejected, Rejection{ID: d.ID, Reason: "working hours do not cover trip"})
				continue
			}
			eligible = append(eligible, d)
		}
	}
	return eligible, rejected
}

func EligibleVehicles(vehicles []domain.Vehicle, minCapacity int) []domain.Vehicle {
	var eligible []domain.Vehicle
	for _, v := range vehicles {
		if v.Active && v.Capacity >= minCapacity {
			eligible = append(eligible, v)
		}
	}
	return eligible
}

// CrossPairs is the cartesian product of eligible drivers and vehicles.
func CrossPairs(drivers []domain.Driver, vehicles []domain.Vehicle) []domain.CandidatePair {
	pairs := make([]domain.CandidatePair, 0, len(drivers)*len(vehicles))
	for _, d := range drivers {
		for _, v := range vehicles {
			pairs = append(pairs, domain.CandidatePair{DriverID: d.ID, VehicleID: v.ID, IsAvailable: true})
		}
	}
	return pairs
}
