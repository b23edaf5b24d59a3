package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
)

type candidatePool struct {
	Drivers  []domain.Driver
	Vehicles []domain.Vehicle
	Rejected []scheduler.Rejection
}

func (p candidatePool) empty() bool {
	return len(p.Drivers) == 0 || len(p.Vehicles) == 0
}

type candidateFinder struct {
	drivers  app.DriverAvailability
	vehicles app.VehicleAvailability
	leaves   repository.LeaveRequestRepo
	timeout  time.Duration
}

// Find returns the drivers and vehicles free for the conflict's trip window.
func (f *candidateFinder) Find(ctx context.Context, c *domain.Conflict, requestingDriverID string) (candidatePool, error) {
	if f.drivers == nil || f.vehicles == nil {
		return candidatePool{}, fmt.Errorf("finding candidates: availability collaborators not configured")
	}
	w := c.Window()

	drivers, err := withTimeout(ctx, f.timeout, "driver availability",
		func(ctx context.Context) ([]domain.Driver, error) {
			return f.drivers.FindAvailable(ctx, w.Start, w.End, w.End)
		})
	if err != nil {
		return candidatePool{}, fmt.Errorf("finding drivers for trip %s: %w", c.TripID, err)
	}

	onLeave, err := f.leaves.DriversOnLeave(ctx, w)
	if err != nil {
		return candidatePool{}, fmt.Errorf("finding drivers on leave: %w", err)
	}

	eligible, rejected := scheduler.EligibleDrivers(drivers, scheduler.EligibilityInput{
		Trip:               w,
		RequestingDriverID: requestingDriverID,
		DriversOnLeave:     onLeave,
		RequiredCapacity:   c.RequiredCapacity,
	})

	vehicles, err := withTimeout(ctx, f.timeout, "vehicle availability",
		func(ctx context.Context) ([]domain.Vehicle, error) {
			return f.vehicles.FindAvailable(ctx, w.Start, w.End, c.RequiredCapacity)
		})
	if err != nil {
		return candidatePool{}, fmt.Errorf("finding vehicles for trip %s: %w", c.TripID, err)
	}

	return candidatePool{
		Drivers:  eligible,
		Vehicles: scheduler.EligibleVehicles(vehicles, c.RequiredCapacity),
		Rejected: rejected,
	}, nil
}

// Revalidate checks that pair is still a valid candidate for c. It returns
// a non-empty reason when it is not.
func (f *candidateFinder) Revalidate(ctx context.Context, c *domain.Conflict, requestingDriverID string, pair domain.CandidatePair) (string, error) {
	pool, err := f.Find(ctx, c, requestingDriverID)
	if err != nil {
		return "", err
	}
	driverOK := false
	for _, d := range pool.Drivers {
		if d.ID == pair.DriverID {
			driverOK = true
			break
		}
	}
	if !driverOK {
		for _, r := range pool.Rejected {
			if r.ID == pair.DriverID {
				return fmt.Sprintf("driver %s is no longer eligible: %s", pair.DriverID, r.Reason), nil
			}
		}
		return fmt.Sprintf("driver %s is no longer available in the trip window", pair.DriverID), nil
	}
	for _, v := range pool.Vehicles {
		if v.ID == pair.VehicleID {
			return "", nil
		}
	}
	return fmt.Sprintf("vehicle %s is no longer available in the trip window", pair.VehicleID), nil
}
