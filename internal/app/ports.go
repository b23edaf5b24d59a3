package app

import (
	"context"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

// TripObligationLookup resolves a driver's trip duties.
type TripObligationLookup interface {
	// FindOverlapping returns obligations of driverID whose [Start,End)
	// intersects [start,end).
	FindOverlapping(ctx context.Context, driverID string, start, end time.Time) ([]domain.TripObligation, error)
}

type DriverAvailability interface {
	// FindAvailable returns active drivers with no committed obligation in
	// [start,end) whose license is valid through minLicenseValidity.
	FindAvailable(ctx context.Context, start, end time.Time, minLicenseValidity time.Time) ([]domain.Driver, error)
}

type VehicleAvailability interface {
	// FindAvailable returns active vehicles with at least minCapacity seats
	// and no assignment overlapping [start,end).
	FindAvailable(ctx context.Context, start, end time.Time, minCapacity int) ([]domain.Vehicle, error)
}

// ReplacementRequest describes the assignment to create for an accepted conflict.
type ReplacementRequest struct {
	ConflictID   string
	ObligationID string
	TripID       string
	DriverID     string
	VehicleID    string
	Start        time.Time
	End          time.Time
}

// AssignmentWriter is the vehicle-assignment subsystem's write API.
type AssignmentWriter interface {
	CreateReplacement(ctx context.Context, req ReplacementRequest) (assignmentID string, err error)
	Retract(ctx context.Context, assignmentID string) error
}

type PerformanceHistory interface {
	// Get summarises driverID's completed trips since the given instant.
	Get(ctx context.Context, driverID string, since time.Time) (domain.PerformanceRecord, error)
}

// NotificationSink receives workflow events. Delivery failures never roll
// back the operation that produced the event.
type NotificationSink interface {
	Publish(ctx context.Context, event Event) error
}

// Collaborators bundles the external ports the engine consumes.
type Collaborators struct {
	Trips       TripObligationLookup
	Drivers     DriverAvailability
	Vehicles    VehicleAvailability
	Assignments AssignmentWriter
	Performance PerformanceHistory
}
