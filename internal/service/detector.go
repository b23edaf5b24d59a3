package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
)

type conflictDetector struct {
	trips   app.TripObligationLookup
	bands   scheduler.SeverityBands
	timeout time.Duration
}

// Detect returns the unpersisted conflicts of leave, ordered by trip start.
// A lookup timeout fails the whole detection.
func (d *conflictDetector) Detect(ctx context.Context, leave *domain.LeaveRequest, now time.Time) ([]domain.Conflict, error) {
	if d.trips == nil {
		return nil, fmt.Errorf("detecting conflicts: no trip obligation lookup configured")
	}
	w := leave.Window()
	obligations, err := withTimeout(ctx, d.timeout, "trip obligation lookup",
		func(ctx context.Context) ([]domain.TripObligation, error) {
			return d.trips.FindOverlapping(ctx, leave.DriverID, w.Start, w.End)
		})
	if err != nil {
		return nil, fmt.Errorf("detecting conflicts for leave request %s: %w", leave.ID, err)
	}
	return scheduler.BuildConflicts(leave, obligations, d.bands, now), nil
}
