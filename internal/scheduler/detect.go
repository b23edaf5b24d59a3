package scheduler

import (
	"sort"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

// BuildConflicts turns the obligations reported for a leave request into
// unpersisted conflicts. Obligations outside the leave window or owned by
// another driver are ignored, duplicates (one per role) collapse to a single
// conflict per obligation id, and the result is ordered by trip start.
func BuildConflicts(leave *domain.LeaveRequest, obligations []domain.TripObligation, bands SeverityBands, now time.Time) []domain.Conflict {
	window := leave.Window()

	relevant := make([]domain.TripObligation, 0, len(obligations))
	for _, o := range obligations {
		if o.DriverID != "" && o.DriverID != leave.DriverID {
			continue
		}
		if !window.Overlaps(o.Window()) {
			continue
		}
		relevant = append(relevant, o)
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		a, b := relevant[i], relevant[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.ObligationID != b.ObligationID {
			return a.ObligationID < b.ObligationID
		}
		return a.Role < b.Role
	})

	seen := make(map[string]bool, len(relevant))
	conflicts := make([]domain.Conflict, 0, len(relevant))
	for _, o := range relevant {
		key := o.ObligationID
		if key == "" {
			key = o.TripID
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		sev := ClassifySeverity(SeverityInput{
			AffectedStudents: o.ActiveStudents,
			TripStart:        o.Start,
			RequestedAt:      leave.RequestedAt,
		}, bands)

		conflicts = append(conflicts, domain.Conflict{
			LeaveRequestID:    leave.ID,
			ObligationID:      key,
			TripID:            o.TripID,
			Role:              o.Role,
			RouteID:           o.RouteID,
			RouteName:         o.RouteName,
			OriginalVehicleID: o.VehicleID,
			TripStartTime:     o.Start.UTC(),
			TripEndTime:       o.End.UTC(),
			AffectedStudents:  o.ActiveStudents,
			RequiredCapacity:  max(o.RequiredCapacity, o.ActiveStudents),
			Severity:          sev.Level,
			State:             domain.ConflictUnresolved,
			ReplacementStatus: domain.ReplacementNone,
			DetectedAt:        now.UTC(),
			UpdatedAt:         now.UTC(),
		})
	}
	return conflicts
}
