package domain

import "time"

// Read models supplied by external collaborators. They reference each
// other by id only.

// TripObligation is one driver's duty on one trip. The same obligation may
// be reported once per role.
type TripObligation struct {
	ObligationID     string
	TripID           string
	Role             string
	DriverID         string
	VehicleID        string
	RouteID          string
	RouteName        string
	Start            time.Time
	End              time.Time
	ActiveStudents   int
	RequiredCapacity int
}

func (o TripObligation) Window() Interval {
	return Interval{Start: o.Start, End: o.End}
}

// WorkingWindow is a weekly availability slot, in minutes since midnight UTC,
// half-open [StartMinute, EndMinute).
type WorkingWindow struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

type Driver struct {
	ID               string
	Name             string
	Active           bool
	LicenseExpiry    time.Time
	HealthCertExpiry *time.Time
	WorkingHours     []WorkingWindow
}

// CredentialExpiry is the earliest of the license and health certificate expiries.
func (d Driver) CredentialExpiry() time.Time {
	if d.HealthCertExpiry != nil && d.HealthCertExpiry.Before(d.LicenseExpiry) {
		return *d.HealthCertExpiry
	}
	return d.LicenseExpiry
}

// CoveringWindow returns the working window that contains iv with the widest
// margin. Trips spanning more than one calendar day are never covered.
func (d Driver) CoveringWindow(iv Interval) (WorkingWindow, bool) {
	start, end := iv.Start.UTC(), iv.End.UTC()
	day := TruncateToDate(start)
	startMin := int(start.Sub(day) / time.Minute)
	endMin := int(end.Sub(day) / time.Minute)
	if endMin > 24*60 || endMin < startMin {
		return WorkingWindow{}, false
	}

	var best WorkingWindow
	bestMargin := -1
	for _, w := range d.WorkingHours {
		if w.Weekday != start.Weekday() || w.StartMinute > startMin || w.EndMinute < endMin {
			continue
		}
		margin := min(startMin-w.StartMinute, w.EndMinute-endMin)
		if margin > bestMargin {
			best, bestMargin = w, margin
		}
	}
	return best, bestMargin >= 0
}

type Vehicle struct {
	ID       string
	Plate    string
	Capacity int
	Active   bool
}

// PerformanceRecord summarises a driver's trailing trip history.
type PerformanceRecord struct {
	DriverID string
	// RouteCompletionRates maps route id to the share of completed trips on
	// that route, in [0,1].
	RouteCompletionRates map[string]float64
	// OnTimeRate is nil when the driver has no history in the window.
	OnTimeRate     *float64
	CompletedTrips int
}
