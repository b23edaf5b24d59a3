package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/google/uuid"
)

var tripCounter atomic.Int64

// Date returns the UTC instant y-m-d hh:mm.
func Date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// Leave options
type LeaveOption func(*domain.LeaveRequest)

func WithLeaveDates(start, end time.Time) LeaveOption {
	return func(l *domain.LeaveRequest) {
		l.StartDate = domain.TruncateToDate(start)
		l.EndDate = domain.TruncateToDate(end)
	}
}

func WithLeaveStatus(s domain.LeaveStatus) LeaveOption {
	return func(l *domain.LeaveRequest) {
		l.Status = s
	}
}

func WithLeaveType(t domain.LeaveType) LeaveOption {
	return func(l *domain.LeaveRequest) {
		l.LeaveType = t
	}
}

func WithAutoReplacement() LeaveOption {
	return func(l *domain.LeaveRequest) {
		l.AutoReplacementEnabled = true
	}
}

// NewTestLeave returns a pending one-day sick leave on Monday 2026-03-02.
func NewTestLeave(driverID string, opts ...LeaveOption) *domain.LeaveRequest {
	requested := Date(2026, time.February, 27, 9, 0)
	l := &domain.LeaveRequest{
		ID:          uuid.New().String(),
		DriverID:    driverID,
		LeaveType:   domain.LeaveSick,
		StartDate:   Date(2026, time.March, 2, 0, 0),
		EndDate:     Date(2026, time.March, 2, 0, 0),
		Status:      domain.LeavePending,
		RequestedAt: requested,
		UpdatedAt:   requested,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Driver options
type DriverOption func(*domain.Driver)

func WithLicenseExpiry(t time.Time) DriverOption {
	return func(d *domain.Driver) {
		d.LicenseExpiry = t
	}
}

func WithHealthCertExpiry(t time.Time) DriverOption {
	return func(d *domain.Driver) {
		d.HealthCertExpiry = &t
	}
}

func WithWorkingHours(ws ...domain.WorkingWindow) DriverOption {
	return func(d *domain.Driver) {
		d.WorkingHours = ws
	}
}

func InactiveDriver() DriverOption {
	return func(d *domain.Driver) {
		d.Active = false
	}
}

// Weekdays returns one window per working day, Monday to Friday.
func Weekdays(startMinute, endMinute int) []domain.WorkingWindow {
	out := make([]domain.WorkingWindow, 0, 5)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		out = append(out, domain.WorkingWindow{Weekday: wd, StartMinute: startMinute, EndMinute: endMinute})
	}
	return out
}

// NewTestDriver returns an active driver licensed until 2030 who works
// 06:00-20:00 on weekdays.
func NewTestDriver(id string, opts ...DriverOption) domain.Driver {
	d := domain.Driver{
		ID:            id,
		Name:          "Driver " + id,
		Active:        true,
		LicenseExpiry: Date(2030, time.January, 1, 0, 0),
		WorkingHours:  Weekdays(6*60, 20*60),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewTestVehicle(id string, capacity int) domain.Vehicle {
	return domain.Vehicle{ID: id, Plate: "PL-" + id, Capacity: capacity, Active: true}
}

// Obligation options
type ObligationOption func(*domain.TripObligation)

func WithRoute(id, name string) ObligationOption {
	return func(o *domain.TripObligation) {
		o.RouteID = id
		o.RouteName = name
	}
}

func WithStudents(n int) ObligationOption {
	return func(o *domain.TripObligation) {
		o.ActiveStudents = n
	}
}

func WithRequiredCapacity(n int) ObligationOption {
	return func(o *domain.TripObligation) {
		o.RequiredCapacity = n
	}
}

func WithObligationID(id string) ObligationOption {
	return func(o *domain.TripObligation) {
		o.ObligationID = id
	}
}

func WithRole(role string) ObligationOption {
	return func(o *domain.TripObligation) {
		o.Role = role
	}
}

// NewTestObligation returns a primary obligation of driverID on vehicleID
// lasting dur from start, for 20 students on route r-1.
func NewTestObligation(driverID, vehicleID string, start time.Time, dur time.Duration, opts ...ObligationOption) domain.TripObligation {
	n := tripCounter.Add(1)
	o := domain.TripObligation{
		ObligationID:     fmt.Sprintf("ob-%d", n),
		TripID:           fmt.Sprintf("trip-%d", n),
		Role:             "primary",
		DriverID:         driverID,
		VehicleID:        vehicleID,
		RouteID:          "r-1",
		RouteName:        "North Loop",
		Start:            start,
		End:              start.Add(dur),
		ActiveStudents:   20,
		RequiredCapacity: 20,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
