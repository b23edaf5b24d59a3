package domain

import (
	"fmt"
	"strings"
	"time"
)

// LeaveRequest is a driver's declared unavailability over an inclusive
// calendar range. Requests are never deleted, only status-terminated.
type LeaveRequest struct {
	ID          string
	DriverID    string
	LeaveType   LeaveType
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	Status      LeaveStatus
	RequestedAt time.Time

	ApprovedByAdminID string
	ApprovedAt        *time.Time
	ApprovalNote      string
	RejectedByAdminID string
	RejectedAt        *time.Time
	RejectionReason   string
	CancelledBy       string
	CancelledAt       *time.Time

	AutoReplacementEnabled        bool
	SuggestedReplacementDriverID  *string
	SuggestedReplacementVehicleID *string
	SuggestionGeneratedAt         *time.Time

	// Version is the optimistic row token, bumped on every persisted update.
	Version   int
	UpdatedAt time.Time
}

// Actor identifies who performs a cancellation. Exactly one field is set.
type Actor struct {
	DriverID string
	AdminID  string
}

func (a Actor) Validate() error {
	if (a.DriverID == "") == (a.AdminID == "") {
		return &ValidationError{Field: "actor", Message: "exactly one of driver id or admin id is required"}
	}
	return nil
}

func (a Actor) String() string {
	if a.AdminID != "" {
		return "admin:" + a.AdminID
	}
	return "driver:" + a.DriverID
}

// NewLeaveRequest validates input and returns a Pending request.
func NewLeaveRequest(id, driverID string, leaveType LeaveType, start, end time.Time, reason string, autoReplacement bool, now time.Time) (*LeaveRequest, error) {
	if strings.TrimSpace(driverID) == "" {
		return nil, &ValidationError{Field: "driver_id", Message: "is required"}
	}
	if !ValidLeaveTypes[leaveType] {
		return nil, &ValidationError{Field: "leave_type", Message: fmt.Sprintf("unknown leave type %q", leaveType)}
	}
	start, end = TruncateToDate(start), TruncateToDate(end)
	if start.After(end) {
		return nil, &ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("start %s is after end %s", start.Format(DateLayout), end.Format(DateLayout)),
		}
	}
	return &LeaveRequest{
		ID:                     id,
		DriverID:               driverID,
		LeaveType:              leaveType,
		StartDate:              start,
		EndDate:                end,
		Reason:                 reason,
		Status:                 LeavePending,
		RequestedAt:            now.UTC(),
		AutoReplacementEnabled: autoReplacement,
		Version:                1,
		UpdatedAt:              now.UTC(),
	}, nil
}

// Window returns the half-open instant interval covered by the request.
func (l *LeaveRequest) Window() Interval {
	return DateSpan(l.StartDate, l.EndDate)
}

func (l *LeaveRequest) IsTerminal() bool {
	return l.Status.Terminal()
}

func (l *LeaveRequest) transition(to LeaveStatus, action string) error {
	if !CanTransitionLeave(l.Status, to) {
		return &InvalidStateError{Entity: "leave request", ID: l.ID, Current: string(l.Status), Action: action}
	}
	l.Status = to
	return nil
}

// Approve moves a Pending request to Approved. A non-nil effective bound
// narrows the range; it must fall inside the requested range.
func (l *LeaveRequest) Approve(adminID, note string, effectiveFrom, effectiveTo *time.Time, now time.Time) error {
	if strings.TrimSpace(adminID) == "" {
		return &ValidationError{Field: "admin_id", Message: "is required"}
	}
	if !CanTransitionLeave(l.Status, LeaveApproved) {
		return &InvalidStateError{Entity: "leave request", ID: l.ID, Current: string(l.Status), Action: "approve"}
	}
	from, to := l.StartDate, l.EndDate
	if effectiveFrom != nil {
		from = TruncateToDate(*effectiveFrom)
	}
	if effectiveTo != nil {
		to = TruncateToDate(*effectiveTo)
	}
	if from.After(to) {
		return &ValidationError{Field: "effective_from", Message: "effective range start is after its end"}
	}
	if from.Before(l.StartDate) || to.After(l.EndDate) {
		return &ValidationError{
			Field: "effective_range",
			Message: fmt.Sprintf("effective range %s..%s must lie within %s..%s",
				from.Format(DateLayout), to.Format(DateLayout), l.StartDate.Format(DateLayout), l.EndDate.Format(DateLayout)),
		}
	}
	if err := l.transition(LeaveApproved, "approve"); err != nil {
		return err
	}
	at := now.UTC()
	l.StartDate, l.EndDate = from, to
	l.ApprovedByAdminID = adminID
	l.ApprovedAt = &at
	l.ApprovalNote = note
	l.UpdatedAt = at
	return nil
}

func (l *LeaveRequest) Reject(adminID, reason string, now time.Time) error {
	if strings.TrimSpace(adminID) == "" {
		return &ValidationError{Field: "admin_id", Message: "is required"}
	}
	if err := l.transition(LeaveRejected, "reject"); err != nil {
		return err
	}
	at := now.UTC()
	l.RejectedByAdminID = adminID
	l.RejectedAt = &at
	l.RejectionReason = reason
	l.ClearReplacement()
	l.UpdatedAt = at
	return nil
}

// Cancel terminates a non-terminal request. Drivers may cancel only their
// own requests; admins may cancel any.
func (l *LeaveRequest) Cancel(actor Actor, now time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if actor.DriverID != "" && actor.DriverID != l.DriverID {
		return &ValidationError{Field: "driver_id", Message: fmt.Sprintf("driver %s cannot cancel a request owned by %s", actor.DriverID, l.DriverID)}
	}
	if err := l.transition(LeaveCancelled, "cancel"); err != nil {
		return err
	}
	at := now.UTC()
	l.CancelledBy = actor.String()
	l.CancelledAt = &at
	l.ClearReplacement()
	l.UpdatedAt = at
	return nil
}

// RecordReplacement stores the most recently accepted replacement pair.
func (l *LeaveRequest) RecordReplacement(driverID, vehicleID string, now time.Time) {
	l.SuggestedReplacementDriverID = &driverID
	l.SuggestedReplacementVehicleID = &vehicleID
	l.UpdatedAt = now.UTC()
}

func (l *LeaveRequest) ClearReplacement() {
	l.SuggestedReplacementDriverID = nil
	l.SuggestedReplacementVehicleID = nil
}

func (l *LeaveRequest) MarkSuggestionsGenerated(now time.Time) {
	at := now.UTC()
	l.SuggestionGeneratedAt = &at
	l.UpdatedAt = at
}
