package domain

import (
	"strings"
	"time"
)

// NoReplacementReason is recorded on conflicts for which no candidate pair exists.
const NoReplacementReason = "no replacement available"

// Conflict is a scheduled trip obligation the driver on leave can no longer
// fulfil. Conflicts are never deleted.
type Conflict struct {
	ID             string
	LeaveRequestID string
	ObligationID   string
	TripID         string
	Role           string
	RouteID        string
	RouteName      string
	// OriginalVehicleID is the vehicle the obligation was planned on.
	OriginalVehicleID string
	TripStartTime     time.Time
	TripEndTime       time.Time
	AffectedStudents  int
	RequiredCapacity  int
	Severity          Severity

	State              ConflictState
	SuggestedDriverID  *string
	SuggestedVehicleID *string
	ReplacementScore   *float64
	ReplacementReason  string
	IsResolved         bool

	ReplacementStatus ReplacementStatus
	AssignmentID      *string
	ResolvedByAdminID string
	ResolvedAt        *time.Time

	DetectedAt time.Time
	UpdatedAt  time.Time
	Version    int
}

func (c *Conflict) Window() Interval {
	return Interval{Start: c.TripStartTime, End: c.TripEndTime}
}

func (c *Conflict) transition(to ConflictState, action string) error {
	if !CanTransitionConflict(c.State, to) {
		return &InvalidStateError{Entity: "conflict", ID: c.ID, Current: string(c.State), Action: action}
	}
	c.State = to
	return nil
}

// RefreshTrip copies the trip snapshot of a freshly detected conflict for the
// same obligation.
func (c *Conflict) RefreshTrip(detected Conflict) {
	c.TripID = detected.TripID
	c.Role = detected.Role
	c.RouteID = detected.RouteID
	c.RouteName = detected.RouteName
	c.OriginalVehicleID = detected.OriginalVehicleID
	c.TripStartTime = detected.TripStartTime
	c.TripEndTime = detected.TripEndTime
	c.AffectedStudents = detected.AffectedStudents
	c.RequiredCapacity = detected.RequiredCapacity
	c.Severity = detected.Severity
}

// ApplySuggestion records the best ranked pair, or marks the conflict as
// having no replacement when top is nil.
func (c *Conflict) ApplySuggestion(top *CandidatePair, now time.Time) error {
	if top == nil {
		if err := c.transition(ConflictUnresolved, "regenerate"); err != nil {
			return err
		}
		c.SuggestedDriverID = nil
		c.SuggestedVehicleID = nil
		c.ReplacementScore = nil
		c.ReplacementReason = NoReplacementReason
	} else {
		if err := c.transition(ConflictSuggested, "suggest"); err != nil {
			return err
		}
		driverID, vehicleID, score := top.DriverID, top.VehicleID, top.TotalScore
		c.SuggestedDriverID = &driverID
		c.SuggestedVehicleID = &vehicleID
		c.ReplacementScore = &score
		c.ReplacementReason = top.Reason
	}
	c.IsResolved = false
	c.ResolvedByAdminID = ""
	c.ResolvedAt = nil
	c.UpdatedAt = now.UTC()
	return nil
}

// Accept resolves the conflict with the given pair. The replacement is
// pending until the leave request itself is approved.
func (c *Conflict) Accept(pair CandidatePair, adminID, assignmentID string, leaveStatus LeaveStatus, now time.Time) error {
	if strings.TrimSpace(adminID) == "" {
		return &ValidationError{Field: "admin_id", Message: "is required"}
	}
	if err := c.transition(ConflictAccepted, "accept suggestion for"); err != nil {
		return err
	}
	at := now.UTC()
	driverID, vehicleID, score := pair.DriverID, pair.VehicleID, pair.TotalScore
	c.SuggestedDriverID = &driverID
	c.SuggestedVehicleID = &vehicleID
	c.ReplacementScore = &score
	c.ReplacementReason = pair.Reason
	c.IsResolved = true
	c.AssignmentID = &assignmentID
	c.ResolvedByAdminID = adminID
	c.ResolvedAt = &at
	c.ReplacementStatus = ReplacementPending
	if leaveStatus == LeaveApproved {
		c.ReplacementStatus = ReplacementActive
	}
	c.UpdatedAt = at
	return nil
}

func (c *Conflict) RejectSuggestion(adminID string, now time.Time) error {
	if strings.TrimSpace(adminID) == "" {
		return &ValidationError{Field: "admin_id", Message: "is required"}
	}
	if c.State != ConflictSuggested {
		return &InvalidStateError{Entity: "conflict", ID: c.ID, Current: string(c.State), Action: "reject suggestion for"}
	}
	if err := c.transition(ConflictRejected, "reject suggestion for"); err != nil {
		return err
	}
	at := now.UTC()
	c.IsResolved = false
	c.ResolvedByAdminID = adminID
	c.ResolvedAt = &at
	c.UpdatedAt = at
	return nil
}

// Supersede closes the conflict without a replacement. The caller is
// responsible for retracting AssignmentID first when it was materialised.
func (c *Conflict) Supersede(now time.Time) error {
	if err := c.transition(ConflictSuperseded, "supersede"); err != nil {
		return err
	}
	if c.ReplacementStatus.Materialised() {
		c.ReplacementStatus = ReplacementRetracted
	}
	c.IsResolved = false
	c.UpdatedAt = now.UTC()
	return nil
}

// ActivateReplacement turns a pending replacement into an active one.
func (c *Conflict) ActivateReplacement(now time.Time) bool {
	if c.State != ConflictAccepted || c.ReplacementStatus != ReplacementPending {
		return false
	}
	c.ReplacementStatus = ReplacementActive
	c.UpdatedAt = now.UTC()
	return true
}

// IsGap reports whether the conflict leaves the trip without an accepted replacement.
func (c *Conflict) IsGap() bool {
	return c.State != ConflictAccepted && c.State != ConflictSuperseded
}
