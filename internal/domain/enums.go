package domain

import "fmt"

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

func (s LeaveStatus) Valid() bool {
	switch s {
	case LeavePending, LeaveApproved, LeaveRejected, LeaveCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveRejected || s == LeaveCancelled
}

// Active reports whether the request still blocks overlapping requests.
func (s LeaveStatus) Active() bool {
	return s == LeavePending || s == LeaveApproved
}

type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveVacation  LeaveType = "vacation"
	LeaveEmergency LeaveType = "emergency"
	LeavePersonal  LeaveType = "personal"
	LeaveTraining  LeaveType = "training"
	LeaveOther     LeaveType = "other"
)

// ValidLeaveTypes is the canonical set of accepted leave type strings.
var ValidLeaveTypes = map[LeaveType]bool{
	LeaveSick: true, LeaveVacation: true, LeaveEmergency: true,
	LeavePersonal: true, LeaveTraining: true, LeaveOther: true,
}

// Severity is ordered: a higher value is more disruptive.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Escalate raises the severity one level, capped at critical.
func (s Severity) Escalate() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, &ValidationError{Field: "severity", Message: fmt.Sprintf("unknown severity %q", s)}
}

type ConflictState string

const (
	ConflictUnresolved ConflictState = "unresolved"
	ConflictSuggested  ConflictState = "suggested"
	ConflictAccepted   ConflictState = "accepted"
	ConflictRejected   ConflictState = "rejected"
	ConflictSuperseded ConflictState = "superseded"
)

func (s ConflictState) Valid() bool {
	switch s {
	case ConflictUnresolved, ConflictSuggested, ConflictAccepted, ConflictRejected, ConflictSuperseded:
		return true
	}
	return false
}

// Regenerable reports whether an admin-requested regeneration may replace
// this conflict's suggestions. Automatic runs also skip rejected conflicts.
func (s ConflictState) Regenerable() bool {
	return s == ConflictUnresolved || s == ConflictSuggested || s == ConflictRejected
}

// ReplacementStatus tracks the materialised assignment behind an accepted conflict.
type ReplacementStatus string

const (
	ReplacementNone      ReplacementStatus = "none"
	ReplacementPending   ReplacementStatus = "pending"
	ReplacementActive    ReplacementStatus = "active"
	ReplacementRetracted ReplacementStatus = "retracted"
)

// Materialised reports whether an assignment exists in the assignment subsystem.
func (s ReplacementStatus) Materialised() bool {
	return s == ReplacementPending || s == ReplacementActive
}
