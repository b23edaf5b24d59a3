package app

import (
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

type CreateLeaveInput struct {
	DriverID        string
	LeaveType       domain.LeaveType
	StartDate       time.Time
	EndDate         time.Time
	Reason          string
	AutoReplacement bool
}

// CreateLeaveResult carries the inline generation outcome when auto
// replacement ran synchronously. A generation error never fails creation.
type CreateLeaveResult struct {
	Leave           *domain.LeaveRequest
	Suggestions     *GenerateResult
	SuggestionError error
}

type ApproveLeaveInput struct {
	LeaveRequestID string
	AdminID        string
	Note           string
	EffectiveFrom  *time.Time
	EffectiveTo    *time.Time
}

type ApproveResult struct {
	Leave *domain.LeaveRequest
	// Activated conflicts had a pending replacement that is now active.
	Activated []domain.Conflict
	// Gaps are conflicts left without an accepted replacement.
	Gaps []domain.Conflict
	// Superseded conflicts fell outside a narrowed effective range.
	Superseded []domain.Conflict
}

type RejectLeaveInput struct {
	LeaveRequestID string
	AdminID        string
	Reason         string
}

type CancelLeaveInput struct {
	LeaveRequestID string
	Actor          domain.Actor
}

// TerminationResult reports the effect of a reject or cancel.
type TerminationResult struct {
	Leave      *domain.LeaveRequest
	Superseded []domain.Conflict
	Retracted  []string
}

type LeaveFilter struct {
	DriverID string
	Status   domain.LeaveStatus
	// From/To select requests whose date range overlaps [From, To].
	From *time.Time
	To   *time.Time
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into their accepted ranges.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < MinLimit {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

type LeavePage struct {
	Items []*domain.LeaveRequest
	Total int
	Page  int
	Limit int
}

// ConflictView is a conflict with its ranked suggestions.
type ConflictView struct {
	Conflict    domain.Conflict
	Suggestions []domain.CandidatePair
}

type GenerateResult struct {
	LeaveRequestID string
	Conflicts      []ConflictView
	// Superseded lists conflicts whose trips no longer fall in the leave window.
	Superseded  []string
	GeneratedAt time.Time
}

type AcceptSuggestionInput struct {
	ConflictID   string
	SuggestionID string
	AdminID      string
}

type AcceptResult struct {
	Conflict     domain.Conflict
	Suggestion   domain.CandidatePair
	AssignmentID string
}

type RejectSuggestionInput struct {
	ConflictID string
	AdminID    string
}
