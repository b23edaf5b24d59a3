package service

import (
	"context"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

type LeaveService interface {
	CreateLeaveRequest(ctx context.Context, in app.CreateLeaveInput) (*app.CreateLeaveResult, error)
	ApproveLeaveRequest(ctx context.Context, in app.ApproveLeaveInput) (*app.ApproveResult, error)
	RejectLeaveRequest(ctx context.Context, in app.RejectLeaveInput) (*app.TerminationResult, error)
	CancelLeaveRequest(ctx context.Context, in app.CancelLeaveInput) (*app.TerminationResult, error)
	GetLeaveRequest(ctx context.Context, id string) (*domain.LeaveRequest, error)
	ListLeaveRequests(ctx context.Context, filter app.LeaveFilter, page app.PageRequest) (*app.LeavePage, error)
}

type SuggestionService interface {
	// GenerateSuggestions detects conflicts for the leave request and ranks
	// replacements for every conflict not yet accepted. Re-running it with
	// unchanged inputs yields the same suggestions.
	GenerateSuggestions(ctx context.Context, leaveRequestID string) (*app.GenerateResult, error)
	// ResumeSuggestions is the automatic variant used on creation and by the
	// worker. It never touches conflicts an admin has rejected.
	ResumeSuggestions(ctx context.Context, leaveRequestID string) (*app.GenerateResult, error)
	AcceptSuggestion(ctx context.Context, in app.AcceptSuggestionInput) (*app.AcceptResult, error)
	RejectSuggestion(ctx context.Context, in app.RejectSuggestionInput) (*domain.Conflict, error)
	ListConflicts(ctx context.Context, leaveRequestID string, includeSuperseded bool) ([]app.ConflictView, error)
}

// Waker is notified when new work is available for the suggestion worker.
type Waker interface {
	Wake()
}
