package repository

import (
	"context"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// ErrNotFound is matched by every lookup miss in this package.
var ErrNotFound = domain.ErrNotFound

type LeaveRequestRepo interface {
	Create(ctx context.Context, l *domain.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*domain.LeaveRequest, error)
	// Update persists l when its Version still matches the stored row and
	// bumps Version. A mismatch yields domain.ErrConcurrentModification.
	Update(ctx context.Context, l *domain.LeaveRequest) error
	// FindOverlappingActive returns pending/approved requests of driverID whose
	// inclusive date range intersects [startDate, endDate].
	FindOverlappingActive(ctx context.Context, driverID string, startDate, endDate time.Time, excludeID string) ([]*domain.LeaveRequest, error)
	// DriversOnLeave returns drivers with a pending/approved request covering
	// any instant of window.
	DriversOnLeave(ctx context.Context, window domain.Interval) (map[string]bool, error)
	List(ctx context.Context, filter app.LeaveFilter, page app.PageRequest) ([]*domain.LeaveRequest, int, error)
	// ListAwaitingSuggestions returns auto-replacement requests not yet
	// processed: never-attempted ones first, then the least recently attempted.
	ListAwaitingSuggestions(ctx context.Context, limit int) ([]*domain.LeaveRequest, error)
	MarkSuggestionAttempt(ctx context.Context, id string, at time.Time) error
}

type ConflictRepo interface {
	Create(ctx context.Context, c *domain.Conflict) error
	GetByID(ctx context.Context, id string) (*domain.Conflict, error)
	// Update is version-checked like LeaveRequestRepo.Update.
	Update(ctx context.Context, c *domain.Conflict) error
	ListByLeave(ctx context.Context, leaveRequestID string, includeSuperseded bool) ([]*domain.Conflict, error)
}

type SuggestionRepo interface {
	// ReplaceForConflict drops the conflict's previous suggestions and stores pairs.
	ReplaceForConflict(ctx context.Context, conflictID string, pairs []domain.CandidatePair) error
	ListByConflict(ctx context.Context, conflictID string) ([]domain.CandidatePair, error)
	GetByID(ctx context.Context, id string) (*domain.CandidatePair, error)
}
