package service

import (
	"context"
	"fmt"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// core is the state shared by the leave and suggestion services.
type core struct {
	Deps
	settings Settings
	detector *conflictDetector
	finder   *candidateFinder
}

func newCore(deps Deps, settings Settings) (*core, error) {
	deps = deps.withDefaults()
	settings = settings.withDefaults()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &core{
		Deps:     deps,
		settings: settings,
		detector: &conflictDetector{
			trips:   deps.Fleet.Trips,
			bands:   settings.Bands,
			timeout: settings.LookupTimeout,
		},
		finder: &candidateFinder{
			drivers:  deps.Fleet.Drivers,
			vehicles: deps.Fleet.Vehicles,
			leaves:   deps.Leaves,
			timeout:  settings.LookupTimeout,
		},
	}, nil
}

// New builds both services over one shared core. Settings that fail
// Validate after defaulting are rejected.
func New(deps Deps, settings Settings, opts ...LeaveOption) (LeaveService, SuggestionService, error) {
	c, err := newCore(deps, settings)
	if err != nil {
		return nil, nil, err
	}
	suggestions := &suggestionService{core: c}
	leaves := &leaveService{core: c, suggestions: suggestions}
	for _, opt := range opts {
		opt(leaves)
	}
	return leaves, suggestions, nil
}

// retractAssignments retracts every materialised replacement of conflicts
// through the assignment collaborator. Retraction is idempotent, so a
// failed operation can be retried as a whole.
func (c *core) retractAssignments(ctx context.Context, conflicts []*domain.Conflict) ([]string, error) {
	var retracted []string
	for _, cf := range conflicts {
		if !cf.ReplacementStatus.Materialised() || cf.AssignmentID == nil {
			continue
		}
		if c.Fleet.Assignments == nil {
			return retracted, fmt.Errorf("retracting assignment %s: no assignment writer configured", *cf.AssignmentID)
		}
		id := *cf.AssignmentID
		_, err := withTimeout(ctx, c.settings.LookupTimeout, "assignment writer",
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, c.Fleet.Assignments.Retract(ctx, id)
			})
		if err != nil {
			return retracted, fmt.Errorf("retracting assignment %s of conflict %s: %w", id, cf.ID, err)
		}
		retracted = append(retracted, id)
	}
	return retracted, nil
}

func (c *core) conflictViews(ctx context.Context, leaveRequestID string, includeSuperseded bool) ([]app.ConflictView, error) {
	conflicts, err := c.Conflicts.ListByLeave(ctx, leaveRequestID, includeSuperseded)
	if err != nil {
		return nil, err
	}
	views := make([]app.ConflictView, 0, len(conflicts))
	for _, cf := range conflicts {
		suggestions, err := c.Suggestions.ListByConflict(ctx, cf.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, app.ConflictView{Conflict: *cf, Suggestions: suggestions})
	}
	return views, nil
}

func conflictIDs(conflicts []domain.Conflict) []string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	return ids
}
