package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
	"github.com/google/uuid"
)

type suggestionService struct {
	*core
}

// NewSuggestionService builds a standalone suggestion service. Use New when
// a leave service must share its locks.
func NewSuggestionService(deps Deps, settings Settings) (SuggestionService, error) {
	c, err := newCore(deps, settings)
	if err != nil {
		return nil, err
	}
	return &suggestionService{core: c}, nil
}

type conflictPlan struct {
	conflict *domain.Conflict
	isNew    bool
	pairs    []domain.CandidatePair
	failed   bool
}

func (s *suggestionService) GenerateSuggestions(ctx context.Context, leaveRequestID string) (*app.GenerateResult, error) {
	return s.generate(ctx, "generate_suggestions", leaveRequestID, true)
}

func (s *suggestionService) ResumeSuggestions(ctx context.Context, leaveRequestID string) (*app.GenerateResult, error) {
	return s.generate(ctx, "resume_suggestions", leaveRequestID, false)
}

func (s *suggestionService) generate(ctx context.Context, useCase, leaveRequestID string, includeRejected bool) (res *app.GenerateResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"leave_request_id": leaveRequestID}
	defer observe(ctx, s.Observer, useCase, startedAt, fields, &err)

	unlock := s.Locks.LockAll(leaveKey(leaveRequestID))
	defer unlock()

	res, err = s.generateLocked(ctx, leaveRequestID, includeRejected)
	if res != nil {
		fields["conflicts"] = len(res.Conflicts)
		fields["superseded"] = len(res.Superseded)
	}
	return res, err
}

func (s *suggestionService) generateLocked(ctx context.Context, leaveRequestID string, includeRejected bool) (*app.GenerateResult, error) {
	leave, err := s.Leaves.GetByID(ctx, leaveRequestID)
	if err != nil {
		return nil, err
	}
	if leave.IsTerminal() {
		return nil, &domain.InvalidStateError{
			Entity: "leave request", ID: leave.ID, Current: string(leave.Status), Action: "generate suggestions for",
		}
	}
	now := s.Clock.Now()

	detected, err := s.detector.Detect(ctx, leave, now)
	if err != nil {
		return nil, err
	}
	existing, err := s.Conflicts.ListByLeave(ctx, leave.ID, false)
	if err != nil {
		return nil, err
	}

	byObligation := make(map[string]*domain.Conflict, len(existing))
	for _, c := range existing {
		byObligation[c.ObligationID] = c
	}

	var plans []*conflictPlan
	stillDetected := make(map[string]bool, len(detected))
	for i := range detected {
		d := detected[i]
		stillDetected[d.ObligationID] = true
		if c, ok := byObligation[d.ObligationID]; ok {
			// Accepted conflicts are frozen; rejected ones wait for an admin.
			if !c.State.Regenerable() || (c.State == domain.ConflictRejected && !includeRejected) {
				continue
			}
			c.RefreshTrip(d)
			plans = append(plans, &conflictPlan{conflict: c})
			continue
		}
		d.ID = uuid.New().String()
		plans = append(plans, &conflictPlan{conflict: &d, isNew: true})
	}

	var failures []domain.ConflictFailure
	var vanished []*domain.Conflict
	var retracted []string
	for _, c := range existing {
		if stillDetected[c.ObligationID] {
			continue
		}
		ids, err := s.retractAssignments(ctx, []*domain.Conflict{c})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			failures = append(failures, domain.ConflictFailure{ConflictID: c.ID, TripID: c.TripID, Err: err})
			continue
		}
		retracted = append(retracted, ids...)
		vanished = append(vanished, c)
	}

	ranker := newCandidateRanker(s.Fleet.Performance, s.settings, now)
	for _, p := range plans {
		scored, err := s.rankFor(ctx, ranker, p.conflict, leave.DriverID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			p.failed = true
			failures = append(failures, domain.ConflictFailure{ConflictID: p.conflict.ID, TripID: p.conflict.TripID, Err: err})
			s.Log.Warnw("candidate search failed", map[string]any{
				"leave_request_id": leave.ID,
				"conflict_id":      p.conflict.ID,
				"error":            err.Error(),
			})
			continue
		}
		p.pairs = suggestionsFrom(p.conflict.ID, scored, now)
	}

	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeaves := repository.NewSQLiteLeaveRequestRepo(tx)
		txConflicts := repository.NewSQLiteConflictRepo(tx)
		txSuggestions := repository.NewSQLiteSuggestionRepo(tx)

		for _, c := range vanished {
			if err := c.Supersede(now); err != nil {
				return err
			}
			if err := txConflicts.Update(ctx, c); err != nil {
				return err
			}
			if err := txSuggestions.ReplaceForConflict(ctx, c.ID, nil); err != nil {
				return err
			}
		}

		for _, p := range plans {
			c := p.conflict
			if !p.failed {
				var top *domain.CandidatePair
				if len(p.pairs) > 0 {
					top = &p.pairs[0]
				}
				if err := c.ApplySuggestion(top, now); err != nil {
					return err
				}
			}
			if p.isNew {
				if err := txConflicts.Create(ctx, c); err != nil {
					return err
				}
			} else if err := txConflicts.Update(ctx, c); err != nil {
				return err
			}
			if !p.failed {
				if err := txSuggestions.ReplaceForConflict(ctx, c.ID, p.pairs); err != nil {
					return err
				}
			}
		}

		// Leave the request unmarked on partial failure so the worker retries it.
		if len(failures) == 0 {
			leave.MarkSuggestionsGenerated(now)
			if err := txLeaves.Update(ctx, leave); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persisting suggestions for leave request %s: %w", leave.ID, err)
	}

	succeeded := 0
	for _, p := range plans {
		if p.isNew {
			s.Stats.RecordConflict(p.conflict.Severity.String())
		}
		if !p.failed {
			succeeded++
			s.Stats.RecordSuggestions(len(p.pairs))
		}
	}
	for _, id := range retracted {
		s.publish(ctx, app.Event{
			Type:           app.EventReplacementRetracted,
			LeaveRequestID: leave.ID,
			DriverID:       leave.DriverID,
			Payload:        map[string]any{"assignment_id": id, "reason": "trip no longer in leave window"},
		})
	}
	s.publish(ctx, app.Event{
		Type:           app.EventSuggestionsGenerated,
		LeaveRequestID: leave.ID,
		DriverID:       leave.DriverID,
		Payload: map[string]any{
			"conflicts":  len(plans),
			"superseded": len(vanished),
			"failures":   len(failures),
		},
	})

	views, err := s.conflictViews(ctx, leave.ID, false)
	if err != nil {
		return nil, err
	}
	res := &app.GenerateResult{LeaveRequestID: leave.ID, Conflicts: views, GeneratedAt: now.UTC()}
	for _, c := range vanished {
		res.Superseded = append(res.Superseded, c.ID)
	}
	if len(failures) > 0 {
		return res, &domain.PartialSuggestionFailure{LeaveRequestID: leave.ID, Succeeded: succeeded, Failures: failures}
	}
	return res, nil
}

func (s *suggestionService) rankFor(ctx context.Context, ranker *candidateRanker, c *domain.Conflict, requestingDriverID string) ([]scheduler.ScoredCandidate, error) {
	pool, err := s.finder.Find(ctx, c, requestingDriverID)
	if err != nil {
		return nil, err
	}
	return ranker.Rank(ctx, c, pool)
}

func suggestionsFrom(conflictID string, scored []scheduler.ScoredCandidate, now time.Time) []domain.CandidatePair {
	pairs := make([]domain.CandidatePair, 0, len(scored))
	for _, sc := range scored {
		p := sc.Pair
		p.ID = uuid.New().String()
		p.ConflictID = conflictID
		p.CreatedAt = now.UTC()
		pairs = append(pairs, p)
	}
	return pairs
}

func (s *suggestionService) AcceptSuggestion(ctx context.Context, in app.AcceptSuggestionInput) (res *app.AcceptResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"conflict_id": in.ConflictID, "suggestion_id": in.SuggestionID}
	defer observe(ctx, s.Observer, "accept_suggestion", startedAt, fields, &err)

	if strings.TrimSpace(in.AdminID) == "" {
		return nil, &domain.ValidationError{Field: "admin_id", Message: "is required"}
	}
	conflict, err := s.Conflicts.GetByID(ctx, in.ConflictID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionConflict(conflict.State, domain.ConflictAccepted) {
		return nil, &domain.InvalidStateError{
			Entity: "conflict", ID: conflict.ID, Current: string(conflict.State), Action: "accept suggestion for",
		}
	}
	suggestion, err := s.Suggestions.GetByID(ctx, in.SuggestionID)
	if err != nil {
		// Regeneration replaces every suggestion of a conflict.
		if domain.IsNotFound(err) {
			return nil, &domain.StaleSuggestionError{
				ConflictID:   conflict.ID,
				SuggestionID: in.SuggestionID,
				Reason:       "suggestion no longer exists",
			}
		}
		return nil, err
	}
	if suggestion.ConflictID != conflict.ID {
		return nil, &domain.ValidationError{
			Field:   "suggestion_id",
			Message: fmt.Sprintf("suggestion %s does not belong to conflict %s", suggestion.ID, conflict.ID),
		}
	}

	unlock := s.Locks.LockAll(
		leaveKey(conflict.LeaveRequestID),
		driverKey(suggestion.DriverID),
		vehicleKey(suggestion.VehicleID),
	)
	defer unlock()

	res, err = s.acceptLocked(ctx, in, conflict.ID, *suggestion)
	if res != nil {
		fields["assignment_id"] = res.AssignmentID
	}
	return res, err
}

func (s *suggestionService) acceptLocked(ctx context.Context, in app.AcceptSuggestionInput, conflictID string, suggestion domain.CandidatePair) (*app.AcceptResult, error) {
	conflict, err := s.Conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionConflict(conflict.State, domain.ConflictAccepted) {
		return nil, &domain.InvalidStateError{
			Entity: "conflict", ID: conflict.ID, Current: string(conflict.State), Action: "accept suggestion for",
		}
	}
	stale := func(reason string) error {
		return &domain.StaleSuggestionError{
			ConflictID:   conflict.ID,
			SuggestionID: suggestion.ID,
			DriverID:     suggestion.DriverID,
			VehicleID:    suggestion.VehicleID,
			Reason:       reason,
		}
	}
	if _, err := s.Suggestions.GetByID(ctx, suggestion.ID); err != nil {
		if domain.IsNotFound(err) {
			return nil, stale("suggestions were regenerated")
		}
		return nil, err
	}

	leave, err := s.Leaves.GetByID(ctx, conflict.LeaveRequestID)
	if err != nil {
		return nil, err
	}
	if leave.IsTerminal() {
		return nil, &domain.InvalidStateError{
			Entity: "leave request", ID: leave.ID, Current: string(leave.Status), Action: "accept a replacement for",
		}
	}

	reason, err := s.finder.Revalidate(ctx, conflict, leave.DriverID, suggestion)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return nil, stale(reason)
	}

	if s.Fleet.Assignments == nil {
		return nil, fmt.Errorf("accepting suggestion: no assignment writer configured")
	}
	req := app.ReplacementRequest{
		ConflictID:   conflict.ID,
		ObligationID: conflict.ObligationID,
		TripID:       conflict.TripID,
		DriverID:     suggestion.DriverID,
		VehicleID:    suggestion.VehicleID,
		Start:        conflict.TripStartTime,
		End:          conflict.TripEndTime,
	}
	assignmentID, err := withTimeout(ctx, s.settings.LookupTimeout, "assignment writer",
		func(ctx context.Context) (string, error) {
			return s.Fleet.Assignments.CreateReplacement(ctx, req)
		})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, stale(err.Error())
		}
		return nil, fmt.Errorf("creating replacement assignment: %w", err)
	}

	now := s.Clock.Now()
	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txConflicts := repository.NewSQLiteConflictRepo(tx)
		txLeaves := repository.NewSQLiteLeaveRequestRepo(tx)

		if err := conflict.Accept(suggestion, in.AdminID, assignmentID, leave.Status, now); err != nil {
			return err
		}
		if err := txConflicts.Update(ctx, conflict); err != nil {
			return err
		}
		leave.RecordReplacement(suggestion.DriverID, suggestion.VehicleID, now)
		return txLeaves.Update(ctx, leave)
	})
	if err != nil {
		s.compensate(ctx, assignmentID, conflict.ID)
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, stale("conflict was modified concurrently")
		}
		return nil, fmt.Errorf("recording accepted suggestion: %w", err)
	}

	s.publish(ctx, app.Event{
		Type:           app.EventSuggestionAccepted,
		LeaveRequestID: leave.ID,
		ConflictID:     conflict.ID,
		DriverID:       suggestion.DriverID,
		Actor:          domain.Actor{AdminID: in.AdminID}.String(),
		Payload: map[string]any{
			"vehicle_id":         suggestion.VehicleID,
			"assignment_id":      assignmentID,
			"replacement_status": string(conflict.ReplacementStatus),
			"score":              suggestion.TotalScore,
		},
	})
	return &app.AcceptResult{Conflict: *conflict, Suggestion: suggestion, AssignmentID: assignmentID}, nil
}

// compensate retracts an assignment whose acceptance could not be recorded.
func (s *suggestionService) compensate(ctx context.Context, assignmentID, conflictID string) {
	_, err := withTimeout(context.WithoutCancel(ctx), s.settings.LookupTimeout, "assignment writer",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.Fleet.Assignments.Retract(ctx, assignmentID)
		})
	if err != nil {
		s.Log.Errorw("retracting orphaned assignment failed", map[string]any{
			"assignment_id": assignmentID,
			"conflict_id":   conflictID,
			"error":         err.Error(),
		})
	}
}

func (s *suggestionService) RejectSuggestion(ctx context.Context, in app.RejectSuggestionInput) (res *domain.Conflict, err error) {
	startedAt := time.Now()
	fields := map[string]any{"conflict_id": in.ConflictID}
	defer observe(ctx, s.Observer, "reject_suggestion", startedAt, fields, &err)

	conflict, err := s.Conflicts.GetByID(ctx, in.ConflictID)
	if err != nil {
		return nil, err
	}
	unlock := s.Locks.LockAll(leaveKey(conflict.LeaveRequestID))
	defer unlock()

	conflict, err = s.Conflicts.GetByID(ctx, in.ConflictID)
	if err != nil {
		return nil, err
	}
	if err := conflict.RejectSuggestion(in.AdminID, s.Clock.Now()); err != nil {
		return nil, err
	}
	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteConflictRepo(tx).Update(ctx, conflict)
	})
	if err != nil {
		return nil, fmt.Errorf("rejecting suggestion: %w", err)
	}

	payload := map[string]any{}
	if conflict.SuggestedDriverID != nil {
		payload["driver_id"] = *conflict.SuggestedDriverID
	}
	if conflict.SuggestedVehicleID != nil {
		payload["vehicle_id"] = *conflict.SuggestedVehicleID
	}
	s.publish(ctx, app.Event{
		Type:           app.EventSuggestionRejected,
		LeaveRequestID: conflict.LeaveRequestID,
		ConflictID:     conflict.ID,
		Actor:          domain.Actor{AdminID: in.AdminID}.String(),
		Payload:        payload,
	})
	return conflict, nil
}

func (s *suggestionService) ListConflicts(ctx context.Context, leaveRequestID string, includeSuperseded bool) ([]app.ConflictView, error) {
	if _, err := s.Leaves.GetByID(ctx, leaveRequestID); err != nil {
		return nil, err
	}
	return s.conflictViews(ctx, leaveRequestID, includeSuperseded)
}
