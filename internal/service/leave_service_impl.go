package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/google/uuid"
)

type leaveService struct {
	*core
	suggestions SuggestionService
	waker       Waker
}

type LeaveOption func(*leaveService)

// WithWaker notifies w after an auto-replacement request is created in
// async generation mode.
func WithWaker(w Waker) LeaveOption {
	return func(s *leaveService) { s.waker = w }
}

func (s *leaveService) CreateLeaveRequest(ctx context.Context, in app.CreateLeaveInput) (res *app.CreateLeaveResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"driver_id": in.DriverID, "leave_type": string(in.LeaveType)}
	defer observe(ctx, s.Observer, "create_leave_request", startedAt, fields, &err)

	now := s.Clock.Now()
	leave, err := domain.NewLeaveRequest(uuid.New().String(), in.DriverID, in.LeaveType,
		in.StartDate, in.EndDate, in.Reason, in.AutoReplacement, now)
	if err != nil {
		return nil, err
	}
	fields["leave_request_id"] = leave.ID

	if err := s.createLocked(ctx, leave); err != nil {
		return nil, err
	}
	s.publish(ctx, app.Event{
		Type:           app.EventLeaveCreated,
		LeaveRequestID: leave.ID,
		DriverID:       leave.DriverID,
		Actor:          domain.Actor{DriverID: leave.DriverID}.String(),
		Payload: map[string]any{
			"leave_type":       string(leave.LeaveType),
			"start_date":       leave.StartDate.Format(domain.DateLayout),
			"end_date":         leave.EndDate.Format(domain.DateLayout),
			"auto_replacement": leave.AutoReplacementEnabled,
		},
	})

	res = &app.CreateLeaveResult{Leave: leave}
	if !leave.AutoReplacementEnabled {
		return res, nil
	}
	if s.settings.AsyncGeneration {
		if s.waker != nil {
			s.waker.Wake()
		}
		return res, nil
	}

	// Generation problems are reported alongside a successful creation.
	res.Suggestions, res.SuggestionError = s.suggestions.ResumeSuggestions(ctx, leave.ID)
	if reloaded, err := s.Leaves.GetByID(ctx, leave.ID); err == nil {
		res.Leave = reloaded
	}
	return res, nil
}

func (s *leaveService) createLocked(ctx context.Context, leave *domain.LeaveRequest) error {
	unlock := s.Locks.LockAll(driverKey(leave.DriverID))
	defer unlock()

	return s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeaves := repository.NewSQLiteLeaveRequestRepo(tx)
		overlapping, err := txLeaves.FindOverlappingActive(ctx, leave.DriverID, leave.StartDate, leave.EndDate, "")
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return &domain.ConflictError{
				Entity:     "leave request",
				ID:         leave.ID,
				ExistingID: overlapping[0].ID,
				Message:    fmt.Sprintf("driver %s already has an active leave request overlapping these dates", leave.DriverID),
			}
		}
		return txLeaves.Create(ctx, leave)
	})
}

func (s *leaveService) ApproveLeaveRequest(ctx context.Context, in app.ApproveLeaveInput) (res *app.ApproveResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"leave_request_id": in.LeaveRequestID}
	defer observe(ctx, s.Observer, "approve_leave_request", startedAt, fields, &err)

	unlock := s.Locks.LockAll(leaveKey(in.LeaveRequestID))
	defer unlock()

	res, err = s.approveLocked(ctx, in)
	if res != nil {
		fields["gaps"] = len(res.Gaps)
		fields["activated"] = len(res.Activated)
	}
	return res, err
}

func (s *leaveService) approveLocked(ctx context.Context, in app.ApproveLeaveInput) (*app.ApproveResult, error) {
	leave, err := s.Leaves.GetByID(ctx, in.LeaveRequestID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if err := leave.Approve(in.AdminID, in.Note, in.EffectiveFrom, in.EffectiveTo, now); err != nil {
		return nil, err
	}

	conflicts, err := s.Conflicts.ListByLeave(ctx, leave.ID, false)
	if err != nil {
		return nil, err
	}

	// Requests that never went through generation still report their gaps.
	var created []*domain.Conflict
	if len(conflicts) == 0 && leave.SuggestionGeneratedAt == nil {
		detected, err := s.detector.Detect(ctx, leave, now)
		if err != nil {
			return nil, err
		}
		for i := range detected {
			c := detected[i]
			c.ID = uuid.New().String()
			if err := c.ApplySuggestion(nil, now); err != nil {
				return nil, err
			}
			created = append(created, &c)
		}
		conflicts = append(conflicts, created...)
	}

	window := leave.Window()
	res := &app.ApproveResult{Leave: leave}
	var outside, activated []*domain.Conflict
	for _, c := range conflicts {
		switch {
		case !c.Window().Overlaps(window):
			outside = append(outside, c)
		case c.ActivateReplacement(now):
			activated = append(activated, c)
		case c.IsGap():
			res.Gaps = append(res.Gaps, *c)
		}
	}

	retracted, err := s.retractAssignments(ctx, outside)
	if err != nil {
		return nil, err
	}

	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeaves := repository.NewSQLiteLeaveRequestRepo(tx)
		txConflicts := repository.NewSQLiteConflictRepo(tx)
		txSuggestions := repository.NewSQLiteSuggestionRepo(tx)

		if err := txLeaves.Update(ctx, leave); err != nil {
			return err
		}
		for _, c := range created {
			if err := txConflicts.Create(ctx, c); err != nil {
				return err
			}
		}
		for _, c := range outside {
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
		for _, c := range activated {
			if err := txConflicts.Update(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approving leave request %s: %w", leave.ID, err)
	}

	for _, c := range created {
		s.Stats.RecordConflict(c.Severity.String())
	}
	s.Stats.RecordGaps(len(res.Gaps))
	for _, c := range outside {
		res.Superseded = append(res.Superseded, *c)
	}
	for _, c := range activated {
		res.Activated = append(res.Activated, *c)
	}

	s.publish(ctx, app.Event{
		Type:           app.EventLeaveApproved,
		LeaveRequestID: leave.ID,
		DriverID:       leave.DriverID,
		Actor:          domain.Actor{AdminID: in.AdminID}.String(),
		Payload: map[string]any{
			"start_date": leave.StartDate.Format(domain.DateLayout),
			"end_date":   leave.EndDate.Format(domain.DateLayout),
			"activated":  len(activated),
			"gaps":       len(res.Gaps),
			"superseded": len(outside),
		},
	})
	for _, g := range res.Gaps {
		s.publish(ctx, app.Event{
			Type:           app.EventOperationalGap,
			LeaveRequestID: leave.ID,
			ConflictID:     g.ID,
			DriverID:       leave.DriverID,
			Payload: map[string]any{
				"trip_id":    g.TripID,
				"route_id":   g.RouteID,
				"severity":   g.Severity.String(),
				"trip_start": g.TripStartTime.UTC().Format(time.RFC3339),
				"students":   g.AffectedStudents,
			},
		})
	}
	s.publishRetracted(ctx, leave, retracted, "effective range narrowed")
	return res, nil
}

func (s *leaveService) RejectLeaveRequest(ctx context.Context, in app.RejectLeaveInput) (res *app.TerminationResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"leave_request_id": in.LeaveRequestID}
	defer observe(ctx, s.Observer, "reject_leave_request", startedAt, fields, &err)

	return s.terminate(ctx, in.LeaveRequestID, app.EventLeaveRejected, domain.Actor{AdminID: in.AdminID},
		func(l *domain.LeaveRequest, now time.Time) error {
			return l.Reject(in.AdminID, in.Reason, now)
		})
}

func (s *leaveService) CancelLeaveRequest(ctx context.Context, in app.CancelLeaveInput) (res *app.TerminationResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"leave_request_id": in.LeaveRequestID, "actor": in.Actor.String()}
	defer observe(ctx, s.Observer, "cancel_leave_request", startedAt, fields, &err)

	return s.terminate(ctx, in.LeaveRequestID, app.EventLeaveCancelled, in.Actor,
		func(l *domain.LeaveRequest, now time.Time) error {
			return l.Cancel(in.Actor, now)
		})
}

// terminate applies a terminal transition, retracts materialised
// replacements and supersedes every live conflict of the request.
func (s *leaveService) terminate(
	ctx context.Context,
	leaveRequestID string,
	eventType app.EventType,
	actor domain.Actor,
	apply func(*domain.LeaveRequest, time.Time) error,
) (*app.TerminationResult, error) {
	unlock := s.Locks.LockAll(leaveKey(leaveRequestID))
	defer unlock()

	leave, err := s.Leaves.GetByID(ctx, leaveRequestID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if err := apply(leave, now); err != nil {
		return nil, err
	}

	conflicts, err := s.Conflicts.ListByLeave(ctx, leave.ID, false)
	if err != nil {
		return nil, err
	}
	// Nothing is persisted until every assignment is retracted.
	retracted, err := s.retractAssignments(ctx, conflicts)
	if err != nil {
		return nil, err
	}

	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeaves := repository.NewSQLiteLeaveRequestRepo(tx)
		txConflicts := repository.NewSQLiteConflictRepo(tx)
		txSuggestions := repository.NewSQLiteSuggestionRepo(tx)

		if err := txLeaves.Update(ctx, leave); err != nil {
			return err
		}
		for _, c := range conflicts {
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
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("terminating leave request %s: %w", leave.ID, err)
	}

	res := &app.TerminationResult{Leave: leave, Retracted: retracted}
	for _, c := range conflicts {
		res.Superseded = append(res.Superseded, *c)
	}

	payload := map[string]any{"superseded": len(conflicts), "retracted": len(retracted)}
	if leave.RejectionReason != "" {
		payload["reason"] = leave.RejectionReason
	}
	s.publish(ctx, app.Event{
		Type:           eventType,
		LeaveRequestID: leave.ID,
		DriverID:       leave.DriverID,
		Actor:          actor.String(),
		Payload:        payload,
	})
	s.publishRetracted(ctx, leave, retracted, string(leave.Status))
	return res, nil
}

func (s *leaveService) publishRetracted(ctx context.Context, leave *domain.LeaveRequest, assignmentIDs []string, reason string) {
	for _, id := range assignmentIDs {
		s.publish(ctx, app.Event{
			Type:           app.EventReplacementRetracted,
			LeaveRequestID: leave.ID,
			DriverID:       leave.DriverID,
			Payload:        map[string]any{"assignment_id": id, "reason": reason},
		})
	}
}

func (s *leaveService) GetLeaveRequest(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	return s.Leaves.GetByID(ctx, id)
}

func (s *leaveService) ListLeaveRequests(ctx context.Context, filter app.LeaveFilter, page app.PageRequest) (*app.LeavePage, error) {
	page = page.Normalize()
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown leave status %q", filter.Status)}
	}
	items, total, err := s.Leaves.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &app.LeavePage{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}
