package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

const conflictColumns = `id, leave_request_id, obligation_id, trip_id, role, route_id, route_name,
	original_vehicle_id, trip_start, trip_end, affected_students, required_capacity, severity, state,
	suggested_driver_id, suggested_vehicle_id, replacement_score, replacement_reason, is_resolved,
	replacement_status, assignment_id, resolved_by_admin_id, resolved_at, detected_at, updated_at, version`

type SQLiteConflictRepo struct {
	db db.DBTX
}

func NewSQLiteConflictRepo(db db.DBTX) *SQLiteConflictRepo {
	return &SQLiteConflictRepo{db: db}
}

func (r *SQLiteConflictRepo) Create(ctx context.Context, c *domain.Conflict) error {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.ReplacementStatus == "" {
		c.ReplacementStatus = domain.ReplacementNone
	}
	query := `INSERT INTO conflicts (` + conflictColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.LeaveRequestID,
		c.ObligationID,
		c.TripID,
		c.Role,
		c.RouteID,
		c.RouteName,
		c.OriginalVehicleID,
		formatInstant(c.TripStartTime),
		formatInstant(c.TripEndTime),
		c.AffectedStudents,
		c.RequiredCapacity,
		c.Severity.String(),
		string(c.State),
		nullableString(c.SuggestedDriverID),
		nullableString(c.SuggestedVehicleID),
		nullableFloat(c.ReplacementScore),
		c.ReplacementReason,
		boolToInt(c.IsResolved),
		string(c.ReplacementStatus),
		nullableString(c.AssignmentID),
		c.ResolvedByAdminID,
		nullableTimeToString(c.ResolvedAt, time.RFC3339),
		formatInstant(c.DetectedAt),
		formatInstant(c.UpdatedAt),
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("inserting conflict: %w", err)
	}
	return nil
}

func (r *SQLiteConflictRepo) GetByID(ctx context.Context, id string) (*domain.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE id = ?`
	c, err := scanConflict(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "conflict", ID: id}
	}
	return c, err
}

func (r *SQLiteConflictRepo) Update(ctx context.Context, c *domain.Conflict) error {
	query := `UPDATE conflicts SET
		trip_id = ?, role = ?, route_id = ?, route_name = ?, original_vehicle_id = ?,
		trip_start = ?, trip_end = ?, affected_students = ?, required_capacity = ?, severity = ?,
		state = ?, suggested_driver_id = ?, suggested_vehicle_id = ?, replacement_score = ?,
		replacement_reason = ?, is_resolved = ?, replacement_status = ?, assignment_id = ?,
		resolved_by_admin_id = ?, resolved_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		c.TripID,
		c.Role,
		c.RouteID,
		c.RouteName,
		c.OriginalVehicleID,
		formatInstant(c.TripStartTime),
		formatInstant(c.TripEndTime),
		c.AffectedStudents,
		c.RequiredCapacity,
		c.Severity.String(),
		string(c.State),
		nullableString(c.SuggestedDriverID),
		nullableString(c.SuggestedVehicleID),
		nullableFloat(c.ReplacementScore),
		c.ReplacementReason,
		boolToInt(c.IsResolved),
		string(c.ReplacementStatus),
		nullableString(c.AssignmentID),
		c.ResolvedByAdminID,
		nullableTimeToString(c.ResolvedAt, time.RFC3339),
		formatInstant(c.UpdatedAt),
		c.ID,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating conflict: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conflict %s at version %d: %w", c.ID, c.Version, domain.ErrConcurrentModification)
	}
	c.Version++
	return nil
}

func (r *SQLiteConflictRepo) ListByLeave(ctx context.Context, leaveRequestID string, includeSuperseded bool) ([]*domain.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE leave_request_id = ?`
	if !includeSuperseded {
		query += ` AND state != 'superseded'`
	}
	query += ` ORDER BY trip_start, obligation_id, detected_at`
	rows, err := r.db.QueryContext(ctx, query, leaveRequestID)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts by leave request: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conflicts: %w", err)
	}
	return out, nil
}

func scanConflict(row rowScanner) (*domain.Conflict, error) {
	var c domain.Conflict
	var tripStart, tripEnd, severity, state, replStatus, detectedAt, updatedAt string
	var suggDriver, suggVehicle, assignmentID, resolvedAt sql.NullString
	var score sql.NullFloat64
	var resolved int

	err := row.Scan(
		&c.ID, &c.LeaveRequestID, &c.ObligationID, &c.TripID, &c.Role, &c.RouteID, &c.RouteName,
		&c.OriginalVehicleID, &tripStart, &tripEnd, &c.AffectedStudents, &c.RequiredCapacity, &severity, &state,
		&suggDriver, &suggVehicle, &score, &c.ReplacementReason, &resolved,
		&replStatus, &assignmentID, &c.ResolvedByAdminID, &resolvedAt, &detectedAt, &updatedAt, &c.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning conflict: %w", err)
	}

	if c.TripStartTime, err = parseInstant(tripStart, "trip_start"); err != nil {
		return nil, err
	}
	if c.TripEndTime, err = parseInstant(tripEnd, "trip_end"); err != nil {
		return nil, err
	}
	if c.DetectedAt, err = parseInstant(detectedAt, "detected_at"); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseInstant(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	if c.Severity, err = domain.ParseSeverity(severity); err != nil {
		return nil, fmt.Errorf("conflict %s: %w", c.ID, err)
	}
	c.State = domain.ConflictState(state)
	c.ReplacementStatus = domain.ReplacementStatus(replStatus)
	c.SuggestedDriverID = parseNullableString(suggDriver)
	c.SuggestedVehicleID = parseNullableString(suggVehicle)
	c.ReplacementScore = parseNullableFloat(score)
	c.AssignmentID = parseNullableString(assignmentID)
	c.ResolvedAt = parseNullableTime(resolvedAt, time.RFC3339)
	c.IsResolved = intToBool(resolved)
	return &c, nil
}
