package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

const leaveColumns = `id, driver_id, leave_type, start_date, end_date, reason, status, requested_at,
	approved_by_admin_id, approved_at, approval_note, rejected_by_admin_id, rejected_at, rejection_reason,
	cancelled_by, cancelled_at, auto_replacement, suggested_replacement_driver_id,
	suggested_replacement_vehicle_id, suggestion_generated_at, version, updated_at`

// SQLiteLeaveRequestRepo implements LeaveRequestRepo using a SQLite database.
type SQLiteLeaveRequestRepo struct {
	db db.DBTX
}

func NewSQLiteLeaveRequestRepo(db db.DBTX) *SQLiteLeaveRequestRepo {
	return &SQLiteLeaveRequestRepo{db: db}
}

func (r *SQLiteLeaveRequestRepo) Create(ctx context.Context, l *domain.LeaveRequest) error {
	if l.Version == 0 {
		l.Version = 1
	}
	query := `INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID,
		l.DriverID,
		string(l.LeaveType),
		l.StartDate.Format(dateLayout),
		l.EndDate.Format(dateLayout),
		l.Reason,
		string(l.Status),
		formatInstant(l.RequestedAt),
		l.ApprovedByAdminID,
		nullableTimeToString(l.ApprovedAt, time.RFC3339),
		l.ApprovalNote,
		l.RejectedByAdminID,
		nullableTimeToString(l.RejectedAt, time.RFC3339),
		l.RejectionReason,
		l.CancelledBy,
		nullableTimeToString(l.CancelledAt, time.RFC3339),
		boolToInt(l.AutoReplacementEnabled),
		nullableString(l.SuggestedReplacementDriverID),
		nullableString(l.SuggestedReplacementVehicleID),
		nullableTimeToString(l.SuggestionGeneratedAt, time.RFC3339),
		l.Version,
		formatInstant(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting leave request: %w", err)
	}
	return nil
}

func (r *SQLiteLeaveRequestRepo) GetByID(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	query := `SELECT ` + leaveColumns + ` FROM leave_requests WHERE id = ?`
	l, err := scanLeave(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "leave request", ID: id}
	}
	return l, err
}

func (r *SQLiteLeaveRequestRepo) Update(ctx context.Context, l *domain.LeaveRequest) error {
	query := `UPDATE leave_requests SET
		start_date = ?, end_date = ?, reason = ?, status = ?,
		approved_by_admin_id = ?, approved_at = ?, approval_note = ?,
		rejected_by_admin_id = ?, rejected_at = ?, rejection_reason = ?,
		cancelled_by = ?, cancelled_at = ?, auto_replacement = ?,
		suggested_replacement_driver_id = ?, suggested_replacement_vehicle_id = ?,
		suggestion_generated_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		l.StartDate.Format(dateLayout),
		l.EndDate.Format(dateLayout),
		l.Reason,
		string(l.Status),
		l.ApprovedByAdminID,
		nullableTimeToString(l.ApprovedAt, time.RFC3339),
		l.ApprovalNote,
		l.RejectedByAdminID,
		nullableTimeToString(l.RejectedAt, time.RFC3339),
		l.RejectionReason,
		l.CancelledBy,
		nullableTimeToString(l.CancelledAt, time.RFC3339),
		boolToInt(l.AutoReplacementEnabled),
		nullableString(l.SuggestedReplacementDriverID),
		nullableString(l.SuggestedReplacementVehicleID),
		nullableTimeToString(l.SuggestionGeneratedAt, time.RFC3339),
		formatInstant(l.UpdatedAt),
		l.ID,
		l.Version,
	)
	if err != nil {
		return fmt.Errorf("updating leave request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating leave request: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("leave request %s at version %d: %w", l.ID, l.Version, domain.ErrConcurrentModification)
	}
	l.Version++
	return nil
}

func (r *SQLiteLeaveRequestRepo) FindOverlappingActive(ctx context.Context, driverID string, startDate, endDate time.Time, excludeID string) ([]*domain.LeaveRequest, error) {
	query := `SELECT ` + leaveColumns + ` FROM leave_requests
		WHERE driver_id = ?
		  AND status IN ('pending', 'approved')
		  AND start_date <= ? AND end_date >= ?
		  AND id != ?
		ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, query,
		driverID, endDate.Format(dateLayout), startDate.Format(dateLayout), excludeID)
	if err != nil {
		return nil, fmt.Errorf("finding overlapping leave requests: %w", err)
	}
	defer rows.Close()
	return scanLeaves(rows)
}

func (r *SQLiteLeaveRequestRepo) DriversOnLeave(ctx context.Context, window domain.Interval) (map[string]bool, error) {
	out := map[string]bool{}
	if window.IsEmpty() {
		return out, nil
	}
	firstDay := domain.TruncateToDate(window.Start)
	lastDay := domain.TruncateToDate(window.End.Add(-time.Nanosecond))

	query := `SELECT DISTINCT driver_id FROM leave_requests
		WHERE status IN ('pending', 'approved')
		  AND start_date <= ? AND end_date >= ?`
	rows, err := r.db.QueryContext(ctx, query, lastDay.Format(dateLayout), firstDay.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("listing drivers on leave: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning driver on leave: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drivers on leave: %w", err)
	}
	return out, nil
}

func (r *SQLiteLeaveRequestRepo) List(ctx context.Context, filter app.LeaveFilter, page app.PageRequest) ([]*domain.LeaveRequest, int, error) {
	page = page.Normalize()

	var where []string
	var args []any
	if filter.DriverID != "" {
		where = append(where, "driver_id = ?")
		args = append(args, filter.DriverID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		where = append(where, "end_date >= ?")
		args = append(args, filter.From.Format(dateLayout))
	}
	if filter.To != nil {
		where = append(where, "start_date <= ?")
		args = append(args, filter.To.Format(dateLayout))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leave_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting leave requests: %w", err)
	}

	query := `SELECT ` + leaveColumns + ` FROM leave_requests` + clause +
		` ORDER BY requested_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing leave requests: %w", err)
	}
	defer rows.Close()
	items, err := scanLeaves(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *SQLiteLeaveRequestRepo) ListAwaitingSuggestions(ctx context.Context, limit int) ([]*domain.LeaveRequest, error) {
	if limit <= 0 {
		limit = app.MaxLimit
	}
	query := `SELECT ` + leaveColumns + ` FROM leave_requests
		WHERE auto_replacement = 1
		  AND status IN ('pending', 'approved')
		  AND suggestion_generated_at IS NULL
		ORDER BY suggestion_attempted_at IS NOT NULL, suggestion_attempted_at, requested_at, id
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing leave requests awaiting suggestions: %w", err)
	}
	defer rows.Close()
	return scanLeaves(rows)
}

// attemptLayout is fixed-width so attempt stamps sort as text.
const attemptLayout = "2006-01-02T15:04:05.000000000Z"

// MarkSuggestionAttempt records a worker attempt without touching Version,
// so it never races an admin's version-checked update.
func (r *SQLiteLeaveRequestRepo) MarkSuggestionAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE leave_requests SET suggestion_attempted_at = ? WHERE id = ?`,
		at.UTC().Format(attemptLayout), id)
	if err != nil {
		return fmt.Errorf("recording suggestion attempt for %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeave(row rowScanner) (*domain.LeaveRequest, error) {
	var l domain.LeaveRequest
	var leaveType, status, startStr, endStr, requestedStr, updatedStr string
	var approvedAt, rejectedAt, cancelledAt, generatedAt sql.NullString
	var replDriver, replVehicle sql.NullString
	var auto int

	err := row.Scan(
		&l.ID, &l.DriverID, &leaveType, &startStr, &endStr, &l.Reason, &status, &requestedStr,
		&l.ApprovedByAdminID, &approvedAt, &l.ApprovalNote, &l.RejectedByAdminID, &rejectedAt, &l.RejectionReason,
		&l.CancelledBy, &cancelledAt, &auto, &replDriver,
		&replVehicle, &generatedAt, &l.Version, &updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning leave request: %w", err)
	}

	l.LeaveType = domain.LeaveType(leaveType)
	l.Status = domain.LeaveStatus(status)
	if l.StartDate, err = parseDate(startStr, "start_date"); err != nil {
		return nil, err
	}
	if l.EndDate, err = parseDate(endStr, "end_date"); err != nil {
		return nil, err
	}
	if l.RequestedAt, err = parseInstant(requestedStr, "requested_at"); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseInstant(updatedStr, "updated_at"); err != nil {
		return nil, err
	}
	l.ApprovedAt = parseNullableTime(approvedAt, time.RFC3339)
	l.RejectedAt = parseNullableTime(rejectedAt, time.RFC3339)
	l.CancelledAt = parseNullableTime(cancelledAt, time.RFC3339)
	l.SuggestionGeneratedAt = parseNullableTime(generatedAt, time.RFC3339)
	l.AutoReplacementEnabled = intToBool(auto)
	l.SuggestedReplacementDriverID = parseNullableString(replDriver)
	l.SuggestedReplacementVehicleID = parseNullableString(replVehicle)
	return &l, nil
}

func scanLeaves(rows *sql.Rows) ([]*domain.LeaveRequest, error) {
	var out []*domain.LeaveRequest
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leave requests: %w", err)
	}
	return out, nil
}
