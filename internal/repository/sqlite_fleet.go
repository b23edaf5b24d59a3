package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/google/uuid"
)

// SQLiteFleet is a reference implementation of the trip, driver, vehicle,
// assignment and performance collaborators over the fleet tables.
// A driver or vehicle is committed in a window when a trip obligation or an
// active replacement assignment overlaps it.
type SQLiteFleet struct {
	db    db.DBTX
	clock app.Clock
}

func NewSQLiteFleet(db db.DBTX, clock app.Clock) *SQLiteFleet {
	return &SQLiteFleet{db: db, clock: app.ClockOrSystem(clock)}
}

var (
	_ app.TripObligationLookup = (*SQLiteFleet)(nil)
	_ app.DriverAvailability   = fleetDrivers{}
	_ app.VehicleAvailability  = (*SQLiteFleet)(nil)
	_ app.AssignmentWriter     = (*SQLiteFleet)(nil)
	_ app.PerformanceHistory   = (*SQLiteFleet)(nil)
)

// Drivers returns a DriverAvailability view; SQLiteFleet satisfies both
// availability ports, whose FindAvailable signatures differ.
func (f *SQLiteFleet) Drivers() app.DriverAvailability { return fleetDrivers{f} }

func (f *SQLiteFleet) Vehicles() app.VehicleAvailability { return f }

func (f *SQLiteFleet) Collaborators() app.Collaborators {
	return app.Collaborators{
		Trips:       f,
		Drivers:     f.Drivers(),
		Vehicles:    f,
		Assignments: f,
		Performance: f,
	}
}

const driverCommitted = `(
	EXISTS (SELECT 1 FROM trip_obligations o
	        WHERE o.driver_id = d.id AND o.start_at < ? AND o.end_at > ?)
	OR EXISTS (SELECT 1 FROM replacement_assignments a
	        WHERE a.driver_id = d.id AND a.status = 'active' AND a.start_at < ? AND a.end_at > ?))`

const vehicleCommitted = `(
	EXISTS (SELECT 1 FROM trip_obligations o
	        WHERE o.vehicle_id = v.id AND o.start_at < ? AND o.end_at > ?)
	OR EXISTS (SELECT 1 FROM replacement_assignments a
	        WHERE a.vehicle_id = v.id AND a.status = 'active' AND a.start_at < ? AND a.end_at > ?))`

func (f *SQLiteFleet) FindOverlapping(ctx context.Context, driverID string, start, end time.Time) ([]domain.TripObligation, error) {
	s, e := formatInstant(start), formatInstant(end)
	query := `SELECT obligation_id, trip_id, role, driver_id, vehicle_id, route_id, route_name,
			start_at, end_at, active_students, required_capacity
		FROM trip_obligations
		WHERE driver_id = ? AND start_at < ? AND end_at > ?
		UNION ALL
		SELECT 'replacement:' || a.id, a.trip_id, 'replacement', a.driver_id, a.vehicle_id,
			COALESCE((SELECT o.route_id FROM trip_obligations o WHERE o.obligation_id = a.obligation_id LIMIT 1), ''),
			COALESCE((SELECT o.route_name FROM trip_obligations o WHERE o.obligation_id = a.obligation_id LIMIT 1), ''),
			a.start_at, a.end_at,
			COALESCE((SELECT MAX(o.active_students) FROM trip_obligations o WHERE o.obligation_id = a.obligation_id), 0),
			COALESCE((SELECT MAX(o.required_capacity) FROM trip_obligations o WHERE o.obligation_id = a.obligation_id), 0)
		FROM replacement_assignments a
		WHERE a.driver_id = ? AND a.status = 'active' AND a.start_at < ? AND a.end_at > ?
		ORDER BY 8, 1`
	rows, err := f.db.QueryContext(ctx, query, driverID, e, s, driverID, e, s)
	if err != nil {
		return nil, fmt.Errorf("finding trip obligations: %w", err)
	}
	defer rows.Close()

	var out []domain.TripObligation
	for rows.Next() {
		var o domain.TripObligation
		var startStr, endStr string
		if err := rows.Scan(&o.ObligationID, &o.TripID, &o.Role, &o.DriverID, &o.VehicleID, &o.RouteID, &o.RouteName,
			&startStr, &endStr, &o.ActiveStudents, &o.RequiredCapacity); err != nil {
			return nil, fmt.Errorf("scanning trip obligation: %w", err)
		}
		if o.Start, err = parseInstant(startStr, "start_at"); err != nil {
			return nil, err
		}
		if o.End, err = parseInstant(endStr, "end_at"); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trip obligations: %w", err)
	}
	return out, nil
}

type fleetDrivers struct{ f *SQLiteFleet }

func (d fleetDrivers) FindAvailable(ctx context.Context, start, end time.Time, minLicenseValidity time.Time) ([]domain.Driver, error) {
	return d.f.FindAvailableDrivers(ctx, start, end, minLicenseValidity)
}

func (f *SQLiteFleet) FindAvailableDrivers(ctx context.Context, start, end time.Time, minLicenseValidity time.Time) ([]domain.Driver, error) {
	s, e := formatInstant(start), formatInstant(end)
	query := `SELECT d.id, d.name, d.active, d.license_expiry, d.health_cert_expiry
		FROM drivers d
		WHERE d.active = 1 AND d.license_expiry > ? AND NOT ` + driverCommitted + `
		ORDER BY d.id`
	rows, err := f.db.QueryContext(ctx, query, formatInstant(minLicenseValidity), e, s, e, s)
	if err != nil {
		return nil, fmt.Errorf("finding available drivers: %w", err)
	}
	drivers, err := scanDrivers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := f.loadWorkingHours(ctx, drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func (f *SQLiteFleet) FindAvailable(ctx context.Context, start, end time.Time, minCapacity int) ([]domain.Vehicle, error) {
	s, e := formatInstant(start), formatInstant(end)
	query := `SELECT v.id, v.plate, v.capacity, v.active
		FROM vehicles v
		WHERE v.active = 1 AND v.capacity >= ? AND NOT ` + vehicleCommitted + `
		ORDER BY v.id`
	rows, err := f.db.QueryContext(ctx, query, minCapacity, e, s, e, s)
	if err != nil {
		return nil, fmt.Errorf("finding available vehicles: %w", err)
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		var active int
		if err := rows.Scan(&v.ID, &v.Plate, &v.Capacity, &active); err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		v.Active = intToBool(active)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicles: %w", err)
	}
	return out, nil
}

// CreateReplacement inserts an active assignment unless the driver or the
// vehicle became committed in the window meanwhile.
func (f *SQLiteFleet) CreateReplacement(ctx context.Context, req app.ReplacementRequest) (string, error) {
	id := uuid.New().String()
	s, e := formatInstant(req.Start), formatInstant(req.End)
	query := `INSERT INTO replacement_assignments
			(id, conflict_id, obligation_id, trip_id, driver_id, vehicle_id, start_at, end_at, status, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?
		WHERE NOT EXISTS (SELECT 1 FROM drivers d WHERE d.id = ? AND ` + driverCommitted + `)
		  AND NOT EXISTS (SELECT 1 FROM vehicles v WHERE v.id = ? AND ` + vehicleCommitted + `)`
	res, err := f.db.ExecContext(ctx, query,
		id, req.ConflictID, req.ObligationID, req.TripID, req.DriverID, req.VehicleID, s, e, formatInstant(f.clock.Now()),
		req.DriverID, e, s, e, s,
		req.VehicleID, e, s, e, s,
	)
	if err != nil {
		return "", fmt.Errorf("creating replacement assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("creating replacement assignment: %w", err)
	}
	if n == 0 {
		return "", &domain.ConflictError{
			Entity:  "assignment",
			ID:      req.ConflictID,
			Message: fmt.Sprintf("driver %s or vehicle %s is already committed in that window", req.DriverID, req.VehicleID),
		}
	}
	return id, nil
}

// Retract is idempotent for already retracted assignments.
func (f *SQLiteFleet) Retract(ctx context.Context, assignmentID string) error {
	var status string
	err := f.db.QueryRowContext(ctx, `SELECT status FROM replacement_assignments WHERE id = ?`, assignmentID).Scan(&status)
	if err == sql.ErrNoRows {
		return &domain.NotFoundError{Entity: "assignment", ID: assignmentID}
	}
	if err != nil {
		return fmt.Errorf("loading assignment: %w", err)
	}
	if status == "retracted" {
		return nil
	}
	_, err = f.db.ExecContext(ctx, `UPDATE replacement_assignments SET status = 'retracted', retracted_at = ? WHERE id = ?`,
		formatInstant(f.clock.Now()), assignmentID)
	if err != nil {
		return fmt.Errorf("retracting assignment: %w", err)
	}
	return nil
}

// Get reports route shares over all completed trips and the on-time rate
// over trips completed since the given instant.
func (f *SQLiteFleet) Get(ctx context.Context, driverID string, since time.Time) (domain.PerformanceRecord, error) {
	rec := domain.PerformanceRecord{DriverID: driverID}

	rows, err := f.db.QueryContext(ctx, `SELECT route_id, COUNT(*) FROM driver_trip_history
		WHERE driver_id = ? GROUP BY route_id ORDER BY route_id`, driverID)
	if err != nil {
		return rec, fmt.Errorf("loading route history: %w", err)
	}
	counts := map[string]int{}
	total := 0
	for rows.Next() {
		var route string
		var n int
		if err := rows.Scan(&route, &n); err != nil {
			rows.Close()
			return rec, fmt.Errorf("scanning route history: %w", err)
		}
		counts[route] = n
		total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("iterating route history: %w", err)
	}
	rec.CompletedTrips = total
	if total > 0 {
		rec.RouteCompletionRates = make(map[string]float64, len(counts))
		for route, n := range counts {
			rec.RouteCompletionRates[route] = float64(n) / float64(total)
		}
	}

	var windowTotal int
	var onTime sql.NullInt64
	err = f.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(on_time) FROM driver_trip_history
		WHERE driver_id = ? AND completed_at >= ?`, driverID, formatInstant(since)).Scan(&windowTotal, &onTime)
	if err != nil {
		return rec, fmt.Errorf("loading on-time history: %w", err)
	}
	if windowTotal > 0 {
		rate := float64(onTime.Int64) / float64(windowTotal)
		rec.OnTimeRate = &rate
	}
	return rec, nil
}

// HistoryEntry is one completed trip in a driver's history.
type HistoryEntry struct {
	ID          string
	DriverID    string
	RouteID     string
	CompletedAt time.Time
	OnTime      bool
}

func (f *SQLiteFleet) UpsertDriver(ctx context.Context, d domain.Driver) error {
	_, err := f.db.ExecContext(ctx, `INSERT INTO drivers (id, name, active, license_expiry, health_cert_expiry)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active,
			license_expiry = excluded.license_expiry, health_cert_expiry = excluded.health_cert_expiry`,
		d.ID, d.Name, boolToInt(d.Active), formatInstant(d.LicenseExpiry), nullableTimeToString(d.HealthCertExpiry, time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting driver %s: %w", d.ID, err)
	}
	if _, err := f.db.ExecContext(ctx, `DELETE FROM driver_working_hours WHERE driver_id = ?`, d.ID); err != nil {
		return fmt.Errorf("clearing working hours for %s: %w", d.ID, err)
	}
	for _, w := range d.WorkingHours {
		_, err := f.db.ExecContext(ctx, `INSERT INTO driver_working_hours (driver_id, weekday, start_minute, end_minute)
			VALUES (?, ?, ?, ?)`, d.ID, int(w.Weekday), w.StartMinute, w.EndMinute)
		if err != nil {
			return fmt.Errorf("inserting working hours for %s: %w", d.ID, err)
		}
	}
	return nil
}

func (f *SQLiteFleet) UpsertVehicle(ctx context.Context, v domain.Vehicle) error {
	_, err := f.db.ExecContext(ctx, `INSERT INTO vehicles (id, plate, capacity, active) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET plate = excluded.plate, capacity = excluded.capacity, active = excluded.active`,
		v.ID, v.Plate, v.Capacity, boolToInt(v.Active))
	if err != nil {
		return fmt.Errorf("upserting vehicle %s: %w", v.ID, err)
	}
	return nil
}

func (f *SQLiteFleet) UpsertObligation(ctx context.Context, o domain.TripObligation) error {
	role := o.Role
	if role == "" {
		role = "primary"
	}
	_, err := f.db.ExecContext(ctx, `INSERT INTO trip_obligations
			(obligation_id, role, trip_id, driver_id, vehicle_id, route_id, route_name, start_at, end_at, active_students, required_capacity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(obligation_id, role) DO UPDATE SET trip_id = excluded.trip_id, driver_id = excluded.driver_id,
			vehicle_id = excluded.vehicle_id, route_id = excluded.route_id, route_name = excluded.route_name,
			start_at = excluded.start_at, end_at = excluded.end_at, active_students = excluded.active_students,
			required_capacity = excluded.required_capacity`,
		o.ObligationID, role, o.TripID, o.DriverID, o.VehicleID, o.RouteID, o.RouteName,
		formatInstant(o.Start), formatInstant(o.End), o.ActiveStudents, o.RequiredCapacity)
	if err != nil {
		return fmt.Errorf("upserting obligation %s: %w", o.ObligationID, err)
	}
	return nil
}

func (f *SQLiteFleet) AddHistory(ctx context.Context, h HistoryEntry) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := f.db.ExecContext(ctx, `INSERT OR REPLACE INTO driver_trip_history (id, driver_id, route_id, completed_at, on_time)
		VALUES (?, ?, ?, ?, ?)`, h.ID, h.DriverID, h.RouteID, formatInstant(h.CompletedAt), boolToInt(h.OnTime))
	if err != nil {
		return fmt.Errorf("adding trip history for %s: %w", h.DriverID, err)
	}
	return nil
}

// ActiveAssignments lists active replacement assignments, newest first.
func (f *SQLiteFleet) ActiveAssignments(ctx context.Context) ([]app.ReplacementRequest, []string, error) {
	rows, err := f.db.QueryContext(ctx, `SELECT id, conflict_id, obligation_id, trip_id, driver_id, vehicle_id, start_at, end_at
		FROM replacement_assignments WHERE status = 'active' ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var reqs []app.ReplacementRequest
	var ids []string
	for rows.Next() {
		var id, s, e string
		var r app.ReplacementRequest
		if err := rows.Scan(&id, &r.ConflictID, &r.ObligationID, &r.TripID, &r.DriverID, &r.VehicleID, &s, &e); err != nil {
			return nil, nil, fmt.Errorf("scanning assignment: %w", err)
		}
		if r.Start, err = parseInstant(s, "start_at"); err != nil {
			return nil, nil, err
		}
		if r.End, err = parseInstant(e, "end_at"); err != nil {
			return nil, nil, err
		}
		reqs = append(reqs, r)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return reqs, ids, nil
}

func scanDrivers(rows *sql.Rows) ([]domain.Driver, error) {
	var out []domain.Driver
	for rows.Next() {
		var d domain.Driver
		var active int
		var licenseStr string
		var health sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &active, &licenseStr, &health); err != nil {
			return nil, fmt.Errorf("scanning driver: %w", err)
		}
		var err error
		if d.LicenseExpiry, err = parseInstant(licenseStr, "license_expiry"); err != nil {
			return nil, err
		}
		d.Active = intToBool(active)
		d.HealthCertExpiry = parseNullableTime(health, time.RFC3339)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drivers: %w", err)
	}
	return out, nil
}

func (f *SQLiteFleet) loadWorkingHours(ctx context.Context, drivers []domain.Driver) error {
	if len(drivers) == 0 {
		return nil
	}
	index := make(map[string]int, len(drivers))
	placeholders := make([]string, len(drivers))
	args := make([]any, len(drivers))
	for i, d := range drivers {
		index[d.ID] = i
		placeholders[i] = "?"
		args[i] = d.ID
	}
	query := `SELECT driver_id, weekday, start_minute, end_minute FROM driver_working_hours
		WHERE driver_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY driver_id, weekday, start_minute`
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading working hours: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var driverID string
		var w domain.WorkingWindow
		var weekday int
		if err := rows.Scan(&driverID, &weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return fmt.Errorf("scanning working hours: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		i := index[driverID]
		drivers[i].WorkingHours = append(drivers[i].WorkingHours, w)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating working hours: %w", err)
	}
	return nil
}
