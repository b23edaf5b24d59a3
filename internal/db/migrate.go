package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate applies every schema statement. Statements are idempotent, so
// Migrate runs on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS form.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS leave_requests (
		id                               TEXT PRIMARY KEY,
		driver_id                        TEXT NOT NULL,
		leave_type                       TEXT NOT NULL
		                                 CHECK(leave_type IN ('sick','vacation','emergency','personal','training','other')),
		start_date                       TEXT NOT NULL,
		end_date                         TEXT NOT NULL,
		reason                           TEXT NOT NULL DEFAULT '',
		status                           TEXT NOT NULL DEFAULT 'pending'
		                                 CHECK(status IN ('pending','approved','rejected','cancelled')),
		requested_at                     TEXT NOT NULL,
		approved_by_admin_id             TEXT NOT NULL DEFAULT '',
		approved_at                      TEXT,
		approval_note                    TEXT NOT NULL DEFAULT '',
		rejected_by_admin_id             TEXT NOT NULL DEFAULT '',
		rejected_at                      TEXT,
		rejection_reason                 TEXT NOT NULL DEFAULT '',
		cancelled_by                     TEXT NOT NULL DEFAULT '',
		cancelled_at                     TEXT,
		auto_replacement                 INTEGER NOT NULL DEFAULT 0,
		suggested_replacement_driver_id  TEXT,
		suggested_replacement_vehicle_id TEXT,
		suggestion_generated_at          TEXT,
		version                          INTEGER NOT NULL DEFAULT 1,
		updated_at                       TEXT NOT NULL,
		CHECK(start_date <= end_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_leave_requests_driver ON leave_requests(driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_leave_requests_requested ON leave_requests(requested_at)`,
	// Last worker attempt; the worker queue rotates on it.
	`ALTER TABLE leave_requests ADD COLUMN suggestion_attempted_at TEXT`,

	`CREATE TABLE IF NOT EXISTS conflicts (
		id                   TEXT PRIMARY KEY,
		leave_request_id     TEXT NOT NULL REFERENCES leave_requests(id),
		obligation_id        TEXT NOT NULL,
		trip_id              TEXT NOT NULL DEFAULT '',
		role                 TEXT NOT NULL DEFAULT '',
		route_id             TEXT NOT NULL DEFAULT '',
		route_name           TEXT NOT NULL DEFAULT '',
		original_vehicle_id  TEXT NOT NULL DEFAULT '',
		trip_start           TEXT NOT NULL,
		trip_end             TEXT NOT NULL,
		affected_students    INTEGER NOT NULL DEFAULT 0,
		required_capacity    INTEGER NOT NULL DEFAULT 0,
		severity             TEXT NOT NULL
		                     CHECK(severity IN ('low','medium','high','critical')),
		state                TEXT NOT NULL DEFAULT 'unresolved'
		                     CHECK(state IN ('unresolved','suggested','accepted','rejected','superseded')),
		suggested_driver_id  TEXT,
		suggested_vehicle_id TEXT,
		replacement_score    REAL,
		replacement_reason   TEXT NOT NULL DEFAULT '',
		is_resolved          INTEGER NOT NULL DEFAULT 0,
		replacement_status   TEXT NOT NULL DEFAULT 'none'
		                     CHECK(replacement_status IN ('none','pending','active','retracted')),
		assignment_id        TEXT,
		resolved_by_admin_id TEXT NOT NULL DEFAULT '',
		resolved_at          TEXT,
		detected_at          TEXT NOT NULL,
		updated_at           TEXT NOT NULL,
		version              INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conflicts_leave ON conflicts(leave_request_id, trip_start)`,
	// At most one live conflict per obligation and leave request.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_live_obligation
		ON conflicts(leave_request_id, obligation_id) WHERE state != 'superseded'`,

	`CREATE TABLE IF NOT EXISTS suggestions (
		id                TEXT PRIMARY KEY,
		conflict_id       TEXT NOT NULL REFERENCES conflicts(id) ON DELETE CASCADE,
		rank              INTEGER NOT NULL CHECK(rank > 0),
		driver_id         TEXT NOT NULL,
		vehicle_id        TEXT NOT NULL,
		route_familiarity REAL NOT NULL DEFAULT 0,
		performance       REAL NOT NULL DEFAULT 0,
		availability_fit  REAL NOT NULL DEFAULT 0,
		credential_margin REAL NOT NULL DEFAULT 0,
		total_score       REAL NOT NULL CHECK(total_score >= 0 AND total_score <= 100),
		reason            TEXT NOT NULL DEFAULT '',
		is_available      INTEGER NOT NULL DEFAULT 1,
		created_at        TEXT NOT NULL,
		UNIQUE(conflict_id, rank)
	)`,

	// Reference tables for the bundled fleet adapters.
	`CREATE TABLE IF NOT EXISTS drivers (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL DEFAULT '',
		active             INTEGER NOT NULL DEFAULT 1,
		license_expiry     TEXT NOT NULL,
		health_cert_expiry TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS driver_working_hours (
		driver_id    TEXT NOT NULL REFERENCES drivers(id) ON DELETE CASCADE,
		weekday      INTEGER NOT NULL CHECK(weekday BETWEEN 0 AND 6),
		start_minute INTEGER NOT NULL CHECK(start_minute BETWEEN 0 AND 1440),
		end_minute   INTEGER NOT NULL CHECK(end_minute BETWEEN 0 AND 1440),
		PRIMARY KEY (driver_id, weekday, start_minute)
	)`,

	`CREATE TABLE IF NOT EXISTS vehicles (
		id       TEXT PRIMARY KEY,
		plate    TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK(capacity >= 0),
		active   INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS trip_obligations (
		obligation_id     TEXT NOT NULL,
		role              TEXT NOT NULL DEFAULT 'primary',
		trip_id           TEXT NOT NULL,
		driver_id         TEXT NOT NULL,
		vehicle_id        TEXT NOT NULL DEFAULT '',
		route_id          TEXT NOT NULL DEFAULT '',
		route_name        TEXT NOT NULL DEFAULT '',
		start_at          TEXT NOT NULL,
		end_at            TEXT NOT NULL,
		active_students   INTEGER NOT NULL DEFAULT 0,
		required_capacity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (obligation_id, role)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_trip_obligations_driver ON trip_obligations(driver_id, start_at)`,
	`CREATE INDEX IF NOT EXISTS idx_trip_obligations_vehicle ON trip_obligations(vehicle_id, start_at)`,

	`CREATE TABLE IF NOT EXISTS replacement_assignments (
		id            TEXT PRIMARY KEY,
		conflict_id   TEXT NOT NULL,
		obligation_id TEXT NOT NULL DEFAULT '',
		trip_id       TEXT NOT NULL DEFAULT '',
		driver_id     TEXT NOT NULL,
		vehicle_id    TEXT NOT NULL,
		start_at      TEXT NOT NULL,
		end_at        TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'active'
		              CHECK(status IN ('active','retracted')),
		created_at    TEXT NOT NULL,
		retracted_at  TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_replacements_driver ON replacement_assignments(driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_replacements_vehicle ON replacement_assignments(vehicle_id, status)`,

	`CREATE TABLE IF NOT EXISTS driver_trip_history (
		id           TEXT PRIMARY KEY,
		driver_id    TEXT NOT NULL,
		route_id     TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		on_time      INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE INDEX IF NOT EXISTS idx_trip_history_driver ON driver_trip_history(driver_id, completed_at)`,
}
