package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

const suggestionColumns = `id, conflict_id, rank, driver_id, vehicle_id, route_familiarity, performance,
	availability_fit, credential_margin, total_score, reason, is_available, created_at`

type SQLiteSuggestionRepo struct {
	db db.DBTX
}

func NewSQLiteSuggestionRepo(db db.DBTX) *SQLiteSuggestionRepo {
	return &SQLiteSuggestionRepo{db: db}
}

func (r *SQLiteSuggestionRepo) ReplaceForConflict(ctx context.Context, conflictID string, pairs []domain.CandidatePair) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM suggestions WHERE conflict_id = ?`, conflictID); err != nil {
		return fmt.Errorf("deleting suggestions: %w", err)
	}

	query := `INSERT INTO suggestions (` + suggestionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, p := range pairs {
		_, err := r.db.ExecContext(ctx, query,
			p.ID,
			conflictID,
			p.Rank,
			p.DriverID,
			p.VehicleID,
			p.Scores.RouteFamiliarity,
			p.Scores.Performance,
			p.Scores.AvailabilityFit,
			p.Scores.CredentialMargin,
			p.TotalScore,
			p.Reason,
			boolToInt(p.IsAvailable),
			formatInstant(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting suggestion rank %d: %w", p.Rank, err)
		}
	}
	return nil
}

func (r *SQLiteSuggestionRepo) ListByConflict(ctx context.Context, conflictID string) ([]domain.CandidatePair, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE conflict_id = ? ORDER BY rank`
	rows, err := r.db.QueryContext(ctx, query, conflictID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	var out []domain.CandidatePair
	for rows.Next() {
		p, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return out, nil
}

func (r *SQLiteSuggestionRepo) GetByID(ctx context.Context, id string) (*domain.CandidatePair, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = ?`
	p, err := scanSuggestion(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "suggestion", ID: id}
	}
	return p, err
}

func scanSuggestion(row rowScanner) (*domain.CandidatePair, error) {
	var p domain.CandidatePair
	var available int
	var createdAt string
	err := row.Scan(
		&p.ID, &p.ConflictID, &p.Rank, &p.DriverID, &p.VehicleID,
		&p.Scores.RouteFamiliarity, &p.Scores.Performance, &p.Scores.AvailabilityFit, &p.Scores.CredentialMargin,
		&p.TotalScore, &p.Reason, &available, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning suggestion: %w", err)
	}
	p.IsAvailable = intToBool(available)
	if p.CreatedAt, err = parseInstant(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
