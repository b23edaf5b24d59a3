package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
)

// candidateRanker scores candidate pairs. It caches performance history
// for the lifetime of one generation run.
type candidateRanker struct {
	perf    app.PerformanceHistory
	params  scheduler.ScoringParams
	timeout time.Duration
	topN    int
	since   time.Time
	cache   map[string]*domain.PerformanceRecord
}

func newCandidateRanker(perf app.PerformanceHistory, settings Settings, now time.Time) *candidateRanker {
	return &candidateRanker{
		perf:    perf,
		params:  settings.Scoring,
		timeout: settings.LookupTimeout,
		topN:    settings.TopN,
		since:   now.Add(-settings.PerformanceWindow),
		cache:   map[string]*domain.PerformanceRecord{},
	}
}

func (r *candidateRanker) history(ctx context.Context, driverID string) (*domain.PerformanceRecord, error) {
	if rec, ok := r.cache[driverID]; ok {
		return rec, nil
	}
	if r.perf == nil {
		r.cache[driverID] = nil
		return nil, nil
	}
	rec, err := withTimeout(ctx, r.timeout, "performance history",
		func(ctx context.Context) (domain.PerformanceRecord, error) {
			return r.perf.Get(ctx, driverID, r.since)
		})
	if err != nil {
		return nil, fmt.Errorf("loading performance of driver %s: %w", driverID, err)
	}
	var out *domain.PerformanceRecord
	if rec.CompletedTrips > 0 || rec.OnTimeRate != nil || len(rec.RouteCompletionRates) > 0 {
		out = &rec
	}
	r.cache[driverID] = out
	return out, nil
}

// Rank scores every pair of the pool and keeps the best topN.
func (r *candidateRanker) Rank(ctx context.Context, c *domain.Conflict, pool candidatePool) ([]scheduler.ScoredCandidate, error) {
	if pool.empty() {
		return nil, nil
	}
	scored := make([]scheduler.ScoredCandidate, 0, len(pool.Drivers)*len(pool.Vehicles))
	for _, d := range pool.Drivers {
		hist, err := r.history(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range pool.Vehicles {
			scored = append(scored, scheduler.ScoreCandidate(scheduler.ScoringInput{
				Driver:    d,
				VehicleID: v.ID,
				RouteID:   c.RouteID,
				Trip:      c.Window(),
				History:   hist,
				Params:    r.params,
			}))
		}
	}
	return scheduler.TopN(scored, r.topN), nil
}
