package service

import (
	"context"
	"errors"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/logging"
	"github.com/fleetdesk/leaveguard/internal/repository"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultBatchSize    = 50
)

// SuggestionWorker generates suggestions for auto-replacement requests
// that were created in async mode, or whose last generation failed.
type SuggestionWorker struct {
	leaves      repository.LeaveRequestRepo
	suggestions SuggestionService
	interval    time.Duration
	batch       int
	log         logging.Logger
	clock       app.Clock
	wake        chan struct{}
}

type WorkerOption func(*SuggestionWorker)

// WithWorkerClock stamps attempts with c instead of the system clock.
func WithWorkerClock(c app.Clock) WorkerOption {
	return func(w *SuggestionWorker) { w.clock = app.ClockOrSystem(c) }
}

func NewSuggestionWorker(leaves repository.LeaveRequestRepo, suggestions SuggestionService, interval time.Duration, batch int, log logging.Logger, opts ...WorkerOption) *SuggestionWorker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	w := &SuggestionWorker{
		leaves:      leaves,
		suggestions: suggestions,
		interval:    interval,
		batch:       batch,
		log:         logging.OrNop(log),
		clock:       app.ClockOrSystem(nil),
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wake schedules an immediate pass. It never blocks.
func (w *SuggestionWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done.
func (w *SuggestionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Errorw("suggestion pass failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// RunOnce processes one batch and returns the number of requests whose
// generation completed without failures.
func (w *SuggestionWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.leaves.ListAwaitingSuggestions(ctx, w.batch)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, l := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		// Stamp first so a request that keeps failing moves to the back.
		if err := w.leaves.MarkSuggestionAttempt(ctx, l.ID, w.clock.Now()); err != nil {
			return done, err
		}
		_, err := w.suggestions.ResumeSuggestions(ctx, l.ID)
		var partial *domain.PartialSuggestionFailure
		switch {
		case err == nil:
			done++
		case errors.As(err, &partial):
			w.log.Warnw("partial suggestion failure", map[string]any{
				"leave_request_id": l.ID,
				"failed":           len(partial.Failures),
				"succeeded":        partial.Succeeded,
			})
		default:
			w.log.Errorw("generating suggestions failed", map[string]any{
				"leave_request_id": l.ID,
				"error":            err.Error(),
			})
		}
	}
	if len(pending) > 0 {
		w.log.Debugw("suggestion pass complete", map[string]any{"pending": len(pending), "completed": done})
	}
	return done, nil
}
