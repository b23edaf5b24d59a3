package service

import (
	"context"
	"time"

	"github.com/fleetdesk/leaveguard/internal/logging"
)

// UseCaseEvent captures lightweight execution telemetry for a service use case.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	log logging.Logger
}

// NewLogUseCaseObserver writes use-case events to the structured log.
func NewLogUseCaseObserver(l logging.Logger) UseCaseObserver {
	if l == nil {
		return NoopUseCaseObserver{}
	}
	return &logUseCaseObserver{log: l}
}

func (o *logUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	fields := make(map[string]any, 4+len(event.Fields))
	for k, v := range event.Fields {
		fields[k] = v
	}
	fields["use_case"] = event.Name
	fields["duration_ms"] = event.Duration.Milliseconds()
	fields["success"] = event.Success
	if event.Err != nil {
		fields["error"] = event.Err.Error()
		o.log.Errorw("service_use_case", fields)
		return
	}
	o.log.Infow("service_use_case", fields)
}

// UseCaseRecorder is the metrics side of use-case observation.
// *metrics.Recorder satisfies it.
type UseCaseRecorder interface {
	ObserveUseCase(name string, success bool, d time.Duration)
}

type metricsUseCaseObserver struct {
	rec UseCaseRecorder
}

func NewMetricsUseCaseObserver(rec UseCaseRecorder) UseCaseObserver {
	if rec == nil {
		return NoopUseCaseObserver{}
	}
	return &metricsUseCaseObserver{rec: rec}
}

func (o *metricsUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	o.rec.ObserveUseCase(event.Name, event.Success, event.Duration)
}

// MultiObserver forwards every event to each observer.
type MultiObserver []UseCaseObserver

func (m MultiObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	for _, o := range m {
		if o != nil {
			o.ObserveUseCase(ctx, event)
		}
	}
}

// CombineObservers drops nil observers and fans out to the rest.
func CombineObservers(observers ...UseCaseObserver) UseCaseObserver {
	var live MultiObserver
	for _, obs := range observers {
		if obs != nil {
			live = append(live, obs)
		}
	}
	switch len(live) {
	case 0:
		return NoopUseCaseObserver{}
	case 1:
		return live[0]
	default:
		return live
	}
}

// observe reports a finished use case. Call it deferred with a pointer to
// the named error result.
func observe(ctx context.Context, obs UseCaseObserver, name string, startedAt time.Time, fields map[string]any, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	obs.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   e == nil,
		Err:       e,
		Fields:    fields,
	})
}

// DomainStats counts workflow outcomes. *metrics.Recorder satisfies it.
type DomainStats interface {
	RecordConflict(severity string)
	RecordSuggestions(n int)
	RecordGaps(n int)
}

type noopStats struct{}

func (noopStats) RecordConflict(string) {}
func (noopStats) RecordSuggestions(int) {}
func (noopStats) RecordGaps(int)        {}
