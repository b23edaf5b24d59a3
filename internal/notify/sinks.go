package notify

import (
	"context"
	"errors"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/logging"
)

// LogSink writes events to the structured log.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{log: logging.OrNop(l)}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, event app.Event) error {
	fields := map[string]any{
		"event_id":    event.ID,
		"event_type":  string(event.Type),
		"occurred_at": event.OccurredAt.Format(time.RFC3339),
	}
	if event.LeaveRequestID != "" {
		fields["leave_request_id"] = event.LeaveRequestID
	}
	if event.ConflictID != "" {
		fields["conflict_id"] = event.ConflictID
	}
	if event.DriverID != "" {
		fields["driver_id"] = event.DriverID
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	for k, v := range event.Payload {
		fields[k] = v
	}
	s.log.Infow("workflow event", fields)
	return nil
}

// FanOut publishes every event to each sink and joins their errors.
type FanOut []app.NotificationSink

func (f FanOut) Name() string { return "fanout" }

func (f FanOut) Publish(ctx context.Context, event app.Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, app.Event) error { return nil }
