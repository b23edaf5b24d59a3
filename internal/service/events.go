package service

import (
	"context"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/google/uuid"
)

// publish hands the event to the sink. Delivery failures are logged and
// never affect the calling operation.
func (c *core) publish(ctx context.Context, e app.Event) {
	if c.Events == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = c.Clock.Now().UTC()
	}
	if err := c.Events.Publish(ctx, e); err != nil {
		c.Log.Warnw("publishing event failed", map[string]any{
			"event_type": string(e.Type),
			"event_id":   e.ID,
			"error":      err.Error(),
		})
	}
}
