package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink_WritesEventFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logging.NewZerologLogger("notify", logging.Options{Format: "json", Out: &buf}))

	err := sink.Publish(context.Background(), app.Event{
		ID:             "e1",
		Type:           app.EventOperationalGap,
		LeaveRequestID: "l1",
		ConflictID:     "c1",
		Payload:        map[string]any{"severity": "high"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"event_type":"operational_gap"`)
	assert.Contains(t, out, `"conflict_id":"c1"`)
	assert.Contains(t, out, `"severity":"high"`)
	assert.Equal(t, "log", sink.Name())
}
