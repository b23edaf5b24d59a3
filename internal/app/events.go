package app

import "time"

type EventType string

const (
	EventLeaveCreated         EventType = "leave_created"
	EventLeaveApproved        EventType = "leave_approved"
	EventLeaveRejected        EventType = "leave_rejected"
	EventLeaveCancelled       EventType = "leave_cancelled"
	EventSuggestionsGenerated EventType = "suggestions_generated"
	EventSuggestionAccepted   EventType = "suggestion_accepted"
	EventSuggestionRejected   EventType = "suggestion_rejected"
	EventOperationalGap       EventType = "operational_gap"
	EventReplacementRetracted EventType = "replacement_retracted"
)

// Event is an outbound notification/audit record.
type Event struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	LeaveRequestID string         `json:"leave_request_id,omitempty"`
	ConflictID     string         `json:"conflict_id,omitempty"`
	DriverID       string         `json:"driver_id,omitempty"`
	Actor          string         `json:"actor,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Payload        map[string]any `json:"payload,omitempty"`
}
