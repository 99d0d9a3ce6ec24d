// internal/models/notification.go
package models

import "time"

// EventKind tags a user-visible notification event. Events are produced
// directly by the engine, never inferred from message text.
type EventKind string

const (
	EventApplicationSent    EventKind = "application_sent"
	EventApplicationFailed  EventKind = "application_failed"
	EventResponseReceived   EventKind = "response_received"
	EventInterviewScheduled EventKind = "interview_scheduled"
	EventRunCompleted       EventKind = "run_completed"
)

// Event is one notification payload handed to the dispatcher.
type Event struct {
	Kind      EventKind              `json:"kind"`
	UserID    string                 `json:"userId"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
