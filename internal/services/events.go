package services

import (
	"time"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

type EventType string

const (
	EventSessionRequested   EventType = "session_requested"
	EventSessionApproved    EventType = "session_approved"
	EventSessionDeclined    EventType = "session_declined"
	EventSessionCompleted   EventType = "session_completed"
	EventSessionRescheduled EventType = "session_rescheduled"
	EventSessionCancelled   EventType = "session_cancelled"
)

// Event describes a session lifecycle change. Events are published after
// the database transaction commits; delivery is fire-and-forget and must
// never influence the outcome of the operation that produced it.
type Event struct {
	Type        EventType            `json:"type"`
	SessionID   int64                `json:"session_id"`
	ClientID    int64                `json:"client_id"`
	TherapistID int64                `json:"therapist_id"`
	Status      models.SessionStatus `json:"status,omitempty"`
	StartsAt    time.Time            `json:"starts_at"`
	EndsAt      time.Time            `json:"ends_at"`
	Message     string               `json:"message"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

// Notifier receives lifecycle events. The websocket hub implements it; a
// nil notifier disables notifications.
type Notifier interface {
	Publish(event Event)
}

func sessionEvent(eventType EventType, session *models.Session, message string) Event {
	return Event{
		Type:        eventType,
		SessionID:   session.ID,
		ClientID:    session.ClientID,
		TherapistID: session.TherapistID,
		Status:      session.Status,
		StartsAt:    session.StartsAt,
		EndsAt:      session.EndsAt,
		Message:     message,
		OccurredAt:  time.Now().UTC(),
	}
}
