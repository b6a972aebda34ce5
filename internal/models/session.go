package models

import "time"

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionApproved  SessionStatus = "approved"
	SessionDeclined  SessionStatus = "declined"
	SessionCompleted SessionStatus = "completed"
)

// sessionEdges holds every legal status transition. The approved to
// pending edge exists for reschedules only; a reschedule additionally
// runs the full booking validation before the status drops back.
var sessionEdges = map[SessionStatus]map[SessionStatus]bool{
	SessionPending: {
		SessionApproved: true,
		SessionDeclined: true,
	},
	SessionApproved: {
		SessionCompleted: true,
		SessionPending:   true,
	},
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionApproved, SessionDeclined, SessionCompleted:
		return true
	default:
		return false
	}
}

func (s SessionStatus) Terminal() bool {
	return s == SessionDeclined || s == SessionCompleted
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return sessionEdges[s][next]
}

type Session struct {
	ID                int64         `json:"id"`
	ClientID          int64         `json:"client_id"`
	TherapistID       int64         `json:"therapist_id"`
	StartsAt          time.Time     `json:"starts_at"`
	EndsAt            time.Time     `json:"ends_at"`
	Status            SessionStatus `json:"status"`
	Verified          bool          `json:"verified"`
	ReportContent     *string       `json:"report_content,omitempty"`
	ReportSubmittedAt *time.Time    `json:"report_submitted_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
