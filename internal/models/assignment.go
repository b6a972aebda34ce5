package models

import "time"

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentInactive  AssignmentStatus = "inactive"
	AssignmentCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentActive, AssignmentInactive, AssignmentCompleted:
		return true
	default:
		return false
	}
}

// Assignment is the authorization record that allows a client to book
// sessions with a therapist. Deactivating an assignment does not touch
// sessions already on the calendar; therapy relationships pause and resume.
type Assignment struct {
	ID          int64            `json:"id"`
	ClientID    int64            `json:"client_id"`
	TherapistID int64            `json:"therapist_id"`
	Status      AssignmentStatus `json:"status"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
	Notes       *string          `json:"notes"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type AssignmentSummary struct {
	Assignment
	TherapistName *string    `json:"therapist_name"`
	SessionsCount int        `json:"sessions_count"`
	NextSessionAt *time.Time `json:"next_session_at"`
}
