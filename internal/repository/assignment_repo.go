package repository

import (
	"context"
	"time"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

type CreateAssignmentInput struct {
	ClientID    int64
	TherapistID int64
	StartDate   time.Time
	Notes       *string
}

type AssignmentRepository struct {
	db DBTX
}

func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(
	ctx context.Context,
	input CreateAssignmentInput,
) (*models.Assignment, error) {
	query := `
		INSERT INTO assignments (client_id, therapist_id, status, start_date, notes)
		VALUES ($1, $2, 'active', $3, $4)
		RETURNING id, client_id, therapist_id, status, start_date, end_date, notes, created_at, updated_at
	`
	var assignment models.Assignment
	err := r.db.QueryRow(
		ctx,
		query,
		input.ClientID,
		input.TherapistID,
		input.StartDate,
		input.Notes,
	).Scan(
		&assignment.ID,
		&assignment.ClientID,
		&assignment.TherapistID,
		&assignment.Status,
		&assignment.StartDate,
		&assignment.EndDate,
		&assignment.Notes,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	query := `
		SELECT id, client_id, therapist_id, status, start_date, end_date, notes, created_at, updated_at
		FROM assignments
		WHERE id = $1
	`
	var assignment models.Assignment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&assignment.ID,
		&assignment.ClientID,
		&assignment.TherapistID,
		&assignment.Status,
		&assignment.StartDate,
		&assignment.EndDate,
		&assignment.Notes,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// HasActive reports whether an active assignment exists for the pair. This
// is the booking eligibility check.
func (r *AssignmentRepository) HasActive(
	ctx context.Context,
	clientID int64,
	therapistID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM assignments
			WHERE client_id = $1
			  AND therapist_id = $2
			  AND status = 'active'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, clientID, therapistID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListActiveForClient returns the client's active assignments annotated
// with the total number of sessions booked under the pair and the start of
// the earliest upcoming pending or approved session.
func (r *AssignmentRepository) ListActiveForClient(
	ctx context.Context,
	clientID int64,
) ([]models.AssignmentSummary, error) {
	query := `
		SELECT
			a.id, a.client_id, a.therapist_id, a.status, a.start_date, a.end_date,
			a.notes, a.created_at, a.updated_at,
			u.full_name,
			(
				SELECT COUNT(*)
				FROM sessions s
				WHERE s.client_id = a.client_id AND s.therapist_id = a.therapist_id
			) AS sessions_count,
			(
				SELECT MIN(s.starts_at)
				FROM sessions s
				WHERE s.client_id = a.client_id
				  AND s.therapist_id = a.therapist_id
				  AND s.status IN ('pending', 'approved')
				  AND s.starts_at >= date_trunc('day', NOW())
			) AS next_session_at
		FROM assignments a
		JOIN users u ON u.id = a.therapist_id
		WHERE a.client_id = $1
		  AND a.status = 'active'
		ORDER BY a.start_date ASC, a.id ASC
	`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.AssignmentSummary, 0)
	for rows.Next() {
		var summary models.AssignmentSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.ClientID,
			&summary.TherapistID,
			&summary.Status,
			&summary.StartDate,
			&summary.EndDate,
			&summary.Notes,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.TherapistName,
			&summary.SessionsCount,
			&summary.NextSessionAt,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *AssignmentRepository) SetStatus(
	ctx context.Context,
	id int64,
	status models.AssignmentStatus,
	endDate *time.Time,
) (*models.Assignment, error) {
	query := `
		UPDATE assignments
		SET status = $2, end_date = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, client_id, therapist_id, status, start_date, end_date, notes, created_at, updated_at
	`
	var assignment models.Assignment
	err := r.db.QueryRow(ctx, query, id, status, endDate).Scan(
		&assignment.ID,
		&assignment.ClientID,
		&assignment.TherapistID,
		&assignment.Status,
		&assignment.StartDate,
		&assignment.EndDate,
		&assignment.Notes,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}
