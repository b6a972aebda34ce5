package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

type CreateSessionInput struct {
	ClientID    int64
	TherapistID int64
	StartsAt    time.Time
	EndsAt      time.Time
	Status      models.SessionStatus
	Verified    bool
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
	Limit     int
	Offset    int
}

const sessionColumns = `id, client_id, therapist_id, starts_at, ends_at, status, verified, report_content, report_submitted_at, created_at, updated_at`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.ClientID,
		&session.TherapistID,
		&session.StartsAt,
		&session.EndsAt,
		&session.Status,
		&session.Verified,
		&session.ReportContent,
		&session.ReportSubmittedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	status := input.Status
	if status == "" {
		status = models.SessionPending
	}

	query := fmt.Sprintf(`
		INSERT INTO sessions (client_id, therapist_id, starts_at, ends_at, status, verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.ClientID,
		input.TherapistID,
		input.StartsAt,
		input.EndsAt,
		status,
		input.Verified,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	whereClause, args := buildSessionFilter(filter)

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY starts_at ASC, id ASC
	`, sessionColumns, whereClause)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) Count(ctx context.Context, filter SessionListFilter) (int, error) {
	whereClause, args := buildSessionFilter(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM sessions WHERE %s`, whereClause)

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildSessionFilter(filter SessionListFilter) (string, []any) {
	actorColumn := "client_id"
	if filter.Role == "therapist" {
		actorColumn = "therapist_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "ends_at > NOW()")
	case "past":
		whereParts = append(whereParts, "ends_at <= NOW()")
	}

	return strings.Join(whereParts, " AND "), args
}

// ListForTherapistDay returns the therapist's pending and approved
// sessions inside [dayStart, dayEnd), ordered by start time. Declined and
// completed sessions do not hold their windows.
func (r *SessionRepository) ListForTherapistDay(
	ctx context.Context,
	therapistID int64,
	dayStart time.Time,
	dayEnd time.Time,
) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE therapist_id = $1
		  AND status IN ('pending', 'approved')
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at ASC, id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, therapistID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) HasConflict(
	ctx context.Context,
	therapistID int64,
	startsAt time.Time,
	endsAt time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE therapist_id = $1
			  AND status IN ('pending', 'approved')
			  AND starts_at < $3
			  AND ends_at > $2
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, therapistID, startsAt, endsAt).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}

func (r *SessionRepository) HasConflictExcludingSession(
	ctx context.Context,
	therapistID int64,
	startsAt time.Time,
	endsAt time.Time,
	excludedSessionID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE therapist_id = $1
			  AND id <> $4
			  AND status IN ('pending', 'approved')
			  AND starts_at < $3
			  AND ends_at > $2
		)
	`
	var hasConflict bool
	err := r.db.QueryRow(ctx, query, therapistID, startsAt, endsAt, excludedSessionID).
		Scan(&hasConflict)
	if err != nil {
		return false, err
	}
	return hasConflict, nil
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// Reschedule moves the session to a new window and resets it to pending so
// the therapist has to approve it again.
func (r *SessionRepository) Reschedule(
	ctx context.Context,
	sessionID int64,
	startsAt time.Time,
	endsAt time.Time,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET starts_at = $2, ends_at = $3, status = 'pending', updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(ctx, query, sessionID, startsAt, endsAt))
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AttachReport stores the report only while the session is still approved
// or completed. The status guard in the UPDATE keeps a report off a session
// that was declined between the caller's read and this write.
func (r *SessionRepository) AttachReport(
	ctx context.Context,
	sessionID int64,
	content string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET report_content = $2, report_submitted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('approved', 'completed')
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(ctx, query, sessionID, content))
}
