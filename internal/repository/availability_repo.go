package repository

import (
	"context"

	"github.com/arda-n/TherapyDeskBack/internal/models"
)

type AvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) GetRules(
	ctx context.Context,
	therapistID int64,
) ([]models.AvailabilityRule, error) {
	query := `
		SELECT id, therapist_id, day_of_week, start_minute, end_minute
		FROM weekly_availability
		WHERE therapist_id = $1
		ORDER BY day_of_week ASC, start_minute ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.AvailabilityRule, 0)
	for rows.Next() {
		var rule models.AvailabilityRule
		if err := rows.Scan(
			&rule.ID,
			&rule.TherapistID,
			&rule.DayOfWeek,
			&rule.StartMinute,
			&rule.EndMinute,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

// ReplaceRules discards the therapist's whole rule set and inserts the new
// one. The caller is expected to construct this repository over a
// transaction so the delete and the inserts commit or roll back together.
func (r *AvailabilityRepository) ReplaceRules(
	ctx context.Context,
	therapistID int64,
	rules []models.AvailabilityRule,
) error {
	if _, err := r.db.Exec(
		ctx,
		`DELETE FROM weekly_availability WHERE therapist_id = $1`,
		therapistID,
	); err != nil {
		return err
	}

	query := `
		INSERT INTO weekly_availability (therapist_id, day_of_week, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
	`
	for _, rule := range rules {
		if _, err := r.db.Exec(
			ctx,
			query,
			therapistID,
			rule.DayOfWeek,
			rule.StartMinute,
			rule.EndMinute,
		); err != nil {
			return err
		}
	}

	return nil
}
