package repository

import (
	"context"
	"fmt"

	"splitpay/database"
	"splitpay/domain/entities"
)

// ActivityRepository implements the ActivityRepository interface
type ActivityRepository struct {
	q Queryable
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{q: db.Pool}
}

func newActivityRepository(tx Queryable) *ActivityRepository {
	return &ActivityRepository{q: tx}
}

// Append inserts an activity record. Activities are append-only; there is no
// update or delete path.
func (r *ActivityRepository) Append(ctx context.Context, activity *entities.Activity) error {
	query := `
		INSERT INTO activities (user_id, action, ref_type, ref_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		activity.UserID,
		activity.Action,
		activity.RefType,
		activity.RefID,
		activity.Metadata,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListByUser returns the most recent activities for a user
func (r *ActivityRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error) {
	query := `
		SELECT id, user_id, action, ref_type, ref_id, metadata, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities for user %d: %w", userID, err)
	}
	defer rows.Close()

	var activities []*entities.Activity
	for rows.Next() {
		var activity entities.Activity
		err := rows.Scan(
			&activity.ID,
			&activity.UserID,
			&activity.Action,
			&activity.RefType,
			&activity.RefID,
			&activity.Metadata,
			&activity.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}
