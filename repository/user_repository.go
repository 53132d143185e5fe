package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"splitpay/database"
	"splitpay/domain/entities"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

func newUserRepository(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by local id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	query := `
		SELECT id, external_id, username, preferences, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user entities.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.Preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

// GetByExternalID retrieves a user by payment network identity
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	query := `
		SELECT id, external_id, username, preferences, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`

	var user entities.User
	err := r.q.QueryRow(ctx, query, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.Preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by external id %s: %w", externalID, err)
	}
	return &user, nil
}

// Create creates a user for an external identity. The username is refreshed
// on conflict so re-provisioning after a rename is safe.
func (r *UserRepository) Create(ctx context.Context, externalID, username string) (*entities.User, error) {
	query := `
		INSERT INTO users (external_id, username, preferences)
		VALUES ($1, $2, '{}')
		ON CONFLICT (external_id) DO UPDATE SET username = EXCLUDED.username, updated_at = NOW()
		RETURNING id, external_id, username, preferences, created_at, updated_at
	`

	var user entities.User
	err := r.q.QueryRow(ctx, query, externalID, username).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.Preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user for external id %s: %w", externalID, err)
	}
	return &user, nil
}

// UpdatePreferences replaces a user's preference blob
func (r *UserRepository) UpdatePreferences(ctx context.Context, id int64, prefs map[string]any) error {
	query := `
		UPDATE users
		SET preferences = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, prefs, id)
	if err != nil {
		return fmt.Errorf("failed to update preferences for user %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}
