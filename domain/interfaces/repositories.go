package interfaces

import (
	"context"
	"time"

	"splitpay/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by local id
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByExternalID retrieves a user by payment network identity
	GetByExternalID(ctx context.Context, externalID string) (*entities.User, error)

	// Create creates a user for an external identity; the username is
	// refreshed on conflict so re-provisioning is safe
	Create(ctx context.Context, externalID, username string) (*entities.User, error)

	// UpdatePreferences replaces a user's preference blob
	UpdatePreferences(ctx context.Context, id int64, prefs map[string]any) error
}

// ExpenseRepository defines the interface for expense and split data access
type ExpenseRepository interface {
	// CreateWithSplits atomically creates an expense and all of its splits.
	// Other readers never observe the expense without its splits.
	CreateWithSplits(ctx context.Context, expense *entities.Expense, splits []*entities.Split) error

	// GetByID retrieves an expense with its splits
	GetByID(ctx context.Context, id int64) (*entities.ExpenseWithSplits, error)

	// ListByUser returns expenses the user paid or participates in
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.ExpenseWithSplits, error)

	// ListSplitLines returns the raw split lines for balance computation.
	// When userID is zero all lines are returned; otherwise only lines
	// where the user is payer or participant.
	ListSplitLines(ctx context.Context, userID int64) ([]entities.SplitLine, error)
}

// SettlementRepository defines the interface for settlement data access
type SettlementRepository interface {
	// Create inserts a settlement in its initial status
	Create(ctx context.Context, settlement *entities.Settlement) error

	// GetByID retrieves a settlement by id
	GetByID(ctx context.Context, id int64) (*entities.Settlement, error)

	// GetByTransferRef retrieves a settlement by its gateway transfer ref
	GetByTransferRef(ctx context.Context, transferRef string) (*entities.Settlement, error)

	// ListByUser returns settlements where the user is sender or recipient
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Settlement, error)

	// Transition performs the compare-and-set status update. It succeeds
	// only when the settlement is currently in expected; otherwise it
	// returns domain.ErrStaleState. This is the sole concurrency primitive
	// protecting settlements.
	Transition(ctx context.Context, id int64, expected, next entities.SettlementStatus, extra entities.SettlementTransition) error

	// ListStuck returns non-terminal settlements older than the cutoff in
	// any of the given statuses, for the reconciliation sweep
	ListStuck(ctx context.Context, statuses []entities.SettlementStatus, cutoff time.Time) ([]*entities.Settlement, error)

	// ListSettlementLines returns the raw settlement lines for balance
	// computation. When userID is zero all lines are returned.
	ListSettlementLines(ctx context.Context, userID int64) ([]entities.SettlementLine, error)
}

// ActivityRepository defines the interface for the append-only audit trail
type ActivityRepository interface {
	// Append inserts an activity record; activities are never updated
	Append(ctx context.Context, activity *entities.Activity) error

	// ListByUser returns the most recent activities for a user
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error)
}
