package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"splitpay/database"
	"splitpay/domain"
	"splitpay/domain/entities"
)

// SettlementRepository implements the SettlementRepository interface
type SettlementRepository struct {
	q Queryable
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *database.DB) *SettlementRepository {
	return &SettlementRepository{q: db.Pool}
}

func newSettlementRepository(tx Queryable) *SettlementRepository {
	return &SettlementRepository{q: tx}
}

const settlementColumns = `
	id, from_user_id, to_user_id, external_address, amount, currency, status,
	transfer_ref, external_tx_id, category, note, simulated, reason,
	created_at, completed_at
`

// Create inserts a settlement in its initial status
func (r *SettlementRepository) Create(ctx context.Context, settlement *entities.Settlement) error {
	query := `
		INSERT INTO settlements (
			from_user_id, to_user_id, external_address, amount, currency,
			status, transfer_ref, category, note, simulated, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		settlement.FromUserID,
		settlement.ToUserID,
		settlement.ExternalAddress,
		settlement.Amount,
		settlement.Currency,
		settlement.Status,
		settlement.TransferRef,
		settlement.Category,
		settlement.Note,
		settlement.Simulated,
		settlement.CompletedAt,
	).Scan(&settlement.ID, &settlement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

// GetByID retrieves a settlement by id
func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*entities.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	settlement, err := r.scanOne(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement %d: %w", id, err)
	}
	return settlement, nil
}

// GetByTransferRef retrieves a settlement by its gateway transfer ref
func (r *SettlementRepository) GetByTransferRef(ctx context.Context, transferRef string) (*entities.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE transfer_ref = $1`

	settlement, err := r.scanOne(r.q.QueryRow(ctx, query, transferRef))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement by transfer ref %s: %w", transferRef, err)
	}
	return settlement, nil
}

// ListByUser returns the most recent settlements where the user is sender or
// recipient
func (r *SettlementRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Settlement, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlements
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements for user %d: %w", userID, err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// Transition performs the compare-and-set status update that is the sole
// concurrency primitive protecting settlements. The row moves to next only
// if it is still in expected; a lost race surfaces as domain.ErrStaleState
// so the caller can re-read and decide.
func (r *SettlementRepository) Transition(ctx context.Context, id int64, expected, next entities.SettlementStatus, extra entities.SettlementTransition) error {
	if !expected.CanTransitionTo(next) {
		return fmt.Errorf("transition %s -> %s not allowed: %w", expected, next, domain.ErrStaleState)
	}

	query := `
		UPDATE settlements
		SET status = $3,
		    external_tx_id = COALESCE($4, external_tx_id),
		    reason = COALESCE($5, reason),
		    completed_at = COALESCE($6, completed_at)
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.Exec(ctx, query, id, expected, next, extra.ExternalTxID, extra.Reason, extra.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to transition settlement %d from %s to %s: %w", id, expected, next, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("settlement %d is no longer %s: %w", id, expected, domain.ErrStaleState)
	}
	return nil
}

// ListStuck returns non-terminal settlements older than the cutoff in any of
// the given statuses, for the reconciliation sweep
func (r *SettlementRepository) ListStuck(ctx context.Context, statuses []entities.SettlementStatus, cutoff time.Time) ([]*entities.Settlement, error) {
	query := `
		SELECT ` + settlementColumns + `
		FROM settlements
		WHERE status = ANY($1) AND created_at < $2
		ORDER BY created_at
	`

	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}

	rows, err := r.q.Query(ctx, query, values, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck settlements: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListSettlementLines returns the raw settlement lines for balance
// computation. Settlements without a local recipient carry ToUserID 0. When
// userID is zero all lines are returned.
func (r *SettlementRepository) ListSettlementLines(ctx context.Context, userID int64) ([]entities.SettlementLine, error) {
	query := `
		SELECT id, from_user_id, COALESCE(to_user_id, 0), amount, status
		FROM settlements
		WHERE $1 = 0 OR from_user_id = $1 OR to_user_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement lines: %w", err)
	}
	defer rows.Close()

	var lines []entities.SettlementLine
	for rows.Next() {
		var line entities.SettlementLine
		err := rows.Scan(&line.SettlementID, &line.FromUserID, &line.ToUserID, &line.Amount, &line.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement lines: %w", err)
	}
	return lines, nil
}

func (r *SettlementRepository) scanOne(row pgx.Row) (*entities.Settlement, error) {
	var settlement entities.Settlement
	err := row.Scan(
		&settlement.ID,
		&settlement.FromUserID,
		&settlement.ToUserID,
		&settlement.ExternalAddress,
		&settlement.Amount,
		&settlement.Currency,
		&settlement.Status,
		&settlement.TransferRef,
		&settlement.ExternalTxID,
		&settlement.Category,
		&settlement.Note,
		&settlement.Simulated,
		&settlement.Reason,
		&settlement.CreatedAt,
		&settlement.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *SettlementRepository) scanAll(rows pgx.Rows) ([]*entities.Settlement, error) {
	var settlements []*entities.Settlement
	for rows.Next() {
		settlement, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
