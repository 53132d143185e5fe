package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"splitpay/database"
	"splitpay/domain/entities"
)

// ExpenseRepository implements the ExpenseRepository interface
type ExpenseRepository struct {
	q Queryable
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *database.DB) *ExpenseRepository {
	return &ExpenseRepository{q: db.Pool}
}

func newExpenseRepository(tx Queryable) *ExpenseRepository {
	return &ExpenseRepository{q: tx}
}

// CreateWithSplits atomically creates an expense and all of its splits. The
// caller provides the transaction through the unit of work; this method only
// issues the inserts.
func (r *ExpenseRepository) CreateWithSplits(ctx context.Context, expense *entities.Expense, splits []*entities.Split) error {
	expenseQuery := `
		INSERT INTO expenses (payer_id, title, amount, currency, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, expenseQuery,
		expense.PayerID,
		expense.Title,
		expense.Amount,
		expense.Currency,
		expense.Category,
	).Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}

	splitQuery := `
		INSERT INTO splits (expense_id, participant_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	for _, split := range splits {
		split.ExpenseID = expense.ID
		err := r.q.QueryRow(ctx, splitQuery,
			split.ExpenseID,
			split.ParticipantID,
			split.Amount,
			split.Status,
		).Scan(&split.ID, &split.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create split for participant %d: %w", split.ParticipantID, err)
		}
	}

	return nil
}

// GetByID retrieves an expense with its splits
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entities.ExpenseWithSplits, error) {
	query := `
		SELECT id, payer_id, title, amount, currency, category, created_at
		FROM expenses
		WHERE id = $1
	`

	var expense entities.Expense
	err := r.q.QueryRow(ctx, query, id).Scan(
		&expense.ID,
		&expense.PayerID,
		&expense.Title,
		&expense.Amount,
		&expense.Currency,
		&expense.Category,
		&expense.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %d: %w", id, err)
	}

	splits, err := r.splitsForExpenses(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return &entities.ExpenseWithSplits{Expense: &expense, Splits: splits[id]}, nil
}

// ListByUser returns the most recent expenses the user paid or participates in
func (r *ExpenseRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.ExpenseWithSplits, error) {
	query := `
		SELECT DISTINCT e.id, e.payer_id, e.title, e.amount, e.currency, e.category, e.created_at
		FROM expenses e
		LEFT JOIN splits s ON s.expense_id = e.id
		WHERE e.payer_id = $1 OR s.participant_id = $1
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for user %d: %w", userID, err)
	}
	defer rows.Close()

	var expenses []*entities.Expense
	var ids []int64
	for rows.Next() {
		var expense entities.Expense
		err := rows.Scan(
			&expense.ID,
			&expense.PayerID,
			&expense.Title,
			&expense.Amount,
			&expense.Currency,
			&expense.Category,
			&expense.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, &expense)
		ids = append(ids, expense.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	splitsByExpense, err := r.splitsForExpenses(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*entities.ExpenseWithSplits, 0, len(expenses))
	for _, expense := range expenses {
		result = append(result, &entities.ExpenseWithSplits{
			Expense: expense,
			Splits:  splitsByExpense[expense.ID],
		})
	}
	return result, nil
}

// ListSplitLines returns the raw split lines for balance computation. When
// userID is zero all lines are returned.
func (r *ExpenseRepository) ListSplitLines(ctx context.Context, userID int64) ([]entities.SplitLine, error) {
	query := `
		SELECT s.expense_id, e.payer_id, s.participant_id, s.amount, s.status
		FROM splits s
		JOIN expenses e ON e.id = s.expense_id
		WHERE $1 = 0 OR e.payer_id = $1 OR s.participant_id = $1
		ORDER BY s.id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list split lines: %w", err)
	}
	defer rows.Close()

	var lines []entities.SplitLine
	for rows.Next() {
		var line entities.SplitLine
		err := rows.Scan(&line.ExpenseID, &line.PayerID, &line.ParticipantID, &line.Amount, &line.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split lines: %w", err)
	}
	return lines, nil
}

func (r *ExpenseRepository) splitsForExpenses(ctx context.Context, expenseIDs []int64) (map[int64][]*entities.Split, error) {
	result := make(map[int64][]*entities.Split)
	if len(expenseIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, expense_id, participant_id, amount, status, created_at
		FROM splits
		WHERE expense_id = ANY($1)
		ORDER BY expense_id, participant_id
	`

	rows, err := r.q.Query(ctx, query, expenseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var split entities.Split
		err := rows.Scan(
			&split.ID,
			&split.ExpenseID,
			&split.ParticipantID,
			&split.Amount,
			&split.Status,
			&split.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		result[split.ExpenseID] = append(result[split.ExpenseID], &split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return result, nil
}
