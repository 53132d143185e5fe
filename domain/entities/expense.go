package entities

import (
	"fmt"
	"time"

	"splitpay/domain"
)

// Expense is a shared cost paid by one user on behalf of the group. Amounts
// are integer minor currency units; no floats anywhere in money math.
type Expense struct {
	ID        int64     `db:"id"`
	PayerID   int64     `db:"payer_id"`
	Title     string    `db:"title"`
	Amount    int64     `db:"amount"`
	Currency  string    `db:"currency"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
}

// Validate checks the expense's own invariants.
func (e *Expense) Validate() error {
	if e.Amount <= 0 {
		return fmt.Errorf("expense amount %d: %w", e.Amount, domain.ErrInvalidAmount)
	}
	return nil
}

// ExpenseWithSplits is an expense together with its splits. The two are
// created atomically and read together; a split never exists without its
// expense.
type ExpenseWithSplits struct {
	Expense *Expense
	Splits  []*Split
}

// ValidateSplits enforces the split invariants: every share positive, no
// participant listed twice, and the shares summing exactly to the expense
// amount. Remainder handling happens before this point; by the time splits
// exist the sum must be exact.
func (e *ExpenseWithSplits) ValidateSplits() error {
	if len(e.Splits) == 0 {
		return fmt.Errorf("expense has no splits: %w", domain.ErrInvalidSplit)
	}

	seen := make(map[int64]bool, len(e.Splits))
	var sum int64
	for _, split := range e.Splits {
		if split.Amount <= 0 {
			return fmt.Errorf("split for participant %d has amount %d: %w",
				split.ParticipantID, split.Amount, domain.ErrInvalidSplit)
		}
		if seen[split.ParticipantID] {
			return fmt.Errorf("participant %d appears more than once: %w",
				split.ParticipantID, domain.ErrInvalidSplit)
		}
		seen[split.ParticipantID] = true
		sum += split.Amount
	}

	if sum != e.Expense.Amount {
		return fmt.Errorf("splits sum to %d, expense amount is %d: %w",
			sum, e.Expense.Amount, domain.ErrInvalidSplit)
	}
	return nil
}
