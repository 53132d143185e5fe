package entities

import "time"

// SplitStatus tracks whether a split still counts toward balances.
type SplitStatus string

const (
	// SplitStatusPending means the participant's share is still owed.
	SplitStatusPending SplitStatus = "pending"
	// SplitStatusSettled is administrative bookkeeping only. Balances are
	// reduced by completed settlements, never by flipping splits, so
	// marking a split settled must coincide with the settlement that pays
	// it off or amounts would be counted twice.
	SplitStatusSettled SplitStatus = "settled"
)

// Split is one participant's share of an expense.
type Split struct {
	ID            int64       `db:"id"`
	ExpenseID     int64       `db:"expense_id"`
	ParticipantID int64       `db:"participant_id"`
	Amount        int64       `db:"amount"`
	Status        SplitStatus `db:"status"`
	CreatedAt     time.Time   `db:"created_at"`
}

// IsPending reports whether the share is still owed.
func (s *Split) IsPending() bool {
	return s.Status == SplitStatusPending
}
