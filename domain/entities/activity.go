package entities

import "time"

// ActivityAction identifies the ledger-affecting action an activity records.
type ActivityAction string

const (
	ActivityExpenseRecorded     ActivityAction = "expense_recorded"
	ActivitySettlementCreated   ActivityAction = "settlement_created"
	ActivitySettlementCompleted ActivityAction = "settlement_completed"
	ActivitySettlementFailed    ActivityAction = "settlement_failed"
)

// RefType says what entity an activity's RefID points at.
type RefType string

const (
	RefTypeExpense    RefType = "expense"
	RefTypeSettlement RefType = "settlement"
)

// Activity is an append-only audit record. It is never updated or deleted
// and never used for balance computation.
type Activity struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Action    ActivityAction `db:"action"`
	RefType   RefType        `db:"ref_type"`
	RefID     int64          `db:"ref_id"`
	Metadata  map[string]any `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}
