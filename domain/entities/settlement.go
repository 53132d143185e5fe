package entities

import "time"

// SettlementStatus is the closed set of settlement states. Transitions are
// enforced by the store's compare-and-set primitive, never by convention at
// call sites.
type SettlementStatus string

const (
	SettlementStatusPending         SettlementStatus = "pending"
	SettlementStatusAwaitingGateway SettlementStatus = "awaiting_gateway"
	SettlementStatusApproved        SettlementStatus = "approved"
	SettlementStatusCompleting      SettlementStatus = "completing"
	SettlementStatusCompleted       SettlementStatus = "completed"
	SettlementStatusFailed          SettlementStatus = "failed"
)

// forwardTransitions is the settlement state machine:
//
//	pending -> awaiting_gateway -> approved -> completing -> completed
//	any non-terminal state -> failed
//
// awaiting_gateway->pending and completing->approved are retry reverts: a
// transport failure mid-call returns the settlement to its prior status so a
// retry is always safe. They are the only backward edges and never leave a
// terminal state.
var forwardTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementStatusPending:         {SettlementStatusAwaitingGateway, SettlementStatusFailed},
	SettlementStatusAwaitingGateway: {SettlementStatusApproved, SettlementStatusPending, SettlementStatusFailed},
	SettlementStatusApproved:        {SettlementStatusCompleting, SettlementStatusFailed},
	SettlementStatusCompleting:      {SettlementStatusCompleted, SettlementStatusApproved, SettlementStatusFailed},
	SettlementStatusCompleted:       nil,
	SettlementStatusFailed:          nil,
}

// IsTerminal reports whether no further transition is possible.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusCompleted || s == SettlementStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	for _, allowed := range forwardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s SettlementStatus) String() string {
	return string(s)
}

// Settlement is a transfer intended to resolve outstanding balances between
// two parties, tracked through the external-confirmation state machine.
// From/to/amount never change after creation; corrections require a new
// settlement.
type Settlement struct {
	ID              int64            `db:"id"`
	FromUserID      int64            `db:"from_user_id"`
	ToUserID        *int64           `db:"to_user_id"`
	ExternalAddress *string          `db:"external_address"`
	Amount          int64            `db:"amount"`
	Currency        string           `db:"currency"`
	Status          SettlementStatus `db:"status"`
	// TransferRef is our idempotency key towards the payment gateway,
	// assigned at creation.
	TransferRef string `db:"transfer_ref"`
	// ExternalTxID is the network's transaction id, nil until completion.
	ExternalTxID *string   `db:"external_tx_id"`
	Category     string    `db:"category"`
	Note         string    `db:"note"`
	Simulated    bool      `db:"simulated"`
	Reason       *string   `db:"reason"`
	CreatedAt    time.Time `db:"created_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

// IsCompleted reports whether the settlement reached its happy terminal state.
func (s *Settlement) IsCompleted() bool {
	return s.Status == SettlementStatusCompleted
}

// IsTerminal reports whether the settlement can no longer change state.
func (s *Settlement) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// CompletedWith reports whether the settlement already completed with the
// given external transaction id. Used to make completion idempotent.
func (s *Settlement) CompletedWith(externalTxID string) bool {
	return s.IsCompleted() && s.ExternalTxID != nil && *s.ExternalTxID == externalTxID
}

// SettlementTransition carries the optional fields written alongside a
// status change. Nil fields are left untouched.
type SettlementTransition struct {
	ExternalTxID *string
	Reason       *string
	CompletedAt  *time.Time
}

// CounterpartyLabel returns the recipient user id or raw external address for
// logging and activity records.
func (s *Settlement) CounterpartyLabel() string {
	if s.ToUserID != nil {
		return "user"
	}
	return "external"
}
