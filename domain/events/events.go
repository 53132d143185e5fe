package events

import "splitpay/domain/entities"

// EventType identifies the ledger events published on the message bus.
type EventType string

const (
	EventTypeExpenseRecorded        EventType = "expense_recorded"
	EventTypeSettlementCreated      EventType = "settlement_created"
	EventTypeSettlementStateChanged EventType = "settlement_state_changed"
)

// Event is the base interface for all ledger events.
type Event interface {
	Type() EventType
}

// ExpenseRecordedEvent is published after an expense and its splits commit.
type ExpenseRecordedEvent struct {
	ExpenseID    int64   `json:"expense_id"`
	PayerID      int64   `json:"payer_id"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Participants []int64 `json:"participants"`
}

func (e ExpenseRecordedEvent) Type() EventType { return EventTypeExpenseRecorded }

// SettlementCreatedEvent is published after a settlement row commits.
type SettlementCreatedEvent struct {
	SettlementID int64  `json:"settlement_id"`
	FromUserID   int64  `json:"from_user_id"`
	ToUserID     *int64 `json:"to_user_id,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Simulated    bool   `json:"simulated"`
}

func (e SettlementCreatedEvent) Type() EventType { return EventTypeSettlementCreated }

// SettlementStateChangedEvent is published after a committed status
// transition. Terminal transitions carry the external transaction id or the
// failure reason.
type SettlementStateChangedEvent struct {
	SettlementID int64                     `json:"settlement_id"`
	From         entities.SettlementStatus `json:"from"`
	To           entities.SettlementStatus `json:"to"`
	ExternalTxID string                    `json:"external_tx_id,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
}

func (e SettlementStateChangedEvent) Type() EventType { return EventTypeSettlementStateChanged }
