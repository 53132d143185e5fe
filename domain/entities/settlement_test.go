package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    SettlementStatus
		to      SettlementStatus
		allowed bool
	}{
		{"pending to awaiting_gateway", SettlementStatusPending, SettlementStatusAwaitingGateway, true},
		{"pending to failed", SettlementStatusPending, SettlementStatusFailed, true},
		{"pending skips to approved", SettlementStatusPending, SettlementStatusApproved, false},
		{"pending skips to completed", SettlementStatusPending, SettlementStatusCompleted, false},
		{"awaiting_gateway to approved", SettlementStatusAwaitingGateway, SettlementStatusApproved, true},
		{"awaiting_gateway revert to pending", SettlementStatusAwaitingGateway, SettlementStatusPending, true},
		{"awaiting_gateway to failed", SettlementStatusAwaitingGateway, SettlementStatusFailed, true},
		{"approved to completing", SettlementStatusApproved, SettlementStatusCompleting, true},
		{"approved skips to completed", SettlementStatusApproved, SettlementStatusCompleted, false},
		{"completing to completed", SettlementStatusCompleting, SettlementStatusCompleted, true},
		{"completing revert to approved", SettlementStatusCompleting, SettlementStatusApproved, true},
		{"completing to failed", SettlementStatusCompleting, SettlementStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalStatesAllowNothing(t *testing.T) {
	all := []SettlementStatus{
		SettlementStatusPending,
		SettlementStatusAwaitingGateway,
		SettlementStatusApproved,
		SettlementStatusCompleting,
		SettlementStatusCompleted,
		SettlementStatusFailed,
	}

	for _, terminal := range []SettlementStatus{SettlementStatusCompleted, SettlementStatusFailed} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range all {
			assert.False(t, terminal.CanTransitionTo(next),
				"terminal state %s must not transition to %s", terminal, next)
		}
	}
}

func TestCompletedWith(t *testing.T) {
	txid := "tx_1"
	s := &Settlement{Status: SettlementStatusCompleted, ExternalTxID: &txid}

	assert.True(t, s.CompletedWith("tx_1"))
	assert.False(t, s.CompletedWith("tx_2"))

	s.Status = SettlementStatusApproved
	assert.False(t, s.CompletedWith("tx_1"))

	s.Status = SettlementStatusCompleted
	s.ExternalTxID = nil
	assert.False(t, s.CompletedWith("tx_1"))
}

func TestExpenseSplitValidation(t *testing.T) {
	expense := &Expense{Amount: 9000}

	t.Run("exact sum passes", func(t *testing.T) {
		ew := &ExpenseWithSplits{Expense: expense, Splits: []*Split{
			{ParticipantID: 1, Amount: 3000},
			{ParticipantID: 2, Amount: 3000},
			{ParticipantID: 3, Amount: 3000},
		}}
		assert.NoError(t, ew.ValidateSplits())
	})

	t.Run("sum mismatch fails", func(t *testing.T) {
		ew := &ExpenseWithSplits{Expense: expense, Splits: []*Split{
			{ParticipantID: 1, Amount: 3000},
			{ParticipantID: 2, Amount: 3000},
		}}
		assert.Error(t, ew.ValidateSplits())
	})

	t.Run("duplicate participant fails", func(t *testing.T) {
		ew := &ExpenseWithSplits{Expense: expense, Splits: []*Split{
			{ParticipantID: 1, Amount: 4500},
			{ParticipantID: 1, Amount: 4500},
		}}
		assert.Error(t, ew.ValidateSplits())
	})

	t.Run("non-positive share fails", func(t *testing.T) {
		ew := &ExpenseWithSplits{Expense: expense, Splits: []*Split{
			{ParticipantID: 1, Amount: 9001},
			{ParticipantID: 2, Amount: -1},
		}}
		assert.Error(t, ew.ValidateSplits())
	})
}
