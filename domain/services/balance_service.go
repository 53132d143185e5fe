package services

import (
	"sort"

	"splitpay/domain/entities"
)

// BalanceService derives pairwise and aggregate balances from persisted
// split and settlement lines. It is a pure, deterministic fold: the same
// snapshot always produces the same output, and nothing here writes.
//
// Sign convention: a positive pairwise balance for (user, counterparty)
// means the counterparty owes the user. Only pending splits and completed
// settlements participate; in-flight settlements affect nothing until they
// reach completed, so a transfer that might still fail is never counted.
type BalanceService struct{}

// NewBalanceService creates a new BalanceService
func NewBalanceService() *BalanceService {
	return &BalanceService{}
}

// pairKey orders a user pair deterministically.
type pairKey struct {
	low, high int64
}

// ComputeNets reduces the given lines to one signed net amount per user.
// Positive = the user is owed money overall, negative = the user owes.
// The sum over all users is always zero by construction.
func (s *BalanceService) ComputeNets(splits []entities.SplitLine, settlements []entities.SettlementLine) map[int64]int64 {
	nets := make(map[int64]int64)

	for _, line := range splits {
		if line.Status != entities.SplitStatusPending || line.PayerID == line.ParticipantID {
			continue
		}
		nets[line.PayerID] += line.Amount
		nets[line.ParticipantID] -= line.Amount
	}

	for _, line := range settlements {
		if line.Status != entities.SettlementStatusCompleted || line.ToUserID == 0 {
			continue
		}
		// The sender paid down their debt: their net rises, the
		// recipient's claim falls.
		nets[line.FromUserID] += line.Amount
		nets[line.ToUserID] -= line.Amount
	}

	return nets
}

// ComputeForUser folds the lines into the given user's pairwise balances and
// owed/owing aggregates. Counterparties with a zero net position are elided.
func (s *BalanceService) ComputeForUser(userID int64, splits []entities.SplitLine, settlements []entities.SettlementLine) *entities.UserBalance {
	// signed amount per counterparty, positive = counterparty owes userID
	perCounterparty := make(map[int64]int64)

	for _, line := range splits {
		if line.Status != entities.SplitStatusPending || line.PayerID == line.ParticipantID {
			continue
		}
		switch userID {
		case line.PayerID:
			perCounterparty[line.ParticipantID] += line.Amount
		case line.ParticipantID:
			perCounterparty[line.PayerID] -= line.Amount
		}
	}

	for _, line := range settlements {
		if line.Status != entities.SettlementStatusCompleted || line.ToUserID == 0 {
			continue
		}
		switch userID {
		case line.FromUserID:
			perCounterparty[line.ToUserID] += line.Amount
		case line.ToUserID:
			perCounterparty[line.FromUserID] -= line.Amount
		}
	}

	balance := &entities.UserBalance{UserID: userID}
	for counterparty, amount := range perCounterparty {
		if amount == 0 {
			continue
		}
		balance.Pairwise = append(balance.Pairwise, entities.PairBalance{
			UserID:         userID,
			CounterpartyID: counterparty,
			Amount:         amount,
		})
		if amount > 0 {
			balance.TotalOwing += amount
		} else {
			balance.TotalOwed += -amount
		}
	}

	sort.Slice(balance.Pairwise, func(i, j int) bool {
		return balance.Pairwise[i].CounterpartyID < balance.Pairwise[j].CounterpartyID
	})

	balance.Net = balance.TotalOwing - balance.TotalOwed
	return balance
}
