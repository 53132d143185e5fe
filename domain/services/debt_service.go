package services

import (
	"fmt"
	"sort"

	"splitpay/domain"
	"splitpay/domain/entities"
)

// DebtService computes the smallest set of transfers that zeroes a group's
// net balances. The algorithm greedily matches the largest-magnitude debtor
// against the largest-magnitude creditor, transferring the smaller of the
// two amounts, until every net is zero. For n participants with nonzero net
// this terminates in at most n-1 transfers. Ties break on the lowest user id
// so the plan is deterministic.
//
// The service only suggests; it never creates settlements.
type DebtService struct{}

// NewDebtService creates a new DebtService
func NewDebtService() *DebtService {
	return &DebtService{}
}

type netEntry struct {
	userID int64
	amount int64 // positive for creditors, positive-magnitude debt for debtors
}

// TransferPlan is a finite, restartable sequence of suggested transfers.
// Transfers are computed lazily on each Next call; Reset rewinds the plan to
// its initial state.
type TransferPlan struct {
	initialDebtors   []netEntry
	initialCreditors []netEntry
	debtors          []netEntry
	creditors        []netEntry
}

// SuggestTransfers validates the nets and returns a transfer plan. Nets that
// do not sum to zero cannot come from a consistent ledger, so that case is
// surfaced as ErrLedgerInconsistent rather than silently repaired.
func (s *DebtService) SuggestTransfers(nets map[int64]int64) (*TransferPlan, error) {
	var sum int64
	var debtors, creditors []netEntry
	for userID, net := range nets {
		sum += net
		switch {
		case net < 0:
			debtors = append(debtors, netEntry{userID: userID, amount: -net})
		case net > 0:
			creditors = append(creditors, netEntry{userID: userID, amount: net})
		}
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: net balances sum to %d, want 0", domain.ErrLedgerInconsistent, sum)
	}

	sortNetEntries(debtors)
	sortNetEntries(creditors)

	plan := &TransferPlan{
		initialDebtors:   debtors,
		initialCreditors: creditors,
	}
	plan.Reset()
	return plan, nil
}

// sortNetEntries orders by descending magnitude, then ascending user id.
func sortNetEntries(entries []netEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].userID < entries[j].userID
	})
}

// Reset rewinds the plan to its initial state.
func (p *TransferPlan) Reset() {
	p.debtors = make([]netEntry, len(p.initialDebtors))
	copy(p.debtors, p.initialDebtors)
	p.creditors = make([]netEntry, len(p.initialCreditors))
	copy(p.creditors, p.initialCreditors)
}

// Next computes the next suggested transfer. It returns false when every net
// balance has been zeroed.
func (p *TransferPlan) Next() (entities.Transfer, bool) {
	if len(p.debtors) == 0 || len(p.creditors) == 0 {
		return entities.Transfer{}, false
	}

	debtor := &p.debtors[0]
	creditor := &p.creditors[0]

	amount := debtor.amount
	if creditor.amount < amount {
		amount = creditor.amount
	}

	transfer := entities.Transfer{
		FromUserID: debtor.userID,
		ToUserID:   creditor.userID,
		Amount:     amount,
	}

	debtor.amount -= amount
	creditor.amount -= amount
	if debtor.amount == 0 {
		p.debtors = p.debtors[1:]
	}
	if creditor.amount == 0 {
		p.creditors = p.creditors[1:]
	}
	// Magnitudes only shrink, so re-sorting keeps the greedy order. The
	// slices are already sorted except possibly the heads, which were
	// either removed or reduced.
	sortNetEntries(p.debtors)
	sortNetEntries(p.creditors)

	return transfer, true
}

// All drains the plan into a slice and resets it, for callers that want the
// whole suggestion list at once.
func (p *TransferPlan) All() []entities.Transfer {
	var transfers []entities.Transfer
	for {
		t, ok := p.Next()
		if !ok {
			break
		}
		transfers = append(transfers, t)
	}
	p.Reset()
	return transfers
}
