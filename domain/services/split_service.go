package services

import (
	"sort"

	"splitpay/domain"
	"splitpay/domain/entities"
)

// Share is one participant's requested portion of an expense.
type Share struct {
	ParticipantID int64
	Amount        int64
}

// SplitService contains pure split math: building validated splits from
// requested shares and dividing amounts evenly to the minor currency unit.
type SplitService struct{}

// NewSplitService creates a new SplitService
func NewSplitService() *SplitService {
	return &SplitService{}
}

// EvenShares divides amount evenly across the given participants. Remainder
// units that cannot divide evenly go to the participants with the lowest ids,
// one unit each, so the shares always sum exactly to amount and the result
// is deterministic.
func (s *SplitService) EvenShares(amount int64, participantIDs []int64) ([]Share, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if len(participantIDs) == 0 {
		return nil, domain.ErrInvalidSplit
	}

	ids := make([]int64, len(participantIDs))
	copy(ids, participantIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, domain.ErrInvalidSplit
		}
	}

	n := int64(len(ids))
	base := amount / n
	remainder := amount % n
	if base == 0 {
		// More participants than minor units; some shares would be zero.
		return nil, domain.ErrInvalidSplit
	}

	shares := make([]Share, 0, len(ids))
	for i, id := range ids {
		share := base
		if int64(i) < remainder {
			share++
		}
		shares = append(shares, Share{ParticipantID: id, Amount: share})
	}
	return shares, nil
}

// BuildSplits turns requested shares into split rows for the given expense,
// enforcing the sum and uniqueness invariants before anything is written.
func (s *SplitService) BuildSplits(expense *entities.Expense, shares []Share) ([]*entities.Split, error) {
	if err := expense.Validate(); err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, domain.ErrInvalidSplit
	}

	splits := make([]*entities.Split, 0, len(shares))
	for _, share := range shares {
		splits = append(splits, &entities.Split{
			ParticipantID: share.ParticipantID,
			Amount:        share.Amount,
			Status:        entities.SplitStatusPending,
		})
	}

	ew := &entities.ExpenseWithSplits{Expense: expense, Splits: splits}
	if err := ew.ValidateSplits(); err != nil {
		return nil, err
	}
	return splits, nil
}
