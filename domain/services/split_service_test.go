package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/domain"
	"splitpay/domain/entities"
)

func TestSplitService_EvenShares(t *testing.T) {
	service := NewSplitService()

	t.Run("divides evenly", func(t *testing.T) {
		shares, err := service.EvenShares(9000, []int64{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, shares, 3)
		for _, share := range shares {
			assert.Equal(t, int64(3000), share.Amount)
		}
	})

	t.Run("remainder goes to lowest ids", func(t *testing.T) {
		shares, err := service.EvenShares(100, []int64{7, 3, 5})
		require.NoError(t, err)
		require.Len(t, shares, 3)

		// Sorted by id: 3, 5, 7. 100/3 = 33 remainder 1.
		assert.Equal(t, int64(3), shares[0].ParticipantID)
		assert.Equal(t, int64(34), shares[0].Amount)
		assert.Equal(t, int64(5), shares[1].ParticipantID)
		assert.Equal(t, int64(33), shares[1].Amount)
		assert.Equal(t, int64(7), shares[2].ParticipantID)
		assert.Equal(t, int64(33), shares[2].Amount)
	})

	t.Run("shares always sum to amount", func(t *testing.T) {
		ids := []int64{1, 2, 3, 4, 5, 6, 7}
		for amount := int64(7); amount < 700; amount += 13 {
			shares, err := service.EvenShares(amount, ids)
			require.NoError(t, err)

			var sum int64
			for _, share := range shares {
				assert.Positive(t, share.Amount)
				sum += share.Amount
			}
			assert.Equal(t, amount, sum)
		}
	})

	t.Run("random amounts and participant counts keep the invariant", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))

		for i := 0; i < 500; i++ {
			n := 1 + rng.Intn(20)
			ids := make([]int64, n)
			next := int64(0)
			for j := range ids {
				next += 1 + rng.Int63n(100)
				ids[j] = next
			}
			amount := int64(n) + rng.Int63n(1_000_000)

			shares, err := service.EvenShares(amount, ids)
			require.NoError(t, err)
			require.Len(t, shares, n)

			var sum, minShare, maxShare int64
			minShare = amount
			for _, share := range shares {
				require.Positive(t, share.Amount)
				sum += share.Amount
				if share.Amount < minShare {
					minShare = share.Amount
				}
				if share.Amount > maxShare {
					maxShare = share.Amount
				}
			}
			require.Equal(t, amount, sum)
			// The remainder distribution never skews any share by more
			// than one minor unit.
			require.LessOrEqual(t, maxShare-minShare, int64(1))
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := service.EvenShares(0, []int64{1, 2})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = service.EvenShares(-500, []int64{1, 2})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects empty participants", func(t *testing.T) {
		_, err := service.EvenShares(1000, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})

	t.Run("rejects duplicate participants", func(t *testing.T) {
		_, err := service.EvenShares(1000, []int64{1, 2, 1})
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})

	t.Run("rejects more participants than minor units", func(t *testing.T) {
		_, err := service.EvenShares(2, []int64{1, 2, 3})
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})
}

func TestSplitService_BuildSplits(t *testing.T) {
	service := NewSplitService()

	expense := &entities.Expense{
		PayerID:  1,
		Title:    "groceries",
		Amount:   3000,
		Currency: "EUR",
	}

	t.Run("builds pending splits", func(t *testing.T) {
		splits, err := service.BuildSplits(expense, []Share{
			{ParticipantID: 2, Amount: 1500},
			{ParticipantID: 3, Amount: 1500},
		})
		require.NoError(t, err)
		require.Len(t, splits, 2)
		for _, split := range splits {
			assert.Equal(t, entities.SplitStatusPending, split.Status)
		}
	})

	t.Run("rejects shares that do not sum to the amount", func(t *testing.T) {
		_, err := service.BuildSplits(expense, []Share{
			{ParticipantID: 2, Amount: 1500},
			{ParticipantID: 3, Amount: 1000},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})

	t.Run("rejects duplicate participants", func(t *testing.T) {
		_, err := service.BuildSplits(expense, []Share{
			{ParticipantID: 2, Amount: 1500},
			{ParticipantID: 2, Amount: 1500},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})

	t.Run("rejects empty shares", func(t *testing.T) {
		_, err := service.BuildSplits(expense, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidSplit)
	})

	t.Run("rejects invalid expense", func(t *testing.T) {
		bad := &entities.Expense{PayerID: 1, Title: "x", Amount: 0, Currency: "EUR"}
		_, err := service.BuildSplits(bad, []Share{{ParticipantID: 2, Amount: 0}})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}
