package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/domain"
	"splitpay/domain/entities"
)

func TestDebtService_SuggestTransfers(t *testing.T) {
	service := NewDebtService()

	t.Run("dinner scenario", func(t *testing.T) {
		plan, err := service.SuggestTransfers(map[int64]int64{
			1: 6000,
			2: -3000,
			3: -3000,
		})
		require.NoError(t, err)

		transfers := plan.All()
		require.Len(t, transfers, 2)
		assert.Equal(t, entities.Transfer{FromUserID: 2, ToUserID: 1, Amount: 3000}, transfers[0])
		assert.Equal(t, entities.Transfer{FromUserID: 3, ToUserID: 1, Amount: 3000}, transfers[1])
	})

	t.Run("empty nets yield empty plan", func(t *testing.T) {
		plan, err := service.SuggestTransfers(map[int64]int64{})
		require.NoError(t, err)
		assert.Empty(t, plan.All())

		plan, err = service.SuggestTransfers(map[int64]int64{1: 0, 2: 0})
		require.NoError(t, err)
		assert.Empty(t, plan.All())
	})

	t.Run("nets not summing to zero are rejected", func(t *testing.T) {
		_, err := service.SuggestTransfers(map[int64]int64{1: 100, 2: -50})
		assert.ErrorIs(t, err, domain.ErrLedgerInconsistent)
	})

	t.Run("at most n-1 transfers", func(t *testing.T) {
		nets := map[int64]int64{
			1: 500, 2: -200, 3: 700, 4: -400, 5: -600, 6: 300, 7: -300,
		}
		plan, err := service.SuggestTransfers(nets)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(plan.All()), len(nets)-1)
	})

	t.Run("applying the plan zeroes every net", func(t *testing.T) {
		nets := map[int64]int64{
			1: 12345, 2: -234, 3: -11111, 4: 1000, 5: -2000, 6: 1000, 7: -1000,
		}
		plan, err := service.SuggestTransfers(nets)
		require.NoError(t, err)

		remaining := make(map[int64]int64, len(nets))
		for id, net := range nets {
			remaining[id] = net
		}
		for _, transfer := range plan.All() {
			assert.Positive(t, transfer.Amount)
			remaining[transfer.FromUserID] += transfer.Amount
			remaining[transfer.ToUserID] -= transfer.Amount
		}
		for id, net := range remaining {
			assert.Zero(t, net, "user %d net not zeroed", id)
		}
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		nets := map[int64]int64{1: 300, 2: 300, 3: -300, 4: -300}
		first, err := service.SuggestTransfers(nets)
		require.NoError(t, err)
		second, err := service.SuggestTransfers(nets)
		require.NoError(t, err)

		assert.Equal(t, first.All(), second.All())
	})

	t.Run("ties break on lowest user id", func(t *testing.T) {
		plan, err := service.SuggestTransfers(map[int64]int64{
			5: -100, 2: -100, 9: 200,
		})
		require.NoError(t, err)

		transfers := plan.All()
		require.Len(t, transfers, 2)
		assert.Equal(t, int64(2), transfers[0].FromUserID)
		assert.Equal(t, int64(5), transfers[1].FromUserID)
	})
}

func TestTransferPlan_NextAndReset(t *testing.T) {
	service := NewDebtService()

	plan, err := service.SuggestTransfers(map[int64]int64{1: 6000, 2: -3000, 3: -3000})
	require.NoError(t, err)

	first, ok := plan.Next()
	require.True(t, ok)
	second, ok := plan.Next()
	require.True(t, ok)
	_, ok = plan.Next()
	assert.False(t, ok)

	// The plan restarts from the beginning after Reset.
	plan.Reset()
	again, ok := plan.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
	again, ok = plan.Next()
	require.True(t, ok)
	assert.Equal(t, second, again)
}
