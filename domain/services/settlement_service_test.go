package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/interfaces"
	"splitpay/domain/testhelpers"
	"splitpay/observability"
)

func newSettlementFixture() (*SettlementService, *testhelpers.MockUnitOfWork, *testhelpers.MockPaymentGateway) {
	factory := testhelpers.NewMockUnitOfWorkFactory()
	gateway := new(testhelpers.MockPaymentGateway)
	service := NewSettlementService(factory, gateway, nil)
	return service, factory.UnitOfWork, gateway
}

func pendingSettlement(id int64) *entities.Settlement {
	to := int64(2)
	return &entities.Settlement{
		ID:          id,
		FromUserID:  1,
		ToUserID:    &to,
		Amount:      3000,
		Currency:    "EUR",
		Status:      entities.SettlementStatusPending,
		TransferRef: "ref-1",
	}
}

func TestSettlementService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending settlement with activity and event", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()
		to := int64(2)

		uow.Settlements.On("Create", ctx, mock.MatchedBy(func(s *entities.Settlement) bool {
			return s.FromUserID == 1 &&
				s.ToUserID != nil && *s.ToUserID == 2 &&
				s.Amount == 3000 &&
				s.Status == entities.SettlementStatusPending &&
				s.TransferRef != "" &&
				!s.Simulated
		})).Return(nil).Run(func(args mock.Arguments) {
			args.Get(1).(*entities.Settlement).ID = 10
		})
		uow.Activities.On("Append", ctx, mock.MatchedBy(func(a *entities.Activity) bool {
			return a.Action == entities.ActivitySettlementCreated && a.RefID == 10
		})).Return(nil)
		uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementCreatedEvent")).Return(nil)

		settlement, err := service.Create(ctx, 1, &to, nil, 3000, "EUR", SettlementMetadata{Category: "dinner"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), settlement.ID)
		assert.NotEmpty(t, settlement.TransferRef)

		uow.AssertExpectations(t)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		service, _, _ := newSettlementFixture()
		to := int64(2)

		_, err := service.Create(ctx, 1, &to, nil, 0, "EUR", SettlementMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects missing or ambiguous recipient", func(t *testing.T) {
		service, _, _ := newSettlementFixture()
		to := int64(2)
		addr := "acct:abc"

		_, err := service.Create(ctx, 1, nil, nil, 3000, "EUR", SettlementMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

		_, err = service.Create(ctx, 1, &to, &addr, 3000, "EUR", SettlementMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	})
}

func TestSettlementService_RecordSimulated(t *testing.T) {
	ctx := context.Background()
	service, uow, gateway := newSettlementFixture()
	to := int64(2)

	uow.Settlements.On("Create", ctx, mock.MatchedBy(func(s *entities.Settlement) bool {
		return s.Simulated &&
			s.Status == entities.SettlementStatusCompleted &&
			s.CompletedAt != nil
	})).Return(nil)
	uow.Activities.On("Append", ctx, mock.Anything).Return(nil)
	uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementCreatedEvent")).Return(nil)

	settlement, err := service.RecordSimulated(ctx, 1, &to, nil, 3000, "EUR", SettlementMetadata{})
	require.NoError(t, err)
	assert.True(t, settlement.Simulated)
	assert.True(t, settlement.IsCompleted())

	// The gateway must never hear about simulated settlements.
	gateway.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	uow.AssertExpectations(t)
}

func TestSettlementService_RequestApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		pending := pendingSettlement(10)
		approved := pendingSettlement(10)
		approved.Status = entities.SettlementStatusApproved

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(pending, nil).Once()
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusPending, entities.SettlementStatusAwaitingGateway,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Approve", ctx, "ref-1").Return(interfaces.GatewayOutcome{Approved: true}, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusAwaitingGateway, entities.SettlementStatusApproved,
			entities.SettlementTransition{}).Return(nil).Once()
		uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementStateChangedEvent")).Return(nil)
		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approved, nil).Once()

		result, err := service.RequestApproval(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, entities.SettlementStatusApproved, result.Status)

		uow.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("gateway transport failure reverts to pending", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		pending := pendingSettlement(10)

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(pending, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusPending, entities.SettlementStatusAwaitingGateway,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Approve", ctx, "ref-1").Return(interfaces.GatewayOutcome{}, errors.New("dial timeout"))
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusAwaitingGateway, entities.SettlementStatusPending,
			entities.SettlementTransition{}).Return(nil).Once()

		_, err := service.RequestApproval(ctx, 10)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

		uow.AssertExpectations(t)
	})

	t.Run("gateway rejection fails the settlement", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		pending := pendingSettlement(10)

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(pending, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusPending, entities.SettlementStatusAwaitingGateway,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Approve", ctx, "ref-1").Return(interfaces.GatewayOutcome{Approved: false, Reason: "insufficient funds"}, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusAwaitingGateway, entities.SettlementStatusFailed,
			mock.MatchedBy(func(tr entities.SettlementTransition) bool {
				return tr.Reason != nil && *tr.Reason == "insufficient funds"
			})).Return(nil).Once()
		uow.Activities.On("Append", ctx, mock.MatchedBy(func(a *entities.Activity) bool {
			return a.Action == entities.ActivitySettlementFailed
		})).Return(nil)
		uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementStateChangedEvent")).Return(nil)

		_, err := service.RequestApproval(ctx, 10)
		assert.ErrorIs(t, err, domain.ErrGatewayRejected)

		uow.AssertExpectations(t)
	})

	t.Run("retry on already approved settlement is a no-op", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		approved := pendingSettlement(10)
		approved.Status = entities.SettlementStatusApproved

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approved, nil)

		result, err := service.RequestApproval(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, entities.SettlementStatusApproved, result.Status)

		gateway.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)
	})

	t.Run("terminal settlement is stale", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()
		failed := pendingSettlement(10)
		failed.Status = entities.SettlementStatusFailed

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(failed, nil)

		_, err := service.RequestApproval(ctx, 10)
		assert.ErrorIs(t, err, domain.ErrStaleState)
	})
}

func TestSettlementService_ConfirmCompletion(t *testing.T) {
	ctx := context.Background()
	to := int64(2)

	approvedSettlement := func() *entities.Settlement {
		s := pendingSettlement(10)
		s.Status = entities.SettlementStatusApproved
		return s
	}

	t.Run("happy path stamps txid and completes", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		txid := "tx-99"
		completed := approvedSettlement()
		completed.Status = entities.SettlementStatusCompleted
		completed.ExternalTxID = &txid

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approvedSettlement(), nil).Once()
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusApproved, entities.SettlementStatusCompleting,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Complete", ctx, "ref-1", "tx-99").Return(interfaces.GatewayOutcome{Approved: true}, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusCompleting, entities.SettlementStatusCompleted,
			mock.MatchedBy(func(tr entities.SettlementTransition) bool {
				return tr.ExternalTxID != nil && *tr.ExternalTxID == "tx-99" && tr.CompletedAt != nil
			})).Return(nil).Once()
		uow.Activities.On("Append", ctx, mock.MatchedBy(func(a *entities.Activity) bool {
			return a.Action == entities.ActivitySettlementCompleted
		})).Return(nil)
		uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementStateChangedEvent")).Return(nil)
		uow.Settlements.On("GetByID", ctx, int64(10)).Return(completed, nil).Once()

		result, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		require.NoError(t, err)
		assert.True(t, result.CompletedWith("tx-99"))

		uow.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("idempotent when already completed with same txid", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()
		txid := "tx-99"
		completed := approvedSettlement()
		completed.Status = entities.SettlementStatusCompleted
		completed.ExternalTxID = &txid

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(completed, nil)

		result, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		require.NoError(t, err)
		assert.True(t, result.IsCompleted())

		gateway.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
		uow.Settlements.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("amount mismatch is rejected before any transition", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approvedSettlement(), nil)

		_, err := service.ConfirmCompletion(ctx, 10, "tx-99", 2999, &to)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		uow.Settlements.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recipient mismatch is rejected", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()
		wrong := int64(7)

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approvedSettlement(), nil)

		_, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &wrong)
		assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	})

	t.Run("transport failure reverts to approved", func(t *testing.T) {
		service, uow, gateway := newSettlementFixture()

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approvedSettlement(), nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusApproved, entities.SettlementStatusCompleting,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Complete", ctx, "ref-1", "tx-99").Return(interfaces.GatewayOutcome{}, errors.New("connection reset"))
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusCompleting, entities.SettlementStatusApproved,
			entities.SettlementTransition{}).Return(nil).Once()

		_, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

		uow.AssertExpectations(t)
	})

	t.Run("lost race resolves to success when winner used same txid", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()
		txid := "tx-99"
		completed := approvedSettlement()
		completed.Status = entities.SettlementStatusCompleted
		completed.ExternalTxID = &txid

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approvedSettlement(), nil).Once()
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusApproved, entities.SettlementStatusCompleting,
			entities.SettlementTransition{}).Return(domain.ErrStaleState).Once()
		uow.Settlements.On("GetByID", ctx, int64(10)).Return(completed, nil).Once()

		result, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		require.NoError(t, err)
		assert.True(t, result.CompletedWith("tx-99"))
	})

	t.Run("unapproved settlement is stale", func(t *testing.T) {
		service, uow, _ := newSettlementFixture()

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(pendingSettlement(10), nil)

		_, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		assert.ErrorIs(t, err, domain.ErrStaleState)
	})
}

func TestSettlementService_FailStuck(t *testing.T) {
	ctx := context.Background()
	service, uow, _ := newSettlementFixture()

	stuck1 := pendingSettlement(10)
	stuck1.Status = entities.SettlementStatusAwaitingGateway
	stuck2 := pendingSettlement(11)
	stuck2.Status = entities.SettlementStatusCompleting

	uow.Settlements.On("ListStuck", ctx, mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]*entities.Settlement{stuck1, stuck2}, nil)

	deadline := "settlement deadline exceeded"
	uow.Settlements.On("Transition", ctx, int64(10),
		entities.SettlementStatusAwaitingGateway, entities.SettlementStatusFailed,
		mock.MatchedBy(func(tr entities.SettlementTransition) bool {
			return tr.Reason != nil && *tr.Reason == deadline
		})).Return(nil).Once()

	// The second settlement made progress in the meantime; the sweep loses
	// the compare-and-set and skips it.
	uow.Settlements.On("Transition", ctx, int64(11),
		entities.SettlementStatusCompleting, entities.SettlementStatusFailed,
		mock.Anything).Return(domain.ErrStaleState).Once()

	uow.Activities.On("Append", ctx, mock.MatchedBy(func(a *entities.Activity) bool {
		return a.Action == entities.ActivitySettlementFailed && a.RefID == 10
	})).Return(nil)
	uow.Publisher.On("Publish", mock.AnythingOfType("events.SettlementStateChangedEvent")).Return(nil)

	failed, err := service.FailStuck(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	uow.AssertExpectations(t)
}

func TestSettlementService_TerminalOutcomeMetrics(t *testing.T) {
	ctx := context.Background()
	to := int64(2)

	newMeteredFixture := func() (*SettlementService, *testhelpers.MockUnitOfWork, *testhelpers.MockPaymentGateway, *observability.Metrics) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		gateway := new(testhelpers.MockPaymentGateway)
		metrics := observability.NewWith(prometheus.NewRegistry())
		service := NewSettlementService(factory, gateway, metrics)
		return service, factory.UnitOfWork, gateway, metrics
	}

	outcome := func(metrics *observability.Metrics, label string) float64 {
		return testutil.ToFloat64(metrics.SettlementsFinished.WithLabelValues(label))
	}

	t.Run("simulated settlement counts as simulated", func(t *testing.T) {
		service, uow, _, metrics := newMeteredFixture()

		uow.Settlements.On("Create", ctx, mock.Anything).Return(nil)
		uow.Activities.On("Append", ctx, mock.Anything).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)

		_, err := service.RecordSimulated(ctx, 1, &to, nil, 3000, "EUR", SettlementMetadata{})
		require.NoError(t, err)

		assert.Equal(t, float64(1), outcome(metrics, "simulated"))
		assert.Equal(t, float64(0), outcome(metrics, "completed"))
		assert.Equal(t, float64(0), outcome(metrics, "failed"))
	})

	t.Run("gateway rejection counts as failed", func(t *testing.T) {
		service, uow, gateway, metrics := newMeteredFixture()
		pending := pendingSettlement(10)

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(pending, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusPending, entities.SettlementStatusAwaitingGateway,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Approve", ctx, "ref-1").Return(interfaces.GatewayOutcome{Approved: false, Reason: "insufficient funds"}, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusAwaitingGateway, entities.SettlementStatusFailed,
			mock.Anything).Return(nil).Once()
		uow.Activities.On("Append", ctx, mock.Anything).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)

		_, err := service.RequestApproval(ctx, 10)
		assert.ErrorIs(t, err, domain.ErrGatewayRejected)

		assert.Equal(t, float64(1), outcome(metrics, "failed"))
	})

	t.Run("completion counts as completed", func(t *testing.T) {
		service, uow, gateway, metrics := newMeteredFixture()
		txid := "tx-99"
		approved := pendingSettlement(10)
		approved.Status = entities.SettlementStatusApproved
		completed := pendingSettlement(10)
		completed.Status = entities.SettlementStatusCompleted
		completed.ExternalTxID = &txid

		uow.Settlements.On("GetByID", ctx, int64(10)).Return(approved, nil).Once()
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusApproved, entities.SettlementStatusCompleting,
			entities.SettlementTransition{}).Return(nil).Once()
		gateway.On("Complete", ctx, "ref-1", "tx-99").Return(interfaces.GatewayOutcome{Approved: true}, nil)
		uow.Settlements.On("Transition", ctx, int64(10),
			entities.SettlementStatusCompleting, entities.SettlementStatusCompleted,
			mock.Anything).Return(nil).Once()
		uow.Activities.On("Append", ctx, mock.Anything).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)
		uow.Settlements.On("GetByID", ctx, int64(10)).Return(completed, nil).Once()

		_, err := service.ConfirmCompletion(ctx, 10, "tx-99", 3000, &to)
		require.NoError(t, err)

		assert.Equal(t, float64(1), outcome(metrics, "completed"))
	})
}
