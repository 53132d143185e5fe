package services

import (
	"context"

	"splitpay/domain/entities"
	"splitpay/domain/interfaces"
)

// LedgerService answers read-only balance questions. It fetches a consistent
// snapshot of split and settlement lines and delegates the arithmetic to the
// pure balance and debt services, so results are recomputable from persisted
// state alone.
type LedgerService struct {
	uowFactory interfaces.UnitOfWorkFactory
	balances   *BalanceService
	debts      *DebtService
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(uowFactory interfaces.UnitOfWorkFactory) *LedgerService {
	return &LedgerService{
		uowFactory: uowFactory,
		balances:   NewBalanceService(),
		debts:      NewDebtService(),
	}
}

// GetUserBalance returns the user's pairwise balances and aggregates.
func (s *LedgerService) GetUserBalance(ctx context.Context, userID int64) (*entities.UserBalance, error) {
	splits, settlements, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.balances.ComputeForUser(userID, splits, settlements), nil
}

// SuggestTransfers computes the minimal transfer plan for the whole ledger
// and returns the full suggestion list.
func (s *LedgerService) SuggestTransfers(ctx context.Context) ([]entities.Transfer, error) {
	splits, settlements, err := s.snapshot(ctx, 0)
	if err != nil {
		return nil, err
	}

	nets := s.balances.ComputeNets(splits, settlements)
	plan, err := s.debts.SuggestTransfers(nets)
	if err != nil {
		return nil, err
	}
	return plan.All(), nil
}

// ListActivities returns the most recent audit records for a user.
func (s *LedgerService) ListActivities(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	activities, err := uow.ActivityRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return activities, uow.Commit()
}

// snapshot reads split and settlement lines inside one transaction so the
// balance fold sees a consistent view. userID zero means the whole ledger.
func (s *LedgerService) snapshot(ctx context.Context, userID int64) ([]entities.SplitLine, []entities.SettlementLine, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()

	splits, err := uow.ExpenseRepository().ListSplitLines(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	settlements, err := uow.SettlementRepository().ListSettlementLines(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, err
	}
	return splits, settlements, nil
}
