package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/events"
	"splitpay/domain/interfaces"
	"splitpay/observability"
)

// ExpenseService records expenses. Expense, splits and the audit activity
// are written in one transaction so no reader ever observes a partial
// expense.
type ExpenseService struct {
	uowFactory interfaces.UnitOfWorkFactory
	splits     *SplitService
	metrics    *observability.Metrics
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(uowFactory interfaces.UnitOfWorkFactory, metrics *observability.Metrics) *ExpenseService {
	return &ExpenseService{
		uowFactory: uowFactory,
		splits:     NewSplitService(),
		metrics:    metrics,
	}
}

// RecordExpense validates the requested shares and atomically creates the
// expense, its splits, and an activity record. Validation failures reject
// the request before anything is written.
func (s *ExpenseService) RecordExpense(ctx context.Context, payerID int64, title string, amount int64, currency, category string, shares []Share) (*entities.ExpenseWithSplits, error) {
	expense := &entities.Expense{
		PayerID:  payerID,
		Title:    title,
		Amount:   amount,
		Currency: currency,
		Category: category,
	}

	splits, err := s.splits.BuildSplits(expense, shares)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	payer, err := uow.UserRepository().GetByID(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payer %d: %w", payerID, err)
	}
	if payer == nil {
		return nil, fmt.Errorf("payer %d: %w", payerID, domain.ErrNotFound)
	}

	if err := uow.ExpenseRepository().CreateWithSplits(ctx, expense, splits); err != nil {
		return nil, err
	}

	participants := make([]int64, 0, len(splits))
	for _, split := range splits {
		participants = append(participants, split.ParticipantID)
	}

	activity := &entities.Activity{
		UserID:  payerID,
		Action:  entities.ActivityExpenseRecorded,
		RefType: entities.RefTypeExpense,
		RefID:   expense.ID,
		Metadata: map[string]any{
			"amount":       expense.Amount,
			"currency":     expense.Currency,
			"category":     expense.Category,
			"participants": participants,
		},
	}
	if err := uow.ActivityRepository().Append(ctx, activity); err != nil {
		return nil, err
	}

	if err := uow.EventBus().Publish(events.ExpenseRecordedEvent{
		ExpenseID:    expense.ID,
		PayerID:      payerID,
		Amount:       expense.Amount,
		Currency:     expense.Currency,
		Participants: participants,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ExpensesRecorded.Inc()
	}

	log.WithFields(log.Fields{
		"expenseID":    expense.ID,
		"payerID":      payerID,
		"amount":       expense.Amount,
		"currency":     expense.Currency,
		"participants": len(participants),
	}).Info("Recorded expense")

	return &entities.ExpenseWithSplits{Expense: expense, Splits: splits}, nil
}

// GetExpense returns an expense with its splits.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (*entities.ExpenseWithSplits, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	expense, err := uow.ExpenseRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("expense %d: %w", id, domain.ErrNotFound)
	}
	return expense, uow.Commit()
}

// ListExpenses returns the most recent expenses involving a user.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64, limit int) ([]*entities.ExpenseWithSplits, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	expenses, err := uow.ExpenseRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return expenses, uow.Commit()
}
