package testhelpers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"splitpay/domain/entities"
	"splitpay/domain/events"
	"splitpay/domain/interfaces"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, externalID, username string) (*entities.User, error) {
	args := m.Called(ctx, externalID, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePreferences(ctx context.Context, id int64, prefs map[string]any) error {
	args := m.Called(ctx, id, prefs)
	return args.Error(0)
}

// MockExpenseRepository is a mock implementation of ExpenseRepository
type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) CreateWithSplits(ctx context.Context, expense *entities.Expense, splits []*entities.Split) error {
	args := m.Called(ctx, expense, splits)
	return args.Error(0)
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, id int64) (*entities.ExpenseWithSplits, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ExpenseWithSplits), args.Error(1)
}

func (m *MockExpenseRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.ExpenseWithSplits, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ExpenseWithSplits), args.Error(1)
}

func (m *MockExpenseRepository) ListSplitLines(ctx context.Context, userID int64) ([]entities.SplitLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.SplitLine), args.Error(1)
}

// MockSettlementRepository is a mock implementation of SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, settlement *entities.Settlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, id int64) (*entities.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) GetByTransferRef(ctx context.Context, transferRef string) (*entities.Settlement, error) {
	args := m.Called(ctx, transferRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Settlement, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) Transition(ctx context.Context, id int64, expected, next entities.SettlementStatus, extra entities.SettlementTransition) error {
	args := m.Called(ctx, id, expected, next, extra)
	return args.Error(0)
}

func (m *MockSettlementRepository) ListStuck(ctx context.Context, statuses []entities.SettlementStatus, cutoff time.Time) ([]*entities.Settlement, error) {
	args := m.Called(ctx, statuses, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) ListSettlementLines(ctx context.Context, userID int64) ([]entities.SettlementLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.SettlementLine), args.Error(1)
}

// MockActivityRepository is a mock implementation of ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Append(ctx context.Context, activity *entities.Activity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

func (m *MockActivityRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.Activity, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Activity), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Approve(ctx context.Context, transferRef string) (interfaces.GatewayOutcome, error) {
	args := m.Called(ctx, transferRef)
	return args.Get(0).(interfaces.GatewayOutcome), args.Error(1)
}

func (m *MockPaymentGateway) Complete(ctx context.Context, transferRef, externalTxID string) (interfaces.GatewayOutcome, error) {
	args := m.Called(ctx, transferRef, externalTxID)
	return args.Get(0).(interfaces.GatewayOutcome), args.Error(1)
}

// MockIdentityVerifier is a mock implementation of IdentityVerifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, credential string) (interfaces.Identity, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(interfaces.Identity), args.Error(1)
}

// MockUnitOfWork is a stub UnitOfWork backed by the mock repositories. Begin,
// Commit and Rollback always succeed; service tests exercise repository
// behavior, not transaction plumbing.
type MockUnitOfWork struct {
	Users       *MockUserRepository
	Expenses    *MockExpenseRepository
	Settlements *MockSettlementRepository
	Activities  *MockActivityRepository
	Publisher   *MockEventPublisher
}

// NewMockUnitOfWork creates a MockUnitOfWork with fresh mock repositories.
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Users:       new(MockUserRepository),
		Expenses:    new(MockExpenseRepository),
		Settlements: new(MockSettlementRepository),
		Activities:  new(MockActivityRepository),
		Publisher:   new(MockEventPublisher),
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *MockUnitOfWork) Commit() error                   { return nil }
func (u *MockUnitOfWork) Rollback() error                 { return nil }

func (u *MockUnitOfWork) UserRepository() interfaces.UserRepository             { return u.Users }
func (u *MockUnitOfWork) ExpenseRepository() interfaces.ExpenseRepository       { return u.Expenses }
func (u *MockUnitOfWork) SettlementRepository() interfaces.SettlementRepository { return u.Settlements }
func (u *MockUnitOfWork) ActivityRepository() interfaces.ActivityRepository     { return u.Activities }
func (u *MockUnitOfWork) EventBus() interfaces.EventPublisher                   { return u.Publisher }

// MockUnitOfWorkFactory hands out the same MockUnitOfWork for every Create
// call so tests can set expectations once.
type MockUnitOfWorkFactory struct {
	UnitOfWork *MockUnitOfWork
}

// NewMockUnitOfWorkFactory creates a factory around a fresh MockUnitOfWork.
func NewMockUnitOfWorkFactory() *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{UnitOfWork: NewMockUnitOfWork()}
}

func (f *MockUnitOfWorkFactory) Create() interfaces.UnitOfWork { return f.UnitOfWork }

// AssertExpectations asserts expectations on every underlying mock.
func (u *MockUnitOfWork) AssertExpectations(t mock.TestingT) {
	u.Users.AssertExpectations(t)
	u.Expenses.AssertExpectations(t)
	u.Settlements.AssertExpectations(t)
	u.Activities.AssertExpectations(t)
	u.Publisher.AssertExpectations(t)
}
