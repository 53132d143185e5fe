package infrastructure

import (
	"splitpay/database"
	"splitpay/domain/interfaces"
	"splitpay/repository"
)

// UnitOfWorkFactoryWrapper wraps the repository UnitOfWorkFactory so every
// unit of work gets its own transactional publisher: events buffer during
// the transaction and publish only after commit.
type UnitOfWorkFactoryWrapper struct {
	repoFactory interface {
		CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactoryWrapper creates a new wrapper that implements
// interfaces.UnitOfWorkFactory
func NewUnitOfWorkFactoryWrapper(db *database.DB, eventPublisher interfaces.EventPublisher) interfaces.UnitOfWorkFactory {
	return &UnitOfWorkFactoryWrapper{
		repoFactory:    repository.NewUnitOfWorkFactory(db),
		eventPublisher: eventPublisher,
	}
}

// Create creates a new UnitOfWork with a fresh transactional event publisher
func (w *UnitOfWorkFactoryWrapper) Create() interfaces.UnitOfWork {
	transactionalPublisher := NewNATSTransactionalPublisher(w.eventPublisher)
	return w.repoFactory.CreateWithPublisher(transactionalPublisher)
}
