package interfaces

import (
	"context"

	"splitpay/domain/events"
)

// GatewayOutcome is the decision returned by the payment gateway for an
// approve or complete call. Transport failures are returned as errors, not
// outcomes, so callers can distinguish "no" from "don't know".
type GatewayOutcome struct {
	Approved bool
	Reason   string
}

// PaymentGateway is the external, asynchronous payment network. Both calls
// are idempotent on the gateway side per transferRef. Implementations must
// bound their latency; callers never hold a database transaction open across
// these calls.
type PaymentGateway interface {
	// Approve asks the network to approve the transfer identified by
	// transferRef. A nil error with Approved=false means the network
	// rejected it.
	Approve(ctx context.Context, transferRef string) (GatewayOutcome, error)

	// Complete notifies the network that the transfer completed with the
	// given external transaction id.
	Complete(ctx context.Context, transferRef, externalTxID string) (GatewayOutcome, error)
}

// Identity is a verified external identity.
type Identity struct {
	ExternalID string
	Username   string
}

// IdentityVerifier is the external identity provider. Verify returns
// domain.ErrInvalidCredential when the provider rejects the credential and
// wraps transport failures so they stay distinguishable.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// EventPublisher publishes ledger events to the message bus.
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events during a unit of work and
// publishes them only after the transaction commits.
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes all buffered events; called after commit
	Flush(ctx context.Context) error

	// Discard drops buffered events; called on rollback
	Discard()
}

// UnitOfWork provides repositories bound to a single database transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	ExpenseRepository() ExpenseRepository
	SettlementRepository() SettlementRepository
	ActivityRepository() ActivityRepository

	// EventBus returns the transactional publisher tied to this unit of
	// work; events publish only if the transaction commits
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
