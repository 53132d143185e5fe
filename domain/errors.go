package domain

import "errors"

// Typed failures shared across services, repositories and transports.
// Repositories and infrastructure return these (optionally wrapped) so
// callers can branch with errors.Is instead of string matching.
//
// Three caller-visible outcomes map onto them:
//   - the action did not happen: ErrInvalidSplit, ErrInvalidAmount,
//     ErrStaleState, auth errors
//   - the action is still pending and safe to retry: ErrGatewayUnavailable
//   - the action definitely will not happen: ErrGatewayRejected
var (
	// ErrInvalidSplit is returned when expense shares do not sum to the
	// expense amount or a participant appears more than once.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrInvalidAmount is returned for non-positive monetary amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrStaleState is returned when a compare-and-set settlement
	// transition lost a race; the caller should re-read and decide.
	ErrStaleState = errors.New("stale settlement state")

	// ErrGatewayUnavailable is a transient payment network failure. The
	// settlement keeps its prior status and the call is safe to retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected means the payment network refused the transfer.
	// The settlement is failed and will not be retried.
	ErrGatewayRejected = errors.New("payment gateway rejected transfer")

	// ErrUnauthenticated is returned for absent or malformed credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredential is returned when the identity provider rejects
	// a credential.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrUnknownUser is returned when the identity provider accepts a
	// credential but no local user exists for that identity.
	ErrUnknownUser = errors.New("unknown user")

	// ErrLedgerInconsistent indicates an invariant violation in persisted
	// ledger state. It is a bug, never user error, and must not be
	// swallowed.
	ErrLedgerInconsistent = errors.New("ledger inconsistent")

	// ErrInvalidRecipient is returned when a settlement names neither a
	// local recipient nor an external address, or names both, or when a
	// completion call supplies a recipient that contradicts the stored
	// settlement.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
