package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/interfaces"
	"splitpay/observability"
)

// DefaultCredentialTTL bounds how long a verified credential is trusted
// without re-checking the identity provider.
const DefaultCredentialTTL = 15 * time.Minute

// Gate authenticates platform credentials. A credential is verified against
// the identity provider at most once per TTL; within the TTL the cached
// identity is trusted. Logout invalidates the cache entry immediately, so an
// explicit logout is never masked by a stale cache hit.
//
// Cache keys are credential hashes; raw credentials are never stored.
type Gate struct {
	verifier      interfaces.IdentityVerifier
	cache         CredentialCache
	uowFactory    interfaces.UnitOfWorkFactory
	credentialTTL time.Duration
	metrics       *observability.Metrics
}

// NewGate creates a new authentication gate
func NewGate(verifier interfaces.IdentityVerifier, cache CredentialCache, uowFactory interfaces.UnitOfWorkFactory, metrics *observability.Metrics) *Gate {
	return &Gate{
		verifier:      verifier,
		cache:         cache,
		uowFactory:    uowFactory,
		credentialTTL: DefaultCredentialTTL,
		metrics:       metrics,
	}
}

// Resolve verifies a credential and returns the local user it belongs to.
// Returns domain.ErrUnknownUser when the credential is valid but no local
// user exists; callers that want auto-provisioning use Provision instead.
func (g *Gate) Resolve(ctx context.Context, credential string) (*entities.User, error) {
	identity, err := g.verifiedIdentity(ctx, credential)
	if err != nil {
		return nil, err
	}

	user, err := g.lookupUser(ctx, identity.ExternalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user for external id %s: %w", identity.ExternalID, domain.ErrUnknownUser)
	}
	return user, nil
}

// Provision verifies a credential and returns the local user, creating one
// on first sight. The create is an upsert, so concurrent first requests for
// the same identity are safe.
func (g *Gate) Provision(ctx context.Context, credential string) (*entities.User, error) {
	identity, err := g.verifiedIdentity(ctx, credential)
	if err != nil {
		return nil, err
	}

	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().Create(ctx, identity.ExternalID, identity.Username)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"externalID": user.ExternalID,
	}).Info("Provisioned user session")

	return user, nil
}

// Logout drops the cached verification for a credential. The next request
// with this credential must re-verify with the identity provider.
func (g *Gate) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return domain.ErrUnauthenticated
	}
	return g.cache.Delete(ctx, hashCredential(credential))
}

func (g *Gate) verifiedIdentity(ctx context.Context, credential string) (interfaces.Identity, error) {
	if credential == "" {
		return interfaces.Identity{}, domain.ErrUnauthenticated
	}

	key := hashCredential(credential)

	identity, hit, err := g.cache.Get(ctx, key)
	if err != nil {
		// Degrade to direct verification when the cache is unreachable.
		log.WithError(err).Warn("Credential cache lookup failed")
	}
	if hit {
		if g.metrics != nil {
			g.metrics.AuthCacheHits.Inc()
		}
		return identity, nil
	}
	if g.metrics != nil {
		g.metrics.AuthCacheMisses.Inc()
	}

	identity, err = g.verifier.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			return interfaces.Identity{}, err
		}
		return interfaces.Identity{}, fmt.Errorf("identity verification failed: %w", err)
	}

	if err := g.cache.Set(ctx, key, identity, g.credentialTTL); err != nil {
		log.WithError(err).Warn("Failed to cache verified credential")
	}
	return identity, nil
}

func (g *Gate) lookupUser(ctx context.Context, externalID string) (*entities.User, error) {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return user, uow.Commit()
}

func hashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
