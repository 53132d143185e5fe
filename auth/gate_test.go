package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/interfaces"
	"splitpay/domain/testhelpers"
)

func newGateFixture() (*Gate, *testhelpers.MockIdentityVerifier, *MemoryCredentialCache, *testhelpers.MockUnitOfWork) {
	verifier := new(testhelpers.MockIdentityVerifier)
	cache := NewMemoryCredentialCache(100)
	factory := testhelpers.NewMockUnitOfWorkFactory()
	gate := NewGate(verifier, cache, factory, nil)
	return gate, verifier, cache, factory.UnitOfWork
}

func TestGate_Resolve(t *testing.T) {
	ctx := context.Background()
	identity := interfaces.Identity{ExternalID: "ext-1", Username: "alice"}
	user := &entities.User{ID: 1, ExternalID: "ext-1", Username: "alice"}

	t.Run("verifies and resolves local user", func(t *testing.T) {
		gate, verifier, _, uow := newGateFixture()

		verifier.On("Verify", ctx, "cred").Return(identity, nil).Once()
		uow.Users.On("GetByExternalID", ctx, "ext-1").Return(user, nil)

		resolved, err := gate.Resolve(ctx, "cred")
		require.NoError(t, err)
		assert.Equal(t, int64(1), resolved.ID)

		verifier.AssertExpectations(t)
	})

	t.Run("cache hit skips the identity provider", func(t *testing.T) {
		gate, verifier, _, uow := newGateFixture()

		verifier.On("Verify", ctx, "cred").Return(identity, nil).Once()
		uow.Users.On("GetByExternalID", ctx, "ext-1").Return(user, nil)

		_, err := gate.Resolve(ctx, "cred")
		require.NoError(t, err)
		_, err = gate.Resolve(ctx, "cred")
		require.NoError(t, err)

		// Verify was set up Once; a second provider call would fail the mock.
		verifier.AssertNumberOfCalls(t, "Verify", 1)
	})

	t.Run("empty credential is unauthenticated", func(t *testing.T) {
		gate, verifier, _, _ := newGateFixture()

		_, err := gate.Resolve(ctx, "")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("rejected credential surfaces ErrInvalidCredential", func(t *testing.T) {
		gate, verifier, _, _ := newGateFixture()

		verifier.On("Verify", ctx, "bad").Return(interfaces.Identity{}, domain.ErrInvalidCredential)

		_, err := gate.Resolve(ctx, "bad")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("rejected credential is not cached", func(t *testing.T) {
		gate, verifier, _, _ := newGateFixture()

		verifier.On("Verify", ctx, "bad").Return(interfaces.Identity{}, domain.ErrInvalidCredential).Twice()

		_, err := gate.Resolve(ctx, "bad")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		_, err = gate.Resolve(ctx, "bad")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)

		verifier.AssertExpectations(t)
	})

	t.Run("valid credential without local user is ErrUnknownUser", func(t *testing.T) {
		gate, verifier, _, uow := newGateFixture()

		verifier.On("Verify", ctx, "cred").Return(identity, nil)
		uow.Users.On("GetByExternalID", ctx, "ext-1").Return(nil, nil)

		_, err := gate.Resolve(ctx, "cred")
		assert.ErrorIs(t, err, domain.ErrUnknownUser)
	})

	t.Run("provider transport failure is not ErrInvalidCredential", func(t *testing.T) {
		gate, verifier, _, _ := newGateFixture()

		verifier.On("Verify", ctx, "cred").Return(interfaces.Identity{}, errors.New("dial timeout"))

		_, err := gate.Resolve(ctx, "cred")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredential)
	})
}

func TestGate_Provision(t *testing.T) {
	ctx := context.Background()
	identity := interfaces.Identity{ExternalID: "ext-1", Username: "alice"}
	user := &entities.User{ID: 1, ExternalID: "ext-1", Username: "alice"}

	gate, verifier, _, uow := newGateFixture()

	verifier.On("Verify", ctx, "cred").Return(identity, nil)
	uow.Users.On("Create", ctx, "ext-1", "alice").Return(user, nil)

	provisioned, err := gate.Provision(ctx, "cred")
	require.NoError(t, err)
	assert.Equal(t, int64(1), provisioned.ID)

	uow.AssertExpectations(t)
}

func TestGate_Logout(t *testing.T) {
	ctx := context.Background()
	identity := interfaces.Identity{ExternalID: "ext-1", Username: "alice"}
	user := &entities.User{ID: 1, ExternalID: "ext-1", Username: "alice"}

	gate, verifier, _, uow := newGateFixture()

	// Two verifications expected: logout in between drops the cache entry.
	verifier.On("Verify", ctx, "cred").Return(identity, nil).Twice()
	uow.Users.On("GetByExternalID", ctx, "ext-1").Return(user, nil)

	_, err := gate.Resolve(ctx, "cred")
	require.NoError(t, err)

	require.NoError(t, gate.Logout(ctx, "cred"))

	_, err = gate.Resolve(ctx, "cred")
	require.NoError(t, err)

	verifier.AssertExpectations(t)
}
