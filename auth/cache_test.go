package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/domain/interfaces"
)

func TestMemoryCredentialCache(t *testing.T) {
	ctx := context.Background()
	identity := interfaces.Identity{ExternalID: "ext-1", Username: "alice"}

	t.Run("hit within ttl", func(t *testing.T) {
		cache := NewMemoryCredentialCache(10)
		require.NoError(t, cache.Set(ctx, "k1", identity, time.Minute))

		got, hit, err := cache.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, identity, got)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		cache := NewMemoryCredentialCache(10)
		require.NoError(t, cache.Set(ctx, "k1", identity, -time.Second))

		_, hit, err := cache.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("delete removes entry", func(t *testing.T) {
		cache := NewMemoryCredentialCache(10)
		require.NoError(t, cache.Set(ctx, "k1", identity, time.Minute))
		require.NoError(t, cache.Delete(ctx, "k1"))

		_, hit, err := cache.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("evicts least recently used beyond capacity", func(t *testing.T) {
		cache := NewMemoryCredentialCache(2)
		require.NoError(t, cache.Set(ctx, "k1", identity, time.Minute))
		require.NoError(t, cache.Set(ctx, "k2", identity, time.Minute))

		// Touch k1 so k2 becomes the eviction candidate.
		_, hit, _ := cache.Get(ctx, "k1")
		require.True(t, hit)

		require.NoError(t, cache.Set(ctx, "k3", identity, time.Minute))

		_, hit, _ = cache.Get(ctx, "k1")
		assert.True(t, hit)
		_, hit, _ = cache.Get(ctx, "k2")
		assert.False(t, hit)
		_, hit, _ = cache.Get(ctx, "k3")
		assert.True(t, hit)
	})

	t.Run("overwrite refreshes value", func(t *testing.T) {
		cache := NewMemoryCredentialCache(10)
		require.NoError(t, cache.Set(ctx, "k1", identity, time.Minute))

		renamed := interfaces.Identity{ExternalID: "ext-1", Username: "alice2"}
		require.NoError(t, cache.Set(ctx, "k1", renamed, time.Minute))

		got, hit, _ := cache.Get(ctx, "k1")
		require.True(t, hit)
		assert.Equal(t, "alice2", got.Username)
	})

	t.Run("capacity holds under many inserts", func(t *testing.T) {
		cache := NewMemoryCredentialCache(5)
		for i := 0; i < 100; i++ {
			require.NoError(t, cache.Set(ctx, fmt.Sprintf("k%d", i), identity, time.Minute))
		}
		assert.LessOrEqual(t, cache.lru.Len(), 5)
	})
}
