package utils_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/simulcast/pkg/utils"
)

func TestInMemoryCache_SetGetClear(t *testing.T) {
	ctx := context.Background()
	cache := utils.NewInMemoryCacheWithCleanup(0)
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, "simulcasts:FR", []string{"WINTER 2025"}, time.Minute))

	value, err := cache.Get(ctx, "simulcasts:FR")
	require.NoError(t, err)
	assert.Equal(t, []string{"WINTER 2025"}, value)

	require.NoError(t, cache.Clear(ctx))
	_, err = cache.Get(ctx, "simulcasts:FR")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)
	assert.Equal(t, 0, cache.Len())
}

func TestInMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := utils.NewInMemoryCacheWithCleanup(0)
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, "groups", 1, -time.Second))

	_, err := cache.Get(ctx, "groups")
	assert.ErrorIs(t, err, utils.ErrExpired)

	exists, err := cache.Exists(ctx, "groups")
	require.NoError(t, err)
	assert.False(t, exists)
}
