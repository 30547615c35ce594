package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "civic:", nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "geocode:1,2", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "geocode:1,2", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "geocode:*"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}
