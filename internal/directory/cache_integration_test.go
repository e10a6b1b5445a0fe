//go:build integration

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCachedWithRedis(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	static, obras, op := fixture()
	origin := &countingDirectory{Static: static}
	dir := NewCached(origin, client, time.Minute)

	for i := 0; i < 3; i++ {
		id, err := dir.SecretariaForTipo(ctx, "Pavimentação")
		require.NoError(t, err)
		assert.Equal(t, obras.String(), id)

		ok, err := dir.IsOperator(ctx, obras.String(), op.String())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, origin.tipoCalls)
	assert.Equal(t, 1, origin.operatorCalls)

	ttl, err := client.TTL(ctx, "demandas:tipo:Pavimentação").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// não membro não é cacheado
	for i := 0; i < 2; i++ {
		ok, err := dir.IsOperator(ctx, obras.String(), "outro")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, origin.operatorCalls)

	require.NoError(t, dir.InvalidateTipo(ctx, "Pavimentação"))
	n, err := client.Exists(ctx, "demandas:tipo:Pavimentação").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = dir.SecretariaForTipo(ctx, "Pavimentação")
	require.NoError(t, err)
	assert.Equal(t, 2, origin.tipoCalls)
}
