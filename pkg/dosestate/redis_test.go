//go:build integration

package dosestate

import (
	"context"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return strings.TrimPrefix(endpoint, "redis://")
}

func TestRedisStore(t *testing.T) {
	addr := setupRedisContainer(t)
	st, err := NewRedisStore(addr, "", 0)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Ping(context.Background()))
	runStoreSuite(t, st, func(pond string, s model.Substance, raw string) {
		require.NoError(t, st.client.HSet(context.Background(), doseKey(pond), s.String(), raw).Err())
	})
}

func TestRedisStoreCloseIdempotent(t *testing.T) {
	addr := setupRedisContainer(t)
	st, err := NewRedisStore(addr, "", 0)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, _, err = st.LastDose(context.Background(), "1", model.CaCO3)
	require.ErrorIs(t, err, redis.ErrClosed)
}

func TestNewRedisStoreInvalid(t *testing.T) {
	_, err := NewRedisStore("", "", 0)
	require.Error(t, err)
	_, err = NewRedisStore("localhost:6379", "", -1)
	require.Error(t, err)
}
