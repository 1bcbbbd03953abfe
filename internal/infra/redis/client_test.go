package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestWrapPingsAndHealthChecks(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})

	client, err := Wrap(context.Background(), rdb, nil)
	require.NoError(t, err)
	require.NoError(t, client.HealthCheck(context.Background()))
	require.NoError(t, client.Close())
}

func TestWrapFailsWhenServerDown(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := Wrap(context.Background(), goredis.NewClient(&goredis.Options{Addr: addr, MaxRetries: -1}), nil)
	require.Error(t, err)
}
