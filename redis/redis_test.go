package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/geodist/config"
	"github.com/wyfcoding/geodist/metrics"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	m := NewMetrics(metrics.NewMetrics("redis-test"))

	client, cleanup, err := NewClient(config.RedisConfig{Addr: s.Addr()}, m, nil)
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	assert.Error(t, client.Get(ctx, "missing").Err())

	assert.InDelta(t, 1, testutil.ToFloat64(m.ops.WithLabelValues(s.Addr(), "set", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ops.WithLabelValues(s.Addr(), "get", "success")), 0,
		"a nil reply is a miss, not a failure")
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, _, err := NewClient(config.RedisConfig{Addr: addr}, nil, nil)
	assert.Error(t, err)
}
