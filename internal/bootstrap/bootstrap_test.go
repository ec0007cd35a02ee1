package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentflow/internal/cache"
	"talentflow/internal/config"
	"talentflow/internal/notify"
	"talentflow/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{FunnelCacheTTL: time.Minute, BulkConcurrency: 2}
	c, err := New(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer c.Close(discardLogger())

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.IsType(t, &memory.ApplicationStore{}, c.Stores.Applications)
	assert.IsType(t, &cache.MemoryFunnelCache{}, c.FunnelCache)
	assert.IsType(t, &notify.StoreEmitter{}, c.Emitter)
	assert.NotNil(t, c.Pipeline)
}

func TestNewUsesRedisWhenReachable(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := &config.Config{RedisURL: "redis://" + server.Addr(), FunnelCacheTTL: time.Minute, BulkConcurrency: 2, NotifyStream: "n"}
	c, err := New(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer c.Close(discardLogger())

	require.NotNil(t, c.Redis)
	assert.IsType(t, &cache.RedisFunnelCache{}, c.FunnelCache)
	assert.IsType(t, &notify.FanoutEmitter{}, c.Emitter)
}
