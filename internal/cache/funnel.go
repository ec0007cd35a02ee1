package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/funnel"
)

type cachedSnapshot struct {
	funnel.Snapshot
	Conversions []funnel.Conversion `json:"conversions"`
}

// setSnapshotScript writes a snapshot unless the scope was invalidated after
// the snapshot was computed. KEYS: snapshot, invalidation marker. ARGV:
// computed-at in microseconds, payload, ttl in milliseconds (0 keeps it).
const setSnapshotScript = `
local invalidated = redis.call("GET", KEYS[2])
if invalidated and tonumber(invalidated) > tonumber(ARGV[1]) then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

// minMarkerTTL bounds how long an invalidation marker outlives a short
// snapshot TTL; a refresh that started before the marker must still see it.
const minMarkerTTL = time.Minute

// RedisFunnelCache stores snapshots as JSON with a TTL. Snapshots keep their
// ComputedAt so readers can tell how stale they are. Invalidate leaves a
// timestamped marker so a snapshot computed before it is never stored.
type RedisFunnelCache struct {
	client    *redis.Client
	setScript *redis.Script
	prefix    string
	ttl       time.Duration
	clock     func() time.Time
}

func NewRedisFunnelCache(client *redis.Client, prefix string, ttl time.Duration) *RedisFunnelCache {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "funnel"
	}
	return &RedisFunnelCache{client: client, setScript: redis.NewScript(setSnapshotScript), prefix: prefix, ttl: ttl, clock: time.Now}
}

func (c *RedisFunnelCache) Get(ctx context.Context, scope application.Scope) (*funnel.Snapshot, error) {
	raw, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, common.NewError(common.CodeUnavailable, "failed to read funnel cache", err)
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, nil
	}
	snapshot := cached.Snapshot
	snapshot.ConversionRates = make(map[funnel.StagePair]funnel.Rate, len(cached.Conversions))
	for _, conversion := range cached.Conversions {
		snapshot.ConversionRates[funnel.StagePair{From: conversion.From, To: conversion.To}] = conversion.Rate
	}
	return &snapshot, nil
}

// Set stores snapshot. It is silently dropped when the scope was invalidated
// after snapshot.ComputedAt.
func (c *RedisFunnelCache) Set(ctx context.Context, snapshot funnel.Snapshot) error {
	raw, err := json.Marshal(cachedSnapshot{Snapshot: snapshot, Conversions: snapshot.Conversions()})
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to encode funnel snapshot", err)
	}
	keys := []string{c.key(snapshot.Scope), c.markerKey(snapshot.Scope)}
	args := []any{snapshot.ComputedAt.UnixMicro(), raw, c.ttl.Milliseconds()}
	if err := c.setScript.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return common.NewError(common.CodeUnavailable, "failed to write funnel cache", err)
	}
	return nil
}

func (c *RedisFunnelCache) Invalidate(ctx context.Context, jobID, organizationID common.UUID) error {
	scopes := make([]application.Scope, 0, 2)
	if jobID != "" {
		scopes = append(scopes, application.Scope{JobID: jobID})
	}
	if organizationID != "" {
		scopes = append(scopes, application.Scope{OrganizationID: organizationID})
	}
	if len(scopes) == 0 {
		return nil
	}
	markerTTL := c.ttl
	if markerTTL < minMarkerTTL {
		markerTTL = minMarkerTTL
	}
	at := strconv.FormatInt(c.clock().UnixMicro(), 10)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, scope := range scopes {
			pipe.Del(ctx, c.key(scope))
			pipe.Set(ctx, c.markerKey(scope), at, markerTTL)
		}
		return nil
	})
	if err != nil {
		return common.NewError(common.CodeUnavailable, "failed to invalidate funnel cache", err)
	}
	return nil
}

func (c *RedisFunnelCache) key(scope application.Scope) string {
	return c.prefix + ":" + funnel.ScopeKey(scope)
}

func (c *RedisFunnelCache) markerKey(scope application.Scope) string {
	return c.prefix + ":invalidated:" + funnel.ScopeKey(scope)
}

// MemoryFunnelCache is the in-process fallback used without Redis.
type MemoryFunnelCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	items       map[string]memoryEntry
	invalidated map[string]time.Time
	clock       func() time.Time
}

type memoryEntry struct {
	snapshot  funnel.Snapshot
	expiresAt time.Time
}

func NewMemoryFunnelCache(ttl time.Duration) *MemoryFunnelCache {
	return &MemoryFunnelCache{ttl: ttl, items: make(map[string]memoryEntry), invalidated: make(map[string]time.Time), clock: time.Now}
}

func (c *MemoryFunnelCache) Get(_ context.Context, scope application.Scope) (*funnel.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := funnel.ScopeKey(scope)
	entry, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	if c.ttl > 0 && c.clock().After(entry.expiresAt) {
		delete(c.items, key)
		return nil, nil
	}
	snapshot := entry.snapshot
	return &snapshot, nil
}

func (c *MemoryFunnelCache) Set(_ context.Context, snapshot funnel.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := funnel.ScopeKey(snapshot.Scope)
	if at, ok := c.invalidated[key]; ok {
		if snapshot.ComputedAt.Before(at) {
			return nil
		}
		delete(c.invalidated, key)
	}
	c.items[key] = memoryEntry{snapshot: snapshot, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *MemoryFunnelCache) Invalidate(_ context.Context, jobID, organizationID common.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	for _, scope := range []application.Scope{{JobID: jobID}, {OrganizationID: organizationID}} {
		if scope.JobID == "" && scope.OrganizationID == "" {
			continue
		}
		key := funnel.ScopeKey(scope)
		delete(c.items, key)
		c.invalidated[key] = now
	}
	return nil
}
