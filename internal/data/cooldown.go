package data

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// errRedisUnavailable is returned when the store was built without a Redis client.
var errRedisUnavailable = errors.New("redis client is nil")

// cooldownScanCount is the COUNT hint used when scanning cooldown markers.
const cooldownScanCount = 100

// CooldownStore publishes cooldown windows as Redis keys that expire with the window.
type CooldownStore struct {
	rdb    *redis.Client
	cache  CacheClient
	logger *log.Helper
}

// NewCooldownStore creates a cooldown marker store on the shared Redis connection. Without
// Redis every call fails with a degraded-mode error that callers log and ignore.
func NewCooldownStore(d *Data, logger log.Logger) *CooldownStore {
	return &CooldownStore{
		rdb:    d.GetRedisClient(),
		cache:  d.GetCache(),
		logger: log.NewHelper(logger),
	}
}

func cooldownKey(id model.Identity) string {
	return BuildCacheKey(CacheKeyCooldown, id.String())
}

// MarkCooldown sets cooldown:{address:port} with a TTL ending at the cooldown deadline.
func (s *CooldownStore) MarkCooldown(ctx context.Context, ev *model.CooldownEvent) error {
	if s.rdb == nil {
		return errRedisUnavailable
	}

	ttl := time.Until(ev.CooldownUntil)
	if ttl <= 0 {
		return nil
	}

	key := cooldownKey(ev.ID)
	if err := s.cache.Set(ctx, key, ev.CooldownUntil.Unix(), ttl); err != nil {
		s.logger.Warnw("failed to set cooldown marker in Redis (degraded mode)",
			"proxy", ev.ID.String(),
			"error", err)
		return fmt.Errorf("failed to set cooldown marker: %w", err)
	}

	s.logger.Debugw("cooldown marker set",
		"proxy", ev.ID.String(),
		"ttl", ttl,
		"consecutive_failures", ev.ConsecutiveFailures)
	return nil
}

// ClearCooldown removes the marker of id.
func (s *CooldownStore) ClearCooldown(ctx context.Context, id model.Identity) error {
	if s.rdb == nil {
		return errRedisUnavailable
	}

	if err := s.cache.Delete(ctx, cooldownKey(id)); err != nil {
		s.logger.Warnw("failed to delete cooldown marker from Redis (degraded mode)",
			"proxy", id.String(),
			"error", err)
		return fmt.Errorf("failed to clear cooldown marker: %w", err)
	}
	return nil
}

// CoolingDown lists the identities that currently carry a marker.
func (s *CooldownStore) CoolingDown(ctx context.Context) ([]model.Identity, error) {
	if s.rdb == nil {
		return nil, errRedisUnavailable
	}

	prefix := CacheKeyCooldown + ":"
	var ids []model.Identity
	iter := s.rdb.Scan(ctx, 0, prefix+"*", cooldownScanCount).Iterator()
	for iter.Next(ctx) {
		id, err := parseIdentity(strings.TrimPrefix(iter.Val(), prefix))
		if err != nil {
			s.logger.Warnw("ignoring malformed cooldown key", "key", iter.Val(), "error", err)
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cooldown markers: %w", err)
	}
	return ids, nil
}

func parseIdentity(s string) (model.Identity, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return model.Identity{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return model.Identity{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return model.Identity{Address: host, Port: port}, nil
}
