package cache

import (
	"fmt"
	"time"
)

// PresenceCache is the fast path for the online check. Per-user keys are
// written on every heartbeat and expire after the same TTL the derived
// predicate uses, so an expired key and a stale record agree. The table
// store stays authoritative when Redis is down.
type PresenceCache struct {
	redis *RedisCache
}

// NewPresenceCache creates a new presence cache
func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// SetOnline marks a user online for ttl; refreshed by each heartbeat.
func (pc *PresenceCache) SetOnline(userID uint, ttl time.Duration) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Set(onlineKey(userID), []byte("1"), ttl)
}

// SetOffline clears a user's fast-path key on graceful disconnect.
func (pc *PresenceCache) SetOffline(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Delete(onlineKey(userID))
}

// IsOnline reports the cached answer only; false means "consult the
// table store", not "offline".
func (pc *PresenceCache) IsOnline(userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(onlineKey(userID))
}
