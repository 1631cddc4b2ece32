package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: chat:presence:<user> -> "1", TTL bounds staleness.
func presenceKey(user string) string { return "chat:presence:" + user }

const defaultPresenceTTL = 2 * time.Hour

// Mirror copies presence transitions into redis so ops tooling can see who
// is online without asking the process. The in-memory registry stays
// authoritative; the mirror is best-effort and a nil *Mirror is a no-op,
// which is how the gateway runs when redis is not configured.
type Mirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMirror(rdb *redis.Client, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &Mirror{rdb: rdb, ttl: ttl}
}

// Online records the user as online and renews the TTL.
func (m *Mirror) Online(ctx context.Context, user string) error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Set(ctx, presenceKey(user), "1", m.ttl).Err()
}

// Offline clears the user's presence key.
func (m *Mirror) Offline(ctx context.Context, user string) error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports mirrored presence for one user.
func (m *Mirror) Lookup(ctx context.Context, user string) (bool, error) {
	if m == nil || m.rdb == nil {
		return false, nil
	}
	_, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
