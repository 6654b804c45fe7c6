package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"onsalenow/internal/repos"
)

// RedisDedup claims ids with SETNX so concurrent consumers agree on one sender.
type RedisDedup struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{Client: client, TTL: ttl, Prefix: "onsalenow:notified:"}
}

func (d *RedisDedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.Client.SetNX(ctx, d.Prefix+id, time.Now().UTC().Format(time.RFC3339), d.TTL).Result()
}

func (d *RedisDedup) Release(ctx context.Context, id string) error {
	return d.Client.Del(ctx, d.Prefix+id).Err()
}

// StoreDedup keeps claims in the record store under notifications/{id}.
// Check and mark are separate writes, so two racing consumers may both send;
// the provider's idempotency key covers that window.
type StoreDedup struct {
	Markers *repos.MarkerRepo
}

func (d StoreDedup) Claim(ctx context.Context, id string) (bool, error) {
	seen, err := d.Markers.Exists(ctx, id)
	if err != nil || seen {
		return false, err
	}
	err = d.Markers.Mark(ctx, id, map[string]any{"claimedAt": time.Now().UTC().Format(time.RFC3339)})
	return err == nil, err
}

func (d StoreDedup) Release(ctx context.Context, id string) error {
	return d.Markers.Clear(ctx, id)
}
