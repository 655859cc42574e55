package redis

import (
	"context"
	"slices"
	"time"

	"go-marketplace/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Adapter keeps each user's favorite listing ids in a redis SET. Redis
// cannot store an empty set, so every filled set also holds the empty-string
// member. Listing ids are never empty. One key means one read and one expiry.
type Adapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAdapter(addr string, ttl time.Duration) *Adapter {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Adapter{client: rdb, ttl: ttl}
}

var _ ports.IDSetCache = (*Adapter)(nil)

const (
	Prefix   = "favorites:user:"
	sentinel = ""
)

func setKey(userID string) string { return Prefix + userID }

func (a *Adapter) Members(ctx context.Context, userID string) ([]string, bool, error) {
	members, err := a.client.SMembers(ctx, setKey(userID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	ids := slices.DeleteFunc(members, func(id string) bool { return id == sentinel })
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

// Replace swaps the user's set atomically.
func (a *Adapter) Replace(ctx context.Context, userID string, ids []string) error {
	members := make([]any, 0, len(ids)+1)
	members = append(members, sentinel)
	for _, id := range ids {
		members = append(members, id)
	}

	pipe := a.client.TxPipeline()
	pipe.Del(ctx, setKey(userID))
	pipe.SAdd(ctx, setKey(userID), members...)
	pipe.Expire(ctx, setKey(userID), a.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (a *Adapter) Drop(ctx context.Context, userID string) error {
	return a.client.Del(ctx, setKey(userID)).Err()
}

// Ping checks connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func (a *Adapter) Close() error {
	return a.client.Close()
}
