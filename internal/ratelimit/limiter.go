// Package ratelimit throttles requests per client using ulule/limiter with an
// in-memory store, or Redis when the process shares limits across replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether a key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Ulule adapts a ulule limiter to Limiter.
type Ulule struct {
	L *limiter.Limiter
}

// NewMemory builds a process-local limiter from a ulule rate string such as "10-M".
func NewMemory(rate, prefix string) (Ulule, error) {
	return newUlule(memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}), rate)
}

// NewRedis builds a limiter whose counters live in Redis.
func NewRedis(client redis.UniversalClient, rate, prefix string) (Ulule, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Ulule{}, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return newUlule(store, rate)
}

func newUlule(store limiter.Store, rate string) (Ulule, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Ulule{}, fmt.Errorf("ratelimit: rate %q: %w", rate, err)
	}
	return Ulule{L: limiter.New(store, parsed)}, nil
}

// Allow implements Limiter.
func (u Ulule) Allow(ctx context.Context, key string) (Decision, error) {
	if u.L == nil {
		return Decision{Allowed: true}, nil
	}
	lc, err := u.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}
