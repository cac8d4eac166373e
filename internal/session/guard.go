package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
)

// Guard rejects a second commit or discard on a stage while one is in flight.
type Guard interface {
	// Acquire returns ACTION_IN_FLIGHT when key is already held.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard returns an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire implements Guard.
func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, apperrors.ErrActionInFlightf(key)
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares the guard across BFF replicas with SET NX and a TTL.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a RedisGuard. ttl bounds a lock whose holder died.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{client: client, prefix: "bsr-stager:action:", ttl: ttl}
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire action lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrActionInFlightf(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be done; release on a short fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, []string{g.prefix + key}, token).Err(); err != nil {
				logger.Warn("Release action lock failed", logger.StageID(key), zap.Error(err))
			}
		})
	}, nil
}
