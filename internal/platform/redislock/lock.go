// Package redislock guards batch runs against overlapping schedulers.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// Release gives the lock back. It is safe to call after the TTL lapsed.
type Release func(ctx context.Context) error

type Locker interface {
	// TryLock never blocks; ok=false means someone else holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release Release, ok bool, err error)
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func ConfigFromEnv() Config {
	return Config{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Prefix:   envutil.String("REDIS_LOCK_PREFIX", "forfeit:lock:"),
	}
}

func NewFromEnv(log *logger.Logger) (Locker, error) {
	return New(log, ConfigFromEnv())
}

// New returns a process-local locker when no Redis address is configured.
func New(log *logger.Logger, cfg Config) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Addr == "" {
		log.Warn("REDIS_ADDR not set; run locks are process-local")
		return NewLocal(), nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisLocker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: cfg.Prefix,
	}, nil
}

type redisLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

// Deletes the key only while it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.rdb, []string{full}, token).Int64()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", full, err)
		}
		if n == 0 {
			l.log.Warn("Lock expired before release", "key", full)
		}
		return nil
	}, true, nil
}

func (l *redisLocker) Close() error { return l.rdb.Close() }

type localLocker struct {
	mu   sync.Mutex
	held map[string]localHold
}

type localHold struct {
	token   string
	expires time.Time
}

func NewLocal() Locker {
	return &localLocker{held: map[string]localHold{}}
}

func (l *localLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Release, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[key] = localHold{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.held[key]; ok && h.token == token {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}

func (l *localLocker) Close() error { return nil }
