package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	keyPrefix       = "labdesk:lock:"
	defaultTTL      = 5 * time.Minute
	defaultRetry    = 100 * time.Millisecond
	releaseDeadline = 2 * time.Second
)

var ErrEmptyKey = errors.New("lock_key_empty")

// Locker serializes mutations of a named resource, such as one sheet.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process keyed mutex. Acquisition honours context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

// Redis holds a SETNX lease in Redis on top of the local mutex so replicas do not interleave.
type Redis struct {
	local  *Local
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	retry  time.Duration
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{
		local:  NewLocal(),
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    defaultTTL,
		retry:  defaultRetry,
		log:    log,
	}
}

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := l.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := keyPrefix + strings.TrimSpace(key)
	for {
		token, ok, err := l.TryLock(ctx, redisKey, l.ttl)
		if err != nil {
			releaseLocal()
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), releaseDeadline)
				defer cancel()
				if err := l.Release(releaseCtx, redisKey, token); err != nil && l.log != nil {
					l.log.Warn("release redis lock failed", zap.String("key", redisKey), zap.Error(err))
				}
				releaseLocal()
			}, nil
		}

		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Redis) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
