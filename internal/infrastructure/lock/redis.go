package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// ErrLockHeld is returned when another holder keeps the key past the wait budget
var ErrLockHeld = errors.New("lock is held by another owner")

// RedisLocker holds a SET NX PX key per invoice so transitions serialize across processes
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// RedisOption configures a RedisLocker
type RedisOption func(*RedisLocker)

// WithKeyPrefix overrides the key namespace
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

// WithWait bounds how long Lock retries before giving up
func WithWait(wait time.Duration) RedisOption {
	return func(l *RedisLocker) { l.wait = wait }
}

// NewRedisLocker creates a redis-backed locker. ttl bounds how long a crashed holder can block an id.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "invoice-lock:",
		ttl:    ttl,
		wait:   ttl,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) key(id int64) string {
	return l.prefix + strconv.FormatInt(id, 10)
}

// Lock acquires the key for id, retrying with exponential backoff until the wait budget or ctx runs out
func (l *RedisLocker) Lock(ctx context.Context, id int64) (func(), error) {
	key := l.key(id)
	owner := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = l.wait

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockHeld
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func() {
		// release must run even when the caller's ctx was cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.unlock(releaseCtx, key, owner); err != nil {
			l.logger.Warn("Failed to release invoice lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (l *RedisLocker) unlock(ctx context.Context, key, owner string) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{key}, owner).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or not the holder for key %s", key)
	}
	return nil
}

var _ port.Locker = (*RedisLocker)(nil)
