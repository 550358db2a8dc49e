package cache

import (
	"context"
	"sync"
	"time"

	"content-pipeline/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalRunLock keeps job locks in process memory.
type LocalRunLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalRunLock() *LocalRunLock {
	return &LocalRunLock{held: make(map[string]struct{})}
}

func (l *LocalRunLock) TryAcquire(_ context.Context, job string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[job]; busy {
		return nil, false, nil
	}
	l.held[job] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, job)
			l.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the lock only while it still carries our token, so a
// lease that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out while the lock still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisRunLock is a lease shared by every replica that talks to the same
// Redis. The holder renews it every third of the TTL until release, so the
// TTL only bounds how long a crashed holder can block a job.
type RedisRunLock struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	renewEvery time.Duration
}

func NewRedisRunLock(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunLock{client: client, prefix: prefix, ttl: ttl, renewEvery: ttl / 3}
}

func (l *RedisRunLock) key(job string) string {
	return l.prefix + job
}

func (l *RedisRunLock) TryAcquire(ctx context.Context, job string) (func(), bool, error) {
	key := l.key(job)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				logger.GetLogger().WithField("key", key).WithField("error", err.Error()).Warn("Failed to release run lock")
			}
		})
	}, true, nil
}

func (l *RedisRunLock) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		renewCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := renewScript.Run(renewCtx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			logger.GetLogger().WithField("key", key).WithField("error", err.Error()).Warn("Failed to renew run lock")
		case n == 0:
			logger.GetLogger().WithField("key", key).Warn("Run lock lease lost before release")
			return
		}
	}
}
