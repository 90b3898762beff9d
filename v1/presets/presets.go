// Package presets assembles ready-to-use lockers for common deployments so
// callers do not have to wire the collaborators themselves.
package presets

import (
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-latch/v1/latch"
	"github.com/mirkobrombin/go-latch/v1/lock"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewFileLocker creates a file-backed locker on the real filesystem. This is
// the default choice: it coordinates across processes, including across
// machines sharing a filesystem, with no external service.
func NewFileLocker() *lock.File {
	return lock.NewFile(latch.New())
}

// NewRedisLocker creates a locker backed by a Redis instance. Use it when a
// shared filesystem is not available but Redis is.
func NewRedisLocker(opts RedisOptions) *lock.Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return lock.NewRedis(client)
}

// NewInMemoryLocker creates a locker that coordinates goroutines within this
// process only. Useful for local development and tests.
func NewInMemoryLocker() *lock.InMemory {
	return lock.NewInMemory()
}
