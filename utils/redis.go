package utils

import (
	"context"
	"fmt"
	"os"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// RedisClient is the shared Redis client used for webhook idempotency claims and
// token revocation checks. It is nil when REDIS_ADDR is not configured; callers
// that require claims must refuse to start without it.
var RedisClient *redis.Client

func init() {
	InitRedis()
}

// InitRedis (re)initializes the shared client from REDIS_ADDR. main calls it again
// after loading .env, since package init runs before that.
func InitRedis() {
	if RedisClient != nil {
		return
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return
	}
	addr = strings.ReplaceAll(addr, " ", "")
	opts := &redis.Options{Addr: addr}
	if p := os.Getenv("REDIS_PASS"); p != "" {
		opts.Password = p
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		var dbn int
		_, _ = fmt.Sscanf(dbStr, "%d", &dbn)
		opts.DB = dbn
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(context.Background()).Err(); err != nil {
		fmt.Printf("warning: redis ping failed: %v\n", err)
		return
	}
	RedisClient = rc
}
