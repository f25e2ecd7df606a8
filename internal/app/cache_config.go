package app

import (
	"strings"
	"time"

	"github.com/bloodbridge/bloodbridge/internal/cache"
)

// Cache drivers accepted in cache.driver.
const (
	CacheDriverDatabase = "database"
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"
)

const (
	defaultRedisAddress = "127.0.0.1:6379"
	defaultRedisTimeout = 5 * time.Second
)

// DriverName normalises cache.driver. An empty value means the database store.
func (c CacheConfig) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		return CacheDriverDatabase
	}
	return driver
}

// RedisClientConfig returns the connection settings used when cache.driver is redis.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	addr := strings.TrimSpace(c.Redis.Address)
	if addr == "" {
		addr = defaultRedisAddress
	}
	timeout := c.Redis.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return cache.RedisConfig{
		Address:  addr,
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  timeout,
	}
}
