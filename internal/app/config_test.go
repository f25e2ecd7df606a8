package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 30, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)
	require.True(t, cfg.Server.RateLimit.Enabled)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORS.AllowedOrigins)

	require.Equal(t, "postgres", cfg.Database.Driver)
	conn := cfg.Database.ConnectionConfig()
	require.Equal(t, "db.example.com", conn.Host)
	require.Equal(t, 6543, conn.Port)
	require.Equal(t, "bloodbridge", conn.Name)
	require.Equal(t, "bb", conn.User)
	require.Equal(t, "require", conn.Options["sslmode"])

	require.Equal(t, CacheDriverRedis, cfg.Cache.DriverName())
	redisCfg := cfg.Cache.RedisClientConfig()
	require.Equal(t, "redis.example.com:6380", redisCfg.Address)
	require.Equal(t, 2*time.Second, redisCfg.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "bloodbridge", cfg.Auth.JWT.Issuer)

	store := cfg.Storage.StoreConfig()
	require.Equal(t, "local", store.Backend)
	require.Equal(t, "/var/lib/bloodbridge/uploads", store.Root)
	require.EqualValues(t, 1<<20, store.MaxUploadSize)
	require.Equal(t, []string{"pdf", "png"}, store.AllowedExtensions)

	require.Equal(t, 200, cfg.Notifications.FanoutBatchSize)
	require.Equal(t, 3, cfg.Notifications.MaxAttempts)
	require.Equal(t, "@every 5m", cfg.Notifications.RetrySchedule)
	require.Equal(t, "@every 1m", cfg.Campaigns.StatusSchedule)

	seed := cfg.Seed.SeedOptions()
	require.Equal(t, "admin@example.com", seed.AdminEmail)
	require.Equal(t, "change-me-now", seed.AdminPassword)
}

func TestLoadConfigDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("BLOODBRIDGE_AUTH_JWT_SECRET", "from-env")
	t.Setenv("BLOODBRIDGE_SERVER_PORT", "8181")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 500, cfg.Notifications.FanoutBatchSize)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, CacheDriverDatabase, cfg.Cache.DriverName())

	conn := cfg.Database.ConnectionConfig()
	require.Equal(t, "./data/bloodbridge.sqlite", conn.Path)
	require.Empty(t, conn.Host)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("BLOODBRIDGE_AUTH_JWT_SECRET", "")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth.jwt.secret")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{
		Server:        ServerConfig{Port: 0},
		Database:      DatabaseConfig{Driver: "oracle"},
		Cache:         CacheConfig{Driver: "memcached"},
		Storage:       StorageConfig{Backend: "s3"},
		Notifications: NotificationsConfig{Broker: BrokerConfig{Enabled: true}},
		Seed:          SeedConfig{Admin: AdminSeedConfig{Email: "a@b.c", Password: "short"}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, fragment := range []string{"auth.jwt.secret", "server.port", "database.driver", "cache.driver", "storage.s3.bucket", "broker.url", "seed.admin.password"} {
		require.Contains(t, err.Error(), fragment)
	}
}

func TestJWTServiceConfigFallback(t *testing.T) {
	var cfg AuthConfig
	cfg.JWT.Secret = "  secret\n"

	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
	require.Equal(t, "secret", jwtCfg.Secret)
	require.Equal(t, "bloodbridge", jwtCfg.Issuer)

	cfg.JWT.Issuer = "blood-bank-east"
	cfg.JWT.TTL = 365 * 24 * time.Hour
	jwtCfg = cfg.JWTServiceConfig()
	require.Equal(t, "blood-bank-east", jwtCfg.Issuer)
	require.Equal(t, 30*24*time.Hour, jwtCfg.AccessTokenTTL)
}

func TestCacheDriverSelection(t *testing.T) {
	require.Equal(t, CacheDriverDatabase, CacheConfig{}.DriverName())
	require.Equal(t, CacheDriverMemory, CacheConfig{Driver: " Memory "}.DriverName())

	redisCfg := CacheConfig{Driver: "redis"}.RedisClientConfig()
	require.Equal(t, "127.0.0.1:6379", redisCfg.Address)
	require.Equal(t, 5*time.Second, redisCfg.Timeout)

	t.Setenv("BLOODBRIDGE_AUTH_JWT_SECRET", "from-env")
	t.Setenv("BLOODBRIDGE_CACHE_DRIVER", "memory")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, CacheDriverMemory, cfg.Cache.DriverName())
}
