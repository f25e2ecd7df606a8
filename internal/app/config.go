package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BLOODBRIDGE_AUTH_JWT_SECRET.
const EnvPrefix = "BLOODBRIDGE"

// Config represents the runtime configuration for the BloodBridge backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Campaigns     CampaignsConfig     `mapstructure:"campaigns"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Seed          SeedConfig          `mapstructure:"seed"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	CORS            CORSConfig      `mapstructure:"cors"`
}

// RateLimitConfig bounds requests per client and route within a fixed window.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig selects the encoder and optional rotating file output.
type LogConfig struct {
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver         string            `mapstructure:"driver"`
	Path           string            `mapstructure:"path"`
	DSN            string            `mapstructure:"dsn"`
	Postgres       DBAuthConfig      `mapstructure:"postgres"`
	MySQL          DBAuthConfig      `mapstructure:"mysql"`
	Options        map[string]string `mapstructure:"options"`
	LogSQL         bool              `mapstructure:"log_sql"`
	ConnectRetries uint              `mapstructure:"connect_retries"`
	RetryDelay     time.Duration     `mapstructure:"retry_delay"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig selects the store behind request rate limiting.
// Driver is one of database, memory or redis.
type CacheConfig struct {
	Driver string           `mapstructure:"driver"`
	Redis  RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// StorageConfig controls where uploaded documents are kept.
type StorageConfig struct {
	Backend           string          `mapstructure:"backend"`
	Root              string          `mapstructure:"root"`
	PublicBaseURL     string          `mapstructure:"public_base_url"`
	MaxUploadSize     int64           `mapstructure:"max_upload_size"`
	AllowedExtensions []string        `mapstructure:"allowed_extensions"`
	S3                S3StorageConfig `mapstructure:"s3"`
}

// S3StorageConfig configures an S3-compatible bucket.
type S3StorageConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	Prefix         string `mapstructure:"prefix"`
}

// NotificationsConfig tunes fan-out and redelivery.
type NotificationsConfig struct {
	FanoutBatchSize int           `mapstructure:"fanout_batch_size"`
	RetrySchedule   string        `mapstructure:"retry_schedule"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	Broker          BrokerConfig  `mapstructure:"broker"`
}

// BrokerConfig publishes created notifications to an AMQP exchange for external workers.
type BrokerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// CampaignsConfig schedules campaign status refreshes.
type CampaignsConfig struct {
	StatusSchedule string `mapstructure:"status_schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// SeedConfig bootstraps the first administrator.
type SeedConfig struct {
	Admin AdminSeedConfig `mapstructure:"admin"`
}

// AdminSeedConfig is created on start-up when Email is set.
type AdminSeedConfig struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

// Loader wraps the viper instance so callers can watch the file after loading.
type Loader struct {
	v *viper.Viper
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	cfg, _, err := NewLoader(paths...)
	return cfg, err
}

// NewLoader reads configuration and returns the loader for later watching.
func NewLoader(paths ...string) (*Config, *Loader, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		if strings.TrimSpace(path) != "" {
			v.AddConfigPath(path)
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	return &config, &Loader{v: v}, nil
}

// OnLogLevelChange watches the config file and reports server.log_level edits.
// It is a no-op when configuration came only from defaults and environment.
func (l *Loader) OnLogLevelChange(fn func(level string)) {
	if l == nil || l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.v.GetString("server.log_level"))
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.stdout", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/bloodbridge.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.retry_delay", "2s")

	v.SetDefault("cache.driver", CacheDriverDatabase)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "bloodbridge")
	v.SetDefault("auth.jwt.access_token_ttl", "24h")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.root", "./data/uploads")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.max_upload_size", 5<<20)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.allowed_extensions", []string{"pdf", "jpg", "jpeg", "png"})

	v.SetDefault("notifications.fanout_batch_size", 500)
	v.SetDefault("notifications.retry_schedule", "@every 5m")
	v.SetDefault("notifications.max_attempts", 5)
	v.SetDefault("notifications.retry_backoff", "5m")
	v.SetDefault("notifications.broker.enabled", false)
	v.SetDefault("notifications.broker.url", "")
	v.SetDefault("notifications.broker.exchange", "bloodbridge.notifications")

	v.SetDefault("campaigns.status_schedule", "@every 15m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("seed.admin.email", "")
	v.SetDefault("seed.admin.password", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
