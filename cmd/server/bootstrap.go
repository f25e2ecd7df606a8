package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/api"
	"github.com/bloodbridge/bloodbridge/internal/app"
	"github.com/bloodbridge/bloodbridge/internal/app/maintenance"
	iauth "github.com/bloodbridge/bloodbridge/internal/auth"
	"github.com/bloodbridge/bloodbridge/internal/broker"
	"github.com/bloodbridge/bloodbridge/internal/cache"
	"github.com/bloodbridge/bloodbridge/internal/database"
	"github.com/bloodbridge/bloodbridge/internal/monitoring"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	"github.com/bloodbridge/bloodbridge/internal/realtime"
	"github.com/bloodbridge/bloodbridge/internal/security"
	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/internal/storage"
)

const healthCheckTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	DBCache   *cache.DatabaseStore
	Cache     cache.Store
	Redis     *cache.RedisStore
	Broker    *broker.AMQPPublisher
	Hub       *realtime.Hub
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, publishers, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	stack.DBCache, err = cache.NewDatabaseStore(stack.DB)
	if err != nil {
		return nil, err
	}
	stack.Cache = selectCache(ctx, cfg, stack, log)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	files, err := storage.New(ctx, cfg.Storage.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise storage: %w", err)
	}

	stack.Hub = realtime.NewHub(cfg.Server.CORS.AllowedOrigins...)
	publishers := notifications.Publishers{stack.Hub}
	if cfg.Notifications.Broker.Enabled {
		if stack.Broker, err = broker.Dial(cfg.Notifications.Broker.URL, cfg.Notifications.Broker.Exchange); err != nil {
			log.Warn("notification broker unavailable; events stay in-process", zap.Error(err))
		} else {
			publishers = append(publishers, stack.Broker)
			log.Info("notification broker connected", zap.String("exchange", cfg.Notifications.Broker.Exchange))
		}
	}

	health := monitoring.NewHealthManager(monitoring.Database(stack.DB, healthCheckTimeout))
	if stack.Redis != nil {
		health.Register(monitoring.Ping("redis", stack.Redis, healthCheckTimeout))
	}
	if stack.Broker != nil {
		health.Register(monitoring.Ping("broker", stack.Broker, healthCheckTimeout))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		JWT:       jwtSvc,
		Config:    cfg,
		Storage:   files,
		Cache:     stack.Cache,
		Hub:       stack.Hub,
		Publisher: publishers,
		Health:    health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	reportSecurityAudit(ctx, security.NewAuditService(stack.DB, jwtSvc, cfg), log)

	if stack.Scheduler, err = startScheduler(cfg, stack.DB, stack.DBCache, publishers); err != nil {
		return nil, err
	}

	success = true
	return stack, nil
}

// reportSecurityAudit logs every check that did not pass so weak deployments are visible at start-up.
func reportSecurityAudit(ctx context.Context, audit *security.AuditService, log *zap.Logger) {
	result := audit.Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		case security.StatusPass:
		}
	}
}

func startScheduler(cfg *app.Config, db *gorm.DB, purger maintenance.CachePurger, publisher notifications.Publisher) (*maintenance.Scheduler, error) {
	notifier, err := services.NewNotificationService(db, publisher,
		services.WithFanOutBatchSize(cfg.Notifications.FanoutBatchSize),
		services.WithRetryBackoff(cfg.Notifications.RetryBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}
	campaigns, err := services.NewCampaignService(db, notifier)
	if err != nil {
		return nil, fmt.Errorf("initialise campaign service: %w", err)
	}

	scheduler := maintenance.NewScheduler(notifier, campaigns, purger,
		maintenance.WithMaxAttempts(cfg.Notifications.MaxAttempts),
		maintenance.WithRedeliverySchedule(cfg.Notifications.RetrySchedule),
		maintenance.WithCampaignSchedule(cfg.Campaigns.StatusSchedule),
	)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}
	return scheduler, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.Broker != nil {
		if err := s.Broker.Close(); err != nil {
			log.Warn("broker shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// initialiseDatabase opens the configured database, retrying while it comes up, then migrates and seeds it.
func initialiseDatabase(ctx context.Context, cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()

	var db *gorm.DB
	err := retry.Do(
		func() error {
			var openErr error
			db, openErr = database.Open(dbCfg)
			return openErr
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts(cfg.Database.ConnectRetries)),
		retry.Delay(cfg.Database.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("database not ready; retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Seed.SeedOptions()); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))
	return db, nil
}

// selectCache picks the rate-limit store named by cache.driver. An unreachable Redis
// degrades to the database store.
func selectCache(ctx context.Context, cfg *app.Config, stack *runtimeStack, log *zap.Logger) cache.Store {
	switch cfg.Cache.DriverName() {
	case app.CacheDriverMemory:
		log.Info("using in-process cache; rate limits are per instance")
		return cache.NewMemoryStore()
	case app.CacheDriverRedis:
		redisStore, err := connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			return stack.DBCache
		}
		stack.Redis = redisStore
		log.Info("redis connected", zap.String("addr", cfg.Cache.RedisClientConfig().Address))
		return redisStore
	default:
		return stack.DBCache
	}
}

func connectRedis(ctx context.Context, cfg *app.Config, log *zap.Logger) (*cache.RedisStore, error) {
	var store *cache.RedisStore
	err := retry.Do(
		func() error {
			var dialErr error
			store, dialErr = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
			return dialErr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("redis not ready; retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return store, err
}

// connectAttempts converts the configured retry count into total attempts.
func connectAttempts(retries uint) uint {
	return retries + 1
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
