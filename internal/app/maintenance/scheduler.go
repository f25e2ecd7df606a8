package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
)

const (
	defaultRedeliverySpec = "@every 5m"
	defaultCampaignSpec   = "@every 15m"
	defaultCacheSpec      = "@hourly"
	defaultMaxAttempts    = 5
)

// NotificationRedeliverer drains the notification outbox.
type NotificationRedeliverer interface {
	RedeliverPending(ctx context.Context, now time.Time, maxAttempts int) (services.RedeliveryResult, error)
}

// CampaignRefresher advances campaign statuses along the calendar.
type CampaignRefresher interface {
	RefreshStatuses(ctx context.Context, now time.Time) (int64, error)
}

// CachePurger removes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic background jobs. Nil dependencies skip their job.
type Scheduler struct {
	notifications NotificationRedeliverer
	campaigns     CampaignRefresher
	cache         CachePurger

	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	maxAttempts int

	redeliverySchedule string
	campaignSchedule   string
	cacheSchedule      string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to the jobs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxAttempts bounds how often an outbox row is retried before it is dropped.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRedeliverySchedule overrides the cron expression for outbox redelivery.
func WithRedeliverySchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.redeliverySchedule = spec
		}
	}
}

// WithCampaignSchedule overrides the cron expression for campaign status refresh.
func WithCampaignSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.campaignSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron expression for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cacheSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(notifications NotificationRedeliverer, campaigns CampaignRefresher, cache CachePurger, opts ...Option) *Scheduler {
	s := &Scheduler{
		notifications:      notifications,
		campaigns:          campaigns,
		cache:              cache,
		now:                time.Now,
		maxAttempts:        defaultMaxAttempts,
		redeliverySchedule: defaultRedeliverySpec,
		campaignSchedule:   defaultCampaignSpec,
		cacheSchedule:      defaultCacheSpec,
		log:                logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		enabled bool
		spec    string
		run     func(context.Context) error
	}{
		{s.notifications != nil, s.redeliverySchedule, s.redeliver},
		{s.campaigns != nil, s.campaignSchedule, s.refreshCampaigns},
		{s.cache != nil, s.cacheSchedule, s.purgeCache},
	}

	for _, job := range jobs {
		if !job.enabled {
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			_ = run(context.Background())
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used in tests and on shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.notifications != nil {
		errs = multierr.Append(errs, s.redeliver(ctx))
	}
	if s.campaigns != nil {
		errs = multierr.Append(errs, s.refreshCampaigns(ctx))
	}
	if s.cache != nil {
		errs = multierr.Append(errs, s.purgeCache(ctx))
	}
	return errs
}

func (s *Scheduler) redeliver(ctx context.Context) error {
	result, err := s.notifications.RedeliverPending(ctx, s.now(), s.maxAttempts)
	if err != nil {
		s.log.Warn("notification redelivery failed", zap.Error(err))
		return err
	}
	if result.Delivered+result.Retrying+result.Dropped > 0 {
		s.log.Info("notification outbox processed",
			zap.Int("delivered", result.Delivered),
			zap.Int("retrying", result.Retrying),
			zap.Int("dropped", result.Dropped))
	}
	return nil
}

func (s *Scheduler) refreshCampaigns(ctx context.Context) error {
	if _, err := s.campaigns.RefreshStatuses(ctx, s.now()); err != nil {
		s.log.Warn("campaign status refresh failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Scheduler) purgeCache(ctx context.Context) error {
	if _, err := s.cache.PurgeExpired(ctx); err != nil {
		s.log.Warn("cache purge failed", zap.Error(err))
		return err
	}
	return nil
}
