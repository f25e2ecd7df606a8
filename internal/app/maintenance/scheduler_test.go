package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/bloodbridge/bloodbridge/internal/services"
)

type fakeOutbox struct {
	calls       int
	now         time.Time
	maxAttempts int
	err         error
}

func (f *fakeOutbox) RedeliverPending(_ context.Context, now time.Time, maxAttempts int) (services.RedeliveryResult, error) {
	f.calls++
	f.now = now
	f.maxAttempts = maxAttempts
	return services.RedeliveryResult{Delivered: 1}, f.err
}

type fakeCampaigns struct {
	calls int
	err   error
}

func (f *fakeCampaigns) RefreshStatuses(context.Context, time.Time) (int64, error) {
	f.calls++
	return 0, f.err
}

type fakeCache struct{ calls int }

func (f *fakeCache) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	outbox := &fakeOutbox{}
	campaigns := &fakeCampaigns{}
	cache := &fakeCache{}

	s := NewScheduler(outbox, campaigns, cache, WithNow(func() time.Time { return fixed }), WithMaxAttempts(7))
	require.NoError(t, s.RunOnce(context.Background()))

	require.Equal(t, 1, outbox.calls)
	require.Equal(t, fixed, outbox.now)
	require.Equal(t, 7, outbox.maxAttempts)
	require.Equal(t, 1, campaigns.calls)
	require.Equal(t, 1, cache.calls)
}

func TestRunOnceAggregatesErrors(t *testing.T) {
	outbox := &fakeOutbox{err: errors.New("outbox down")}
	campaigns := &fakeCampaigns{err: errors.New("campaigns down")}

	s := NewScheduler(outbox, campaigns, nil)
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
}

func TestStartRegistersConfiguredJobs(t *testing.T) {
	c := cron.New()
	s := NewScheduler(&fakeOutbox{}, nil, &fakeCache{}, WithCron(c), WithRedeliverySchedule("@every 1m"))

	require.NoError(t, s.Start())
	t.Cleanup(func() { <-s.Stop().Done() })

	require.Len(t, c.Entries(), 2)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(nil, &fakeCampaigns{}, nil, WithCampaignSchedule("not a schedule"))
	require.Error(t, s.Start())
}
