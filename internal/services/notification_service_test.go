package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/database/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

func TestNewNotificationServiceRequiresDB(t *testing.T) {
	_, err := NewNotificationService(nil, nil)
	require.Error(t, err)
}

func TestNotificationServiceCreateAndList(t *testing.T) {
	env := newServiceEnv(t)
	user := createUser(t, env.db, "alice@example.com")
	ctx := context.Background()

	dto, err := env.notifier.Create(ctx, user.ID, notifications.RequestRejected{
		BloodRequestID:  "req-1",
		BloodGroup:      "B-",
		RejectionReason: "document unreadable",
		RequestDate:     "Mar 01, 2025",
	})
	require.NoError(t, err)
	require.Equal(t, notifications.KindRequestRejected, dto.Type)
	require.False(t, dto.IsRead)
	require.Nil(t, dto.ReadAt)
	require.NotEmpty(t, dto.ID)
	require.Equal(t, "document unreadable", dto.Data["rejection_reason"])

	payload, ok := dto.Payload.(*notifications.RequestRejected)
	require.True(t, ok)
	require.Equal(t, "B-", payload.BloodGroup)

	items, err := env.notifier.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.ID, items[0].ID)

	created := env.publisher.named(notifications.EventCreated)
	require.Len(t, created, 1)
	require.Equal(t, user.ID, created[0].UserID)
}

func TestNotificationServiceCreateUnknownUser(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.notifier.Create(context.Background(), "missing", notifications.RequestRejected{})
	requireAppError(t, err, apperrors.ErrNotFound)
}

func TestMarkReadOwnershipAndIdempotence(t *testing.T) {
	env := newServiceEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	other := createUser(t, env.db, "other@example.com")
	ctx := context.Background()

	dto, err := env.notifier.Create(ctx, owner.ID, notifications.RequestRejected{BloodGroup: "A+"})
	require.NoError(t, err)

	_, err = env.notifier.MarkRead(ctx, dto.ID, other.ID)
	requireAppError(t, err, apperrors.ErrForbidden)

	_, err = env.notifier.MarkRead(ctx, "does-not-exist", owner.ID)
	requireAppError(t, err, apperrors.ErrNotFound)

	first := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	env.notifier.clock = func() time.Time { return first }
	read, err := env.notifier.MarkRead(ctx, dto.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	require.True(t, read.ReadAt.Equal(first))

	env.notifier.clock = func() time.Time { return first.Add(time.Hour) }
	again, err := env.notifier.MarkRead(ctx, dto.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ReadAt)
	require.True(t, again.ReadAt.Equal(first), "second read must keep the first timestamp")

	require.Len(t, env.publisher.named(notifications.EventRead), 1)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	env := newServiceEnv(t)
	user := createUser(t, env.db, "bob@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.notifier.Create(ctx, user.ID, notifications.RequestRejected{BloodGroup: "AB+"})
		require.NoError(t, err)
	}

	count, err := env.notifier.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	updated, err := env.notifier.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, updated)

	count, err = env.notifier.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	unread, err := env.notifier.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	updated, err = env.notifier.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, updated)
	require.Len(t, env.publisher.named(notifications.EventReadAll), 1)
}

func TestRecipientsExcept(t *testing.T) {
	env := newServiceEnv(t)
	a := createUser(t, env.db, "a@example.com")
	b := createUser(t, env.db, "b@example.com")
	c := createUser(t, env.db, "c@example.com")

	ids, err := env.notifier.RecipientsExcept(context.Background(), b.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{a.ID, c.ID}, ids)
}

func TestFanOutInBatches(t *testing.T) {
	env := newServiceEnv(t, WithFanOutBatchSize(2))
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, createUser(t, env.db, fmt.Sprintf("user%d@example.com", i)).ID)
	}
	// duplicates and blanks are ignored
	ids = append(ids, ids[0], " ")

	result := env.notifier.FanOut(context.Background(), ids, notifications.RequestApproved{BloodGroup: "O-"})
	require.Equal(t, 5, result.Created)
	require.Zero(t, result.Failed)
	require.Zero(t, result.Requeued)
	require.NoError(t, result.Err)

	require.EqualValues(t, 5, countNotifications(t, env.db, notifications.KindRequestApproved))
	require.Len(t, env.publisher.named(notifications.EventCreated), 5)
}

func TestFanOutIsolatesFailuresAndRedelivers(t *testing.T) {
	env := newServiceEnv(t, WithFanOutBatchSize(10), WithRetryBackoff(time.Minute))
	good1 := createUser(t, env.db, "good1@example.com")
	bad := createUser(t, env.db, "bad@example.com")
	good2 := createUser(t, env.db, "good2@example.com")

	remove := failNotificationInsertsFor(t, env.db, bad.ID)

	result := env.notifier.FanOut(context.Background(), []string{good1.ID, bad.ID, good2.ID}, notifications.RequestApproved{BloodGroup: "A-"})
	require.Equal(t, 2, result.Created)
	require.Equal(t, 1, result.Requeued)
	require.Zero(t, result.Failed)
	require.Error(t, result.Err)

	require.Len(t, notificationsFor(t, env.db, good1.ID), 1)
	require.Len(t, notificationsFor(t, env.db, good2.ID), 1)
	require.Empty(t, notificationsFor(t, env.db, bad.ID))

	var outbox []models.NotificationDelivery
	require.NoError(t, env.db.Find(&outbox).Error)
	require.Len(t, outbox, 1)
	require.Equal(t, bad.ID, outbox[0].UserID)
	require.Equal(t, 1, outbox[0].Attempts)

	// not due yet
	res, err := env.notifier.RedeliverPending(context.Background(), time.Now().UTC(), 5)
	require.NoError(t, err)
	require.Equal(t, RedeliveryResult{}, res)

	remove()
	res, err = env.notifier.RedeliverPending(context.Background(), time.Now().UTC().Add(2*time.Minute), 5)
	require.NoError(t, err)
	require.Equal(t, 1, res.Delivered)

	rows := notificationsFor(t, env.db, bad.ID)
	require.Len(t, rows, 1)
	require.Equal(t, string(notifications.KindRequestApproved), rows[0].Type)

	var remaining int64
	require.NoError(t, env.db.Model(&models.NotificationDelivery{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestRedeliverPendingBacksOffThenDrops(t *testing.T) {
	env := newServiceEnv(t, WithRetryBackoff(time.Minute))
	bad := createUser(t, env.db, "bad@example.com")
	failNotificationInsertsFor(t, env.db, bad.ID)

	result := env.notifier.FanOut(context.Background(), []string{bad.ID}, notifications.RequestApproved{})
	require.Equal(t, 1, result.Requeued)

	now := time.Now().UTC().Add(2 * time.Minute)
	res, err := env.notifier.RedeliverPending(context.Background(), now, 3)
	require.NoError(t, err)
	require.Equal(t, 1, res.Retrying)

	var item models.NotificationDelivery
	require.NoError(t, env.db.First(&item).Error)
	require.Equal(t, 2, item.Attempts)
	require.Contains(t, item.LastError, "injected insert failure")

	res, err = env.notifier.RedeliverPending(context.Background(), now.Add(time.Hour), 3)
	require.NoError(t, err)
	require.Equal(t, 1, res.Dropped)

	var remaining int64
	require.NoError(t, env.db.Model(&models.NotificationDelivery{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestFanOutWithoutRecipients(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	result := svc.FanOut(context.Background(), nil, notifications.RequestApproved{})
	require.Equal(t, FanOutResult{}, result)
}

func TestFanOutOutlivesCancelledContext(t *testing.T) {
	env := newServiceEnv(t)
	reachable := createUser(t, env.db, "reachable@example.com")
	broken := createUser(t, env.db, "broken@example.com")
	failNotificationInsertsFor(t, env.db, broken.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := env.notifier.FanOut(ctx, []string{reachable.ID, broken.ID}, notifications.RequestApproved{BloodGroup: "B+"})
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Requeued)
	require.Zero(t, result.Failed)

	require.Len(t, notificationsFor(t, env.db, reachable.ID), 1)

	var outbox []models.NotificationDelivery
	require.NoError(t, env.db.Find(&outbox).Error)
	require.Len(t, outbox, 1)
	require.Equal(t, broken.ID, outbox[0].UserID)
}
