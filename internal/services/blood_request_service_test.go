package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

func TestSubmitCreatesPendingRequestWithoutNotifications(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")
	createUser(t, env.db, "someone@example.com")

	input := validSubmission()
	input.BloodGroup = " ab- "
	input.Gender = "Female"
	req, err := env.requests.Submit(context.Background(), requester.ID, input)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, req.Status)
	require.Equal(t, models.BloodGroupABNeg, req.BloodGroup)
	require.Equal(t, models.GenderFemale, req.Gender)
	require.Equal(t, requester.ID, req.UserID)

	var count int64
	require.NoError(t, env.db.Model(&models.BloodRequest{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.NoError(t, env.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitValidation(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")

	cases := map[string]struct {
		mutate func(*SubmitBloodRequestInput)
		field  string
	}{
		"missing first name": {func(in *SubmitBloodRequestInput) { in.FirstName = "  " }, "first_name"},
		"bad email":          {func(in *SubmitBloodRequestInput) { in.Email = "not-an-email" }, "email"},
		"unknown group":      {func(in *SubmitBloodRequestInput) { in.BloodGroup = "C+" }, "blood_group"},
		"unknown gender":     {func(in *SubmitBloodRequestInput) { in.Gender = "robot" }, "gender"},
		"future birth date":  {func(in *SubmitBloodRequestInput) { in.DateOfBirth = time.Now().AddDate(1, 0, 0) }, "date_of_birth"},
		"missing birth date": {func(in *SubmitBloodRequestInput) { in.DateOfBirth = time.Time{} }, "date_of_birth"},
		"missing document":   {func(in *SubmitBloodRequestInput) { in.DocumentPath = "" }, "document"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			input := validSubmission()
			tc.mutate(&input)

			_, err := env.requests.Submit(context.Background(), requester.ID, input)
			requireAppError(t, err, apperrors.ErrValidation)
			appErr := apperrors.FromError(err)
			require.Contains(t, appErr.Fields, tc.field)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.BloodRequest{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitUnknownRequester(t *testing.T) {
	env := newServiceEnv(t)
	_, err := env.requests.Submit(context.Background(), "ghost", validSubmission())
	requireAppError(t, err, apperrors.ErrNotFound)
}

func TestApproveFansOutToEveryoneButRequester(t *testing.T) {
	env := newServiceEnv(t, WithFanOutBatchSize(2))
	requester := createUser(t, env.db, "requester@example.com")
	others := []*models.User{
		createUser(t, env.db, "u1@example.com"),
		createUser(t, env.db, "u2@example.com"),
		createUser(t, env.db, "admin@example.com", asAdmin),
	}
	ctx := context.Background()

	req, err := env.requests.Submit(ctx, requester.ID, validSubmission())
	require.NoError(t, err)

	updated, err := env.requests.UpdateStatus(ctx, req.ID, "approved", nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)

	require.EqualValues(t, len(others), countNotifications(t, env.db, notifications.KindRequestApproved))
	require.Empty(t, notificationsFor(t, env.db, requester.ID))
	for _, u := range others {
		rows := notificationsFor(t, env.db, u.ID)
		require.Len(t, rows, 1)
		require.Nil(t, rows[0].ReadAt)

		payload, err := notifications.Decode(notifications.Kind(rows[0].Type), rows[0].Data)
		require.NoError(t, err)
		approved := payload.(*notifications.RequestApproved)
		require.Equal(t, "O+", approved.BloodGroup)
		require.Equal(t, "Riya Sen", approved.RequesterName)
		require.Equal(t, req.ID, approved.BloodRequestID)
		require.Equal(t, notifications.FormatRequestDate(req.CreatedAt), approved.RequestDate)
	}

	// same target status again is a no-op
	_, err = env.requests.UpdateStatus(ctx, req.ID, "approved", nil)
	require.NoError(t, err)
	require.EqualValues(t, len(others), countNotifications(t, env.db, notifications.KindRequestApproved))
}

func TestRejectNotifiesRequesterWithReason(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")
	bystander := createUser(t, env.db, "bystander@example.com")
	ctx := context.Background()

	req, err := env.requests.Submit(ctx, requester.ID, validSubmission())
	require.NoError(t, err)

	reason := "reason"
	updated, err := env.requests.UpdateStatus(ctx, req.ID, "rejected", &reason)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, updated.Status)
	require.Equal(t, "reason", *updated.AdminRemarks)

	rows := notificationsFor(t, env.db, requester.ID)
	require.Len(t, rows, 1)
	payload, err := notifications.Decode(notifications.Kind(rows[0].Type), rows[0].Data)
	require.NoError(t, err)
	rejected := payload.(*notifications.RequestRejected)
	require.Equal(t, "reason", rejected.RejectionReason)
	require.Equal(t, "O+", rejected.BloodGroup)
	require.Empty(t, notificationsFor(t, env.db, bystander.ID))

	// repeating the rejection sends nothing new
	_, err = env.requests.UpdateStatus(ctx, req.ID, "rejected", &reason)
	require.NoError(t, err)
	require.Len(t, notificationsFor(t, env.db, requester.ID), 1)
}

func TestUpdateStatusTransitions(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")
	ctx := context.Background()

	_, err := env.requests.UpdateStatus(ctx, "missing", "approved", nil)
	requireAppError(t, err, apperrors.ErrNotFound)

	req, err := env.requests.Submit(ctx, requester.ID, validSubmission())
	require.NoError(t, err)

	_, err = env.requests.UpdateStatus(ctx, req.ID, "archived", nil)
	requireAppError(t, err, apperrors.ErrValidation)

	// pending -> pending is a no-op
	same, err := env.requests.UpdateStatus(ctx, req.ID, "pending", nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, same.Status)

	_, err = env.requests.UpdateStatus(ctx, req.ID, "APPROVED", nil)
	require.NoError(t, err)

	_, err = env.requests.UpdateStatus(ctx, req.ID, "rejected", nil)
	requireAppError(t, err, apperrors.ErrInvalidState)
	_, err = env.requests.UpdateStatus(ctx, req.ID, "pending", nil)
	requireAppError(t, err, apperrors.ErrInvalidState)

	var stored models.BloodRequest
	require.NoError(t, env.db.First(&stored, "id = ?", req.ID).Error)
	require.Equal(t, models.StatusApproved, stored.Status)
}

func TestApprovalSurvivesRecipientFailure(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")
	ok := createUser(t, env.db, "ok@example.com")
	broken := createUser(t, env.db, "broken@example.com")
	failNotificationInsertsFor(t, env.db, broken.ID)
	ctx := context.Background()

	req, err := env.requests.Submit(ctx, requester.ID, validSubmission())
	require.NoError(t, err)

	updated, err := env.requests.UpdateStatus(ctx, req.ID, "approved", nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)

	require.Len(t, notificationsFor(t, env.db, ok.ID), 1)
	require.Empty(t, notificationsFor(t, env.db, broken.ID))

	var queued int64
	require.NoError(t, env.db.Model(&models.NotificationDelivery{}).Where("user_id = ?", broken.ID).Count(&queued).Error)
	require.EqualValues(t, 1, queued)
}

func TestGetAndListRequests(t *testing.T) {
	env := newServiceEnv(t)
	owner := createUser(t, env.db, "owner@example.com")
	stranger := createUser(t, env.db, "stranger@example.com")
	admin := createUser(t, env.db, "admin@example.com", asAdmin)
	ctx := context.Background()

	first, err := env.requests.Submit(ctx, owner.ID, validSubmission())
	require.NoError(t, err)
	second := validSubmission()
	second.BloodGroup = "B+"
	_, err = env.requests.Submit(ctx, owner.ID, second)
	require.NoError(t, err)

	got, err := env.requests.Get(ctx, first.ID, owner)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	_, err = env.requests.Get(ctx, first.ID, admin)
	require.NoError(t, err)
	_, err = env.requests.Get(ctx, first.ID, stranger)
	requireAppError(t, err, apperrors.ErrForbidden)

	mine, err := env.requests.ListForRequester(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	_, err = env.requests.UpdateStatus(ctx, first.ID, "approved", nil)
	require.NoError(t, err)

	approved, err := env.requests.ListAll(ctx, BloodRequestFilter{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.NotNil(t, approved[0].Requester)
	require.Equal(t, owner.Email, approved[0].Requester.Email)

	_, err = env.requests.ListAll(ctx, BloodRequestFilter{Status: "unknown"})
	requireAppError(t, err, apperrors.ErrValidation)

	byGroup, err := env.requests.ListAll(ctx, BloodRequestFilter{BloodGroup: "b+"})
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
}

func TestApprovalNoticesSurviveClientDisconnect(t *testing.T) {
	env := newServiceEnv(t)
	requester := createUser(t, env.db, "requester@example.com")
	other := createUser(t, env.db, "other@example.com")

	req, err := env.requests.Submit(context.Background(), requester.ID, validSubmission())
	require.NoError(t, err)
	req.Status = models.StatusApproved

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.requests.announceApproval(ctx, *req)
	env.requests.notifyRejection(ctx, *req)

	require.Len(t, notificationsFor(t, env.db, other.ID), 1)
	require.Len(t, notificationsFor(t, env.db, requester.ID), 1)
}
