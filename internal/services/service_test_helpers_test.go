package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/database/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) named(name string) []notifications.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notifications.Event
	for _, e := range p.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type serviceEnv struct {
	db        *gorm.DB
	publisher *recordingPublisher
	notifier  *NotificationService
	requests  *BloodRequestService
	donors    *DonorService
}

func newServiceEnv(t *testing.T, opts ...NotificationOption) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	pub := &recordingPublisher{}

	notifier, err := NewNotificationService(db, pub, opts...)
	require.NoError(t, err)
	requests, err := NewBloodRequestService(db, notifier)
	require.NoError(t, err)
	donors, err := NewDonorService(db, notifier)
	require.NoError(t, err)

	return &serviceEnv{db: db, publisher: pub, notifier: notifier, requests: requests, donors: donors}
}

func createUser(t *testing.T, db *gorm.DB, email string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	user := &models.User{
		Email:      email,
		Password:   "not-a-real-hash",
		FirstName:  "Test",
		LastName:   "User",
		BloodGroup: models.BloodGroupOPos,
	}
	for _, fn := range mutate {
		fn(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func asAdmin(u *models.User) { u.IsAdmin = true }

func asOrganization(name, city string) func(*models.User) {
	return func(u *models.User) {
		u.IsOrganization = true
		u.OrganizationName = &name
		u.City = city
	}
}

func validSubmission() SubmitBloodRequestInput {
	return SubmitBloodRequestInput{
		FirstName:    "Riya",
		LastName:     "Sen",
		Email:        "riya@example.com",
		Phone:        "+91 98000 00000",
		Address:      "12 Lake Road, Kolkata",
		DateOfBirth:  time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
		Gender:       "female",
		BloodGroup:   "O+",
		DocumentPath: "blood-requests/doc.pdf",
	}
}

func validOffer() VolunteerInput {
	return VolunteerInput{
		Name:       "Dev Kumar",
		Phone:      "+91 90000 11111",
		Email:      "dev@example.com",
		BloodGroup: "O+",
		Message:    "I can come tomorrow morning",
	}
}

func submitApproved(t *testing.T, env *serviceEnv, requester *models.User) *models.BloodRequest {
	t.Helper()
	ctx := context.Background()
	req, err := env.requests.Submit(ctx, requester.ID, validSubmission())
	require.NoError(t, err)
	req, err = env.requests.UpdateStatus(ctx, req.ID, "approved", nil)
	require.NoError(t, err)
	return req
}

func notificationsFor(t *testing.T, db *gorm.DB, userID string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func countNotifications(t *testing.T, db *gorm.DB, kind notifications.Kind) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("type = ?", string(kind)).Count(&count).Error)
	return count
}

func requireAppError(t *testing.T, err error, target *apperrors.AppError) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, target), "expected %s, got %v", target.Code, err)
}

// failNotificationInsertsFor makes every notification insert that touches userID fail.
func failNotificationInsertsFor(t *testing.T, db *gorm.DB, userID string) (remove func()) {
	t.Helper()
	const name = "test:fail_notification_insert"

	matches := func(v reflect.Value) bool {
		v = reflect.Indirect(v)
		if v.Kind() != reflect.Struct {
			return false
		}
		field := v.FieldByName("UserID")
		return field.IsValid() && field.String() == userID
	}

	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "notifications" {
			return
		}
		rv := reflect.Indirect(tx.Statement.ReflectValue)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if matches(rv.Index(i)) {
					_ = tx.AddError(errors.New("injected insert failure"))
					return
				}
			}
		case reflect.Struct:
			if matches(rv) {
				_ = tx.AddError(errors.New("injected insert failure"))
			}
		}
	})
	require.NoError(t, err)

	return func() {
		require.NoError(t, db.Callback().Create().Remove(name))
	}
}
