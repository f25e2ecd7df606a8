package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bloodbridge/bloodbridge/internal/database/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Email:      " Meera@Example.com ",
		Password:   "correct-horse",
		FirstName:  "Meera",
		LastName:   "Iyer",
		City:       "Chennai",
		BloodGroup: "b+",
	})
	require.NoError(t, err)
	require.Equal(t, "meera@example.com", user.Email)
	require.Equal(t, models.BloodGroupBPos, user.BloodGroup)
	require.NotEqual(t, "correct-horse", user.Password)
	require.False(t, user.IsAdmin)

	authed, err := svc.Authenticate(ctx, "MEERA@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "meera@example.com", "wrong-password")
	requireAppError(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct-horse")
	requireAppError(t, err, apperrors.ErrInvalidCredentials)

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Chennai", profile.City)

	_, err = svc.GetByID(ctx, "missing")
	requireAppError(t, err, apperrors.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterUserInput{Email: "bad", Password: "short", FirstName: "A", LastName: "B", BloodGroup: "Q"})
	requireAppError(t, err, apperrors.ErrValidation)
	fields := apperrors.FromError(err).Fields
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "password")
	require.Contains(t, fields, "blood_group")

	input := RegisterUserInput{Email: "dup@example.com", Password: "long-enough", FirstName: "A", LastName: "B"}
	_, err = svc.Register(ctx, input)
	require.NoError(t, err)
	_, err = svc.Register(ctx, input)
	requireAppError(t, err, apperrors.ErrValidation)
	require.Contains(t, apperrors.FromError(err).Fields, "email")
}
