package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/database/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestBloodStockUpsert(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewBloodStockService(db)
	require.NoError(t, err)
	org := createUser(t, db, "bank@example.com", asOrganization("City Bank", "Pune"))
	ctx := context.Background()

	first, err := svc.Upsert(ctx, org, UpsertStockInput{BloodGroup: "o-", Quantity: intPtr(4)})
	require.NoError(t, err)
	require.Equal(t, models.BloodGroupONeg, first.BloodGroup)
	require.Equal(t, 4, first.Quantity)

	second, err := svc.Upsert(ctx, org, UpsertStockInput{BloodGroup: "O-", Quantity: intPtr(0)})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 0, second.Quantity)

	_, err = svc.Upsert(ctx, org, UpsertStockInput{BloodGroup: "A+", Quantity: intPtr(7)})
	require.NoError(t, err)

	rows, err := svc.ListForOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, models.BloodGroupAPos, rows[0].BloodGroup)
	require.Equal(t, models.BloodGroupONeg, rows[1].BloodGroup)
}

func TestBloodStockRules(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewBloodStockService(db)
	require.NoError(t, err)
	org := createUser(t, db, "bank@example.com", asOrganization("City Bank", "Pune"))
	person := createUser(t, db, "person@example.com")
	ctx := context.Background()

	_, err = svc.Upsert(ctx, person, UpsertStockInput{BloodGroup: "A+", Quantity: intPtr(1)})
	requireAppError(t, err, apperrors.ErrForbidden)

	_, err = svc.Upsert(ctx, org, UpsertStockInput{BloodGroup: "A+", Quantity: intPtr(-1)})
	requireAppError(t, err, apperrors.ErrValidation)
	require.Contains(t, apperrors.FromError(err).Fields, "quantity")

	_, err = svc.Upsert(ctx, org, UpsertStockInput{BloodGroup: "A+"})
	requireAppError(t, err, apperrors.ErrValidation)

	_, err = svc.ListForOrganization(ctx, person.ID)
	requireAppError(t, err, apperrors.ErrNotFound)
}
