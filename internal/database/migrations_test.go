package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/models"
)

func TestAutoMigrateCreatesDomainTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
		&models.User{},
		&models.BloodRequest{},
		&models.Donor{},
		&models.Notification{},
		&models.NotificationDelivery{},
		&models.BloodStock{},
		&models.OrganizationRequest{},
		&models.Campaign{},
		&models.CampaignInterest{},
		&models.CacheEntry{},
	}
	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
}

func TestDonorActiveOfferKeyIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	requester := models.User{Email: "req@example.com", Password: "x"}
	donor := models.User{Email: "donor@example.com", Password: "x"}
	require.NoError(t, db.Create(&requester).Error)
	require.NoError(t, db.Create(&donor).Error)

	request := models.BloodRequest{UserID: requester.ID, BloodGroup: models.BloodGroupOPos}
	require.NoError(t, db.Create(&request).Error)

	key := models.OfferKey(request.ID, donor.ID)
	first := models.Donor{BloodRequestID: request.ID, UserID: donor.ID, ActiveOfferKey: &key}
	require.NoError(t, db.Create(&first).Error)

	dup := models.Donor{BloodRequestID: request.ID, UserID: donor.ID, ActiveOfferKey: &key}
	require.Error(t, db.Create(&dup).Error)

	// a decided offer releases the key
	closed := models.Donor{BloodRequestID: request.ID, UserID: donor.ID, Status: models.StatusRejected}
	require.NoError(t, db.Create(&closed).Error)
}
