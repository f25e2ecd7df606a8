package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/pkg/crypto"
)

// SeedOptions describes the bootstrap administrator created on first start.
// An empty Email disables seeding.
type SeedOptions struct {
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
	)
}

// SeedData ensures the configured administrator exists. Existing accounts are
// promoted to admin but their password is left untouched.
func SeedData(db *gorm.DB, seed SeedOptions) error {
	email := strings.ToLower(strings.TrimSpace(seed.AdminEmail))
	if email == "" {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).Take(&existing).Error
	switch {
	case err == nil:
		if existing.IsAdmin {
			return nil
		}
		return db.Model(&existing).Update("is_admin", true).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := crypto.HashPassword(seed.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	first := strings.TrimSpace(seed.AdminFirstName)
	if first == "" {
		first = "System"
	}
	last := strings.TrimSpace(seed.AdminLastName)
	if last == "" {
		last = "Administrator"
	}

	admin := models.User{
		Email:     email,
		Password:  hash,
		FirstName: first,
		LastName:  last,
		IsAdmin:   true,
	}
	return db.Create(&admin).Error
}
