package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bloodbridge/bloodbridge/internal/models"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
)

// UpsertStockInput sets an organization's quantity for one blood group.
type UpsertStockInput struct {
	BloodGroup string `json:"blood_group" validate:"required,bloodgroup"`
	Quantity   *int   `json:"quantity" validate:"required,gte=0"`
}

// BloodStockService maintains per-organization blood inventory.
type BloodStockService struct {
	db *gorm.DB
}

// NewBloodStockService constructs a BloodStockService.
func NewBloodStockService(db *gorm.DB) (*BloodStockService, error) {
	if db == nil {
		return nil, errors.New("blood stock service: db is required")
	}
	return &BloodStockService{db: db}, nil
}

// Upsert records the quantity for (organization, blood group), replacing any previous value.
func (s *BloodStockService) Upsert(ctx context.Context, actor *models.User, input UpsertStockInput) (*models.BloodStock, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !actor.IsOrganization {
		return nil, apperrors.ErrForbidden.WithMessage("only organizations can manage blood stock")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	group, _ := models.ParseBloodGroup(input.BloodGroup)

	stock := models.BloodStock{
		OrganizationID: actor.ID,
		BloodGroup:     group,
		Quantity:       *input.Quantity,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "blood_group"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&stock).Error
	if err != nil {
		return nil, dependencyError(fmt.Errorf("blood stock service: upsert: %w", err))
	}

	var saved models.BloodStock
	if err := s.db.WithContext(ctx).
		First(&saved, "organization_id = ? AND blood_group = ?", actor.ID, group).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("blood stock service: reload: %w", err))
	}
	return &saved, nil
}

// ListForOrganization returns stock rows in blood group display order.
func (s *BloodStockService) ListForOrganization(ctx context.Context, organizationID string) ([]models.BloodStock, error) {
	ctx = ensureContext(ctx)

	var org models.User
	if err := s.db.WithContext(ctx).Select("id", "is_organization").First(&org, "id = ?", organizationID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("organization")
		}
		return nil, dependencyError(fmt.Errorf("blood stock service: load organization: %w", err))
	}
	if !org.IsOrganization {
		return nil, apperrors.NewNotFound("organization")
	}

	var rows []models.BloodStock
	if err := s.db.WithContext(ctx).Where("organization_id = ?", org.ID).Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("blood stock service: list: %w", err))
	}

	order := make(map[models.BloodGroup]int, len(models.BloodGroups))
	for i, g := range models.BloodGroups {
		order[g] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return order[rows[i].BloodGroup] < order[rows[j].BloodGroup]
	})
	return rows, nil
}
