package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
	"github.com/bloodbridge/bloodbridge/pkg/sanitize"
)

// CreateCampaignInput describes a new donation campaign.
type CreateCampaignInput struct {
	Title       string    `json:"title" validate:"required,max=150"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"required,max=255"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	EndAt       time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
	ImagePath   string    `json:"image"`
}

// CampaignDTO is a campaign with the caller's vote and the interested count.
type CampaignDTO struct {
	models.Campaign
	InterestedCount int64                 `json:"interested_count"`
	MyInterest      models.InterestStatus `json:"my_interest,omitempty"`
}

// CampaignService manages campaigns and interest votes.
type CampaignService struct {
	db       *gorm.DB
	notifier Notifier
	clock    clock
	log      *zap.Logger
}

// NewCampaignService constructs a CampaignService.
func NewCampaignService(db *gorm.DB, notifier Notifier) (*CampaignService, error) {
	if db == nil {
		return nil, errors.New("campaign service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("campaign service: notifier is required")
	}
	return &CampaignService{db: db, notifier: notifier, log: logger.WithModule("campaigns")}, nil
}

// Create stores a campaign and announces it to every non-admin user.
func (s *CampaignService) Create(ctx context.Context, actor *models.User, input CreateCampaignInput) (*models.Campaign, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !actor.IsAdmin {
		return nil, apperrors.ErrForbidden
	}

	input.Title = sanitize.Text(input.Title)
	input.Description = sanitize.Text(input.Description)
	input.Location = sanitize.Text(input.Location)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		ImagePath:   input.ImagePath,
		StartAt:     input.StartAt.UTC(),
		EndAt:       input.EndAt.UTC(),
		CreatedBy:   actor.ID,
	}
	campaign.Status = campaign.StatusAt(s.clock.now())
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("campaign service: create: %w", err))
	}

	ctx = detached(ctx)
	var recipients []string
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_admin = ?", false).
		Pluck("id", &recipients).Error; err != nil {
		s.log.Error("load campaign recipients failed", zap.String("campaign_id", campaign.ID), zap.Error(err))
		return campaign, nil
	}

	result := s.notifier.FanOut(ctx, recipients, notifications.NewCampaign{
		CampaignID: campaign.ID,
		Title:      campaign.Title,
		Location:   campaign.Location,
		StartAt:    campaign.StartAt,
		EndAt:      campaign.EndAt,
		Message:    fmt.Sprintf("New blood donation campaign: %s at %s", campaign.Title, campaign.Location),
	})
	if result.Err != nil {
		s.log.Warn("campaign fan-out incomplete",
			zap.String("campaign_id", campaign.ID),
			zap.Int("created", result.Created),
			zap.Int("requeued", result.Requeued),
			zap.Int("failed", result.Failed),
			zap.Error(result.Err))
	}
	return campaign, nil
}

// List returns campaigns by start date with interest counts and the viewer's vote.
func (s *CampaignService) List(ctx context.Context, viewerID string) ([]CampaignDTO, error) {
	ctx = ensureContext(ctx)

	var campaigns []models.Campaign
	if err := s.db.WithContext(ctx).Order("start_at ASC").Find(&campaigns).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("campaign service: list: %w", err))
	}
	if len(campaigns) == 0 {
		return []CampaignDTO{}, nil
	}

	ids := make([]string, len(campaigns))
	for i := range campaigns {
		ids[i] = campaigns[i].ID
	}

	type countRow struct {
		CampaignID string
		Total      int64
	}
	var counts []countRow
	if err := s.db.WithContext(ctx).
		Model(&models.CampaignInterest{}).
		Select("campaign_id, COUNT(*) AS total").
		Where("campaign_id IN ? AND status = ?", ids, models.InterestInterested).
		Group("campaign_id").
		Scan(&counts).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("campaign service: count interest: %w", err))
	}
	byCampaign := make(map[string]int64, len(counts))
	for _, c := range counts {
		byCampaign[c.CampaignID] = c.Total
	}

	var mine []models.CampaignInterest
	if viewerID != "" {
		if err := s.db.WithContext(ctx).
			Where("campaign_id IN ? AND user_id = ?", ids, viewerID).
			Find(&mine).Error; err != nil {
			return nil, dependencyError(fmt.Errorf("campaign service: load votes: %w", err))
		}
	}
	votes := make(map[string]models.InterestStatus, len(mine))
	for _, v := range mine {
		votes[v.CampaignID] = v.Status
	}

	out := make([]CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, CampaignDTO{
			Campaign:        c,
			InterestedCount: byCampaign[c.ID],
			MyInterest:      votes[c.ID],
		})
	}
	return out, nil
}

// SetInterest records or replaces the user's vote on a campaign.
func (s *CampaignService) SetInterest(ctx context.Context, campaignID, userID, status string) (*models.CampaignInterest, error) {
	ctx = ensureContext(ctx)

	vote := models.InterestStatus(status)
	if !vote.Valid() {
		return nil, apperrors.NewValidation(map[string]string{"status": "status must be interested or not_interested"})
	}

	var campaign models.Campaign
	if err := s.db.WithContext(ctx).Select("id", "status").First(&campaign, "id = ?", campaignID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("campaign")
		}
		return nil, dependencyError(fmt.Errorf("campaign service: load campaign: %w", err))
	}
	if campaign.Status == models.CampaignCompleted {
		return nil, apperrors.NewInvalidState("campaign has already ended")
	}

	interest := models.CampaignInterest{CampaignID: campaign.ID, UserID: userID, Status: vote}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&interest).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("campaign service: save interest: %w", err))
	}

	var saved models.CampaignInterest
	if err := s.db.WithContext(ctx).First(&saved, "campaign_id = ? AND user_id = ?", campaign.ID, userID).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("campaign service: reload interest: %w", err))
	}
	return &saved, nil
}

// RefreshStatuses moves campaigns along upcoming -> ongoing -> completed according to now.
func (s *CampaignService) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()

	var changed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completed := tx.Model(&models.Campaign{}).
			Where("status <> ? AND end_at <= ?", models.CampaignCompleted, now).
			Update("status", models.CampaignCompleted)
		if completed.Error != nil {
			return completed.Error
		}
		ongoing := tx.Model(&models.Campaign{}).
			Where("status = ? AND start_at <= ? AND end_at > ?", models.CampaignUpcoming, now, now).
			Update("status", models.CampaignOngoing)
		if ongoing.Error != nil {
			return ongoing.Error
		}
		changed = completed.RowsAffected + ongoing.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("campaign service: refresh statuses: %w", err)
	}
	if changed > 0 {
		s.log.Info("campaign statuses refreshed", zap.Int64("changed", changed))
	}
	return changed, nil
}
