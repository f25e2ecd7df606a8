package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
	"github.com/bloodbridge/bloodbridge/pkg/metrics"
	"github.com/bloodbridge/bloodbridge/pkg/sanitize"
)

// VolunteerInput is a donor's offer against an approved request.
type VolunteerInput struct {
	Name       string `json:"name" validate:"required,max=150"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Email      string `json:"email" validate:"required,email"`
	BloodGroup string `json:"blood_group" validate:"required,bloodgroup"`
	Message    string `json:"message" validate:"max=2000"`
}

// DonorService runs the volunteer / decide workflow on donor offers.
type DonorService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

// NewDonorService constructs a DonorService.
func NewDonorService(db *gorm.DB, notifier Notifier) (*DonorService, error) {
	if db == nil {
		return nil, errors.New("donor service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("donor service: notifier is required")
	}
	return &DonorService{
		db:       db,
		notifier: notifier,
		log:      logger.WithModule("donors"),
	}, nil
}

// Volunteer records a pending offer and tells the request owner about it. A user may hold at
// most one pending offer per request.
func (s *DonorService) Volunteer(ctx context.Context, requestID, donorUserID string, input VolunteerInput) (*models.Donor, error) {
	ctx = ensureContext(ctx)

	input.Name = sanitize.Text(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Message = sanitize.Text(input.Message)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	group, _ := models.ParseBloodGroup(input.BloodGroup)

	var request models.BloodRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("blood request")
		}
		return nil, dependencyError(fmt.Errorf("donor service: load request: %w", err))
	}
	if request.Status != models.StatusApproved {
		return nil, apperrors.NewInvalidState("donations are only accepted for approved requests")
	}
	if request.UserID == donorUserID {
		return nil, apperrors.NewInvalidState("you cannot volunteer for your own request")
	}

	var existing int64
	if err := s.db.WithContext(ctx).
		Model(&models.Donor{}).
		Where("blood_request_id = ? AND user_id = ? AND status = ?", request.ID, donorUserID, models.StatusPending).
		Count(&existing).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("donor service: check pending offers: %w", err))
	}
	if existing > 0 {
		return nil, errDuplicateOffer()
	}

	key := models.OfferKey(request.ID, donorUserID)
	donor := &models.Donor{
		BloodRequestID: request.ID,
		UserID:         donorUserID,
		Name:           input.Name,
		Phone:          input.Phone,
		Email:          input.Email,
		BloodGroup:     group,
		Message:        input.Message,
		Status:         models.StatusPending,
		ActiveOfferKey: &key,
	}
	if err := s.db.WithContext(ctx).Create(donor).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errDuplicateOffer()
		}
		s.log.Error("create donor offer failed", zap.String("request_id", request.ID), zap.Error(err))
		return nil, dependencyError(fmt.Errorf("donor service: create offer: %w", err))
	}

	base := fmt.Sprintf("/api/blood-requests/%s/donors/%s/status", request.ID, donor.ID)
	if _, err := s.notifier.Create(detached(ctx), request.UserID, notifications.NewDonorOffer{
		BloodRequestID: request.ID,
		DonorID:        donor.ID,
		DonorName:      donor.Name,
		DonorPhone:     donor.Phone,
		DonorEmail:     donor.Email,
		BloodGroup:     string(donor.BloodGroup),
		Message:        donor.Message,
		Actions: []notifications.Action{
			{Name: "approve", Method: http.MethodPut, Path: base, Status: string(models.StatusApproved)},
			{Name: "reject", Method: http.MethodPut, Path: base, Status: string(models.StatusRejected)},
		},
	}); err != nil {
		s.log.Warn("new donor offer notification failed", zap.String("donor_id", donor.ID), zap.Error(err))
	}

	return donor, nil
}

// Decide approves or rejects a pending offer. Only the request owner or an admin may decide.
// Repeating the same decision is a no-op; reversing a decision is not allowed.
func (s *DonorService) Decide(ctx context.Context, requestID, donorID string, actor *models.User, decision string, remarks *string) (*models.Donor, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}

	status, ok := models.ParseReviewStatus(decision)
	if !ok || status == models.StatusPending {
		return nil, apperrors.NewValidation(map[string]string{"status": "status must be approved or rejected"})
	}
	note := sanitize.OptionalText(remarks)

	var (
		donor   models.Donor
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("BloodRequest").
			First(&donor, "id = ? AND blood_request_id = ?", donorID, requestID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NewNotFound("donor offer")
			}
			return err
		}
		if donor.BloodRequest == nil || (donor.BloodRequest.UserID != actor.ID && !actor.IsAdmin) {
			return apperrors.ErrForbidden
		}

		switch donor.Status {
		case models.StatusPending:
		case models.StatusApproved, models.StatusRejected:
			if donor.Status == status {
				return nil
			}
			return apperrors.NewInvalidState(fmt.Sprintf("offer has already been %s", donor.Status))
		}

		// Guard on status so a concurrent decision cannot be applied twice.
		result := tx.Model(&models.Donor{}).
			Where("id = ? AND status = ?", donor.ID, models.StatusPending).
			Updates(map[string]any{"status": status, "active_offer_key": nil})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NewInvalidState("offer was decided concurrently")
		}
		donor.Status = status
		donor.ActiveOfferKey = nil
		changed = true
		return nil
	})
	if err != nil {
		if !isAppError(err) {
			s.log.Error("decide donor offer failed", zap.String("donor_id", donorID), zap.Error(err))
		}
		return nil, dependencyError(err)
	}

	if !changed {
		s.log.Warn("donor offer already decided", zap.String("donor_id", donor.ID), zap.String("status", string(donor.Status)))
		return &donor, nil
	}
	metrics.DonorDecisions.WithLabelValues(string(status)).Inc()

	payload := notifications.DonorOfferDecided{
		BloodRequestID: donor.BloodRequestID,
		DonorID:        donor.ID,
		Status:         string(status),
		Remarks:        derefString(note),
	}
	switch status {
	case models.StatusApproved:
		payload.Title = "Donation Offer Approved"
		payload.Message = "Your offer to donate has been approved. The requester will contact you shortly."
	case models.StatusRejected:
		payload.Title = "Donation Offer Rejected"
		payload.Message = "Your offer to donate was not accepted this time. Thank you for volunteering."
	case models.StatusPending:
	}
	if _, err := s.notifier.Create(detached(ctx), donor.UserID, payload); err != nil {
		s.log.Warn("donor decision notification failed", zap.String("donor_id", donor.ID), zap.Error(err))
	}
	return &donor, nil
}

// ListForRequest returns every offer on a request, newest first. Visible to the owner or an admin.
func (s *DonorService) ListForRequest(ctx context.Context, requestID string, actor *models.User) ([]models.Donor, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}

	var request models.BloodRequest
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&request, "id = ?", requestID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("blood request")
		}
		return nil, dependencyError(fmt.Errorf("donor service: load request: %w", err))
	}
	if request.UserID != actor.ID && !actor.IsAdmin {
		return nil, apperrors.ErrForbidden
	}

	var rows []models.Donor
	if err := s.db.WithContext(ctx).
		Where("blood_request_id = ?", request.ID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("donor service: list offers: %w", err))
	}
	return rows, nil
}

// ListForDonor returns the offers a user has made, newest first.
func (s *DonorService) ListForDonor(ctx context.Context, userID string) ([]models.Donor, error) {
	ctx = ensureContext(ctx)
	var rows []models.Donor
	if err := s.db.WithContext(ctx).
		Preload("BloodRequest").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("donor service: list for donor: %w", err))
	}
	return rows, nil
}

func errDuplicateOffer() error {
	return apperrors.NewInvalidState("you already have a pending offer for this request")
}
