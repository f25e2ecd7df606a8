package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
	"github.com/bloodbridge/bloodbridge/pkg/sanitize"
)

// SubmitOrganizationInput is an application to be listed as an organization.
type SubmitOrganizationInput struct {
	OrganizationName string `json:"organization_name" validate:"required,max=150"`
	Address          string `json:"address" validate:"required,max=255"`
	Phone            string `json:"phone" validate:"required,max=32"`
	PancardPath      string `json:"pancard" validate:"required"`
}

// OrganizationRequestService reviews applications to become an organization.
type OrganizationRequestService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewOrganizationRequestService constructs an OrganizationRequestService.
func NewOrganizationRequestService(db *gorm.DB) (*OrganizationRequestService, error) {
	if db == nil {
		return nil, errors.New("organization request service: db is required")
	}
	return &OrganizationRequestService{db: db, log: logger.WithModule("organization_requests")}, nil
}

// Submit files an application. Existing organizations and users with a pending application
// cannot apply again.
func (s *OrganizationRequestService) Submit(ctx context.Context, actor *models.User, input SubmitOrganizationInput) (*models.OrganizationRequest, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}

	input.OrganizationName = sanitize.Text(input.OrganizationName)
	input.Address = sanitize.Text(input.Address)
	input.Phone = strings.TrimSpace(input.Phone)
	input.PancardPath = strings.TrimSpace(input.PancardPath)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if actor.IsOrganization {
		return nil, apperrors.NewInvalidState("account is already an organization")
	}

	request := &models.OrganizationRequest{
		UserID:           actor.ID,
		OrganizationName: input.OrganizationName,
		Address:          input.Address,
		Phone:            input.Phone,
		PancardPath:      input.PancardPath,
		Status:           models.StatusPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending int64
		if err := tx.Model(&models.OrganizationRequest{}).
			Where("user_id = ? AND status = ?", actor.ID, models.StatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return apperrors.NewInvalidState("an application is already pending review")
		}
		return tx.Create(request).Error
	})
	if err != nil {
		return nil, dependencyError(err)
	}
	return request, nil
}

// List returns applications newest first, optionally filtered by status.
func (s *OrganizationRequestService) List(ctx context.Context, status string) ([]models.OrganizationRequest, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("User")
	if value := strings.TrimSpace(status); value != "" {
		parsed, ok := models.ParseReviewStatus(value)
		if !ok {
			return nil, apperrors.NewValidation(map[string]string{"status": "status must be one of pending, approved, rejected"})
		}
		query = query.Where("status = ?", parsed)
	}

	var rows []models.OrganizationRequest
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("organization request service: list: %w", err))
	}
	return rows, nil
}

// Decide approves or rejects a pending application. Approval flags the applicant as an
// organization in the same transaction and leaves their personal contact details alone;
// the application keeps its own address and phone. Rejection requires a reason.
func (s *OrganizationRequestService) Decide(ctx context.Context, requestID, decision string, reason *string) (*models.OrganizationRequest, error) {
	ctx = ensureContext(ctx)

	status, ok := models.ParseReviewStatus(decision)
	if !ok || status == models.StatusPending {
		return nil, apperrors.NewValidation(map[string]string{"status": "status must be approved or rejected"})
	}
	note := sanitize.OptionalText(reason)
	if status == models.StatusRejected && note == nil {
		return nil, apperrors.NewValidation(map[string]string{"rejection_reason": "rejection reason is required"})
	}

	var request models.OrganizationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NewNotFound("organization request")
			}
			return err
		}
		switch request.Status {
		case models.StatusPending:
		case models.StatusApproved, models.StatusRejected:
			return apperrors.NewInvalidState(fmt.Sprintf("application has already been %s", request.Status))
		}

		switch status {
		case models.StatusApproved:
			name := request.OrganizationName
			if err := tx.Model(&models.User{}).Where("id = ?", request.UserID).Updates(map[string]any{
				"is_organization":   true,
				"organization_name": name,
			}).Error; err != nil {
				return err
			}
			note = nil
		case models.StatusRejected, models.StatusPending:
		}

		request.Status = status
		request.RejectionReason = note
		return tx.Model(&request).Updates(map[string]any{
			"status":           status,
			"rejection_reason": note,
		}).Error
	})
	if err != nil {
		if !isAppError(err) {
			s.log.Error("decide organization request failed", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, dependencyError(err)
	}
	return &request, nil
}
