package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
	"github.com/bloodbridge/bloodbridge/pkg/metrics"
	"github.com/bloodbridge/bloodbridge/pkg/sanitize"
)

// SubmitBloodRequestInput carries a requester's submission. The document has already been
// stored; DocumentPath is the opaque reference returned by the storage layer.
type SubmitBloodRequestInput struct {
	FirstName    string    `json:"first_name" validate:"required,max=100"`
	LastName     string    `json:"last_name" validate:"required,max=100"`
	Email        string    `json:"email" validate:"required,email"`
	Phone        string    `json:"phone" validate:"required,max=32"`
	Address      string    `json:"address" validate:"required,max=255"`
	DateOfBirth  time.Time `json:"date_of_birth" validate:"pastdate"`
	Gender       string    `json:"gender" validate:"required,gender"`
	BloodGroup   string    `json:"blood_group" validate:"required,bloodgroup"`
	DocumentPath string    `json:"document" validate:"required"`
}

// BloodRequestFilter narrows admin listings.
type BloodRequestFilter struct {
	Status     string
	BloodGroup string
	Query      string
}

// BloodRequestService manages the blood request lifecycle and the notifications it triggers.
type BloodRequestService struct {
	db       *gorm.DB
	notifier Notifier
	clock    clock
	log      *zap.Logger
}

// NewBloodRequestService constructs a BloodRequestService.
func NewBloodRequestService(db *gorm.DB, notifier Notifier) (*BloodRequestService, error) {
	if db == nil {
		return nil, errors.New("blood request service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("blood request service: notifier is required")
	}
	return &BloodRequestService{
		db:       db,
		notifier: notifier,
		log:      logger.WithModule("blood_requests"),
	}, nil
}

// Submit creates a pending blood request. No notification is sent.
func (s *BloodRequestService) Submit(ctx context.Context, requesterID string, input SubmitBloodRequestInput) (*models.BloodRequest, error) {
	ctx = ensureContext(ctx)

	input.FirstName = sanitize.Text(input.FirstName)
	input.LastName = sanitize.Text(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = sanitize.Text(input.Address)
	input.DocumentPath = strings.TrimSpace(input.DocumentPath)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.DateOfBirth.IsZero() || !input.DateOfBirth.Before(s.clock.now()) {
		return nil, apperrors.NewValidation(map[string]string{
			"date_of_birth": "date of birth must be a valid date in the past",
		})
	}
	gender, _ := models.ParseGender(input.Gender)
	group, _ := models.ParseBloodGroup(input.BloodGroup)

	if err := s.requireUser(ctx, requesterID); err != nil {
		return nil, err
	}

	request := &models.BloodRequest{
		UserID:       requesterID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		DateOfBirth:  input.DateOfBirth.UTC(),
		Gender:       gender,
		BloodGroup:   group,
		DocumentPath: input.DocumentPath,
		Status:       models.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		s.log.Error("submit blood request failed", zap.String("user_id", requesterID), zap.Error(err))
		return nil, dependencyError(fmt.Errorf("blood request service: create: %w", err))
	}
	metrics.RequestTransitions.WithLabelValues(string(models.StatusPending)).Inc()
	return request, nil
}

// UpdateStatus reviews a request. The status write commits before any notification is attempted,
// and notification failures never fail the call.
func (s *BloodRequestService) UpdateStatus(ctx context.Context, requestID, newStatus string, adminRemarks *string) (*models.BloodRequest, error) {
	ctx = ensureContext(ctx)

	status, ok := models.ParseReviewStatus(newStatus)
	if !ok {
		return nil, apperrors.NewValidation(map[string]string{
			"status": "status must be one of pending, approved, rejected",
		})
	}
	remarks := sanitize.OptionalText(adminRemarks)

	var (
		request   models.BloodRequest
		oldStatus models.ReviewStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NewNotFound("blood request")
			}
			return err
		}
		oldStatus = request.Status

		if err := checkReviewTransition(oldStatus, status); err != nil {
			return err
		}

		updates := map[string]any{"status": status}
		if remarks != nil || status != oldStatus {
			updates["admin_remarks"] = remarks
		}
		if err := tx.Model(&request).Updates(updates).Error; err != nil {
			return err
		}
		request.Status = status
		if _, set := updates["admin_remarks"]; set {
			request.AdminRemarks = remarks
		}
		return nil
	})
	if err != nil {
		if !isAppError(err) {
			s.log.Error("update blood request status failed", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, dependencyError(err)
	}

	if status == oldStatus {
		return &request, nil
	}
	metrics.RequestTransitions.WithLabelValues(string(status)).Inc()

	switch status {
	case models.StatusApproved:
		s.announceApproval(ctx, request)
	case models.StatusRejected:
		s.notifyRejection(ctx, request)
	case models.StatusPending:
	}
	return &request, nil
}

// checkReviewTransition allows pending -> approved|rejected and same-status no-ops.
func checkReviewTransition(from, to models.ReviewStatus) error {
	if from == to {
		return nil
	}
	switch from {
	case models.StatusPending:
		if to == models.StatusApproved || to == models.StatusRejected {
			return nil
		}
	case models.StatusApproved, models.StatusRejected:
	}
	return apperrors.NewInvalidState(fmt.Sprintf("cannot change status from %s to %s", from, to))
}

func (s *BloodRequestService) announceApproval(ctx context.Context, request models.BloodRequest) {
	ctx = detached(ctx)
	recipients, err := s.notifier.RecipientsExcept(ctx, request.UserID)
	if err != nil {
		s.log.Error("load approval recipients failed", zap.String("request_id", request.ID), zap.Error(err))
		return
	}

	name := request.RequesterName()
	result := s.notifier.FanOut(ctx, recipients, notifications.RequestApproved{
		BloodRequestID: request.ID,
		RequesterName:  name,
		BloodGroup:     string(request.BloodGroup),
		RequestDate:    notifications.FormatRequestDate(request.CreatedAt),
		Message:        fmt.Sprintf("%s needs %s blood. Can you help?", name, request.BloodGroup),
	})
	if result.Err != nil || result.Failed > 0 {
		s.log.Warn("approval fan-out incomplete",
			zap.String("request_id", request.ID),
			zap.Int("created", result.Created),
			zap.Int("requeued", result.Requeued),
			zap.Int("failed", result.Failed),
			zap.Error(result.Err))
	}
}

func (s *BloodRequestService) notifyRejection(ctx context.Context, request models.BloodRequest) {
	ctx = detached(ctx)
	reason := derefString(request.AdminRemarks)
	message := fmt.Sprintf("Your %s blood request was rejected.", request.BloodGroup)
	if reason != "" {
		message = fmt.Sprintf("Your %s blood request was rejected: %s", request.BloodGroup, reason)
	}
	if _, err := s.notifier.Create(ctx, request.UserID, notifications.RequestRejected{
		BloodRequestID:  request.ID,
		BloodGroup:      string(request.BloodGroup),
		RejectionReason: reason,
		RequestDate:     notifications.FormatRequestDate(request.CreatedAt),
		Message:         message,
	}); err != nil {
		s.log.Warn("rejection notification failed", zap.String("request_id", request.ID), zap.Error(err))
	}
}

// Get returns a request visible to the caller: its owner or an admin.
func (s *BloodRequestService) Get(ctx context.Context, requestID string, caller *models.User) (*models.BloodRequest, error) {
	ctx = ensureContext(ctx)
	if caller == nil {
		return nil, apperrors.ErrUnauthorized
	}

	var request models.BloodRequest
	if err := s.db.WithContext(ctx).Preload("Requester").First(&request, "id = ?", requestID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("blood request")
		}
		return nil, dependencyError(fmt.Errorf("blood request service: get: %w", err))
	}
	if request.UserID != caller.ID && !caller.IsAdmin {
		return nil, apperrors.ErrForbidden
	}
	return &request, nil
}

// ListForRequester returns the caller's requests, newest first.
func (s *BloodRequestService) ListForRequester(ctx context.Context, requesterID string) ([]models.BloodRequest, error) {
	ctx = ensureContext(ctx)
	var rows []models.BloodRequest
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", requesterID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("blood request service: list for requester: %w", err))
	}
	return rows, nil
}

// ListAll returns every request with the requester joined, newest first.
func (s *BloodRequestService) ListAll(ctx context.Context, filter BloodRequestFilter) ([]models.BloodRequest, error) {
	ctx = ensureContext(ctx)
	query, err := filterBloodRequests(s.db.WithContext(ctx), filter)
	if err != nil {
		return nil, err
	}

	var rows []models.BloodRequest
	if err := query.Preload("Requester").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("blood request service: list all: %w", err))
	}
	return rows, nil
}

func filterBloodRequests(db *gorm.DB, filter BloodRequestFilter) (*gorm.DB, error) {
	query := db.Model(&models.BloodRequest{})
	if value := strings.TrimSpace(filter.Status); value != "" {
		status, ok := models.ParseReviewStatus(value)
		if !ok {
			return nil, apperrors.NewValidation(map[string]string{"status": "status must be one of pending, approved, rejected"})
		}
		query = query.Where("status = ?", status)
	}
	if value := strings.TrimSpace(filter.BloodGroup); value != "" {
		group, ok := models.ParseBloodGroup(value)
		if !ok {
			return nil, apperrors.NewValidation(map[string]string{"blood_group": "blood group must be one of " + bloodGroupList()})
		}
		query = query.Where("blood_group = ?", group)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := likePattern(q)
		query = query.Where(
			"LOWER(first_name) LIKE ? "+likeEscape+" OR LOWER(last_name) LIKE ? "+likeEscape+" OR LOWER(email) LIKE ? "+likeEscape,
			pattern, pattern, pattern,
		)
	}
	return query, nil
}

func (s *BloodRequestService) requireUser(ctx context.Context, userID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return dependencyError(fmt.Errorf("blood request service: load user: %w", err))
	}
	if count == 0 {
		return apperrors.NewNotFound("user")
	}
	return nil
}

func isAppError(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr)
}
