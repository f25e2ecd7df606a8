package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/logger"
	"github.com/bloodbridge/bloodbridge/pkg/metrics"
)

const (
	// DefaultFanOutBatchSize bounds the rows written per batch insert.
	DefaultFanOutBatchSize = 200
	// DefaultRetryBackoff is the delay before an outbox row is first retried.
	DefaultRetryBackoff = time.Minute

	redeliveryBatch = 500
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	Type      notifications.Kind    `json:"type"`
	Data      map[string]any        `json:"data"`
	IsRead    bool                  `json:"is_read"`
	ReadAt    *time.Time            `json:"read_at"`
	CreatedAt time.Time             `json:"created_at"`
	Payload   notifications.Payload `json:"-"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// FanOutResult summarises a broadcast. Err aggregates per-recipient failures for logging only.
type FanOutResult struct {
	Created  int   `json:"created"`
	Failed   int   `json:"failed"`
	Requeued int   `json:"requeued"`
	Err      error `json:"-"`
}

// RedeliveryResult summarises one outbox sweep.
type RedeliveryResult struct {
	Delivered int
	Retrying  int
	Dropped   int
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
	Updated        int64            `json:"updated,omitempty"`
}

// Notifier is the slice of the dispatcher the workflow services depend on.
type Notifier interface {
	Create(ctx context.Context, userID string, payload notifications.Payload) (*NotificationDTO, error)
	FanOut(ctx context.Context, recipientIDs []string, payload notifications.Payload) FanOutResult
	RecipientsExcept(ctx context.Context, userID string) ([]string, error)
}

// NotificationOption customises a NotificationService.
type NotificationOption func(*NotificationService)

// WithFanOutBatchSize overrides DefaultFanOutBatchSize.
func WithFanOutBatchSize(size int) NotificationOption {
	return func(s *NotificationService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithRetryBackoff overrides DefaultRetryBackoff.
func WithRetryBackoff(backoff time.Duration) NotificationOption {
	return func(s *NotificationService) {
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// NotificationService persists in-app notifications and pushes change events to a publisher.
type NotificationService struct {
	db        *gorm.DB
	publisher notifications.Publisher
	batchSize int
	backoff   time.Duration
	clock     clock
	log       *zap.Logger
}

// NewNotificationService constructs a NotificationService. publisher may be nil.
func NewNotificationService(db *gorm.DB, publisher notifications.Publisher, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db:        db,
		publisher: publisher,
		batchSize: DefaultFanOutBatchSize,
		backoff:   DefaultRetryBackoff,
		log:       logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create stores one notification for userID.
func (s *NotificationService) Create(ctx context.Context, userID string, payload notifications.Payload) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)

	kind, data, err := notifications.Encode(payload)
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("notification service: load user: %w", err))
	}
	if count == 0 {
		return nil, apperrors.NewNotFound("user")
	}

	row := models.Notification{UserID: userID, Type: string(kind), Data: datatypes.JSON(data)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		metrics.NotificationsDelivered.WithLabelValues(string(kind), "failed").Inc()
		return nil, dependencyError(fmt.Errorf("notification service: create notification: %w", err))
	}
	metrics.NotificationsDelivered.WithLabelValues(string(kind), "created").Inc()

	dto := mapNotification(row)
	s.broadcast(ctx, userID, notifications.EventCreated, &NotificationEventPayload{Notification: &dto})
	return &dto, nil
}

// FanOut writes one notification per recipient in batches. A failed batch is retried row by row
// and rows that still fail are parked in the delivery outbox. It never fails as a whole, and
// it ignores cancellation of ctx.
func (s *NotificationService) FanOut(ctx context.Context, recipientIDs []string, payload notifications.Payload) FanOutResult {
	ctx = detached(ctx)
	var result FanOutResult

	recipients := normaliseIDs(recipientIDs)
	if len(recipients) == 0 {
		return result
	}

	kind, data, err := notifications.Encode(payload)
	if err != nil {
		s.log.Error("fan-out payload rejected", zap.Error(err))
		result.Failed = len(recipients)
		result.Err = err
		return result
	}

	for start := 0; start < len(recipients); start += s.batchSize {
		end := min(start+s.batchSize, len(recipients))
		chunk := make([]models.Notification, 0, end-start)
		for _, id := range recipients[start:end] {
			chunk = append(chunk, models.Notification{UserID: id, Type: string(kind), Data: datatypes.JSON(data)})
		}

		err := s.db.WithContext(ctx).CreateInBatches(&chunk, len(chunk)).Error
		if err == nil {
			result.Created += len(chunk)
			s.announce(ctx, chunk)
			continue
		}
		s.log.Warn("fan-out batch insert failed, falling back to single inserts",
			zap.String("type", string(kind)),
			zap.Int("size", len(chunk)),
			zap.Error(err))

		for i := range chunk {
			row := models.Notification{UserID: chunk[i].UserID, Type: chunk[i].Type, Data: chunk[i].Data}
			if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
				result.Err = multierr.Append(result.Err, fmt.Errorf("recipient %s: %w", row.UserID, err))
				if s.requeue(ctx, row, err) {
					result.Requeued++
				} else {
					result.Failed++
				}
				continue
			}
			result.Created++
			s.announce(ctx, []models.Notification{row})
		}
	}

	metrics.NotificationsDelivered.WithLabelValues(string(kind), "created").Add(float64(result.Created))
	if result.Requeued > 0 {
		metrics.NotificationsDelivered.WithLabelValues(string(kind), "requeued").Add(float64(result.Requeued))
	}
	if result.Failed > 0 {
		metrics.NotificationsDelivered.WithLabelValues(string(kind), "failed").Add(float64(result.Failed))
	}
	return result
}

// RecipientsExcept returns every user id other than userID.
func (s *NotificationService) RecipientsExcept(ctx context.Context, userID string) ([]string, error) {
	ctx = ensureContext(ctx)
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id <> ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("notification service: list recipients: %w", err))
	}
	return ids, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("notification service: list notifications: %w", err))
	}

	return mapNotificationRows(rows), nil
}

// UnreadCount counts notifications with no read timestamp.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, dependencyError(fmt.Errorf("notification service: count unread: %w", err))
	}
	return count, nil
}

// MarkRead stamps read_at the first time the owner reads a notification. Later calls keep the
// original timestamp.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, callerID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var row models.Notification
	if err := s.db.WithContext(ctx).First(&row, "id = ?", strings.TrimSpace(notificationID)).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("notification")
		}
		return nil, dependencyError(fmt.Errorf("notification service: load notification: %w", err))
	}
	if row.UserID != callerID {
		return nil, apperrors.ErrForbidden
	}
	if row.ReadAt != nil {
		dto := mapNotification(row)
		return &dto, nil
	}

	now := s.clock.now()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", row.ID).
		Update("read_at", now).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("notification service: mark read: %w", err))
	}

	// A concurrent reader may have won; reload so the first timestamp is returned.
	if err := s.db.WithContext(ctx).First(&row, "id = ?", row.ID).Error; err != nil {
		return nil, dependencyError(fmt.Errorf("notification service: reload notification: %w", err))
	}

	dto := mapNotification(row)
	s.broadcast(ctx, row.UserID, notifications.EventRead, &NotificationEventPayload{
		Notification:   &dto,
		NotificationID: row.ID,
	})
	return &dto, nil
}

// MarkAllRead marks all unread notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", s.clock.now())
	if result.Error != nil {
		return 0, dependencyError(fmt.Errorf("notification service: mark all read: %w", result.Error))
	}

	if result.RowsAffected > 0 {
		s.broadcast(ctx, userID, notifications.EventReadAll, &NotificationEventPayload{Updated: result.RowsAffected})
	}
	return result.RowsAffected, nil
}

// RedeliverPending moves due outbox rows into the notifications table. Rows that keep failing
// back off linearly and are dropped after maxAttempts.
func (s *NotificationService) RedeliverPending(ctx context.Context, now time.Time, maxAttempts int) (RedeliveryResult, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()
	var result RedeliveryResult

	var due []models.NotificationDelivery
	if err := s.db.WithContext(ctx).
		Where("next_attempt_at <= ?", now).
		Order("next_attempt_at ASC").
		Limit(redeliveryBatch).
		Find(&due).Error; err != nil {
		return result, fmt.Errorf("notification service: load outbox: %w", err)
	}

	var errs error
	for _, item := range due {
		row := models.Notification{UserID: item.UserID, Type: item.Type, Data: item.Data}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			return tx.Delete(&models.NotificationDelivery{}, "id = ?", item.ID).Error
		})
		if err == nil {
			result.Delivered++
			metrics.NotificationsDelivered.WithLabelValues(item.Type, "created").Inc()
			s.announce(ctx, []models.Notification{row})
			continue
		}

		attempts := item.Attempts + 1
		log := s.log.With(zap.String("delivery_id", item.ID), zap.String("user_id", item.UserID), zap.Int("attempts", attempts))
		if maxAttempts > 0 && attempts >= maxAttempts {
			log.Error("dropping notification after repeated failures", zap.Error(err))
			errs = multierr.Append(errs, s.db.WithContext(ctx).Delete(&models.NotificationDelivery{}, "id = ?", item.ID).Error)
			result.Dropped++
			metrics.NotificationsDelivered.WithLabelValues(item.Type, "dropped").Inc()
			continue
		}

		log.Warn("notification redelivery failed", zap.Error(err))
		errs = multierr.Append(errs, s.db.WithContext(ctx).
			Model(&models.NotificationDelivery{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"attempts":        attempts,
				"last_error":      err.Error(),
				"next_attempt_at": now.Add(s.backoff * time.Duration(attempts)),
			}).Error)
		result.Retrying++
	}

	if errs != nil {
		return result, fmt.Errorf("notification service: update outbox: %w", errs)
	}
	return result, nil
}

func (s *NotificationService) requeue(ctx context.Context, row models.Notification, cause error) bool {
	log := s.log.With(zap.String("user_id", row.UserID), zap.String("type", row.Type))
	log.Warn("notification insert failed", zap.Error(cause))

	item := models.NotificationDelivery{
		UserID:        row.UserID,
		Type:          row.Type,
		Data:          row.Data,
		Attempts:      1,
		LastError:     cause.Error(),
		NextAttemptAt: s.clock.now().Add(s.backoff),
	}
	if err := s.db.WithContext(detached(ctx)).Create(&item).Error; err != nil {
		log.Error("notification outbox write failed", zap.Error(err))
		return false
	}
	return true
}

func (s *NotificationService) announce(ctx context.Context, rows []models.Notification) {
	if s.publisher == nil {
		return
	}
	for i := range rows {
		dto := mapNotification(rows[i])
		s.broadcast(ctx, rows[i].UserID, notifications.EventCreated, &NotificationEventPayload{Notification: &dto})
	}
}

func (s *NotificationService) broadcast(ctx context.Context, userID, event string, payload *NotificationEventPayload) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, notifications.Event{Name: event, UserID: userID, Data: payload})
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      notifications.Kind(row.Type),
		Data:      decodeJSON(row.Data),
		IsRead:    row.ReadAt != nil,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}
	if payload, err := notifications.Decode(dto.Type, row.Data); err == nil {
		dto.Payload = payload
	}
	return dto
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
