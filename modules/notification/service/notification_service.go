package service

import (
	"context"
	"strconv"
	"strings"

	"consult-booking/core/cache"
	"consult-booking/core/constants"
	"consult-booking/core/database"
	coreEntity "consult-booking/core/entity"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/core/params"
	"consult-booking/modules/notification/dto"
	"consult-booking/modules/notification/entity"
	"consult-booking/modules/notification/repository"

	"github.com/google/uuid"
)

// Emitter writes notifications through the caller's transaction handle so they
// commit or roll back together with the state change that produced them.
type Emitter interface {
	Emit(ctx context.Context, tx database.IDatabase, req dto.EmitRequest) (*entity.Notification, error)
	// InvalidateUnread drops cached unread counters; call it after commit.
	InvalidateUnread(ctx context.Context, recipientIDs ...uuid.UUID)
}

type NotificationService struct {
	repo  repository.NotificationRepository
	cache cache.Cache
}

func NewNotificationService(repo repository.NotificationRepository, c cache.Cache) *NotificationService {
	if c == nil {
		c = cache.Noop{}
	}
	return &NotificationService{repo: repo, cache: c}
}

func (s *NotificationService) Emit(ctx context.Context, tx database.IDatabase, req dto.EmitRequest) (*entity.Notification, error) {
	if req.RecipientID == uuid.Nil {
		return nil, errors.NewAppError(errors.ErrValidation, "Notification recipient is required", nil)
	}
	if !req.Type.Valid() {
		return nil, errors.NewAppError(errors.ErrValidation, "Unknown notification type: "+string(req.Type), nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.NewAppError(errors.ErrValidation, "Notification message is required", nil)
	}

	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	notif := &entity.Notification{
		RecipientID: req.RecipientID,
		BookingID:   req.BookingID,
		Type:        req.Type,
		Message:     req.Message,
		Metadata:    coreEntity.JSONB(req.Metadata),
	}
	if err := repo.Create(ctx, notif); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create notification", err)
	}

	logger.Debug("NotificationService:Emit", "notification_id", notif.ID, "recipient_id", req.RecipientID, "type", req.Type)
	return notif, nil
}

func (s *NotificationService) InvalidateUnread(ctx context.Context, recipientIDs ...uuid.UUID) {
	keys := make([]string, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		keys = append(keys, unreadKey(id))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logger.Warn("NotificationService:InvalidateUnread:Error", "error", err)
	}
}

func (s *NotificationService) GetMyNotifications(ctx context.Context, recipientID uuid.UUID, queryParams params.QueryParams) (*entity.PaginatedNotificationEntity, error) {
	result, err := s.repo.ListByRecipient(ctx, recipientID, queryParams.Limit, queryParams.Offset, queryParams.UnreadOnly)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to get notifications", err)
	}
	return result, nil
}

// MarkRead is idempotent: marking an already read notification returns it unchanged.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) (*entity.Notification, error) {
	notif, err := s.repo.MarkAsRead(ctx, recipientID, notificationID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to mark notification as read", err)
	}
	if notif == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Notification not found", nil)
	}
	s.InvalidateUnread(ctx, recipientID)
	return notif, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, recipientID uuid.UUID, ids []string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return errors.NewAppError(errors.ErrValidation, "Invalid notification id: "+id, err)
		}
	}
	if err := s.repo.MarkManyAsRead(ctx, recipientID, ids); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark as read", err)
	}
	s.InvalidateUnread(ctx, recipientID)
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, recipientID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark all as read", err)
	}
	s.InvalidateUnread(ctx, recipientID)
	return nil
}

func (s *NotificationService) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	key := unreadKey(recipientID)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		if n, convErr := strconv.Atoi(cached); convErr == nil {
			return n, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to count unread", err)
	}

	if err := s.cache.Set(ctx, key, strconv.Itoa(count), constants.UnreadCountTTL); err != nil {
		logger.Warn("NotificationService:CountUnread:CacheSet:Error", "error", err)
	}
	return count, nil
}

func unreadKey(recipientID uuid.UUID) string {
	return constants.RedisKeyUnreadCount + recipientID.String()
}
