package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/louisbranch/pulse/internal/platform/pagination"
	"github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/notifications/storage"
)

type notificationStoreAdapter struct {
	store storage.NotificationStore
}

func newNotificationStoreAdapter(store storage.NotificationStore) *notificationStoreAdapter {
	return &notificationStoreAdapter{store: store}
}

func (a *notificationStoreAdapter) GetNotificationByOwnerAndDedupeKey(ctx context.Context, ownerID string, dedupeKey string) (domain.Notification, error) {
	if a == nil || a.store == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetNotificationByOwnerAndDedupeKey(ctx, ownerID, dedupeKey)
	if err != nil {
		return domain.Notification{}, mapNotificationStorageError(err)
	}
	return toDomainNotification(record), nil
}

func (a *notificationStoreAdapter) PutNotification(ctx context.Context, notification domain.Notification) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	record, err := toStorageNotification(notification)
	if err != nil {
		return err
	}
	return mapNotificationStorageError(a.store.PutNotification(ctx, record))
}

func (a *notificationStoreAdapter) ListNotificationsByOwner(ctx context.Context, ownerID string, unreadOnly bool, limit int, after *pagination.Cursor) (domain.StorePage, error) {
	if a == nil || a.store == nil {
		return domain.StorePage{}, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListNotificationsByOwner(ctx, storage.ListQuery{
		OwnerUserID: ownerID,
		UnreadOnly:  unreadOnly,
		PageSize:    limit,
		After:       after,
	})
	if err != nil {
		return domain.StorePage{}, mapNotificationStorageError(err)
	}
	result := domain.StorePage{
		Notifications: make([]domain.Notification, 0, len(page.Notifications)),
		Next:          page.Next,
	}
	for _, record := range page.Notifications {
		result.Notifications = append(result.Notifications, toDomainNotification(record))
	}
	return result, nil
}

func (a *notificationStoreAdapter) CountUnreadNotificationsByOwner(ctx context.Context, ownerID string) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	unreadCount, err := a.store.CountUnreadNotificationsByOwner(ctx, ownerID)
	if err != nil {
		return 0, mapNotificationStorageError(err)
	}
	return unreadCount, nil
}

func (a *notificationStoreAdapter) MarkNotificationRead(ctx context.Context, ownerID string, notificationID string, readAt time.Time) (domain.Notification, error) {
	if a == nil || a.store == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.MarkNotificationRead(ctx, ownerID, notificationID, readAt)
	if err != nil {
		return domain.Notification{}, mapNotificationStorageError(err)
	}
	return toDomainNotification(record), nil
}

func (a *notificationStoreAdapter) MarkAllNotificationsRead(ctx context.Context, ownerID string, readAt time.Time) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	updated, err := a.store.MarkAllNotificationsRead(ctx, ownerID, readAt)
	if err != nil {
		return 0, mapNotificationStorageError(err)
	}
	return updated, nil
}

func toStorageNotification(notification domain.Notification) (storage.NotificationRecord, error) {
	payload, err := domain.EncodePayload(notification.Payload)
	if err != nil {
		return storage.NotificationRecord{}, err
	}
	return storage.NotificationRecord{
		ID:          notification.ID,
		OwnerUserID: notification.OwnerID,
		Kind:        string(notification.Kind()),
		PayloadJSON: string(payload),
		DedupeKey:   notification.DedupeKey,
		CreatedAt:   notification.CreatedAt,
		UpdatedAt:   notification.CreatedAt,
		ReadAt:      notification.ReadAt,
	}, nil
}

// Rows whose payload no longer matches its kind's schema are kept readable
// as generic payloads.
func toDomainNotification(record storage.NotificationRecord) domain.Notification {
	payload, err := domain.DecodePayload(record.Kind, []byte(record.PayloadJSON))
	if err != nil {
		log.Printf("notifications: stored payload for %s does not decode as %s: %v", record.ID, record.Kind, err)
		payload = domain.GenericPayload{Type: domain.NormalizeKind(record.Kind), Raw: []byte(record.PayloadJSON)}
	}
	return domain.Notification{
		ID:        record.ID,
		OwnerID:   record.OwnerUserID,
		Payload:   payload,
		DedupeKey: record.DedupeKey,
		CreatedAt: record.CreatedAt,
		ReadAt:    record.ReadAt,
	}
}

func mapNotificationStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}
