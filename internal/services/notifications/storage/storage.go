// Package storage defines the persistence contract for the notification backlog.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/pulse/internal/platform/pagination"
)

var (
	// ErrNotFound indicates a requested notification is missing, not owned by
	// the caller, or (for mark-read) already read.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// NotificationRecord stores one user notification backlog row.
type NotificationRecord struct {
	ID          string
	OwnerUserID string
	Kind        string
	PayloadJSON string
	DedupeKey   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReadAt      *time.Time
}

// ListQuery selects one page of an owner's backlog, newest first.
type ListQuery struct {
	OwnerUserID string
	UnreadOnly  bool
	PageSize    int
	// After resumes strictly below this position; nil starts at the newest row.
	After *pagination.Cursor
}

// NotificationPage stores a paged backlog listing result.
type NotificationPage struct {
	Notifications []NotificationRecord
	// Next is the position of the last returned row when more rows remain.
	Next *pagination.Cursor
}

// NotificationStore persists notification backlog state.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	GetNotificationByOwnerAndDedupeKey(ctx context.Context, ownerUserID string, dedupeKey string) (NotificationRecord, error)
	ListNotificationsByOwner(ctx context.Context, query ListQuery) (NotificationPage, error)
	CountUnreadNotificationsByOwner(ctx context.Context, ownerUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, ownerUserID string, notificationID string, readAt time.Time) (NotificationRecord, error)
	MarkAllNotificationsRead(ctx context.Context, ownerUserID string, readAt time.Time) (int, error)
}
