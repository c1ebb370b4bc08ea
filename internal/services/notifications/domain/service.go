// Package domain owns the notification backlog: creation with dedupe,
// keyset-paginated listing and read-state changes.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/pulse/internal/platform/clock"
	"github.com/louisbranch/pulse/internal/platform/id"
	"github.com/louisbranch/pulse/internal/platform/otel"
	"github.com/louisbranch/pulse/internal/platform/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrNotFound indicates a notification is missing, owned by someone else,
	// or already read. Callers cannot tell these apart.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrOwnerIDRequired indicates owner identity is required.
	ErrOwnerIDRequired = errors.New("owner user id is required")
	// ErrKindRequired indicates a notification kind is required.
	ErrKindRequired = errors.New("notification kind is required")
	// ErrNotificationIDRequired indicates notification ID is required.
	ErrNotificationIDRequired = errors.New("notification id is required")
	// ErrInvalidCursor indicates a list cursor that cannot be decoded.
	ErrInvalidCursor = errors.New("invalid notification cursor")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("notification id generator is not configured")
)

// Page size bounds for List.
const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

var pageSizeConfig = pagination.PageSizeConfig{Default: DefaultPageSize, Max: MaxPageSize}

// Notification is one user-targeted backlog item.
type Notification struct {
	ID        string
	OwnerID   string
	Payload   Payload
	DedupeKey string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Kind returns the payload's tag.
func (n Notification) Kind() Kind {
	if n.Payload == nil {
		return ""
	}
	return n.Payload.Kind()
}

// CreateInput describes one producer notification request.
type CreateInput struct {
	OwnerID   string
	Payload   Payload
	DedupeKey string
}

// CreateResult reports the stored notification and whether this call wrote it.
type CreateResult struct {
	Notification Notification
	Created      bool
}

// ListInput configures one backlog page request.
type ListInput struct {
	OwnerID    string
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// Page is one newest-first slice of the backlog. NextCursor is empty on the
// last page.
type Page struct {
	Notifications []Notification
	NextCursor    string
}

// StorePage is one store listing result with the resume position.
type StorePage struct {
	Notifications []Notification
	Next          *pagination.Cursor
}

// Store is the domain persistence boundary for the notification backlog.
type Store interface {
	GetNotificationByOwnerAndDedupeKey(ctx context.Context, ownerID string, dedupeKey string) (Notification, error)
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByOwner(ctx context.Context, ownerID string, unreadOnly bool, limit int, after *pagination.Cursor) (StorePage, error)
	CountUnreadNotificationsByOwner(ctx context.Context, ownerID string) (int, error)
	MarkNotificationRead(ctx context.Context, ownerID string, notificationID string, readAt time.Time) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, ownerID string, readAt time.Time) (int, error)
}

// Publisher announces stored notifications to live delivery. Implementations
// must not block on network I/O and never report failure.
type Publisher interface {
	Publish(ctx context.Context, notification Notification)
}

// Service orchestrates backlog lifecycle behavior.
type Service struct {
	store     Store
	publisher Publisher
	clock     func() time.Time
	newID     func() (string, error)
	stamper   *clock.Stamper
}

// NewService constructs notification domain use-cases. A nil publisher
// disables live announcements.
func NewService(store Store, publisher Publisher, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		newID:     newID,
	}
	s.stamper = newStamper(s)
	return s
}

func newStamper(s *Service) *clock.Stamper {
	return clock.NewStamper(func() time.Time { return s.nowUTC() })
}

// Create stores one notification and publishes it. A repeated dedupe key for
// the same owner returns the stored row and publishes nothing.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if s == nil || s.store == nil {
		return CreateResult{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return CreateResult{}, ErrIDGeneratorNotConfigured
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return CreateResult{}, ErrOwnerIDRequired
	}
	if err := ValidatePayload(input.Payload); err != nil {
		return CreateResult{}, err
	}

	ctx, span := otel.Tracer("notifications").Start(ctx, "notifications.Create")
	defer span.End()
	span.SetAttributes(attribute.String("notification.kind", string(input.Payload.Kind())))

	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.store.GetNotificationByOwnerAndDedupeKey(ctx, ownerID, dedupeKey)
		if err == nil {
			span.SetAttributes(attribute.Bool("notification.duplicate", true))
			return CreateResult{Notification: existing}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
			return CreateResult{}, err
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return CreateResult{}, err
	}
	notification := Notification{
		ID:        notificationID,
		OwnerID:   ownerID,
		Payload:   input.Payload,
		DedupeKey: dedupeKey,
		CreatedAt: s.stamper.Next(),
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if dedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByOwnerAndDedupeKey(ctx, ownerID, dedupeKey)
			if lookupErr == nil {
				return CreateResult{Notification: existing}, nil
			}
			if errors.Is(lookupErr, ErrNotFound) {
				return CreateResult{}, err
			}
			return CreateResult{}, lookupErr
		}
		span.SetStatus(codes.Error, err.Error())
		return CreateResult{}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, notification)
	}
	return CreateResult{Notification: notification, Created: true}, nil
}

// List returns one newest-first page of the owner's backlog.
func (s *Service) List(ctx context.Context, input ListInput) (Page, error) {
	if s == nil || s.store == nil {
		return Page{}, ErrStoreNotConfigured
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return Page{}, ErrOwnerIDRequired
	}
	after, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return Page{}, ErrInvalidCursor
	}
	limit := pagination.ClampPageSize(input.Limit, pageSizeConfig)

	stored, err := s.store.ListNotificationsByOwner(ctx, ownerID, input.UnreadOnly, limit, after)
	if err != nil {
		return Page{}, err
	}
	page := Page{Notifications: stored.Notifications}
	if stored.Next != nil {
		page.NextCursor = pagination.EncodeCursor(*stored.Next)
	}
	return page, nil
}

// MarkRead marks one unread owner notification as read.
func (s *Service) MarkRead(ctx context.Context, ownerID string, notificationID string) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Notification{}, ErrOwnerIDRequired
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return Notification{}, ErrNotificationIDRequired
	}
	return s.store.MarkNotificationRead(ctx, ownerID, notificationID, s.nowUTC())
}

// MarkAllRead marks every unread owner notification as read and returns the
// number of notifications changed.
func (s *Service) MarkAllRead(ctx context.Context, ownerID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, ErrOwnerIDRequired
	}
	return s.store.MarkAllNotificationsRead(ctx, ownerID, s.nowUTC())
}

// UnreadCount returns how many owner notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, ErrOwnerIDRequired
	}
	return s.store.CountUnreadNotificationsByOwner(ctx, ownerID)
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
