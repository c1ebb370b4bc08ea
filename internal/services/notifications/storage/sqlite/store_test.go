package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/pulse/internal/services/notifications/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetListNotificationsAndMarkRead(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)

	for _, input := range []storage.NotificationRecord{
		{ID: "notif-1", OwnerUserID: "user-1", Kind: "comment", PayloadJSON: `{"actorId":"a"}`, DedupeKey: "comment:c-1", CreatedAt: now},
		{ID: "notif-2", OwnerUserID: "user-1", Kind: "reaction", PayloadJSON: `{"actorId":"b"}`, CreatedAt: now.Add(2 * time.Minute)},
		{ID: "notif-3", OwnerUserID: "user-2", Kind: "comment", PayloadJSON: `{"actorId":"c"}`, CreatedAt: now.Add(3 * time.Minute)},
	} {
		if err := store.PutNotification(context.Background(), input); err != nil {
			t.Fatalf("put notification %s: %v", input.ID, err)
		}
	}

	got, err := store.GetNotificationByOwnerAndDedupeKey(context.Background(), "user-1", "comment:c-1")
	if err != nil {
		t.Fatalf("get by dedupe key: %v", err)
	}
	if got.ID != "notif-1" {
		t.Fatalf("dedupe lookup id = %q, want %q", got.ID, "notif-1")
	}
	if got.PayloadJSON != `{"actorId":"a"}` {
		t.Fatalf("payload = %q, want stored payload", got.PayloadJSON)
	}

	pageOne, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 1})
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	if len(pageOne.Notifications) != 1 || pageOne.Notifications[0].ID != "notif-2" {
		t.Fatalf("page one = %+v, want [notif-2]", pageOne.Notifications)
	}
	if pageOne.Next == nil {
		t.Fatal("expected next cursor")
	}

	pageTwo, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 1, After: pageOne.Next})
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if len(pageTwo.Notifications) != 1 || pageTwo.Notifications[0].ID != "notif-1" {
		t.Fatalf("page two = %+v, want [notif-1]", pageTwo.Notifications)
	}
	if pageTwo.Next != nil {
		t.Fatalf("page two next = %+v, want nil", pageTwo.Next)
	}

	readAt := now.Add(5 * time.Minute)
	read, err := store.MarkNotificationRead(context.Background(), "user-1", "notif-1", readAt)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.ReadAt == nil || !read.ReadAt.Equal(readAt) {
		t.Fatalf("read_at = %v, want %v", read.ReadAt, readAt)
	}
}

func TestListNotificationsKeysetIsStableUnderNewerInserts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)
	for i, id := range []string{"n-1", "n-2", "n-3", "n-4"} {
		putRecord(t, store, storage.NotificationRecord{ID: id, OwnerUserID: "user-1", Kind: "comment", CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}

	pageOne, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 2})
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	assertIDs(t, pageOne.Notifications, "n-4", "n-3")

	putRecord(t, store, storage.NotificationRecord{ID: "n-5", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now.Add(time.Minute)})

	pageTwo, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 2, After: pageOne.Next})
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	assertIDs(t, pageTwo.Notifications, "n-2", "n-1")
}

func TestListNotificationsBreaksTimestampTiesByID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "c", "b"} {
		putRecord(t, store, storage.NotificationRecord{ID: id, OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})
	}

	pageOne, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 2})
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	assertIDs(t, pageOne.Notifications, "c", "b")

	pageTwo, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", PageSize: 2, After: pageOne.Next})
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	assertIDs(t, pageTwo.Notifications, "a")
}

func TestListNotificationsUnreadOnly(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)
	putRecord(t, store, storage.NotificationRecord{ID: "n-1", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})
	putRecord(t, store, storage.NotificationRecord{ID: "n-2", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now.Add(time.Second)})

	if _, err := store.MarkNotificationRead(context.Background(), "user-1", "n-2", now.Add(time.Minute)); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	page, err := store.ListNotificationsByOwner(context.Background(), storage.ListQuery{OwnerUserID: "user-1", UnreadOnly: true, PageSize: 10})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	assertIDs(t, page.Notifications, "n-1")
}

func TestCountUnreadAndMarkAllRead(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 8, 0, 0, time.UTC)
	putRecord(t, store, storage.NotificationRecord{ID: "n-1", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})
	putRecord(t, store, storage.NotificationRecord{ID: "n-2", OwnerUserID: "user-1", Kind: "reaction", CreatedAt: now.Add(time.Minute)})
	putRecord(t, store, storage.NotificationRecord{ID: "n-3", OwnerUserID: "user-2", Kind: "comment", CreatedAt: now.Add(2 * time.Minute)})

	count, err := store.CountUnreadNotificationsByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 2 {
		t.Fatalf("unread count = %d, want 2", count)
	}

	updated, err := store.MarkAllNotificationsRead(context.Background(), "user-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	count, err = store.CountUnreadNotificationsByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("count unread after mark all: %v", err)
	}
	if count != 0 {
		t.Fatalf("unread count after mark all = %d, want 0", count)
	}
	other, err := store.CountUnreadNotificationsByOwner(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("count other owner: %v", err)
	}
	if other != 1 {
		t.Fatalf("other owner unread = %d, want 1", other)
	}

	updated, err = store.MarkAllNotificationsRead(context.Background(), "user-1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second mark all read: %v", err)
	}
	if updated != 0 {
		t.Fatalf("second mark all updated = %d, want 0", updated)
	}
}

func TestMarkNotificationReadNotFoundCases(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)
	putRecord(t, store, storage.NotificationRecord{ID: "n-1", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})

	if _, err := store.MarkNotificationRead(context.Background(), "user-2", "n-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("not owned error = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.MarkNotificationRead(context.Background(), "user-1", "missing", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing error = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.MarkNotificationRead(context.Background(), "user-1", "n-1", now); err != nil {
		t.Fatalf("first mark read: %v", err)
	}
	if _, err := store.MarkNotificationRead(context.Background(), "user-1", "n-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("already read error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestPutNotificationDedupeConflict(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 21, 0, 0, 0, time.UTC)
	putRecord(t, store, storage.NotificationRecord{ID: "n-1", OwnerUserID: "user-1", Kind: "comment", DedupeKey: "k", CreatedAt: now})

	err := store.PutNotification(context.Background(), storage.NotificationRecord{ID: "n-2", OwnerUserID: "user-1", Kind: "comment", DedupeKey: "k", CreatedAt: now})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("put duplicate dedupe key error = %v, want %v", err, storage.ErrConflict)
	}

	// Same key for another owner is allowed; so are repeated empty keys.
	putRecord(t, store, storage.NotificationRecord{ID: "n-3", OwnerUserID: "user-2", Kind: "comment", DedupeKey: "k", CreatedAt: now})
	putRecord(t, store, storage.NotificationRecord{ID: "n-4", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})
	putRecord(t, store, storage.NotificationRecord{ID: "n-5", OwnerUserID: "user-1", Kind: "comment", CreatedAt: now})

	if _, err := store.GetNotificationByOwnerAndDedupeKey(context.Background(), "user-1", ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty dedupe key lookup error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestPutNotificationValidatesRecord(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Now()
	for _, record := range []storage.NotificationRecord{
		{OwnerUserID: "user-1", Kind: "comment", CreatedAt: now},
		{ID: "n-1", Kind: "comment", CreatedAt: now},
		{ID: "n-1", OwnerUserID: "user-1", CreatedAt: now},
		{ID: "n-1", OwnerUserID: "user-1", Kind: "comment"},
	} {
		if err := store.PutNotification(context.Background(), record); err == nil {
			t.Fatalf("expected validation error for %+v", record)
		}
	}
}

func putRecord(t *testing.T, store *Store, record storage.NotificationRecord) {
	t.Helper()
	if err := store.PutNotification(context.Background(), record); err != nil {
		t.Fatalf("put notification %s: %v", record.ID, err)
	}
}

func assertIDs(t *testing.T, records []storage.NotificationRecord, want ...string) {
	t.Helper()
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, record := range records {
		if record.ID != want[i] {
			t.Fatalf("record[%d] id = %q, want %q", i, record.ID, want[i])
		}
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "notifications.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}
