package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/pulse/internal/platform/pagination"
	"github.com/louisbranch/pulse/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/pulse/internal/services/chat/storage"
	"github.com/louisbranch/pulse/internal/services/chat/storage/sqlite/migrations"
)

// Store provides SQLite-backed persistence for conversations and messages.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a chat SQLite store at the provided path.
func Open(path string) (*Store, error) {
	sqlDB, err := sqlitemigrate.Open(context.Background(), path, migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutConversation inserts one conversation together with its participants.
func (s *Store) PutConversation(ctx context.Context, record storage.ConversationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeConversationRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversation tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := toMillis(normalized.CreatedAt)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO conversations (id, direct_key, created_at, last_message_at)
VALUES (?, ?, ?, NULL)
`, normalized.ID, normalized.DirectKey, createdAt); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put conversation: %w", err)
	}
	for _, userID := range normalized.Participants {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
VALUES (?, ?, ?)
`, normalized.ID, userID, createdAt); err != nil {
			return fmt.Errorf("put conversation participant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation: %w", err)
	}
	return nil
}

// GetConversation loads one conversation by id.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (storage.ConversationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConversationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConversationRecord{}, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return storage.ConversationRecord{}, fmt.Errorf("conversation id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, direct_key, created_at, last_message_at
FROM conversations
WHERE id = ?
`, conversationID)
	return s.loadConversation(ctx, row.Scan)
}

// GetConversationByDirectKey loads one direct conversation by its sorted pair key.
func (s *Store) GetConversationByDirectKey(ctx context.Context, directKey string) (storage.ConversationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConversationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConversationRecord{}, fmt.Errorf("storage is not configured")
	}
	directKey = strings.TrimSpace(directKey)
	if directKey == "" {
		return storage.ConversationRecord{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, direct_key, created_at, last_message_at
FROM conversations
WHERE direct_key = ?
`, directKey)
	return s.loadConversation(ctx, row.Scan)
}

// ListConversationsByParticipant lists conversations the user belongs to,
// most recently active first.
func (s *Store) ListConversationsByParticipant(ctx context.Context, userID string, limit int) ([]storage.ConversationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT c.id, c.direct_key, c.created_at, c.last_message_at
FROM conversations c
JOIN conversation_participants p ON p.conversation_id = c.id
WHERE p.user_id = ?
ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	records := make([]storage.ConversationRecord, 0, limit)
	for rows.Next() {
		record, err := scanConversation(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	rows.Close()

	for i := range records {
		participants, err := s.ListParticipants(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Participants = participants
	}
	return records, nil
}

// ListParticipants returns the user ids of one conversation in join order.
func (s *Store) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id
FROM conversation_participants
WHERE conversation_id = ?
ORDER BY joined_at ASC, user_id ASC
`, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]string, 0, 2)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		participants = append(participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}
	return participants, nil
}

// PutMessage inserts one message and advances the conversation's activity
// timestamp in the same transaction.
func (s *Store) PutMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeMessageRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback()

	var content sql.NullString
	if normalized.Content != nil {
		content = sql.NullString{String: *normalized.Content, Valid: true}
	}
	createdAt := toMillis(normalized.CreatedAt)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (
	id, conversation_id, sender_id, client_message_id, kind, content, attachments_json, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.ConversationID,
		normalized.SenderID,
		normalized.ClientMessageID,
		normalized.Kind,
		content,
		normalized.AttachmentsJSON,
		createdAt,
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("put message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE conversations
SET last_message_at = ?
WHERE id = ? AND (last_message_at IS NULL OR last_message_at < ?)
`, createdAt, normalized.ConversationID, createdAt); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// GetMessageByClientID loads one message by its sender-chosen idempotency key.
func (s *Store) GetMessageByClientID(ctx context.Context, conversationID string, senderID string, clientMessageID string) (storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MessageRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MessageRecord{}, fmt.Errorf("storage is not configured")
	}
	clientMessageID = strings.TrimSpace(clientMessageID)
	if clientMessageID == "" {
		return storage.MessageRecord{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, conversation_id, sender_id, client_message_id, kind, content, attachments_json, created_at
FROM chat_messages
WHERE conversation_id = ? AND sender_id = ? AND client_message_id = ?
`, strings.TrimSpace(conversationID), strings.TrimSpace(senderID), clientMessageID)
	record, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MessageRecord{}, storage.ErrNotFound
		}
		return storage.MessageRecord{}, fmt.Errorf("get message by client id: %w", err)
	}
	return record, nil
}

// ListMessages lists one conversation newest-first, resuming strictly before
// the given position.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int, before *pagination.Cursor) (storage.MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.MessagePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MessagePage{}, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return storage.MessagePage{}, fmt.Errorf("conversation id is required")
	}
	if limit <= 0 {
		return storage.MessagePage{}, fmt.Errorf("limit must be greater than zero")
	}

	query := `
SELECT id, conversation_id, sender_id, client_message_id, kind, content, attachments_json, created_at
FROM chat_messages
WHERE conversation_id = ?`
	args := []any{conversationID}
	if before != nil {
		at := toMillis(before.CreatedAt)
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, at, at, before.ID)
	}
	query += `
ORDER BY created_at DESC, id DESC
LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	page := storage.MessagePage{Messages: make([]storage.MessageRecord, 0, limit)}
	for rows.Next() {
		record, err := scanMessage(rows.Scan)
		if err != nil {
			return storage.MessagePage{}, fmt.Errorf("scan message row: %w", err)
		}
		page.Messages = append(page.Messages, record)
	}
	if err := rows.Err(); err != nil {
		return storage.MessagePage{}, fmt.Errorf("iterate message rows: %w", err)
	}
	if len(page.Messages) > limit {
		last := page.Messages[limit-1]
		page.Next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		page.Messages = page.Messages[:limit]
	}
	return page, nil
}

type scanner func(dest ...any) error

func (s *Store) loadConversation(ctx context.Context, scan scanner) (storage.ConversationRecord, error) {
	record, err := scanConversation(scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConversationRecord{}, storage.ErrNotFound
		}
		return storage.ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}
	participants, err := s.ListParticipants(ctx, record.ID)
	if err != nil {
		return storage.ConversationRecord{}, err
	}
	record.Participants = participants
	return record, nil
}

func scanConversation(scan scanner) (storage.ConversationRecord, error) {
	var record storage.ConversationRecord
	var createdAt int64
	var lastMessageAt sql.NullInt64
	if err := scan(&record.ID, &record.DirectKey, &createdAt, &lastMessageAt); err != nil {
		return storage.ConversationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	if lastMessageAt.Valid {
		value := fromMillis(lastMessageAt.Int64)
		record.LastMessageAt = &value
	}
	return record, nil
}

func scanMessage(scan scanner) (storage.MessageRecord, error) {
	var record storage.MessageRecord
	var content sql.NullString
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.ConversationID,
		&record.SenderID,
		&record.ClientMessageID,
		&record.Kind,
		&content,
		&record.AttachmentsJSON,
		&createdAt,
	); err != nil {
		return storage.MessageRecord{}, err
	}
	if content.Valid {
		value := content.String
		record.Content = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func normalizeConversationRecord(record storage.ConversationRecord) (storage.ConversationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.DirectKey = strings.TrimSpace(record.DirectKey)
	if record.ID == "" {
		return storage.ConversationRecord{}, fmt.Errorf("conversation id is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.ConversationRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()

	seen := make(map[string]struct{}, len(record.Participants))
	participants := make([]string, 0, len(record.Participants))
	for _, userID := range record.Participants {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		participants = append(participants, userID)
	}
	if len(participants) == 0 {
		return storage.ConversationRecord{}, fmt.Errorf("participants are required")
	}
	record.Participants = participants
	return record, nil
}

func normalizeMessageRecord(record storage.MessageRecord) (storage.MessageRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.ConversationID = strings.TrimSpace(record.ConversationID)
	record.SenderID = strings.TrimSpace(record.SenderID)
	record.ClientMessageID = strings.TrimSpace(record.ClientMessageID)
	record.Kind = strings.TrimSpace(record.Kind)
	record.AttachmentsJSON = strings.TrimSpace(record.AttachmentsJSON)
	if record.AttachmentsJSON == "" {
		record.AttachmentsJSON = "[]"
	}
	if record.ID == "" {
		return storage.MessageRecord{}, fmt.Errorf("message id is required")
	}
	if record.ConversationID == "" {
		return storage.MessageRecord{}, fmt.Errorf("conversation id is required")
	}
	if record.SenderID == "" {
		return storage.MessageRecord{}, fmt.Errorf("sender id is required")
	}
	if record.Kind == "" {
		return storage.MessageRecord{}, fmt.Errorf("kind is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.MessageRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
