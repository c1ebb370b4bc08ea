// Package storage defines the persistence contract for chat conversations and
// messages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/pulse/internal/platform/pagination"
)

var (
	// ErrNotFound indicates a requested conversation or message is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// ConversationRecord stores one conversation and its participant set.
type ConversationRecord struct {
	ID            string
	DirectKey     string
	Participants  []string
	CreatedAt     time.Time
	LastMessageAt *time.Time
}

// MessageRecord stores one chat message row. AttachmentsJSON is an ordered
// JSON array.
type MessageRecord struct {
	ID              string
	ConversationID  string
	SenderID        string
	ClientMessageID string
	Kind            string
	Content         *string
	AttachmentsJSON string
	CreatedAt       time.Time
}

// MessagePage is one newest-first slice of a conversation.
type MessagePage struct {
	Messages []MessageRecord
	Next     *pagination.Cursor
}

// ChatStore persists conversations and messages.
type ChatStore interface {
	PutConversation(ctx context.Context, record ConversationRecord) error
	GetConversation(ctx context.Context, conversationID string) (ConversationRecord, error)
	GetConversationByDirectKey(ctx context.Context, directKey string) (ConversationRecord, error)
	ListConversationsByParticipant(ctx context.Context, userID string, limit int) ([]ConversationRecord, error)
	PutMessage(ctx context.Context, record MessageRecord) error
	GetMessageByClientID(ctx context.Context, conversationID string, senderID string, clientMessageID string) (MessageRecord, error)
	ListMessages(ctx context.Context, conversationID string, limit int, before *pagination.Cursor) (MessagePage, error)
}
