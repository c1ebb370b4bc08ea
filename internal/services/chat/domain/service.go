// Package domain owns chat conversations and the dual-path send operation.
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
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrNotFound indicates a conversation is missing or the caller is not a
	// participant. Callers cannot tell these apart.
	ErrNotFound = errors.New("conversation not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("chat conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("chat store is not configured")
	// ErrUserIDRequired indicates caller identity is required.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrConversationIDRequired indicates a conversation id is required.
	ErrConversationIDRequired = errors.New("conversation id is required")
	// ErrPeerIDRequired indicates a peer id is required.
	ErrPeerIDRequired = errors.New("peer id is required")
	// ErrSelfConversation indicates a direct conversation with oneself.
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")
	// ErrInvalidCursor indicates a message cursor that cannot be decoded.
	ErrInvalidCursor = errors.New("invalid message cursor")
)

// Page size bounds for conversation and message listings.
const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

var pageSizeConfig = pagination.PageSizeConfig{Default: DefaultPageSize, Max: MaxPageSize}

// Path names the delivery route one send executed.
type Path string

const (
	// PathLive means the sender's own live session carried the message.
	PathLive Path = "live"
	// PathFallback means the message arrived as a durable request write.
	PathFallback Path = "fallback"
)

// SendInput carries one message submission. ConnectionID is empty for
// request-based submits.
type SendInput struct {
	SenderID        string
	ConversationID  string
	ConnectionID    string
	ClientMessageID string
	Content         *string
	Kind            Kind
	Attachments     []Attachment
}

// SendResult reports the stored message and how it was handled.
type SendResult struct {
	Message   Message
	Path      Path
	Duplicate bool
	Delivered int
}

// MessagePage is one newest-first slice of a conversation.
type MessagePage struct {
	Messages   []Message
	NextCursor string
}

// StoreMessagePage is one store listing result with the resume position.
type StoreMessagePage struct {
	Messages []Message
	Next     *pagination.Cursor
}

// Store is the domain persistence boundary for chat.
type Store interface {
	PutConversation(ctx context.Context, conversation Conversation) error
	GetConversation(ctx context.Context, conversationID string) (Conversation, error)
	GetConversationByDirectKey(ctx context.Context, directKey string) (Conversation, error)
	ListConversationsByParticipant(ctx context.Context, userID string, limit int) ([]Conversation, error)
	PutMessage(ctx context.Context, message Message) error
	GetMessageByClientID(ctx context.Context, conversationID string, senderID string, clientMessageID string) (Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int, before *pagination.Cursor) (StoreMessagePage, error)
}

// LiveChannels answers whether one specific session is currently connected.
type LiveChannels interface {
	HasConnection(userID string, connectionID string) bool
}

// Fanout pushes a stored message to the live connections of recipients and
// returns how many connections it reached.
type Fanout interface {
	PushChatMessage(ctx context.Context, recipients []string, message Message) int
}

// Service orchestrates chat use-cases.
type Service struct {
	store   Store
	live    LiveChannels
	fanout  Fanout
	clock   func() time.Time
	newID   func() (string, error)
	stamper *clock.Stamper
}

// NewService constructs chat use-cases. A nil live index makes every send
// take the fallback path; a nil fanout disables pushes.
func NewService(store Store, live LiveChannels, fanout Fanout, now func() time.Time, newID func() (string, error)) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	s := &Service{
		store:  store,
		live:   live,
		fanout: fanout,
		clock:  now,
		newID:  newID,
	}
	s.stamper = clock.NewStamper(func() time.Time { return s.nowUTC() })
	return s
}

// ChoosePath returns the route a send for this sender and connection takes.
func (s *Service) ChoosePath(senderID string, connectionID string) Path {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" || s.live == nil {
		return PathFallback
	}
	if s.live.HasConnection(senderID, connectionID) {
		return PathLive
	}
	return PathFallback
}

// Send stores one message and fans it out to every other participant. The
// path only records how the message arrived; storage and fan-out are the
// same on both. A repeated client message id returns the stored message
// without a second fan-out.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	if s == nil || s.store == nil {
		return SendResult{}, ErrStoreNotConfigured
	}
	senderID := strings.TrimSpace(input.SenderID)
	if senderID == "" {
		return SendResult{}, ErrUserIDRequired
	}
	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID == "" {
		return SendResult{}, ErrConversationIDRequired
	}
	clientMessageID := strings.TrimSpace(input.ClientMessageID)
	content, kind, attachments, err := normalizeBody(input.Content, input.Kind, input.Attachments, clientMessageID)
	if err != nil {
		return SendResult{}, err
	}
	path := s.ChoosePath(senderID, input.ConnectionID)

	ctx, span := otel.Tracer("chat").Start(ctx, "chat.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.path", string(path)),
		attribute.String("chat.kind", string(kind)),
	)

	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		return SendResult{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return SendResult{}, ErrNotFound
	}

	if clientMessageID != "" {
		existing, err := s.store.GetMessageByClientID(ctx, conversationID, senderID, clientMessageID)
		if err == nil {
			span.SetAttributes(attribute.Bool("chat.duplicate", true))
			return SendResult{Message: existing, Path: path, Duplicate: true}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
			return SendResult{}, err
		}
	}

	messageID, err := s.newID()
	if err != nil {
		return SendResult{}, err
	}
	message := Message{
		ID:              messageID,
		ConversationID:  conversationID,
		SenderID:        senderID,
		ClientMessageID: clientMessageID,
		Kind:            kind,
		Content:         content,
		Attachments:     attachments,
		CreatedAt:       s.stamper.Next(),
	}
	if err := s.store.PutMessage(ctx, message); err != nil {
		if clientMessageID != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetMessageByClientID(ctx, conversationID, senderID, clientMessageID)
			if lookupErr == nil {
				return SendResult{Message: existing, Path: path, Duplicate: true}, nil
			}
		}
		span.SetStatus(codes.Error, err.Error())
		return SendResult{}, err
	}

	result := SendResult{Message: message, Path: path}
	if s.fanout != nil {
		recipients := lo.Without(conversation.Participants, senderID)
		if len(recipients) > 0 {
			result.Delivered = s.fanout.PushChatMessage(ctx, recipients, message)
		}
	}
	span.SetAttributes(attribute.Int("chat.delivered", result.Delivered))
	return result, nil
}

// ListConversations returns the caller's conversations, most recently active
// first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.store.ListConversationsByParticipant(ctx, userID, pagination.ClampPageSize(limit, pageSizeConfig))
}

// GetOrCreateDirect returns the two-party conversation between userID and
// peerID, creating it on first use. The bool reports whether this call
// created it.
func (s *Service) GetOrCreateDirect(ctx context.Context, userID string, peerID string) (Conversation, bool, error) {
	if s == nil || s.store == nil {
		return Conversation{}, false, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Conversation{}, false, ErrUserIDRequired
	}
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return Conversation{}, false, ErrPeerIDRequired
	}
	if userID == peerID {
		return Conversation{}, false, ErrSelfConversation
	}

	key := DirectKey(userID, peerID)
	existing, err := s.store.GetConversationByDirectKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, false, err
	}

	conversationID, err := s.newID()
	if err != nil {
		return Conversation{}, false, err
	}
	conversation := Conversation{
		ID:           conversationID,
		DirectKey:    key,
		Participants: []string{userID, peerID},
		CreatedAt:    s.nowUTC(),
	}
	if err := s.store.PutConversation(ctx, conversation); err != nil {
		if errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetConversationByDirectKey(ctx, key)
			if lookupErr == nil {
				return existing, false, nil
			}
			return Conversation{}, false, lookupErr
		}
		return Conversation{}, false, err
	}
	return conversation, true, nil
}

// ListMessages returns one newest-first page of a conversation the caller
// participates in.
func (s *Service) ListMessages(ctx context.Context, userID string, conversationID string, before string, limit int) (MessagePage, error) {
	if s == nil || s.store == nil {
		return MessagePage{}, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return MessagePage{}, ErrUserIDRequired
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return MessagePage{}, ErrConversationIDRequired
	}
	cursor, err := pagination.DecodeCursor(before)
	if err != nil {
		return MessagePage{}, ErrInvalidCursor
	}

	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return MessagePage{}, err
	}
	if !conversation.HasParticipant(userID) {
		return MessagePage{}, ErrNotFound
	}

	stored, err := s.store.ListMessages(ctx, conversationID, pagination.ClampPageSize(limit, pageSizeConfig), cursor)
	if err != nil {
		return MessagePage{}, err
	}
	page := MessagePage{Messages: stored.Messages}
	if stored.Next != nil {
		page.NextCursor = pagination.EncodeCursor(*stored.Next)
	}
	return page, nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
