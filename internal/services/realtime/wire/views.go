// Package wire defines the JSON shapes shared by REST responses and live
// frames.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	chatdomain "github.com/louisbranch/pulse/internal/services/chat/domain"
	notificationsdomain "github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/notifications/render"
	"github.com/samber/lo"
)

// Summary is localized display copy for one notification.
type Summary struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotificationItem is the client representation of one notification.
type NotificationItem struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Summary   Summary         `json:"summary"`
	CreatedAt string          `json:"createdAt"`
	ReadAt    *string         `json:"readAt"`
}

// MessageItem is the client representation of one chat message.
type MessageItem struct {
	ID              string                  `json:"id"`
	ConversationID  string                  `json:"conversationId"`
	SenderID        string                  `json:"senderId"`
	ClientMessageID string                  `json:"clientMessageId,omitempty"`
	Kind            string                  `json:"kind"`
	Content         *string                 `json:"content"`
	Attachments     []chatdomain.Attachment `json:"attachments"`
	CreatedAt       string                  `json:"createdAt"`
}

// ConversationItem is the client representation of one conversation.
type ConversationItem struct {
	ID            string   `json:"id"`
	Participants  []string `json:"participants"`
	CreatedAt     string   `json:"createdAt"`
	LastMessageAt *string  `json:"lastMessageAt"`
}

// Timestamp formats t the way every client-facing time is written.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := Timestamp(*t)
	return &value
}

// NotificationView renders one notification with localized copy.
func NotificationView(n notificationsdomain.Notification, loc render.Localizer) (NotificationItem, error) {
	payload, err := notificationsdomain.EncodePayload(n.Payload)
	if err != nil {
		return NotificationItem{}, fmt.Errorf("notification %s: %w", n.ID, err)
	}
	out := render.Render(loc, n.Payload)
	return NotificationItem{
		ID:        n.ID,
		Kind:      string(n.Kind()),
		Payload:   payload,
		Summary:   Summary{Title: out.Title, Body: out.Body},
		CreatedAt: Timestamp(n.CreatedAt),
		ReadAt:    optionalTimestamp(n.ReadAt),
	}, nil
}

// NotificationViews renders a page of notifications.
func NotificationViews(ns []notificationsdomain.Notification, loc render.Localizer) ([]NotificationItem, error) {
	items := make([]NotificationItem, 0, len(ns))
	for _, n := range ns {
		item, err := NotificationView(n, loc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// MessageView renders one chat message.
func MessageView(m chatdomain.Message) MessageItem {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []chatdomain.Attachment{}
	}
	return MessageItem{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		ClientMessageID: m.ClientMessageID,
		Kind:            string(m.Kind),
		Content:         m.Content,
		Attachments:     attachments,
		CreatedAt:       Timestamp(m.CreatedAt),
	}
}

// MessageViews renders a page of chat messages.
func MessageViews(ms []chatdomain.Message) []MessageItem {
	return lo.Map(ms, func(m chatdomain.Message, _ int) MessageItem {
		return MessageView(m)
	})
}

// ConversationView renders one conversation.
func ConversationView(c chatdomain.Conversation) ConversationItem {
	participants := c.Participants
	if participants == nil {
		participants = []string{}
	}
	return ConversationItem{
		ID:            c.ID,
		Participants:  participants,
		CreatedAt:     Timestamp(c.CreatedAt),
		LastMessageAt: optionalTimestamp(c.LastMessageAt),
	}
}

// ConversationViews renders a list of conversations.
func ConversationViews(cs []chatdomain.Conversation) []ConversationItem {
	return lo.Map(cs, func(c chatdomain.Conversation, _ int) ConversationItem {
		return ConversationView(c)
	})
}
