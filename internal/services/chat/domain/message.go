package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Kind is the enumerated type of one chat message.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindImage Kind = "IMAGE"
	KindFile  Kind = "FILE"
)

// ErrInvalidMessage indicates a send request that cannot be stored.
var ErrInvalidMessage = errors.New("invalid chat message")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Attachment describes one uploaded object referenced by a message.
type Attachment struct {
	URL       string `json:"url" validate:"required,url"`
	MimeType  string `json:"mimeType" validate:"required,max=255"`
	Name      string `json:"name,omitempty" validate:"max=255"`
	SizeBytes int64  `json:"sizeBytes,omitempty" validate:"gte=0"`
}

// Message is one stored chat message.
type Message struct {
	ID              string
	ConversationID  string
	SenderID        string
	ClientMessageID string
	Kind            Kind
	Content         *string
	Attachments     []Attachment
	CreatedAt       time.Time
}

// Conversation is one chat thread and its participant set.
type Conversation struct {
	ID            string
	DirectKey     string
	Participants  []string
	CreatedAt     time.Time
	LastMessageAt *time.Time
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}

// DirectKey returns the order-independent key of a two-party conversation.
func DirectKey(userID string, peerID string) string {
	pair := []string{strings.TrimSpace(userID), strings.TrimSpace(peerID)}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}

type messageRules struct {
	Content         string       `validate:"max=4000"`
	Kind            Kind         `validate:"oneof=TEXT IMAGE FILE"`
	Attachments     []Attachment `validate:"max=10,dive"`
	ClientMessageID string       `validate:"max=128"`
}

// normalizeBody trims content, infers a missing kind and checks the body
// rules shared by both send paths.
func normalizeBody(content *string, kind Kind, attachments []Attachment, clientMessageID string) (*string, Kind, []Attachment, error) {
	var normalizedContent *string
	if content != nil {
		if trimmed := strings.TrimSpace(*content); trimmed != "" {
			normalizedContent = &trimmed
		}
	}
	normalizedAttachments := lo.Map(attachments, func(item Attachment, _ int) Attachment {
		item.URL = strings.TrimSpace(item.URL)
		item.MimeType = strings.ToLower(strings.TrimSpace(item.MimeType))
		item.Name = strings.TrimSpace(item.Name)
		return item
	})

	kind = Kind(strings.ToUpper(strings.TrimSpace(string(kind))))
	if kind == "" {
		kind = inferKind(normalizedAttachments)
	}

	rules := messageRules{
		Kind:            kind,
		Attachments:     normalizedAttachments,
		ClientMessageID: clientMessageID,
	}
	if normalizedContent != nil {
		rules.Content = *normalizedContent
	}
	if err := validate.Struct(rules); err != nil {
		return nil, "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch kind {
	case KindText:
		if normalizedContent == nil {
			return nil, "", nil, fmt.Errorf("%w: text message requires content", ErrInvalidMessage)
		}
	default:
		if len(normalizedAttachments) == 0 {
			return nil, "", nil, fmt.Errorf("%w: %s message requires attachments", ErrInvalidMessage, kind)
		}
	}
	return normalizedContent, kind, normalizedAttachments, nil
}

func inferKind(attachments []Attachment) Kind {
	if len(attachments) == 0 {
		return KindText
	}
	if lo.EveryBy(attachments, func(item Attachment) bool {
		return strings.HasPrefix(item.MimeType, "image/")
	}) {
		return KindImage
	}
	return KindFile
}
