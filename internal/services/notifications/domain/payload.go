package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the tagged category of one notification.
type Kind string

const (
	KindComment       Kind = "comment"
	KindReaction      Kind = "reaction"
	KindFriendRequest Kind = "friend_request"
	KindMention       Kind = "mention"
)

const maxKindLength = 64

// ErrInvalidPayload indicates a payload that does not match its kind's schema.
var ErrInvalidPayload = errors.New("invalid notification payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Payload is the kind-specific body of a notification. Known kinds decode
// to their own struct; anything else decodes to GenericPayload.
type Payload interface {
	Kind() Kind
}

// CommentPayload announces a comment on one of the owner's posts.
type CommentPayload struct {
	ActorID   string `json:"actorId" validate:"required"`
	PostID    string `json:"postId" validate:"required"`
	CommentID string `json:"commentId" validate:"required"`
	Excerpt   string `json:"excerpt,omitempty" validate:"max=280"`
}

func (CommentPayload) Kind() Kind { return KindComment }

// ReactionPayload announces a reaction to one of the owner's posts.
type ReactionPayload struct {
	ActorID  string `json:"actorId" validate:"required"`
	PostID   string `json:"postId" validate:"required"`
	Reaction string `json:"reaction" validate:"required,max=32"`
}

func (ReactionPayload) Kind() Kind { return KindReaction }

// FriendRequestPayload announces a pending friend request.
type FriendRequestPayload struct {
	ActorID   string `json:"actorId" validate:"required"`
	RequestID string `json:"requestId" validate:"required"`
}

func (FriendRequestPayload) Kind() Kind { return KindFriendRequest }

// MentionPayload announces that the owner was mentioned in a post or comment.
type MentionPayload struct {
	ActorID   string `json:"actorId" validate:"required"`
	PostID    string `json:"postId" validate:"required"`
	CommentID string `json:"commentId,omitempty"`
}

func (MentionPayload) Kind() Kind { return KindMention }

// GenericPayload carries a kind this process does not know. The raw JSON
// object round-trips untouched.
type GenericPayload struct {
	Type Kind
	Raw  json.RawMessage
}

func (p GenericPayload) Kind() Kind { return p.Type }

// MarshalJSON writes the raw object as received.
func (p GenericPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("{}"), nil
	}
	return p.Raw, nil
}

// NormalizeKind lower-cases and trims one producer-supplied kind token.
func NormalizeKind(raw string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(raw)))
}

// DecodePayload parses raw JSON into the variant registered for kind.
func DecodePayload(kind string, raw []byte) (Payload, error) {
	normalized := NormalizeKind(kind)
	if err := validateKind(normalized); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var payload Payload
	switch normalized {
	case KindComment:
		var value CommentPayload
		if err := unmarshalVariant(raw, &value); err != nil {
			return nil, err
		}
		payload = value
	case KindReaction:
		var value ReactionPayload
		if err := unmarshalVariant(raw, &value); err != nil {
			return nil, err
		}
		payload = value
	case KindFriendRequest:
		var value FriendRequestPayload
		if err := unmarshalVariant(raw, &value); err != nil {
			return nil, err
		}
		payload = value
	case KindMention:
		var value MentionPayload
		if err := unmarshalVariant(raw, &value); err != nil {
			return nil, err
		}
		payload = value
	default:
		var object map[string]json.RawMessage
		if err := json.Unmarshal(raw, &object); err != nil || object == nil {
			return nil, fmt.Errorf("%w: %s payload must be a JSON object", ErrInvalidPayload, normalized)
		}
		payload = GenericPayload{Type: normalized, Raw: append(json.RawMessage(nil), raw...)}
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodePayload returns the JSON stored and sent for one payload.
func EncodePayload(payload Payload) ([]byte, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", payload.Kind(), err)
	}
	return data, nil
}

// ValidatePayload checks the kind token and the variant's field rules.
func ValidatePayload(payload Payload) error {
	if payload == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if err := validateKind(payload.Kind()); err != nil {
		return err
	}
	if _, ok := payload.(GenericPayload); ok {
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, payload.Kind(), err)
	}
	return nil
}

func validateKind(kind Kind) error {
	if kind == "" {
		return ErrKindRequired
	}
	if len(kind) > maxKindLength {
		return fmt.Errorf("%w: kind exceeds %d characters", ErrInvalidPayload, maxKindLength)
	}
	return nil
}

func unmarshalVariant(raw []byte, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
