// Package render produces localized summaries for notification payloads.
package render

import (
	"strings"

	"github.com/louisbranch/pulse/internal/services/notifications/domain"
	"golang.org/x/text/message"
)

const (
	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
)

// Output is localized copy derived from one notification payload.
type Output struct {
	Title string
	Body  string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Render returns localized copy for one notification payload.
func Render(loc Localizer, payload domain.Payload) Output {
	switch value := payload.(type) {
	case domain.CommentPayload:
		if excerpt := strings.TrimSpace(value.Excerpt); excerpt != "" {
			return keyed(loc, "notification.comment.title", "notification.comment.body_excerpt", excerpt)
		}
		return keyed(loc, "notification.comment.title", "notification.comment.body")
	case domain.ReactionPayload:
		return keyed(loc, "notification.reaction.title", "notification.reaction.body", value.Reaction)
	case domain.FriendRequestPayload:
		return keyed(loc, "notification.friend_request.title", "notification.friend_request.body")
	case domain.MentionPayload:
		if strings.TrimSpace(value.CommentID) != "" {
			return keyed(loc, "notification.mention.title", "notification.mention.body_comment")
		}
		return keyed(loc, "notification.mention.title", "notification.mention.body_post")
	default:
		return genericOutput(loc)
	}
}

func keyed(loc Localizer, titleKey string, bodyKey string, args ...any) Output {
	title := localize(loc, titleKey)
	body := localize(loc, bodyKey, args...)
	if title == titleKey || body == bodyKey {
		return genericOutput(loc)
	}
	return Output{Title: title, Body: body}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title: localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		Body:  localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key string, args ...any) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
