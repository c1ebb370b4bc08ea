package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.comment.title", "New comment")
	message.SetString(lang, "notification.comment.body", "Someone commented on your post.")
	message.SetString(lang, "notification.comment.body_excerpt", "Someone commented on your post: %q")
	message.SetString(lang, "notification.reaction.title", "New reaction")
	message.SetString(lang, "notification.reaction.body", "Someone reacted %s to your post.")
	message.SetString(lang, "notification.friend_request.title", "New friend request")
	message.SetString(lang, "notification.friend_request.body", "Someone wants to be your friend.")
	message.SetString(lang, "notification.mention.title", "You were mentioned")
	message.SetString(lang, "notification.mention.body_post", "Someone mentioned you in a post.")
	message.SetString(lang, "notification.mention.body_comment", "Someone mentioned you in a comment.")
}
