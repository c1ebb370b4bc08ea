package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.body", "Você tem uma nova notificação.")
	message.SetString(lang, "notification.comment.title", "Novo comentário")
	message.SetString(lang, "notification.comment.body", "Alguém comentou na sua publicação.")
	message.SetString(lang, "notification.comment.body_excerpt", "Alguém comentou na sua publicação: %q")
	message.SetString(lang, "notification.reaction.title", "Nova reação")
	message.SetString(lang, "notification.reaction.body", "Alguém reagiu com %s à sua publicação.")
	message.SetString(lang, "notification.friend_request.title", "Novo pedido de amizade")
	message.SetString(lang, "notification.friend_request.body", "Alguém quer ser seu amigo.")
	message.SetString(lang, "notification.mention.title", "Você foi mencionado")
	message.SetString(lang, "notification.mention.body_post", "Alguém mencionou você em uma publicação.")
	message.SetString(lang, "notification.mention.body_comment", "Alguém mencionou você em um comentário.")
}
