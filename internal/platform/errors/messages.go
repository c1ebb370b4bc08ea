package errors

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	en := language.English
	message.SetString(en, "errors.INVALID_ARGUMENT", "The request is invalid.")
	message.SetString(en, "errors.UNAUTHENTICATED", "Sign in to continue.")
	message.SetString(en, "errors.FORBIDDEN", "You are not allowed to do that.")
	message.SetString(en, "errors.NOT_FOUND", "Not found.")
	message.SetString(en, "errors.RESOURCE_EXHAUSTED", "Too many requests. Slow down.")
	message.SetString(en, "errors.UNAVAILABLE", "Service temporarily unavailable.")
	message.SetString(en, "errors.INTERNAL", "Something went wrong.")

	ptBR := language.MustParse("pt-BR")
	message.SetString(ptBR, "errors.INVALID_ARGUMENT", "A requisição é inválida.")
	message.SetString(ptBR, "errors.UNAUTHENTICATED", "Entre para continuar.")
	message.SetString(ptBR, "errors.FORBIDDEN", "Você não tem permissão para isso.")
	message.SetString(ptBR, "errors.NOT_FOUND", "Não encontrado.")
	message.SetString(ptBR, "errors.RESOURCE_EXHAUSTED", "Muitas requisições. Aguarde um pouco.")
	message.SetString(ptBR, "errors.UNAVAILABLE", "Serviço temporariamente indisponível.")
	message.SetString(ptBR, "errors.INTERNAL", "Algo deu errado.")
}
