package server

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/pulse/internal/platform/errors"
	"github.com/louisbranch/pulse/internal/platform/i18n"
	chatdomain "github.com/louisbranch/pulse/internal/services/chat/domain"
	notificationsdomain "github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/realtime/wire"
	"golang.org/x/text/language"
)

// toAPIError maps domain failures onto transport codes.
func toAPIError(err error) *apperrors.Error {
	var apiErr *apperrors.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, notificationsdomain.ErrNotFound),
		errors.Is(err, chatdomain.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "not found", err)
	case errors.Is(err, notificationsdomain.ErrOwnerIDRequired),
		errors.Is(err, chatdomain.ErrUserIDRequired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "caller identity is required", err)
	case errors.Is(err, notificationsdomain.ErrKindRequired),
		errors.Is(err, notificationsdomain.ErrNotificationIDRequired),
		errors.Is(err, notificationsdomain.ErrInvalidCursor),
		errors.Is(err, notificationsdomain.ErrInvalidPayload),
		errors.Is(err, chatdomain.ErrConversationIDRequired),
		errors.Is(err, chatdomain.ErrPeerIDRequired),
		errors.Is(err, chatdomain.ErrSelfConversation),
		errors.Is(err, chatdomain.ErrInvalidCursor),
		errors.Is(err, chatdomain.ErrInvalidMessage):
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	case errors.Is(err, notificationsdomain.ErrStoreNotConfigured),
		errors.Is(err, chatdomain.ErrStoreNotConfigured):
		return apperrors.Wrap(apperrors.CodeUnavailable, err.Error(), err)
	default:
		return apperrors.Wrap(apperrors.CodeInternal, "internal error", err)
	}
}

// errorBody renders err for a client in the requested language. Invalid
// argument errors keep their descriptive message.
func errorBody(tag language.Tag, err *apperrors.Error) wire.ErrorBody {
	message := apperrors.UserMessage(tag, err.Code, err.Message)
	if err.Code == apperrors.CodeInvalidArgument && err.Message != "" {
		message = err.Message
	}
	return wire.ErrorBody{
		Code:      string(err.Code),
		Message:   message,
		Retryable: err.Code.Retryable(),
	}
}

func writeError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.Code == apperrors.CodeInternal {
		log.Printf("realtime: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(apiErr.Code.HTTPStatus(), wire.ErrorEnvelope{
		Error: errorBody(i18n.ResolveTag(c.Request), apiErr),
	})
}
