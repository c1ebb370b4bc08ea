package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/pulse/internal/platform/errors"
	"github.com/louisbranch/pulse/internal/platform/requestctx"
	"github.com/louisbranch/pulse/internal/services/chat/domain"
	"github.com/louisbranch/pulse/internal/services/realtime/wire"
	"github.com/samber/lo"
)

type attachmentDTO struct {
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	Name      string `json:"name,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// sendRequest is the body shared by the socket and REST send surfaces.
type sendRequest struct {
	ConversationID  string          `json:"conversationId" binding:"required"`
	ClientMessageID string          `json:"clientMessageId"`
	Content         *string         `json:"content"`
	Kind            string          `json:"kind"`
	Attachments     []attachmentDTO `json:"attachments"`
}

type openConversationRequest struct {
	PeerID string `json:"peerId" binding:"required"`
}

type conversationListResponse struct {
	Items []wire.ConversationItem `json:"items"`
}

type conversationResponse struct {
	Conversation wire.ConversationItem `json:"conversation"`
}

type messageListResponse struct {
	Items      []wire.MessageItem `json:"items"`
	NextCursor *string            `json:"nextCursor"`
}

type postMessageResponse struct {
	Message   wire.MessageItem `json:"message"`
	Path      string           `json:"path"`
	Duplicate bool             `json:"duplicate"`
}

// sendChat submits one message. The connection id on ctx, present only for
// socket frames, decides between the live and fallback paths.
func (h *handler) sendChat(ctx context.Context, userID string, request sendRequest) (domain.SendResult, error) {
	return h.chat.Send(ctx, domain.SendInput{
		SenderID:        userID,
		ConversationID:  request.ConversationID,
		ConnectionID:    requestctx.ConnectionIDFromContext(ctx),
		ClientMessageID: request.ClientMessageID,
		Content:         request.Content,
		Kind:            domain.Kind(request.Kind),
		Attachments: lo.Map(request.Attachments, func(item attachmentDTO, _ int) domain.Attachment {
			return domain.Attachment{URL: item.URL, MimeType: item.MimeType, Name: item.Name, SizeBytes: item.SizeBytes}
		}),
	})
}

func (h *handler) listConversations(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	conversations, err := h.chat.ListConversations(c.Request.Context(), callerID(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationListResponse{Items: wire.ConversationViews(conversations)})
}

func (h *handler) openConversation(c *gin.Context) {
	var request openConversationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "peerId is required", err))
		return
	}
	conversation, created, err := h.chat.GetOrCreateDirect(c.Request.Context(), callerID(c), request.PeerID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conversationResponse{Conversation: wire.ConversationView(conversation)})
}

func (h *handler) listMessages(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.chat.ListMessages(c.Request.Context(), callerID(c), c.Param("id"), strings.TrimSpace(c.Query("before")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageListResponse{Items: wire.MessageViews(page.Messages), NextCursor: optionalCursor(page.NextCursor)})
}

func (h *handler) postMessage(c *gin.Context) {
	var request sendRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "conversationId is required", err))
		return
	}
	result, err := h.sendChat(c.Request.Context(), callerID(c), request)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postMessageResponse{
		Message:   wire.MessageView(result.Message),
		Path:      string(result.Path),
		Duplicate: result.Duplicate,
	})
}
