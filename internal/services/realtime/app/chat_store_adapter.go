package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/pulse/internal/platform/pagination"
	"github.com/louisbranch/pulse/internal/services/chat/domain"
	"github.com/louisbranch/pulse/internal/services/chat/storage"
	"github.com/samber/lo"
)

type chatStoreAdapter struct {
	store storage.ChatStore
}

func newChatStoreAdapter(store storage.ChatStore) *chatStoreAdapter {
	return &chatStoreAdapter{store: store}
}

func (a *chatStoreAdapter) PutConversation(ctx context.Context, conversation domain.Conversation) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapChatStorageError(a.store.PutConversation(ctx, storage.ConversationRecord{
		ID:            conversation.ID,
		DirectKey:     conversation.DirectKey,
		Participants:  conversation.Participants,
		CreatedAt:     conversation.CreatedAt,
		LastMessageAt: conversation.LastMessageAt,
	}))
}

func (a *chatStoreAdapter) GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	if a == nil || a.store == nil {
		return domain.Conversation{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, mapChatStorageError(err)
	}
	return toDomainConversation(record), nil
}

func (a *chatStoreAdapter) GetConversationByDirectKey(ctx context.Context, directKey string) (domain.Conversation, error) {
	if a == nil || a.store == nil {
		return domain.Conversation{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetConversationByDirectKey(ctx, directKey)
	if err != nil {
		return domain.Conversation{}, mapChatStorageError(err)
	}
	return toDomainConversation(record), nil
}

func (a *chatStoreAdapter) ListConversationsByParticipant(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListConversationsByParticipant(ctx, userID, limit)
	if err != nil {
		return nil, mapChatStorageError(err)
	}
	return lo.Map(records, func(record storage.ConversationRecord, _ int) domain.Conversation {
		return toDomainConversation(record)
	}), nil
}

func (a *chatStoreAdapter) PutMessage(ctx context.Context, message domain.Message) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	record, err := toStorageMessage(message)
	if err != nil {
		return err
	}
	return mapChatStorageError(a.store.PutMessage(ctx, record))
}

func (a *chatStoreAdapter) GetMessageByClientID(ctx context.Context, conversationID string, senderID string, clientMessageID string) (domain.Message, error) {
	if a == nil || a.store == nil {
		return domain.Message{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetMessageByClientID(ctx, conversationID, senderID, clientMessageID)
	if err != nil {
		return domain.Message{}, mapChatStorageError(err)
	}
	return toDomainMessage(record)
}

func (a *chatStoreAdapter) ListMessages(ctx context.Context, conversationID string, limit int, before *pagination.Cursor) (domain.StoreMessagePage, error) {
	if a == nil || a.store == nil {
		return domain.StoreMessagePage{}, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		return domain.StoreMessagePage{}, mapChatStorageError(err)
	}
	result := domain.StoreMessagePage{
		Messages: make([]domain.Message, 0, len(page.Messages)),
		Next:     page.Next,
	}
	for _, record := range page.Messages {
		message, err := toDomainMessage(record)
		if err != nil {
			return domain.StoreMessagePage{}, err
		}
		result.Messages = append(result.Messages, message)
	}
	return result, nil
}

func toDomainConversation(record storage.ConversationRecord) domain.Conversation {
	return domain.Conversation{
		ID:            record.ID,
		DirectKey:     record.DirectKey,
		Participants:  record.Participants,
		CreatedAt:     record.CreatedAt,
		LastMessageAt: record.LastMessageAt,
	}
}

func toStorageMessage(message domain.Message) (storage.MessageRecord, error) {
	attachments := message.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("encode attachments: %w", err)
	}
	return storage.MessageRecord{
		ID:              message.ID,
		ConversationID:  message.ConversationID,
		SenderID:        message.SenderID,
		ClientMessageID: message.ClientMessageID,
		Kind:            string(message.Kind),
		Content:         message.Content,
		AttachmentsJSON: string(attachmentsJSON),
		CreatedAt:       message.CreatedAt,
	}, nil
}

func toDomainMessage(record storage.MessageRecord) (domain.Message, error) {
	var attachments []domain.Attachment
	if err := json.Unmarshal([]byte(record.AttachmentsJSON), &attachments); err != nil {
		return domain.Message{}, fmt.Errorf("decode attachments for message %s: %w", record.ID, err)
	}
	return domain.Message{
		ID:              record.ID,
		ConversationID:  record.ConversationID,
		SenderID:        record.SenderID,
		ClientMessageID: record.ClientMessageID,
		Kind:            domain.Kind(record.Kind),
		Content:         record.Content,
		Attachments:     attachments,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func mapChatStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}
