package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"duochat/contract"
	"duochat/domain"
)

// StorageBridge implements the persistence collaborator the real-time core
// depends on, backed by the Badger repositories.
type StorageBridge struct {
	conversations IConversationRepository
	messages      IMessageRepository
}

func NewStorageBridge(conversations IConversationRepository, messages IMessageRepository) *StorageBridge {
	return &StorageBridge{conversations: conversations, messages: messages}
}

var _ contract.Bridge = (*StorageBridge)(nil)

func (b *StorageBridge) ResolveConversation(_ context.Context, id string) (domain.Conversation, error) {
	return b.conversations.GetConversation(id)
}

func (b *StorageBridge) IsParticipant(_ context.Context, userID string, conv domain.Conversation) bool {
	return conv.HasParticipant(userID)
}

// SaveMessage assigns the canonical id and timestamp, persists the message,
// and returns it. The caller broadcasts only after this succeeds.
func (b *StorageBridge) SaveMessage(_ context.Context, conv domain.Conversation, sender domain.Identity, content string) (domain.Message, error) {
	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	err := b.messages.StoreMessage(DiskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Author:         message.SenderID,
		Content:        message.Content,
		At:             message.CreatedAt,
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}
