package services

import (
	"context"
	"log/slog"
	"time"

	"duochat/contract"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/moderation"
	"duochat/realtime"
	"duochat/repositories"
)

type IChatService interface {
	CreateConversation(requester domain.Identity, otherUserID string) (domain.Conversation, error)
	ListConversations(userID string) ([]domain.Conversation, error)
	GetMessages(requester domain.Identity, conversationID string, cursor *string) ([]MessageView, *string, error)
	GetMessage(requester domain.Identity, conversationID, messageID string) (MessageView, error)
	PostMessage(ctx context.Context, requester domain.Identity, conversationID, content string) (MessageView, error)
	DeleteMessage(requester domain.Identity, conversationID, messageID string) error
}

// MessageView is one message as served over the REST API, with the sender
// resolved to a public identity.
type MessageView struct {
	ID        string          `json:"id"`
	Sender    domain.Identity `json:"sender"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChatService enforces the conversation access rules in front of storage.
// Messages posted through the REST API go through the same save-then-
// broadcast path as websocket traffic, so live sessions see them too.
type ChatService struct {
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	users         repositories.IUserRepository
	bridge        contract.Bridge
	broadcaster   *realtime.Broadcaster
	moderator     *moderation.Moderator
	log           *slog.Logger
}

func NewChatService(
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	bridge contract.Bridge,
	broadcaster *realtime.Broadcaster,
	moderator *moderation.Moderator,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		bridge:        bridge,
		broadcaster:   broadcaster,
		moderator:     moderator,
		log:           log.With(slog.String("component", "chat_service")),
	}
}

// CreateConversation starts a conversation between the requester and one
// other user. A conversation has exactly two participants and a given pair
// can only ever have one.
func (s *ChatService) CreateConversation(requester domain.Identity, otherUserID string) (domain.Conversation, error) {
	if otherUserID == requester.ID {
		return domain.Conversation{}, errors.ErrSelfConversation
	}

	other, err := s.users.GetUserByID(otherUserID)
	if err != nil {
		return domain.Conversation{}, err
	}

	return s.conversations.CreateConversation(requester, domain.Identity{
		ID:       other.ID,
		Username: other.Username,
	})
}

func (s *ChatService) ListConversations(userID string) ([]domain.Conversation, error) {
	return s.conversations.ListConversationsFor(userID)
}

// GetMessages pages through a conversation's history, newest first. Only
// participants may read.
func (s *ChatService) GetMessages(requester domain.Identity, conversationID string, cursor *string) ([]MessageView, *string, error) {
	conv, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(requester.ID) {
		return nil, nil, errors.ErrNotParticipant
	}

	diskMessages, next, err := s.messages.GetMessages(conversationID, cursor)
	if err != nil {
		return nil, nil, err
	}

	views := make([]MessageView, 0, len(diskMessages))
	for _, dm := range diskMessages {
		views = append(views, s.toView(conv, dm))
	}
	return views, next, nil
}

func (s *ChatService) GetMessage(requester domain.Identity, conversationID, messageID string) (MessageView, error) {
	conv, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return MessageView{}, err
	}
	if !conv.HasParticipant(requester.ID) {
		return MessageView{}, errors.ErrNotParticipant
	}

	dm, err := s.messages.GetMessage(conversationID, messageID)
	if err != nil {
		return MessageView{}, err
	}
	return s.toView(conv, dm), nil
}

// PostMessage persists a message and fans it out to the conversation's
// live sessions. The broadcast only happens after a successful save.
func (s *ChatService) PostMessage(ctx context.Context, requester domain.Identity, conversationID, content string) (MessageView, error) {
	conv, err := s.bridge.ResolveConversation(ctx, conversationID)
	if err != nil {
		return MessageView{}, err
	}
	if !s.bridge.IsParticipant(ctx, requester.ID, conv) {
		return MessageView{}, errors.ErrNotParticipant
	}

	if s.moderator != nil {
		content = s.moderator.Censor(content)
	}

	message, err := s.bridge.SaveMessage(ctx, conv, requester, content)
	if err != nil {
		return MessageView{}, err
	}

	if s.broadcaster != nil {
		posted := event.MessagePosted{
			ConversationID: conv.ID,
			Sender:         requester,
			Content:        message.Content,
			At:             message.CreatedAt,
		}
		if err := s.broadcaster.Broadcast(ctx, posted); err != nil {
			s.log.Error("broadcast of posted message failed", "conversationID", conv.ID, "error", err)
		}
	}

	return MessageView{
		ID:        message.ID.String(),
		Sender:    requester,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}, nil
}

// DeleteMessage removes a message; only its sender may delete it.
func (s *ChatService) DeleteMessage(requester domain.Identity, conversationID, messageID string) error {
	conv, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(requester.ID) {
		return errors.ErrNotParticipant
	}

	dm, err := s.messages.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if dm.Author != requester.ID {
		return errors.ErrNotSender
	}

	return s.messages.DeleteMessage(conversationID, messageID)
}

// toView resolves the author id to a public identity using the
// conversation's own participant list; a sender missing from it (deleted
// account) keeps the bare id.
func (s *ChatService) toView(conv domain.Conversation, dm repositories.DiskMessage) MessageView {
	sender := domain.Identity{ID: dm.Author}
	for _, p := range conv.Participants {
		if p.ID == dm.Author {
			sender = p
			break
		}
	}
	return MessageView{
		ID:        dm.ID.String(),
		Sender:    sender,
		Content:   dm.Content,
		CreatedAt: dm.At,
	}
}
