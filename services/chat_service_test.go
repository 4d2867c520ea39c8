package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/domain"
	"duochat/errors"
	"duochat/mocks"
	"duochat/repositories"
)

type chatServiceMocks struct {
	conversations *mocks.MockIConversationRepository
	messages      *mocks.MockIMessageRepository
	users         *mocks.MockIUserRepository
	bridge        *mocks.MockBridge
}

func newChatService(t *testing.T) (*ChatService, chatServiceMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := chatServiceMocks{
		conversations: mocks.NewMockIConversationRepository(ctrl),
		messages:      mocks.NewMockIMessageRepository(ctrl),
		users:         mocks.NewMockIUserRepository(ctrl),
		bridge:        mocks.NewMockBridge(ctrl),
	}
	svc := NewChatService(m.conversations, m.messages, m.users, m.bridge, nil, nil, slog.Default())
	return svc, m
}

var (
	alice = domain.Identity{ID: "1", Username: "alice"}
	bob   = domain.Identity{ID: "2", Username: "bob"}
)

func twoPartyConversation() domain.Conversation {
	return domain.Conversation{
		ID:           "conv-1",
		Participants: []domain.Identity{alice, bob},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestChatService_CreateConversation(t *testing.T) {
	t.Run("should create a conversation with one other user", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)

		m.users.EXPECT().GetUserByID("2").
			Return(repositories.User{ID: "2", Username: "bob"}, nil)
		m.conversations.EXPECT().CreateConversation(alice, bob).
			Return(twoPartyConversation(), nil)

		conv, err := svc.CreateConversation(alice, "2")

		req.NoError(err)
		req.Len(conv.Participants, 2)
	})

	t.Run("should refuse a conversation with oneself", func(t *testing.T) {
		req := require.New(t)
		svc, _ := newChatService(t)

		_, err := svc.CreateConversation(alice, alice.ID)

		req.ErrorIs(err, errors.ErrSelfConversation)
	})

	t.Run("should refuse an unknown counterpart", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)

		m.users.EXPECT().GetUserByID("404").
			Return(repositories.User{}, errors.ErrUserNotFound)

		_, err := svc.CreateConversation(alice, "404")

		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("should propagate the duplicate pair rejection", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)

		m.users.EXPECT().GetUserByID("2").
			Return(repositories.User{ID: "2", Username: "bob"}, nil)
		m.conversations.EXPECT().CreateConversation(alice, bob).
			Return(domain.Conversation{}, errors.ErrConversationExists)

		_, err := svc.CreateConversation(alice, "2")

		req.ErrorIs(err, errors.ErrConversationExists)
	})
}

func TestChatService_GetMessages(t *testing.T) {
	t.Run("should resolve sender identities from the participant list", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()

		m.conversations.EXPECT().GetConversation(conv.ID).Return(conv, nil)
		m.messages.EXPECT().GetMessages(conv.ID, nil).
			Return([]repositories.DiskMessage{
				{ID: uuid.New(), ConversationID: conv.ID, Author: "2", Content: "hello", At: time.Now().UTC()},
			}, nil, nil)

		views, next, err := svc.GetMessages(alice, conv.ID, nil)

		req.NoError(err)
		req.Nil(next)
		req.Len(views, 1)
		req.Equal(bob, views[0].Sender)
		req.Equal("hello", views[0].Content)
	})

	t.Run("should refuse a reader who is not a participant", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()

		m.conversations.EXPECT().GetConversation(conv.ID).Return(conv, nil)

		_, _, err := svc.GetMessages(domain.Identity{ID: "666", Username: "eve"}, conv.ID, nil)

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}

func TestChatService_PostMessage(t *testing.T) {
	t.Run("should save through the storage bridge", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()
		at := time.Now().UTC()

		m.bridge.EXPECT().ResolveConversation(gomock.Any(), conv.ID).Return(conv, nil)
		m.bridge.EXPECT().IsParticipant(gomock.Any(), alice.ID, conv).Return(true)
		m.bridge.EXPECT().SaveMessage(gomock.Any(), conv, alice, "salut").
			Return(domain.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: alice.ID, Content: "salut", CreatedAt: at}, nil)

		view, err := svc.PostMessage(context.Background(), alice, conv.ID, "salut")

		req.NoError(err)
		req.Equal(alice, view.Sender)
		req.Equal("salut", view.Content)
		req.Equal(at, view.CreatedAt)
	})

	t.Run("should refuse a non participant sender", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()

		m.bridge.EXPECT().ResolveConversation(gomock.Any(), conv.ID).Return(conv, nil)
		m.bridge.EXPECT().IsParticipant(gomock.Any(), "666", conv).Return(false)

		_, err := svc.PostMessage(context.Background(), domain.Identity{ID: "666"}, conv.ID, "hi")

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}

func TestChatService_DeleteMessage(t *testing.T) {
	messageID := uuid.New()

	t.Run("should let the sender delete their message", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()

		m.conversations.EXPECT().GetConversation(conv.ID).Return(conv, nil)
		m.messages.EXPECT().GetMessage(conv.ID, messageID.String()).
			Return(repositories.DiskMessage{ID: messageID, ConversationID: conv.ID, Author: alice.ID}, nil)
		m.messages.EXPECT().DeleteMessage(conv.ID, messageID.String()).Return(nil)

		req.NoError(svc.DeleteMessage(alice, conv.ID, messageID.String()))
	})

	t.Run("should refuse deletion by the other participant", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		conv := twoPartyConversation()

		m.conversations.EXPECT().GetConversation(conv.ID).Return(conv, nil)
		m.messages.EXPECT().GetMessage(conv.ID, messageID.String()).
			Return(repositories.DiskMessage{ID: messageID, ConversationID: conv.ID, Author: alice.ID}, nil)

		err := svc.DeleteMessage(bob, conv.ID, messageID.String())

		req.ErrorIs(err, errors.ErrNotSender)
	})
}
