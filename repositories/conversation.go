//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"duochat/domain"
	"duochat/errors"
)

type IConversationRepository interface {
	// CreateConversation creates a two-party conversation. A second
	// conversation between the same pair is rejected.
	CreateConversation(a, b domain.Identity) (domain.Conversation, error)
	GetConversation(id string) (domain.Conversation, error)
	ListConversationsFor(userID string) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

// pairKey is the duplicate guard: one key per unordered participant pair.
func pairKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte("convpair:" + a + ":" + b)
}

func (c ConversationRepository) CreateConversation(a, b domain.Identity) (domain.Conversation, error) {
	conv := domain.Conversation{
		ID:           uuid.NewString(),
		Participants: []domain.Identity{a, b},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		guard := pairKey(a.ID, b.ID)
		if _, err := txn.Get(guard); err == nil {
			return errors.ErrConversationExists
		}
		if err := txn.Set(guard, []byte(conv.ID)); err != nil {
			return err
		}
		if err := txn.Set([]byte("conv:"+conv.ID), data); err != nil {
			return err
		}
		// Listing index, one key per participant.
		for _, p := range conv.Participants {
			if err := txn.Set([]byte("userconv:"+p.ID+":"+conv.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (c ConversationRepository) GetConversation(id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("conv:" + id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	return conv, err
}

// ListConversationsFor walks the participant's index keys and resolves each
// conversation record.
func (c ConversationRepository) ListConversationsFor(userID string) ([]domain.Conversation, error) {
	var ids []string
	prefixStr := "userconv:" + userID + ":"
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefixStr):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := c.GetConversation(id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}
