//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"duochat/errors"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(conversationID string, cursor *string) ([]DiskMessage, *string, error)
	GetMessage(conversationID, messageID string) (DiskMessage, error)
	DeleteMessage(conversationID, messageID string) error
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Author         string    `json:"author"`
	Content        string    `json:"content"`
	At             time.Time `json:"at"`
}

// messageKey is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.At.UnixNano(),
		message.ID,
	))
}

// StoreMessage persists a message in BadgerDB, plus an id index so single
// messages can be retrieved or deleted without knowing their timestamp.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := messageKey(message)
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte("msgid:"+message.ID.String()), key)
	})
}

// GetMessages retrieves messages for a conversation using a reverse prefix
// scan, newest first. Thanks to the padded timestamp in the key, messages
// are naturally sorted by time. It stops collecting once the configured
// limitMessages is reached and returns an opaque cursor for the next page.
func (m MessageRepository) GetMessages(conversationID string, cursor *string) ([]DiskMessage, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	diskMessages := make([]DiskMessage, 0, len(rawMessages))
	for _, raw := range rawMessages {
		var message DiskMessage
		if err = json.Unmarshal(raw, &message); err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	// A short or empty page means the scan exhausted the conversation,
	// so there is no next page to point at.
	if lastKey == "" || m.limitMessages == nil || len(diskMessages) < *m.limitMessages {
		return diskMessages, nil, nil
	}
	return diskMessages, &lastKey, nil
}

func (m MessageRepository) GetMessage(conversationID, messageID string) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := m.resolveMessageKey(txn, conversationID, messageID)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return errors.ErrMessageNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		})
	})
	return message, err
}

func (m MessageRepository) DeleteMessage(conversationID, messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		key, err := m.resolveMessageKey(txn, conversationID, messageID)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte("msgid:" + messageID))
	})
}

// resolveMessageKey maps a message id to its timestamped primary key and
// checks the message belongs to the expected conversation.
func (m MessageRepository) resolveMessageKey(txn *badger.Txn, conversationID, messageID string) ([]byte, error) {
	item, err := txn.Get([]byte("msgid:" + messageID))
	if err != nil {
		return nil, errors.ErrMessageNotFound
	}
	var key []byte
	if err := item.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return nil, err
	}
	expectedPrefix := []byte("msg:" + conversationID + ":")
	if len(key) < len(expectedPrefix) || string(key[:len(expectedPrefix)]) != string(expectedPrefix) {
		return nil, errors.ErrMessageNotFound
	}
	return key, nil
}
