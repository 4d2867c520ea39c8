package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"duochat/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	conv := uuid.NewString()
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{uuid.New(), conv, "alice", "salut", at},
		{uuid.New(), conv, "bob", "hello", at.Add(1 * time.Minute)},
		{uuid.New(), conv, "alice", "ça va ?", at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	fetched, _, err := repository.GetMessages(conv, nil)
	req.NoError(err)
	req.Len(fetched, len(diskMessages))
	// Reverse scan yields newest first
	req.Equal(diskMessages[2], fetched[0])
	req.Equal(diskMessages[0], fetched[2])
}

func Test_Record_Messages_With_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	conv := uuid.NewString()
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{uuid.New(), conv, "alice", "one", at},
		{uuid.New(), conv, "bob", "two", at.Add(1 * time.Minute)},
		{uuid.New(), conv, "alice", "three", at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// First page: the two newest
	page, cursor, err := repository.GetMessages(conv, nil)
	req.NoError(err)
	req.Len(page, limit)
	req.NotNil(cursor)

	// Second page: the remaining oldest message, and no further page
	page, cursor, err = repository.GetMessages(conv, cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("one", page[0].Content)
	req.Nil(cursor)
}

func Test_Empty_Conversation_Has_No_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)

	// When reading a conversation nobody ever wrote to
	page, cursor, err := repository.GetMessages(uuid.NewString(), nil)

	// Then the page is empty and offers no next page
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}

func Test_Messages_Are_Isolated_Per_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	convA := uuid.NewString()
	convB := uuid.NewString()
	at := time.Now().UTC()

	req.NoError(repository.StoreMessage(DiskMessage{uuid.New(), convA, "alice", "for A", at}))
	req.NoError(repository.StoreMessage(DiskMessage{uuid.New(), convB, "bob", "for B", at}))

	fetched, _, err := repository.GetMessages(convA, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("for A", fetched[0].Content)
}

func Test_Get_And_Delete_Message_By_ID(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	conv := uuid.NewString()
	message := DiskMessage{uuid.New(), conv, "alice", "delete me", time.Now().UTC()}
	req.NoError(repository.StoreMessage(message))

	fetched, err := repository.GetMessage(conv, message.ID.String())
	req.NoError(err)
	req.Equal(message, fetched)

	// Deletion through the wrong conversation id is refused
	err = repository.DeleteMessage(uuid.NewString(), message.ID.String())
	req.ErrorIs(err, errors.ErrMessageNotFound)

	req.NoError(repository.DeleteMessage(conv, message.ID.String()))
	_, err = repository.GetMessage(conv, message.ID.String())
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
