package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"duochat/errors"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	id, err := repository.CreateUser("alice", "$argon2id$fake")
	req.NoError(err)
	req.NotEmpty(id)

	byName, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, byName.ID)
	req.Equal("$argon2id$fake", byName.PasswordHash)

	byID, err := repository.GetUserByID(id)
	req.NoError(err)
	req.Equal(byName, byID)
}

func Test_Duplicate_Username_Is_Rejected(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	_, err := repository.CreateUser("alice", "hash1")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "hash2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_List_Users(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	_, err := repository.CreateUser("alice", "h")
	req.NoError(err)
	_, err = repository.CreateUser("bob", "h")
	req.NoError(err)

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Len(users, 2)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID("no-such-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
