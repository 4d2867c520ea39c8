package rest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"duochat/auth"
	"duochat/repositories"
	"duochat/services"
)

// restFixture runs the API over real repositories backed by a throwaway
// badger store, so handler tests exercise the full stack below them.
type restFixture struct {
	server *httptest.Server
}

func newRestFixture(t *testing.T) *restFixture {
	t.Helper()
	auth.SetSigningKey("rest-test-secret")

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db)
	conversations := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	bridge := repositories.NewStorageBridge(conversations, messages)

	authService := services.NewAuthService(users, time.Hour)
	chatService := services.NewChatService(conversations, messages, users, bridge, nil, nil, log)

	mux := http.NewServeMux()
	NewHandler(authService, chatService, log).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &restFixture{server: server}
}

func (f *restFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *restFixture) register(t *testing.T, username string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"password": "ComplexPass123!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]string](t, resp)["token"]
}

func (f *restFixture) userID(t *testing.T, token, username string) string {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, u := range decode[[]map[string]string](t, resp) {
		if u["username"] == username {
			return u["id"]
		}
	}
	t.Fatalf("user %s not listed", username)
	return ""
}

func Test_Register_Then_Login(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	f.register(t, "alice")

	resp := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "ComplexPass123!",
	})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NotEmpty(decode[map[string]string](t, resp)["token"])
}

func Test_Register_Duplicate_Username_Conflicts(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	f.register(t, "alice")

	resp := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice",
		"password": "ComplexPass123!",
	})
	req.Equal(http.StatusConflict, resp.StatusCode)
}

func Test_Login_With_Wrong_Password_Is_Unauthorized(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	f.register(t, "alice")

	resp := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "WrongPass123!",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Protected_Routes_Require_A_Token(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)

	resp := f.do(t, http.MethodGet, "/api/conversations", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Conversation_Lifecycle(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	aliceToken := f.register(t, "alice")
	f.register(t, "bob")
	bobID := f.userID(t, aliceToken, "bob")

	// When creating a conversation with bob
	resp := f.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusCreated, resp.StatusCode)
	conv := decode[map[string]any](t, resp)
	req.Len(conv["participants"], 2)

	// Then it shows up in alice's listing
	resp = f.do(t, http.MethodGet, "/api/conversations", aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decode[[]map[string]any](t, resp), 1)

	// And a second conversation with the same pair is rejected
	resp = f.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusConflict, resp.StatusCode)
}

func Test_Conversation_With_Oneself_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	aliceToken := f.register(t, "alice")
	aliceID := f.userID(t, aliceToken, "alice")

	resp := f.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": aliceID})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_Message_Lifecycle(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	aliceToken := f.register(t, "alice")
	bobToken := f.register(t, "bob")
	bobID := f.userID(t, aliceToken, "bob")

	resp := f.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusCreated, resp.StatusCode)
	convID := decode[map[string]any](t, resp)["id"].(string)

	// When alice posts a message
	resp = f.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", aliceToken,
		map[string]string{"content": "salut bob"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	posted := decode[map[string]any](t, resp)
	messageID := posted["id"].(string)
	req.Equal("salut bob", posted["content"])

	// Then bob can read it
	resp = f.do(t, http.MethodGet, "/api/conversations/"+convID+"/messages", bobToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	page := decode[map[string]any](t, resp)
	req.Len(page["messages"], 1)

	// But bob cannot delete alice's message
	resp = f.do(t, http.MethodDelete, "/api/conversations/"+convID+"/messages/"+messageID, bobToken, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	// While alice can
	resp = f.do(t, http.MethodDelete, "/api/conversations/"+convID+"/messages/"+messageID, aliceToken, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/conversations/"+convID+"/messages/"+messageID, aliceToken, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_Outsider_Cannot_Read_Messages(t *testing.T) {
	req := require.New(t)
	f := newRestFixture(t)
	aliceToken := f.register(t, "alice")
	eveToken := f.register(t, "eve1")
	f.register(t, "bob")
	bobID := f.userID(t, aliceToken, "bob")

	resp := f.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusCreated, resp.StatusCode)
	convID := decode[map[string]any](t, resp)["id"].(string)

	resp = f.do(t, http.MethodGet, "/api/conversations/"+convID+"/messages", eveToken, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}
