package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type ChatScenarioSuite struct {
	BaseSuite
}

func TestChatScenarioSuite(t *testing.T) {
	suite.Run(t, new(ChatScenarioSuite))
}

func (s *ChatScenarioSuite) register(username string) string {
	resp, body := s.Call(http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"password": "ComplexPass123!",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(body, &out))
	return out.Token
}

func (s *ChatScenarioSuite) findUserID(token, username string) string {
	resp, body := s.Call(http.MethodGet, "/api/users", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var users []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	s.Require().NoError(json.Unmarshal(body, &users))
	for _, u := range users {
		if u.Username == username {
			return u.ID
		}
	}
	s.Require().Failf("user not found", "username=%s", username)
	return ""
}

func (s *ChatScenarioSuite) dial(conversationID, token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(s.WSURL(conversationID, token), nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *ChatScenarioSuite) readUntil(conn *websocket.Conn, wantType string) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		_, payload, err := conn.ReadMessage()
		s.Require().NoError(err)

		var decoded map[string]any
		s.Require().NoError(json.Unmarshal(payload, &decoded))
		if decoded["type"] == wantType {
			return decoded
		}
	}
}

// TestFullChatFlow walks the happy path of the product: two accounts, one
// conversation, live messaging over websocket, history over REST.
func (s *ChatScenarioSuite) TestFullChatFlow() {
	s.Step("Register accounts")
	aliceToken := s.register("alice")
	bobToken := s.register("bob")
	bobID := s.findUserID(aliceToken, "bob")

	s.Step("Create conversation")
	resp, body := s.Call(http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var conv struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &conv))

	s.Step("Connect both parties over websocket")
	aliceConn := s.dial(conv.ID, aliceToken)
	s.readUntil(aliceConn, "online_status") // alice sees her own arrival

	bobConn := s.dial(conv.ID, bobToken)
	bobArrival := s.readUntil(aliceConn, "online_status")
	s.Equal("online", bobArrival["status"])

	s.Step("Exchange a live message")
	s.Require().NoError(aliceConn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"chat_message","message":"salut bob"}`)))

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		got := s.readUntil(conn, "chat_message")
		s.Equal("salut bob", got["message"])
		s.Equal("alice", got["user"].(map[string]any)["username"])
		s.NotEmpty(got["timestamp"])
	}

	s.Step("Moderated content is censored before fan-out")
	s.Require().NoError(bobConn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"chat_message","message":"idiot"}`)))
	censored := s.readUntil(aliceConn, "chat_message")
	s.Equal("*****", censored["message"])

	s.Step("History is readable over REST")
	resp, body = s.Call(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", bobToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var page struct {
		Messages []struct {
			Content string `json:"content"`
			Sender  struct {
				Username string `json:"username"`
			} `json:"sender"`
		} `json:"messages"`
	}
	s.Require().NoError(json.Unmarshal(body, &page))
	s.Require().Len(page.Messages, 2)
	// Newest first
	s.Equal("*****", page.Messages[0].Content)
	s.Equal("salut bob", page.Messages[1].Content)
	s.Equal("alice", page.Messages[1].Sender.Username)

	s.Step("Disconnect announces offline")
	s.Require().NoError(bobConn.Close())
	offline := s.readUntil(aliceConn, "online_status")
	s.Equal("offline", offline["status"])
}

// TestRefusedHandshakes verifies the close codes a client can branch on.
func (s *ChatScenarioSuite) TestRefusedHandshakes() {
	s.Step("Register and create conversation")
	aliceToken := s.register("alice")
	s.register("bob")
	bobID := s.findUserID(aliceToken, "bob")
	resp, body := s.Call(http.MethodPost, "/api/conversations", aliceToken, map[string]string{"user_id": bobID})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var conv struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &conv))

	s.Step("Outsider is refused with 4003")
	eveToken := s.register("eve1")
	conn, _, err := websocket.DefaultDialer.Dial(s.WSURL(conv.ID, eveToken), nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	s.Require().True(ok)
	s.Equal(4003, closeErr.Code)
}
