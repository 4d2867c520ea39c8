package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"duochat/auth"
	"duochat/moderation"
	"duochat/realtime"
	"duochat/realtime/relay"
	"duochat/repositories"
	"duochat/rest"
	"duochat/services"
)

// BaseSuite boots the whole service in-process: real badger store, real
// services, real websocket gateway, all behind one httptest server.
type BaseSuite struct {
	suite.Suite
	Config Config

	Server  *httptest.Server
	Gateway *realtime.Gateway
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseSuite) SetupTest() {
	auth.SetSigningKey("e2e-secret")

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db)
	conversations := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	bridge := repositories.NewStorageBridge(conversations, messages)

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())

	registry := realtime.NewRegistry(log)
	broadcaster := realtime.NewBroadcaster(registry, relay.NewNoop(), log)
	presence := realtime.NewPresenceTracker(broadcaster, log)
	router := realtime.NewRouter(bridge, broadcaster, &moderator, log)
	s.Gateway = realtime.NewGateway(ctx, bridge, registry, presence, router, log)

	authService := services.NewAuthService(users, time.Hour)
	chatService := services.NewChatService(conversations, messages, users, bridge, broadcaster, &moderator, log)

	mux := http.NewServeMux()
	rest.NewHandler(authService, chatService, log).Register(mux)
	mux.HandleFunc("GET /chat/ws/{conversationID}", s.Gateway.HandleWS)

	s.Server = httptest.NewServer(mux)
	s.T().Cleanup(s.Server.Close)
	s.T().Cleanup(s.Gateway.Shutdown)
	s.T().Cleanup(cancel)
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs one HTTP call against the in-process server, logging the
// round trip and, with E2E_DEBUG_JSON, the full bodies.
func (s *BaseSuite) Call(method, path, token string, body any) (*http.Response, []byte) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.Server.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var respBody bytes.Buffer
	_, err = respBody.ReadFrom(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, respBody.String())
	}
	s.T().Log(logBuilder.String())

	return resp, respBody.Bytes()
}

// WSURL converts the server base URL into the websocket endpoint for a
// conversation.
func (s *BaseSuite) WSURL(conversationID, token string) string {
	url := strings.Replace(s.Server.URL, "http://", "ws://", 1)
	return url + "/chat/ws/" + conversationID + "?token=" + token
}
