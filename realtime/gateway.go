package realtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duochat/auth"
	"duochat/contract"
	"duochat/errors"
)

// Close codes sent on handshake refusal. Each failure condition gets a
// distinct code so clients can branch on the reason.
const (
	CloseTokenExpired   = 4000
	CloseTokenInvalid   = 4001
	CloseTokenMissing   = 4002
	CloseNotParticipant = 4003
)

// Gateway accepts websocket connections, validates the handshake, and
// wires accepted sessions into the registry, presence tracker, and router.
type Gateway struct {
	bridge   contract.Bridge
	registry *Registry
	presence *PresenceTracker
	router   *Router

	upgrader websocket.Upgrader
	wg       sync.WaitGroup
	ctx      context.Context

	log *slog.Logger
}

func NewGateway(ctx context.Context, bridge contract.Bridge, registry *Registry, presence *PresenceTracker, router *Router, log *slog.Logger) *Gateway {
	return &Gateway{
		bridge:   bridge,
		registry: registry,
		presence: presence,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // In production, validate the origin here.
			},
		},
		ctx: ctx,
		log: log.With(slog.String("component", "gateway")),
	}
}

// HandleWS serves the handshake route. The conversation id is a path
// segment and the bearer credential a `token` query parameter.
//
// Authentication is evaluated exactly once here; there is no
// re-authentication mid-session. A session never appears in the registry
// unless every handshake check passed.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationID")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	identity, err := auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		g.refuse(conn, closeCodeFor(err), err.Error())
		return
	}

	connLog := g.log.With(slog.String("userID", identity.ID), slog.String("conversationID", conversationID))

	conv, err := g.bridge.ResolveConversation(r.Context(), conversationID)
	if err != nil {
		connLog.Warn("handshake refused: unknown conversation")
		g.refuse(conn, CloseNotParticipant, "unknown conversation")
		return
	}
	if !g.bridge.IsParticipant(r.Context(), identity.ID, conv) {
		connLog.Warn("handshake refused: not a participant")
		g.refuse(conn, CloseNotParticipant, "not a participant")
		return
	}

	session := NewSession(g.ctx, conn, identity, conversationID, g.log)
	session.SetOnMessage(g.router.HandleInbound)
	session.SetOnClose(func(s *Session) {
		// Runs exactly once per activated session, from whichever path
		// detects closure first.
		g.registry.Leave(s.GroupKey(), s)
		g.presence.Offline(g.ctx, s.ConversationID(), s.Identity())
		connLog.Info("session deregistered")
	})

	// Activate before joining: the moment the session is visible to a
	// broadcast it must already accept deliveries, otherwise a broadcast
	// landing mid-handshake would evict the brand-new member.
	session.Activate()
	g.registry.Join(session.GroupKey(), session)
	g.presence.Online(g.ctx, conversationID, identity)

	connLog.Info("session established", "sessionID", session.Key())

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		<-session.Done()
	}()
	session.Run()
}

// refuse closes a freshly upgraded socket with a refusal code. The
// session was never registered, so there is nothing to roll back.
func (g *Gateway) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

func closeCodeFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrTokenExpired):
		return CloseTokenExpired
	case stderrors.Is(err, errors.ErrTokenMissing):
		return CloseTokenMissing
	default:
		return CloseTokenInvalid
	}
}

// Shutdown closes every live session and waits for their pumps to drain.
func (g *Gateway) Shutdown() {
	for _, m := range g.registry.AllMembers() {
		if s, ok := m.(*Session); ok {
			s.Close()
		}
	}
	g.wg.Wait()
}
