package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"duochat/domain"
	"duochat/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 16 * 1024

	sendBufferSize = 256
)

// SessionState is the lifecycle position of one connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

// Session owns one live socket: its authentication state, its conversation
// membership, and its send/receive lifecycle. A session serves exactly one
// conversation for its lifetime; the group key is derived once at handshake
// and never recomputed.
type Session struct {
	id             uuid.UUID
	identity       domain.Identity
	conversationID string
	groupKey       string

	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	// onMessage receives every inbound frame while the session is Active.
	onMessage func(ctx context.Context, s *Session, payload []byte)
	// onClose fires exactly once, from whichever code path detects
	// closure first, and only after a successful activation.
	onClose func(s *Session)

	log *slog.Logger
}

func NewSession(parentCtx context.Context, conn *websocket.Conn, identity domain.Identity, conversationID string, log *slog.Logger) *Session {
	id := uuid.New()
	ctx, cancel := context.WithCancel(parentCtx)
	s := &Session{
		id:             id,
		identity:       identity,
		conversationID: conversationID,
		groupKey:       domain.GroupKey(conversationID),
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		log: log.With(
			slog.String("sessionID", id.String()),
			slog.String("userID", identity.ID),
		),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) Key() string               { return s.id.String() }
func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) ConversationID() string    { return s.conversationID }
func (s *Session) GroupKey() string          { return s.groupKey }
func (s *Session) State() SessionState       { return SessionState(s.state.Load()) }

// Done is closed when the session is fully terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) SetOnMessage(handler func(ctx context.Context, s *Session, payload []byte)) {
	s.onMessage = handler
}

func (s *Session) SetOnClose(handler func(s *Session)) {
	s.onClose = handler
}

// Activate marks the handshake as fully validated. It must be called before
// the session is registered in the group registry so the session accepts
// deliveries as soon as it is visible to a broadcast; a session that never
// activates is torn down without deregistration or presence announcements.
func (s *Session) Activate() {
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// Run starts the read and write pumps. It returns immediately; use Done to
// wait for termination.
func (s *Session) Run() {
	go s.readPump()
	go s.writePump()
}

// Deliver queues a payload for the client. It never blocks: when the
// buffer is full the session is considered dead and the caller evicts it.
func (s *Session) Deliver(payload []byte) error {
	if s.State() != StateActive {
		return errors.ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	case <-s.ctx.Done():
		return errors.ErrSessionClosed
	default:
		return errors.ErrSessionClosed
	}
}

// readPump pumps inbound frames from the socket to the message handler.
func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("socket closed unexpectedly", "error", err)
			}
			return
		}
		if s.onMessage != nil {
			s.onMessage(s.ctx, s, payload)
		}
	}
}

// writePump pumps queued payloads to the socket and keeps the connection
// alive with periodic pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Close transitions the session to Closing exactly once, regardless of
// which code path invokes it (read error, write error, server shutdown),
// then releases the socket and fires the onClose callback for sessions
// that reached Active.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		wasActive := s.state.Swap(int32(StateClosing)) == int32(StateActive)

		s.cancel()
		_ = s.conn.Close()

		if wasActive && s.onClose != nil {
			s.onClose(s)
		}

		s.state.Store(int32(StateClosed))
		close(s.done)
		s.log.Debug("session closed")
	})
}
