package rest

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"duochat/errors"
	"duochat/services"
)

// Handler serves the account and conversation REST API. Real-time traffic
// does not go through here; the websocket gateway registers its own route.
type Handler struct {
	authService services.IAuthService
	chatService services.IChatService
	log         *slog.Logger
}

func NewHandler(authService services.IAuthService, chatService services.IChatService, log *slog.Logger) *Handler {
	return &Handler{
		authService: authService,
		chatService: chatService,
		log:         log.With(slog.String("component", "rest")),
	}
}

// Register mounts every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("GET /api/users", RequireAuth(h.handleListUsers))
	mux.HandleFunc("GET /api/conversations", RequireAuth(h.handleListConversations))
	mux.HandleFunc("POST /api/conversations", RequireAuth(h.handleCreateConversation))
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages", RequireAuth(h.handleListMessages))
	mux.HandleFunc("POST /api/conversations/{conversationID}/messages", RequireAuth(h.handlePostMessage))
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages/{messageID}", RequireAuth(h.handleGetMessage))
	mux.HandleFunc("DELETE /api/conversations/{conversationID}/messages/{messageID}", RequireAuth(h.handleDeleteMessage))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := h.authService.ListUsers()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identities)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	conversations, err := h.chatService.ListConversations(identity.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

type createConversationRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conv, err := h.chatService.CreateConversation(identity, req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

type messagesPage struct {
	Messages []services.MessageView `json:"messages"`
	Next     *string                `json:"next,omitempty"`
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	conversationID := r.PathValue("conversationID")

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	views, next, err := h.chatService.GetMessages(identity, conversationID, cursor)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesPage{Messages: views, Next: next})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	conversationID := r.PathValue("conversationID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	view, err := h.chatService.PostMessage(r.Context(), identity, conversationID, req.Content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	view, err := h.chatService.GetMessage(identity, r.PathValue("conversationID"), r.PathValue("messageID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	err := h.chatService.DeleteMessage(identity, r.PathValue("conversationID"), r.PathValue("messageID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps domain sentinels to HTTP statuses. Unknown errors
// become opaque 500s; details stay in the logs.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrSelfConversation):
		writeError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case stderrors.Is(err, errors.ErrNotParticipant),
		stderrors.Is(err, errors.ErrNotSender):
		writeError(w, http.StatusForbidden, err.Error())
	case stderrors.Is(err, errors.ErrUserNotFound),
		stderrors.Is(err, errors.ErrConversationNotFound),
		stderrors.Is(err, errors.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrUserAlreadyExists),
		stderrors.Is(err, errors.ErrConversationExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
