package errors

import "fmt"

var (
	// Authentication outcomes. The websocket handshake maps each of these
	// to a distinct close code so clients can branch on the reason.
	ErrTokenExpired = fmt.Errorf("token expired")
	ErrTokenInvalid = fmt.Errorf("token invalid")
	ErrTokenMissing = fmt.Errorf("token missing")

	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")

	ErrUserAlreadyExists    = fmt.Errorf("user already exists")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrConversationExists   = fmt.Errorf("a conversation already exists between these participants")
	ErrSelfConversation     = fmt.Errorf("a conversation needs two distinct participants")
	ErrNotParticipant       = fmt.Errorf("user is not a participant of this conversation")
	ErrNotSender            = fmt.Errorf("user is not the sender of this message")
	ErrMessageNotFound      = fmt.Errorf("message not found")

	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
	ErrSessionClosed = fmt.Errorf("session closed")
)
