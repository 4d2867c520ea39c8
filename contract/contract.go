//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"duochat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need for
// manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Bridge is the durable-storage collaborator consumed by the real-time
// core. Resolving a conversation, checking participation, and persisting a
// message may block on storage; callers must never invoke these while
// holding registry locks.
type Bridge interface {
	// ResolveConversation returns the conversation for an id, or
	// errors.ErrConversationNotFound.
	ResolveConversation(ctx context.Context, id string) (domain.Conversation, error)

	// IsParticipant reports whether the user belongs to the conversation.
	IsParticipant(ctx context.Context, userID string, conv domain.Conversation) bool

	// SaveMessage durably stores a message and returns it with the
	// canonical id and timestamp assigned by the store.
	SaveMessage(ctx context.Context, conv domain.Conversation, sender domain.Identity, content string) (domain.Message, error)
}

// Relay is the optional pub/sub substrate used to fan out group events
// across server processes. The in-process registry stays authoritative for
// local sessions; a Relay only carries payloads between processes.
type Relay interface {
	// Publish sends an encoded event for a group key to other processes.
	Publish(ctx context.Context, groupKey string, payload []byte) error

	// Subscribe registers a handler for events published by other
	// processes. The handler must not block.
	Subscribe(handler func(groupKey string, payload []byte)) error

	Close() error
}
