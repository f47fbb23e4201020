//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
)

// MessageStore is the durable append-only log of chat messages.
// Append assigns the next strictly increasing id; ReadRecent returns
// up to limit of the newest messages in ascending id order.
type MessageStore interface {
	Append(msg domain.ChatMessage) (domain.StoredMessage, error)
	ReadRecent(limit int) ([]domain.StoredMessage, error)
}

// EventSink is the hub-facing edge of one live connection.
// Deliver enqueues a message for the session and must never block:
// a full or closed buffer is reported as a delivery fault.
// Close tears the session down; its teardown path invokes the hub's
// Leave exactly once.
type EventSink interface {
	ID() string
	Deliver(msg domain.ChatMessage) error
	Close() error
}

// IRegistry owns the live set of sessions. Snapshot returns a stable
// copy so fan-out never iterates the map under concurrent join/leave.
type IRegistry interface {
	Subscribe(sessionID string, sink EventSink)
	Unsubscribe(sessionID string) bool
	Snapshot() []EventSink
	Len() int
}

// GifSearcher queries the external image search provider.
type GifSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.GifResult, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
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
