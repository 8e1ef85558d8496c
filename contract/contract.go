//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused. The supervisor owns restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
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

// EventSink receives broadcast events. A sink must never block fan-out:
// implementations either buffer or drop under backpressure.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps fan-out group tags to the live sessions subscribed
// under them. It tracks connections, not persisted membership.
type IRegistry interface {
	Subscribe(sessionID string, room domain.RoomName, sink EventSink)
	Unsubscribe(sessionID string, room domain.RoomName)
	SinksForRoom(room domain.RoomName) []EventSink
}

// IPublisher hands an event to the broadcast router. Delivery is
// best-effort FIFO per room.
type IPublisher interface {
	Publish(ctx context.Context, e event.DomainEvent) error
}

// IStorage is the durable CRUD collaborator for users, rooms,
// membership and messages. Every call is its own unit; the core never
// spans a transaction over several of them.
type IStorage interface {
	FindUser(id string) (domain.User, error)
	CreateUser(name, lang string) (domain.User, error)

	FindRoom(name domain.RoomName) (domain.Room, error)
	// CreateRoom is idempotent: a concurrent duplicate create must not
	// error or duplicate the row.
	CreateRoom(name domain.RoomName) error
	// DeleteRoom is a no-op when the room is absent.
	DeleteRoom(name domain.RoomName) error

	RoomMemberCount(name domain.RoomName) (int, error)
	AddMember(userID string, room domain.RoomName) error
	RemoveMember(userID string, room domain.RoomName) error

	// CreateMessage persists a row with a server-assigned timestamp and
	// returns the stored message, timestamp included.
	CreateMessage(authorID string, room domain.RoomName, content, lang string) (domain.Message, error)
	Messages(room domain.RoomName, cursor *string) ([]domain.Message, *string, error)
}
