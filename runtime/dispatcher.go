package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"

	"github.com/abadojack/whatlanggo"
)

// Dispatcher executes decoded commands against storage and turns the
// results into broadcast events. One instance is shared by all
// sessions; it holds no per-connection state.
type Dispatcher struct {
	log       *slog.Logger
	storage   contract.IStorage
	publisher contract.IPublisher
	moderator *moderation.Moderator
	stats     *observability.Stats

	// BroadcastLeave enables a UserLeft notification to remaining
	// members on an explicit leave. The reference behavior closes
	// without one, so it defaults to off.
	BroadcastLeave bool
}

func NewDispatcher(log *slog.Logger, storage contract.IStorage, publisher contract.IPublisher,
	moderator *moderation.Moderator, stats *observability.Stats) *Dispatcher {
	return &Dispatcher{
		log:       log,
		storage:   storage,
		publisher: publisher,
		moderator: moderator,
		stats:     stats,
	}
}

// EnsureRoom lazily creates the room row on first connect.
func (d *Dispatcher) EnsureRoom(room domain.RoomName) error {
	return d.storage.CreateRoom(room)
}

// Join resolves or creates the user, records the membership and
// broadcasts the join with the resolved user id to the whole room.
func (d *Dispatcher) Join(ctx context.Context, room domain.RoomName, cmd protocol.JoinCommand) (string, error) {
	var user domain.User
	var err error
	if cmd.UserID == "" {
		user, err = d.storage.CreateUser(cmd.Username, cmd.Lang)
	} else {
		user, err = d.storage.FindUser(cmd.UserID)
	}
	if err != nil {
		return "", err
	}

	if err = d.storage.AddMember(user.ID, room); err != nil {
		return "", err
	}

	err = d.publisher.Publish(ctx, event.UserJoined{
		RoomName: room,
		UserID:   user.ID,
		Username: user.Name,
		Lang:     user.Lang,
		At:       time.Now().UTC(),
	})
	return user.ID, err
}

// Post persists the message with a server timestamp and broadcasts the
// stored content verbatim. An absent lang code is detected from the
// content before the row is written.
func (d *Dispatcher) Post(ctx context.Context, room domain.RoomName, cmd protocol.PostCommand) error {
	content := cmd.Content
	if d.moderator != nil {
		content = d.moderator.Censor(content)
	}
	lang := cmd.Lang
	if lang == "" {
		lang = detectLang(content)
	}

	message, err := d.storage.CreateMessage(cmd.UserID, room, content, lang)
	if err != nil {
		return err
	}
	d.stats.MessagePosted()

	return d.publisher.Publish(ctx, event.MessagePosted{
		ID:       message.ID,
		RoomName: room,
		UserID:   cmd.UserID,
		Content:  message.Content,
		Lang:     message.Lang,
		At:       message.At,
	})
}

// Leave removes the persisted membership. The caller closes the
// session afterward; nothing is broadcast on this path unless the
// BroadcastLeave policy is enabled. A failed removal is surfaced, never
// swallowed by the close.
func (d *Dispatcher) Leave(ctx context.Context, room domain.RoomName, cmd protocol.LeaveCommand) error {
	if err := d.storage.RemoveMember(cmd.UserID, room); err != nil {
		return err
	}
	if !d.BroadcastLeave {
		return nil
	}
	return d.publisher.Publish(ctx, event.UserLeft{
		RoomName: room,
		UserID:   cmd.UserID,
		At:       time.Now().UTC(),
	})
}

// ReleaseRoom runs the disconnect-side garbage collection: when the
// persisted member count reached zero, the room row is deleted. The
// count check and the delete are not atomic; two simultaneous
// last-leavers may both see zero, which is safe because DeleteRoom is a
// no-op on an absent room.
func (d *Dispatcher) ReleaseRoom(room domain.RoomName) error {
	count, err := d.storage.RoomMemberCount(room)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err = d.storage.DeleteRoom(room); err != nil {
		return err
	}
	d.stats.RoomDeleted()
	d.log.Debug("Room deleted after last leave", "room", room)
	return nil
}

// detectLang guesses the 2-letter code of the message content,
// falling back to the default when detection is inconclusive.
func detectLang(content string) string {
	info := whatlanggo.Detect(content)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return domain.DefaultLang
}
