// Package protocol is the envelope codec of the transport boundary.
// Inbound UTF-8 JSON frames are decoded into typed commands; outbound
// events are serialized into the envelope shared by every msg_type,
// with inapplicable fields passed through as null.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/domain/event"
	errs "chat-relay/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type MsgType string

const (
	MsgJoined  MsgType = "joined"
	MsgMessage MsgType = "message"
	MsgLeave   MsgType = "leave"
)

// TimestampLayout is the textual representation of instants on the wire.
const TimestampLayout = time.RFC3339Nano

var validate = validator.New()

// Inbound is the raw client frame before conditional validation.
type Inbound struct {
	MsgType  MsgType `json:"msg_type" validate:"required"`
	Message  string  `json:"message,omitempty"`
	UserID   string  `json:"user_id,omitempty"`
	Username string  `json:"username,omitempty"`
	Lang     string  `json:"lang,omitempty" validate:"omitempty,len=2"`
}

// Command is the decoded, validated form of an inbound envelope.
// The set of variants is closed; the dispatcher switches over it
// exhaustively.
type Command interface {
	isCommand()
}

// JoinCommand registers a user in the session's room. An empty UserID
// instructs the server to create the user from Username and Lang.
type JoinCommand struct {
	UserID   string
	Username string
	Lang     string
}

// PostCommand appends a message to the room history and broadcasts it.
type PostCommand struct {
	UserID  string
	Content string
	Lang    string
}

// LeaveCommand removes the user's membership and closes the session.
type LeaveCommand struct {
	UserID string
}

func (JoinCommand) isCommand()  {}
func (PostCommand) isCommand()  {}
func (LeaveCommand) isCommand() {}

// Decode parses and validates a single inbound frame. A failure here is
// fatal for that frame only: the caller drops it and keeps the session.
func Decode(data []byte) (Command, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMalformedEnvelope, err)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMalformedEnvelope, err)
	}

	switch in.MsgType {
	case MsgJoined:
		if in.UserID == "" && in.Username == "" {
			return nil, fmt.Errorf("%w: joined requires user_id or username", errs.ErrMalformedEnvelope)
		}
		return JoinCommand{UserID: in.UserID, Username: in.Username, Lang: in.Lang}, nil
	case MsgMessage:
		if in.UserID == "" {
			return nil, fmt.Errorf("%w: message requires user_id", errs.ErrMalformedEnvelope)
		}
		if in.Message == "" {
			return nil, fmt.Errorf("%w: message requires content", errs.ErrMalformedEnvelope)
		}
		return PostCommand{UserID: in.UserID, Content: in.Message, Lang: in.Lang}, nil
	case MsgLeave:
		if in.UserID == "" {
			return nil, fmt.Errorf("%w: leave requires user_id", errs.ErrMalformedEnvelope)
		}
		return LeaveCommand{UserID: in.UserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownMsgType, in.MsgType)
	}
}

// Outbound is the server frame broadcast to every group member.
// Pointer fields keep inapplicable values as JSON null.
type Outbound struct {
	MsgType   MsgType `json:"msg_type"`
	Message   *string `json:"message"`
	UserID    *string `json:"user_id"`
	Username  *string `json:"username"`
	Lang      *string `json:"lang"`
	Timestamp *string `json:"timestamp"`
}

// FromEvent maps a broadcast event onto the outbound envelope.
func FromEvent(e event.DomainEvent) (Outbound, error) {
	switch evt := e.(type) {
	case event.UserJoined:
		return Outbound{
			MsgType:   MsgJoined,
			UserID:    lo.ToPtr(evt.UserID),
			Username:  lo.ToPtr(evt.Username),
			Lang:      lo.ToPtr(evt.Lang),
			Timestamp: lo.ToPtr(evt.At.Format(TimestampLayout)),
		}, nil
	case event.MessagePosted:
		return Outbound{
			MsgType:   MsgMessage,
			Message:   lo.ToPtr(evt.Content),
			UserID:    lo.ToPtr(evt.UserID),
			Lang:      lo.ToPtr(evt.Lang),
			Timestamp: lo.ToPtr(evt.At.Format(TimestampLayout)),
		}, nil
	case event.UserLeft:
		return Outbound{
			MsgType:   MsgLeave,
			UserID:    lo.ToPtr(evt.UserID),
			Timestamp: lo.ToPtr(evt.At.Format(TimestampLayout)),
		}, nil
	default:
		return Outbound{}, fmt.Errorf("no envelope for event %T", e)
	}
}

// Encode serializes the outbound envelope to a UTF-8 JSON text frame.
func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}
