package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
	errs "chat-relay/errors"
)

func TestDecode_Joined(t *testing.T) {
	req := require.New(t)

	// When decoding a join frame with a username only
	cmd, err := Decode([]byte(`{"msg_type":"joined","username":"alice","lang":"fr"}`))

	// Then the server is asked to create the user
	req.NoError(err)
	req.Equal(JoinCommand{Username: "alice", Lang: "fr"}, cmd)
}

func TestDecode_Message(t *testing.T) {
	req := require.New(t)

	cmd, err := Decode([]byte(`{"msg_type":"message","user_id":"u1","message":"hello room"}`))

	req.NoError(err)
	req.Equal(PostCommand{UserID: "u1", Content: "hello room"}, cmd)
}

func TestDecode_Leave(t *testing.T) {
	req := require.New(t)

	cmd, err := Decode([]byte(`{"msg_type":"leave","user_id":"u1"}`))

	req.NoError(err)
	req.Equal(LeaveCommand{UserID: "u1"}, cmd)
}

func TestDecode_RejectsUnknownMsgType(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte(`{"msg_type":"typing","user_id":"u1"}`))

	req.ErrorIs(err, errs.ErrUnknownMsgType)
}

func TestDecode_RejectsMalformedFrames(t *testing.T) {
	req := require.New(t)

	frames := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"message":"no type"}`),
		[]byte(`{"msg_type":"message","user_id":"u1"}`),
		[]byte(`{"msg_type":"message","message":"no author"}`),
		[]byte(`{"msg_type":"joined"}`),
		[]byte(`{"msg_type":"leave"}`),
		[]byte(`{"msg_type":"joined","username":"alice","lang":"french"}`),
	}
	for _, frame := range frames {
		_, err := Decode(frame)
		req.ErrorIs(err, errs.ErrMalformedEnvelope, string(frame))
	}
}

func TestFromEvent_MessageKeepsNullFields(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	// Given a posted message event
	posted := event.MessagePosted{
		ID:       uuid.New(),
		RoomName: "lobby",
		UserID:   "u1",
		Content:  "bonjour",
		Lang:     "fr",
		At:       at,
	}

	// When mapping and serializing it
	out, err := FromEvent(posted)
	req.NoError(err)
	data, err := out.Encode()
	req.NoError(err)

	// Then inapplicable fields are explicit nulls on the wire
	var raw map[string]json.RawMessage
	req.NoError(json.Unmarshal(data, &raw))
	req.Equal("null", string(raw["username"]))
	req.Equal(`"bonjour"`, string(raw["message"]))
	req.Equal(`"message"`, string(raw["msg_type"]))
	req.Equal(`"`+at.Format(TimestampLayout)+`"`, string(raw["timestamp"]))
}

func TestFromEvent_JoinAndLeave(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	joined, err := FromEvent(event.UserJoined{RoomName: "lobby", UserID: "u1", Username: "alice", Lang: "en", At: at})
	req.NoError(err)
	req.Equal(MsgJoined, joined.MsgType)
	req.Nil(joined.Message)
	req.Equal("alice", *joined.Username)

	left, err := FromEvent(event.UserLeft{RoomName: "lobby", UserID: "u1", At: at})
	req.NoError(err)
	req.Equal(MsgLeave, left.MsgType)
	req.Nil(left.Message)
	req.Nil(left.Username)
	req.Equal("u1", *left.UserID)
}
