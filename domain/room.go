package domain

// RoomName is the unique key of a Room. It comes straight from the
// connection path, e.g. /ws/chat/lobby/ -> "lobby".
type RoomName string

// Room is a named channel with persisted membership and history.
// Created lazily on first join, deleted when the last member leaves.
// Membership lives in storage; the live fan-out set is tracked separately
// by the runtime registry.
type Room struct {
	Name RoomName
}

// GroupTag is the fan-out address of a room. Every session subscribed
// under this tag receives the room's broadcasts.
func (r RoomName) GroupTag() string {
	return "room:" + string(r)
}
