// Package runtime owns the live coordination layer: the fan-out
// registry, the broadcast router, the per-connection sessions and the
// command dispatcher. It contains no storage schema and no transport
// framing.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

type Set map[string]struct{}

// Registry is the in-memory mapping from a room's group tag to the
// sessions currently subscribed under it. It tracks connections, not
// persisted membership: the authoritative member count lives in
// storage.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]contract.EventSink // session id -> sink
	groupMembers map[string]Set                // group tag -> session ids
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]contract.EventSink),
		groupMembers: make(map[string]Set),
	}
}

// SinksForRoom retrieves all active communication channels for a room.
// It performs a two-step lookup:
//  1. Identifies session ids subscribed under the room's group tag.
//  2. Resolves those ids into actual EventSinks via the sessions map.
//
// Returns nil if the group doesn't exist or has no members.
func (r *Registry) SinksForRoom(room domain.RoomName) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groupMembers[room.GroupTag()]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for sessionID := range members {
		if sink, exists := r.sessions[sessionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a session's sink under a room's group tag.
// The group is initialized on the fly on first join.
func (r *Registry) Subscribe(sessionID string, room domain.RoomName, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = sink

	tag := room.GroupTag()
	if _, ok := r.groupMembers[tag]; !ok {
		r.groupMembers[tag] = make(Set)
	}
	r.groupMembers[tag][sessionID] = struct{}{}
}

// Unsubscribe removes a session from the registry and its group.
// Empty groups are deleted so the map doesn't leak over time. Safe to
// call for a session that was already removed.
func (r *Registry) Unsubscribe(sessionID string, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	tag := room.GroupTag()
	if members, ok := r.groupMembers[tag]; ok {
		delete(members, sessionID)

		if len(members) == 0 {
			delete(r.groupMembers, tag)
		}
	}
}

// ActiveConnections reports the number of live sessions in a room's
// group. Diagnostic only; room garbage collection uses the storage
// member count instead.
func (r *Registry) ActiveConnections(room domain.RoomName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groupMembers[room.GroupTag()])
}
