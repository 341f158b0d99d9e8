// Package chat provides the process-wide room registry.
package chat

import (
	"log"
	"sync"
)

// Registry maps room names to live rooms. Rooms are created lazily on first
// join and deregistered when their last member leaves. The registry mutex is
// held across the membership mutation so that a concurrent join can never
// land in a room that is being deregistered: lookup, count check, and map
// removal form one atomic decision. Lock order is always registry before
// room.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds the session to the named room, creating the room if it does not
// exist, and announces the join to existing members. A deregistered room is
// never resurrected; a later join with the same name gets a fresh instance.
func (reg *Registry) Join(name string, s *Session) *Room {
	reg.mu.Lock()
	room, ok := reg.rooms[name]
	if !ok {
		room = newRoom(name)
		reg.rooms[name] = room
		log.Printf("room created: %q", name)
	}
	room.add(s)
	reg.mu.Unlock()

	room.announceJoin(s)
	return room
}

// Leave removes the session from the named room, deregistering the room if
// it is now empty, and announces the departure to remaining members. It is
// idempotent: leaving a room the session is no longer a member of is a no-op
// apart from the empty-room check.
func (reg *Registry) Leave(name string, s *Session) bool {
	reg.mu.Lock()
	room, ok := reg.rooms[name]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	removed := room.remove(s)
	if room.size() == 0 {
		delete(reg.rooms, name)
		log.Printf("room removed (empty): %q", name)
	}
	reg.mu.Unlock()

	if removed {
		close(s.feed)
		close(s.inbox)
		room.announceLeave(s.name)
	}
	return removed
}

// Lookup returns the live room with the given name, or nil. Sessions hold
// their current room as a name only and resolve it here, so room lifetime is
// governed solely by membership count.
func (reg *Registry) Lookup(name string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[name]
}

// Len reports the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
