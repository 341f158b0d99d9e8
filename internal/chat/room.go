// Package chat implements rooms: a membership set plus ordered broadcast
// fan-out to every member's feed.
package chat

import (
	"log"
	"sort"
	"strings"
	"sync"
)

// Room is a named group of sessions sharing a broadcast channel. Membership
// mutation and broadcast both take the write lock, so for any one room every
// member observes enqueued messages in a single total order.
//
// Rooms are created and destroyed by the Registry; a Room never outlives its
// last member.
type Room struct {
	name    string
	mu      sync.RWMutex
	members map[*Session]bool
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[*Session]bool),
	}
}

// Name returns the room's unique, case-sensitive name.
func (r *Room) Name() string { return r.name }

// add inserts a session into the membership set. The registry calls this
// under its own lock so that create-and-join is atomic with respect to
// leave-and-deregister.
func (r *Room) add(s *Session) {
	r.mu.Lock()
	r.members[s] = true
	s.closed = false
	count := len(r.members)
	r.mu.Unlock()

	log.Printf("%s joined room %q (members: %d)", s.name, r.name, count)
}

// remove deletes a session from the membership set and marks it closed so no
// producer enqueues past this point. It reports whether the session was still
// a member. The caller closes the session's queues afterwards.
func (r *Room) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[s] {
		return false
	}
	delete(r.members, s)
	s.closed = true
	return true
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns the display names of current members, sorted.
func (r *Room) Members() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.members))
	for s := range r.members {
		names = append(names, s.name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Post enqueues a room chat message from the session to every current member,
// sender included.
func (r *Room) Post(s *Session, text string) {
	r.broadcast(RoomMessage(s.name, text), nil)
}

// announceJoin notifies existing members that s has joined. The new member
// does not receive its own join notice.
func (r *Room) announceJoin(s *Session) {
	r.broadcast(Notice(s.name+" joined the room"), s)
}

func (r *Room) announceLeave(name string) {
	r.broadcast(Notice(name+" left the room"), nil)
}

// broadcast enqueues msg onto the feed of every member except the excluded
// one. The write lock is held for the whole fan-out so concurrent producers
// cannot interleave; enqueue order equals delivery order per member. Members
// whose feed is full are dropped, which ends their connection.
func (r *Room) broadcast(msg Message, except *Session) {
	var dropped []*Session

	r.mu.Lock()
	for member := range r.members {
		if member == except || member.closed {
			continue
		}
		select {
		case member.feed <- msg:
		default:
			delete(r.members, member)
			member.closed = true
			dropped = append(dropped, member)
		}
	}
	r.mu.Unlock()

	for _, member := range dropped {
		close(member.feed)
		close(member.inbox)
		log.Printf("%s dropped from room %q: send queue full", member.name, r.name)
	}
	for _, member := range dropped {
		r.announceLeave(member.name)
	}
}

// SendPrivate delivers a direct message to the member with the exact display
// name, scanning current membership. It reports whether such a member exists;
// the message itself is best-effort once the target is found.
func (r *Room) SendPrivate(from *Session, toName, text string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for member := range r.members {
		if member.name != toName || member.closed {
			continue
		}
		select {
		case member.inbox <- Private(from.name, text):
		default:
			log.Printf("private message from %s to %s dropped: inbox full", from.name, toName)
		}
		return true
	}
	return false
}

// memberList renders the /list reply body.
func (r *Room) memberList() string {
	return "Room members: " + strings.Join(r.Members(), ", ")
}
