// Package chat tracks per-connection session state between handshake
// completion and disconnect.
package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Queue capacities. A session whose feed stays full is treated as a slow
// client and disconnected, so these bound memory per connection.
const (
	feedBuffer  = 256
	inboxBuffer = 64
)

// Session is the server-side state for one connected client. The display
// name is fixed at handshake time and never renamed. The current room is held
// as a name only; the registry owns room lifetime.
type Session struct {
	id   string
	name string
	room string

	ch      Channel
	feed    chan Message // room broadcasts, drained by the write duty
	inbox   chan Message // private messages, drained by the write duty
	limiter *rateLimiter

	// closed is owned by the session's room and flipped under the room's
	// write lock; it stops producers racing a close of feed/inbox.
	closed bool

	teardown sync.Once
}

func newSession(name, room string, ch Channel, rl RateLimitConfig) *Session {
	return &Session{
		id:      uuid.NewString(),
		name:    name,
		room:    room,
		ch:      ch,
		feed:    make(chan Message, feedBuffer),
		inbox:   make(chan Message, inboxBuffer),
		limiter: newRateLimiter(rl.Burst, rl.RefillInterval),
	}
}

// Name returns the immutable display name.
func (s *Session) Name() string { return s.name }

// Room returns the name of the session's current room.
func (s *Session) Room() string { return s.room }

// guestName generates a display name for clients that submit an empty one.
func guestName() string {
	return "guest-" + uuid.NewString()[:8]
}
