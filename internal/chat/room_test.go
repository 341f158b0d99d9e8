package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainFeed pops every currently queued feed message.
func drainFeed(s *Session) []Message {
	var out []Message
	for {
		select {
		case msg := <-s.feed:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRoomBroadcastReachesAllMembersInOrder(t *testing.T) {
	reg := NewRegistry()
	a := testSession("a", "alpha")
	b := testSession("b", "alpha")
	reg.Join("alpha", a)
	reg.Join("alpha", b)
	room := reg.Lookup("alpha")

	drainFeed(a)
	drainFeed(b)

	const posts = 5
	for i := 0; i < posts; i++ {
		room.Post(a, fmt.Sprintf("post %d", i))
	}

	for _, member := range []*Session{a, b} {
		msgs := drainFeed(member)
		require.Len(t, msgs, posts, "%s should see every post, sender included", member.name)
		for i, msg := range msgs {
			assert.Equal(t, KindRoom, msg.Type)
			assert.Equal(t, "a", msg.Sender)
			assert.Equal(t, fmt.Sprintf("post %d", i), msg.Content, "delivery must preserve enqueue order")
		}
	}
}

func TestRoomJoinNoticeSkipsTheJoiner(t *testing.T) {
	reg := NewRegistry()
	a := testSession("a", "alpha")
	reg.Join("alpha", a)

	b := testSession("b", "alpha")
	reg.Join("alpha", b)

	noticesA := drainFeed(a)
	require.Len(t, noticesA, 1)
	assert.Equal(t, KindSystem, noticesA[0].Type)
	assert.Equal(t, "b joined the room", noticesA[0].Content)
	assert.NotEmpty(t, noticesA[0].Time)

	assert.Empty(t, drainFeed(b), "a member does not receive its own join notice")
}

func TestRoomNoReplayForLateJoiners(t *testing.T) {
	reg := NewRegistry()
	a := testSession("a", "alpha")
	reg.Join("alpha", a)
	room := reg.Lookup("alpha")

	room.Post(a, "before b existed")

	b := testSession("b", "alpha")
	reg.Join("alpha", b)

	for _, msg := range drainFeed(b) {
		assert.NotEqual(t, "before b existed", msg.Content, "messages enqueued before join must not be replayed")
	}
}

func TestRoomLeaveNoticeToRemainingMembers(t *testing.T) {
	reg := NewRegistry()
	a := testSession("a", "alpha")
	b := testSession("b", "alpha")
	reg.Join("alpha", a)
	reg.Join("alpha", b)
	drainFeed(a)

	reg.Leave("alpha", b)

	notices := drainFeed(a)
	require.Len(t, notices, 1)
	assert.Equal(t, "b left the room", notices[0].Content)
	assert.NotNil(t, reg.Lookup("alpha"), "room persists while a member remains")
}

func TestSendPrivateDeliversExactlyOnce(t *testing.T) {
	reg := NewRegistry()
	alice := testSession("Alice", "lobby")
	bob := testSession("Bob", "lobby")
	reg.Join("lobby", alice)
	reg.Join("lobby", bob)
	room := reg.Lookup("lobby")

	require.True(t, room.SendPrivate(bob, "Alice", "hi"))

	msg := <-alice.inbox
	assert.Equal(t, KindPrivate, msg.Type)
	assert.Equal(t, "Bob", msg.From)
	assert.Equal(t, "hi", msg.Content)

	select {
	case extra := <-alice.inbox:
		t.Fatalf("unexpected second private message: %+v", extra)
	default:
	}
}

func TestSendPrivateUnknownTargetLeavesInboxUntouched(t *testing.T) {
	reg := NewRegistry()
	alice := testSession("Alice", "lobby")
	reg.Join("lobby", alice)
	room := reg.Lookup("lobby")

	assert.False(t, room.SendPrivate(alice, "Ghost", "hi"))
	assert.Empty(t, alice.inbox)
}

func TestRoomDropsMemberWithFullFeed(t *testing.T) {
	reg := NewRegistry()
	a := testSession("a", "alpha")
	slow := testSession("slow", "alpha")
	reg.Join("alpha", a)
	reg.Join("alpha", slow)
	room := reg.Lookup("alpha")
	drainFeed(a)

	// Nobody drains slow's feed; overflow it by one while keeping the
	// healthy member's feed drained.
	var fromA []Message
	for i := 0; i <= feedBuffer; i++ {
		room.Post(a, "spam")
		fromA = append(fromA, drainFeed(a)...)
	}

	assert.Equal(t, 1, room.size(), "the slow member is removed")

	// Its queues are closed so the write duty ends and teardown runs.
	for range slow.feed {
	}
	_, open := <-slow.inbox
	assert.False(t, open)

	// Remaining members were told the member left.
	var sawLeave bool
	for _, msg := range append(fromA, drainFeed(a)...) {
		if msg.Content == "slow left the room" {
			sawLeave = true
		}
	}
	assert.True(t, sawLeave)
}
