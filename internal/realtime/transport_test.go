package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// receive pops one buffered event without blocking; fails the test when no
// event is waiting.
func receive(t *testing.T, conn *Conn) Event {
	t.Helper()

	select {
	case event := <-conn.Send:
		return event
	default:
		t.Fatalf("no event buffered for connection %s", conn.Id)

		return Event{}
	}
}

func assertNoEvent(t *testing.T, conn *Conn) {
	t.Helper()

	select {
	case event := <-conn.Send:
		t.Fatalf("unexpected event %q for connection %s", event.Type, conn.Id)
	default:
	}
}

func TestInMemoryTransport_ToRoom(t *testing.T) {
	logger := zap.NewNop()
	transport := NewInMemoryTransport(logger)

	member := newTestConn("u-1", "viewer")
	outsider := newTestConn("u-2", "viewer")
	transport.Attach(member)
	transport.Attach(outsider)

	transport.Join(member.Id, TreeRoom("t-1"))

	transport.ToRoom(TreeRoom("t-1"), NewEvent(EventTreeUpdated, TreeRoom("t-1"), map[string]any{"height": 5}))

	event := receive(t, member)
	assert.Equal(t, EventTreeUpdated, event.Type)
	assert.Equal(t, TreeRoom("t-1"), event.Room)

	assertNoEvent(t, outsider)
}

func TestInMemoryTransport_ToRoomWithoutMembers(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	// Silent no-op.
	transport.ToRoom(TreeRoom("empty"), NewEvent(EventTreeUpdated, TreeRoom("empty"), nil))
}

func TestInMemoryTransport_JoinIdempotent(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	conn := newTestConn("u-1", "viewer")
	transport.Attach(conn)

	transport.Join(conn.Id, TreeRoom("t-1"))
	transport.Join(conn.Id, TreeRoom("t-1"))

	assert.Equal(t, 1, transport.Members(TreeRoom("t-1")))

	transport.ToRoom(TreeRoom("t-1"), NewEvent(EventTreeUpdated, TreeRoom("t-1"), nil))

	receive(t, conn)
	assertNoEvent(t, conn)
}

func TestInMemoryTransport_JoinUnknownConnection(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	transport.Join("ghost", TreeRoom("t-1"))

	assert.Equal(t, 0, transport.Members(TreeRoom("t-1")))
}

func TestInMemoryTransport_Leave(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	conn := newTestConn("u-1", "viewer")
	transport.Attach(conn)
	transport.Join(conn.Id, TreeRoom("t-1"))

	transport.Leave(conn.Id, TreeRoom("t-1"))
	assert.False(t, transport.IsMember(conn.Id, TreeRoom("t-1")))

	// Leaving again, or leaving a room never joined, is a no-op.
	transport.Leave(conn.Id, TreeRoom("t-1"))
	transport.Leave(conn.Id, TreeRoom("t-9"))

	transport.ToRoom(TreeRoom("t-1"), NewEvent(EventTreeUpdated, TreeRoom("t-1"), nil))
	assertNoEvent(t, conn)
}

func TestInMemoryTransport_ToAll(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	first := newTestConn("u-1", "viewer")
	second := newTestConn("u-2", "viewer")
	transport.Attach(first)
	transport.Attach(second)

	transport.ToAll(NewEvent(EventSystemNotification, "", "maintenance"))

	assert.Equal(t, EventSystemNotification, receive(t, first).Type)
	assert.Equal(t, EventSystemNotification, receive(t, second).Type)
}

func TestInMemoryTransport_ToConnection(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	target := newTestConn("u-1", "viewer")
	other := newTestConn("u-2", "viewer")
	transport.Attach(target)
	transport.Attach(other)

	transport.ToConnection(target.Id, NewEvent(EventError, "", ErrorPayload{Message: "boom"}))

	assert.Equal(t, EventError, receive(t, target).Type)
	assertNoEvent(t, other)

	// Unknown connections are ignored.
	transport.ToConnection("ghost", NewEvent(EventError, "", nil))
}

func TestInMemoryTransport_DetachClosesAndLeavesRooms(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	conn := newTestConn("u-1", "viewer")
	transport.Attach(conn)
	transport.Join(conn.Id, TreeRoom("t-1"))

	transport.Detach(conn.Id)

	assert.Equal(t, 0, transport.Members(TreeRoom("t-1")))

	_, open := <-conn.Send
	assert.False(t, open)

	// Double detach is safe.
	transport.Detach(conn.Id)
}

func TestInMemoryTransport_EvictsSlowConsumer(t *testing.T) {
	transport := NewInMemoryTransport(zap.NewNop())

	slow := newTestConn("u-1", "viewer")
	transport.Attach(slow)
	transport.Join(slow.Id, TreeRoom("t-1"))

	for i := 0; i < sendBufferSize+1; i++ {
		transport.ToRoom(TreeRoom("t-1"), NewEvent(EventTreeUpdated, TreeRoom("t-1"), i))
	}

	assert.Equal(t, 0, transport.Members(TreeRoom("t-1")))
}
