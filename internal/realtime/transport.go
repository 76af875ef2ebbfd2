package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Transport is the pub/sub layer the dispatcher fans events out through.
// Delivery is fire-and-forget: only currently attached connections receive
// anything, and a connection that cannot keep up is dropped.
type Transport interface {
	Attach(conn *Conn)
	Detach(connectionId string)
	Join(connectionId string, room string)
	Leave(connectionId string, room string)
	IsMember(connectionId string, room string) bool
	Members(room string) int
	ToRoom(room string, event Event)
	ToAll(event Event)
	ToConnection(connectionId string, event Event)
}

type InMemoryTransport struct {
	logger *zap.Logger
	mu     sync.RWMutex

	conns       map[string]*Conn
	connsByRoom map[string]map[string]struct{}
	roomsByConn map[string]map[string]struct{}
}

func NewInMemoryTransport(logger *zap.Logger) *InMemoryTransport {
	return &InMemoryTransport{
		logger:      logger,
		conns:       make(map[string]*Conn),
		connsByRoom: make(map[string]map[string]struct{}),
		roomsByConn: make(map[string]map[string]struct{}),
	}
}

func (t *InMemoryTransport) Attach(conn *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns[conn.Id] = conn
}

func (t *InMemoryTransport) Detach(connectionId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.detachLocked(connectionId)
}

func (t *InMemoryTransport) Join(connectionId string, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.conns[connectionId]; !ok {
		return
	}

	if _, ok := t.connsByRoom[room]; !ok {
		t.connsByRoom[room] = make(map[string]struct{})
	}
	t.connsByRoom[room][connectionId] = struct{}{}

	if _, ok := t.roomsByConn[connectionId]; !ok {
		t.roomsByConn[connectionId] = make(map[string]struct{})
	}
	t.roomsByConn[connectionId][room] = struct{}{}
}

func (t *InMemoryTransport) Leave(connectionId string, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if connRooms, ok := t.roomsByConn[connectionId]; ok {
		delete(connRooms, room)
		if len(connRooms) == 0 {
			delete(t.roomsByConn, connectionId)
		}
	}

	if roomConns, ok := t.connsByRoom[room]; ok {
		delete(roomConns, connectionId)
		if len(roomConns) == 0 {
			delete(t.connsByRoom, room)
		}
	}
}

func (t *InMemoryTransport) IsMember(connectionId string, room string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.connsByRoom[room][connectionId]

	return ok
}

func (t *InMemoryTransport) Members(room string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.connsByRoom[room])
}

func (t *InMemoryTransport) ToRoom(room string, event Event) {
	t.mu.RLock()

	connectionIds, ok := t.connsByRoom[room]
	if !ok {
		t.mu.RUnlock()

		return
	}

	conns := make([]*Conn, 0, len(connectionIds))
	for connectionId := range connectionIds {
		if conn, ok := t.conns[connectionId]; ok {
			conns = append(conns, conn)
		}
	}

	stale := t.deliverLocked(conns, event)

	t.mu.RUnlock()

	t.evict(stale)
}

func (t *InMemoryTransport) ToAll(event Event) {
	t.mu.RLock()

	conns := make([]*Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}

	stale := t.deliverLocked(conns, event)

	t.mu.RUnlock()

	t.evict(stale)
}

func (t *InMemoryTransport) ToConnection(connectionId string, event Event) {
	t.mu.RLock()

	conn, ok := t.conns[connectionId]
	if !ok {
		t.mu.RUnlock()

		return
	}

	stale := t.deliverLocked([]*Conn{conn}, event)

	t.mu.RUnlock()

	t.evict(stale)
}

// deliverLocked pushes the event onto each connection's send channel and
// reports the connections whose channel was full.
func (t *InMemoryTransport) deliverLocked(conns []*Conn, event Event) []string {
	var stale []string

	for _, conn := range conns {
		select {
		case conn.Send <- event:
		default:
			t.logger.Warn("connection send channel is full, closing connection",
				zap.String("connectionId", conn.Id))

			stale = append(stale, conn.Id)
		}
	}

	return stale
}

func (t *InMemoryTransport) evict(connectionIds []string) {
	if len(connectionIds) == 0 {
		return
	}

	t.mu.Lock()

	for _, connectionId := range connectionIds {
		t.detachLocked(connectionId)
	}

	t.mu.Unlock()
}

// detachLocked requires the write lock to be held.
func (t *InMemoryTransport) detachLocked(connectionId string) {
	conn, ok := t.conns[connectionId]
	if !ok {
		return
	}

	for room := range t.roomsByConn[connectionId] {
		roomConns := t.connsByRoom[room]

		delete(roomConns, connectionId)
		if len(roomConns) == 0 {
			delete(t.connsByRoom, room)
		}
	}

	delete(t.roomsByConn, connectionId)
	delete(t.conns, connectionId)
	close(conn.Send)
}
