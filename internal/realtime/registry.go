package realtime

import (
	"sync"
	"time"

	"github.com/verdant-labs/forestwatch/internal/auth"
)

// Registry tracks one entry per authenticated identity. It is keyed by
// userId, not by connection id: a reconnect from the same user replaces the
// previous entry and starts with an empty room set. Old transport-level
// memberships of a replaced connection are left to the transport's own
// detach path. A keyed-by-connection design with identity as a secondary
// index would support multiple tabs per user; this one deliberately does
// not.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	connectionId string
	identity     auth.Identity
	connectedAt  time.Time
	rooms        map[string]struct{}
}

// EntrySnapshot is a detached copy of a registry entry, safe to hand out.
type EntrySnapshot struct {
	ConnectionId string    `json:"connectionId"`
	UserId       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	ConnectedAt  time.Time `json:"connectedAt"`
	Rooms        []string  `json:"rooms"`
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Add registers the connection under its identity, silently replacing any
// previous entry for the same user. The fresh entry has an empty room set.
func (r *Registry) Add(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[conn.Identity.UserId] = &entry{
		connectionId: conn.Id,
		identity:     conn.Identity,
		connectedAt:  conn.ConnectedAt,
		rooms:        make(map[string]struct{}),
	}
}

// Remove deletes the entry for the user. It reports whether an entry was
// actually removed; removing an unknown user is a no-op.
func (r *Registry) Remove(userId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[userId]
	delete(r.entries, userId)

	return ok
}

// RemoveConnection deletes the entry for the user only when it still belongs
// to the given connection. A transport closing after its user already
// reconnected must not evict the fresh entry.
func (r *Registry) RemoveConnection(userId string, connectionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userId]
	if !ok || e.connectionId != connectionId {
		return false
	}

	delete(r.entries, userId)

	return true
}

func (r *Registry) Get(userId string) (EntrySnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[userId]
	if !ok {
		return EntrySnapshot{}, false
	}

	return e.snapshot(), true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// All returns detached copies of every entry, for reporting.
func (r *Registry) All() []EntrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]EntrySnapshot, 0, len(r.entries))
	for _, e := range r.entries {
		snapshots = append(snapshots, e.snapshot())
	}

	return snapshots
}

// JoinRoom adds the room to the user's room set. Idempotent; a no-op for
// unregistered users.
func (r *Registry) JoinRoom(userId string, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userId]; ok {
		e.rooms[room] = struct{}{}
	}
}

// LeaveRoom removes the room from the user's room set if present.
func (r *Registry) LeaveRoom(userId string, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userId]; ok {
		delete(e.rooms, room)
	}
}

func (r *Registry) HasRoom(userId string, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[userId]
	if !ok {
		return false
	}

	_, ok = e.rooms[room]

	return ok
}

func (e *entry) snapshot() EntrySnapshot {
	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}

	return EntrySnapshot{
		ConnectionId: e.connectionId,
		UserId:       e.identity.UserId,
		Email:        e.identity.Email,
		Name:         e.identity.Name,
		Role:         e.identity.Role,
		ConnectedAt:  e.connectedAt,
		Rooms:        rooms,
	}
}

// RoomIndex tracks the distinct room names that have ever had a member.
// It is reporting-only and deliberately never pruned: the count may
// over-report rooms that are now empty. An accurate figure, when needed,
// comes from asking the transport for per-room membership instead.
type RoomIndex struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		seen: make(map[string]struct{}),
	}
}

func (i *RoomIndex) RecordJoin(room string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.seen[room] = struct{}{}
}

// RecordLeave intentionally leaves the seen set untouched.
func (i *RoomIndex) RecordLeave(room string) {}

func (i *RoomIndex) ActiveRoomCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.seen)
}
