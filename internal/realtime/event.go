package realtime

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Server-to-client event names.
const (
	EventTreeData            = "tree:data"
	EventForestData          = "forest:data"
	EventDashboardData       = "dashboard:data"
	EventUsersOnline         = "users:online"
	EventRecentActivity      = "data:recent-activity"
	EventUserStats           = "data:user-stats"
	EventTreeUpdated         = "tree:updated"
	EventTreeCreated         = "tree:created"
	EventTreeImageUploaded   = "tree:image-uploaded"
	EventForestUpdated       = "forest:updated"
	EventForestCreated       = "forest:created"
	EventForestImageUploaded = "forest:image-uploaded"
	EventSystemNotification  = "notification:system"
	EventConnectionStatus    = "user:connection-status"
	EventMessageReceived     = "message:received"
	EventError               = "error"
)

// Event is a single broadcast. It is ephemeral: produced, fanned out to the
// current members of its room (or to everyone when Room is empty), and
// dropped. There is no replay.
type Event struct {
	Id        string    `json:"id"`
	Type      string    `json:"type"`
	Room      string    `json:"room,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(eventType string, room string, payload any) Event {
	return Event{
		Id:        gonanoid.Must(),
		Type:      eventType,
		Room:      room,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// ErrorPayload is the body of a connection-scoped error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
