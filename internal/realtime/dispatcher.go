package realtime

import (
	"context"
	"time"

	"github.com/verdant-labs/forestwatch/internal/auth"
	"github.com/verdant-labs/forestwatch/internal/store"
	"go.uber.org/zap"
)

// TreeFinder is the lookup the dispatcher needs to resolve a tree's owning
// forest for the secondary image-upload broadcast.
type TreeFinder interface {
	TreeById(ctx context.Context, treeId string) (store.Tree, error)
}

const (
	AudienceAll   = "all"
	AudienceAdmin = "admin"
)

type Notification struct {
	Id        int64     `json:"id"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatMessage struct {
	Id        int64         `json:"id"`
	UserId    string        `json:"userId"`
	User      auth.Identity `json:"user"`
	Message   string        `json:"message"`
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
}

type PresencePayload struct {
	User        auth.Identity `json:"user"`
	IsConnected bool          `json:"isConnected"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Dispatcher owns every event emission path. All operations are
// fire-and-forget; offline members never receive anything and there is no
// backlog.
type Dispatcher struct {
	logger    *zap.Logger
	transport Transport
	registry  *Registry
	trees     TreeFinder
}

func NewDispatcher(
	logger *zap.Logger,
	transport Transport,
	registry *Registry,
	trees TreeFinder,
) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		transport: transport,
		registry:  registry,
		trees:     trees,
	}
}

func (d *Dispatcher) ToRoom(room string, eventType string, payload any) {
	d.transport.ToRoom(room, NewEvent(eventType, room, payload))
}

func (d *Dispatcher) ToAdmins(eventType string, payload any) {
	d.ToRoom(AdminRoom(), eventType, payload)
}

func (d *Dispatcher) ToAll(eventType string, payload any) {
	d.transport.ToAll(NewEvent(eventType, "", payload))
}

// ToConnection emits a connection-scoped event, bypassing rooms.
func (d *Dispatcher) ToConnection(connectionId string, eventType string, payload any) {
	d.transport.ToConnection(connectionId, NewEvent(eventType, "", payload))
}

func (d *Dispatcher) TreeUpdated(treeId string, data any, eventType string) {
	if eventType == "" {
		eventType = EventTreeUpdated
	}

	d.ToRoom(TreeRoom(treeId), eventType, data)
}

func (d *Dispatcher) ForestUpdated(forestId string, data any, eventType string) {
	if eventType == "" {
		eventType = EventForestUpdated
	}

	d.ToRoom(ForestRoom(forestId), eventType, data)
}

// ImageUploaded notifies the tree's room, then best-effort the owning
// forest's room. The two emissions are independent: a failed forest lookup
// is logged and swallowed, the tree-room event has already gone out.
func (d *Dispatcher) ImageUploaded(ctx context.Context, treeId string, image any) {
	payload := map[string]any{
		"treeId": treeId,
		"image":  image,
	}

	d.ToRoom(TreeRoom(treeId), EventTreeImageUploaded, payload)

	tree, err := d.trees.TreeById(ctx, treeId)
	if err != nil {
		d.logger.Warn("skipping forest notification for uploaded image",
			zap.String("treeId", treeId),
			zap.Error(err))

		return
	}

	if tree.ForestId == "" {
		return
	}

	d.ToRoom(ForestRoom(tree.ForestId), EventForestImageUploaded, payload)
}

func (d *Dispatcher) SystemNotification(notification Notification, audience string) {
	notification.Id = time.Now().UnixMilli()
	notification.Timestamp = time.Now()

	if audience == AudienceAdmin {
		d.ToAdmins(EventSystemNotification, notification)

		return
	}

	d.ToAll(EventSystemNotification, notification)
}

// UserConnectionChanged reports presence to the admin room only; presence is
// never shown to non-admin users.
func (d *Dispatcher) UserConnectionChanged(identity auth.Identity, isConnected bool) {
	d.ToAdmins(EventConnectionStatus, PresencePayload{
		User:        identity,
		IsConnected: isConnected,
		Timestamp:   time.Now(),
	})
}

// Message relays a chat message to targetRoom when the sender is currently a
// member of it, otherwise to the admin room. The membership check keeps a
// client from broadcasting into a room it never joined.
func (d *Dispatcher) Message(message ChatMessage, targetRoom string) {
	room := AdminRoom()
	if targetRoom != "" && d.registry.HasRoom(message.UserId, targetRoom) {
		room = targetRoom
	}

	d.ToRoom(room, EventMessageReceived, message)
}
