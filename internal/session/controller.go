package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/verdant-labs/forestwatch/internal/realtime"
	"github.com/verdant-labs/forestwatch/internal/store"
	"go.uber.org/zap"
)

const (
	recentActivityLimit = 20
	recentTreesLimit    = 5
	recentImagesLimit   = 12
)

type TreeReader interface {
	TreeById(ctx context.Context, treeId string) (store.Tree, error)
	CountTrees(ctx context.Context) (int64, error)
	CountTreesByForest(ctx context.Context, forestId string) (int64, error)
	RecentTreesByForest(ctx context.Context, forestId string, limit int64) ([]store.Tree, error)
}

type ForestReader interface {
	ForestById(ctx context.Context, forestId string) (store.Forest, error)
	CountActiveForests(ctx context.Context) (int64, error)
}

type ImageReader interface {
	RecentImages(ctx context.Context, limit int64) ([]store.TreeImage, error)
}

type AuditReader interface {
	RecentEntries(ctx context.Context, limit int64) ([]store.AuditEntry, error)
	UserStats(ctx context.Context, userId string) (store.UserStats, error)
}

type UsersOnlinePayload struct {
	Count int                      `json:"count"`
	Users []realtime.EntrySnapshot `json:"users,omitempty"`
}

type ForestSnapshot struct {
	Forest      store.Forest `json:"forest"`
	TreeCount   int64        `json:"treeCount"`
	RecentTrees []store.Tree `json:"recentTrees"`
}

type DashboardPayload struct {
	TotalTrees    int64             `json:"totalTrees"`
	ActiveForests int64             `json:"activeForests"`
	OnlineUsers   int               `json:"onlineUsers"`
	RecentImages  []store.TreeImage `json:"recentImages"`
}

type ChatMessageRequest struct {
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
	TargetRoom string `json:"targetRoom,omitempty"`
}

type Stats struct {
	ConnectedCount  int                      `json:"connectedCount"`
	ActiveRoomCount int                      `json:"activeRoomCount"`
	Connections     []realtime.EntrySnapshot `json:"connections"`
}

// Controller orchestrates what happens on connect, disconnect, subscribe
// and on-demand snapshot requests for one connection. Nothing it does is
// allowed to propagate a failure to the transport layer: every operation
// degrades to a logged error plus, where a specific connection initiated
// it, an error event scoped to that connection.
type Controller struct {
	logger     *zap.Logger
	registry   *realtime.Registry
	roomIndex  *realtime.RoomIndex
	transport  realtime.Transport
	dispatcher *realtime.Dispatcher

	trees   TreeReader
	forests ForestReader
	images  ImageReader
	audit   AuditReader
}

func NewController(
	logger *zap.Logger,
	registry *realtime.Registry,
	roomIndex *realtime.RoomIndex,
	transport realtime.Transport,
	dispatcher *realtime.Dispatcher,
	trees TreeReader,
	forests ForestReader,
	images ImageReader,
	audit AuditReader,
) *Controller {
	return &Controller{
		logger:     logger,
		registry:   registry,
		roomIndex:  roomIndex,
		transport:  transport,
		dispatcher: dispatcher,
		trees:      trees,
		forests:    forests,
		images:     images,
		audit:      audit,
	}
}

// OnConnect registers the connection, sends it its initial snapshots and
// announces presence to admins. Each initial fetch fails independently: a
// broken activity query must not block the user-stats send or the rest of
// the connect sequence.
func (c *Controller) OnConnect(ctx context.Context, conn *realtime.Conn) {
	c.registry.Add(conn)

	c.joinRoom(conn, realtime.UserRoom(conn.Identity.UserId))
	if conn.Identity.IsAdmin() {
		c.joinRoom(conn, realtime.AdminRoom())
	}

	c.dispatcher.ToConnection(conn.Id, realtime.EventUsersOnline, UsersOnlinePayload{
		Count: c.registry.Count(),
	})

	entries, err := c.audit.RecentEntries(ctx, recentActivityLimit)
	if err != nil {
		c.logger.Error("failed to fetch recent activity",
			zap.String("userId", conn.Identity.UserId),
			zap.Error(err))
	} else {
		c.dispatcher.ToConnection(conn.Id, realtime.EventRecentActivity, entries)
	}

	stats, err := c.audit.UserStats(ctx, conn.Identity.UserId)
	if err != nil {
		c.logger.Error("failed to fetch user stats",
			zap.String("userId", conn.Identity.UserId),
			zap.Error(err))
	} else {
		c.dispatcher.ToConnection(conn.Id, realtime.EventUserStats, stats)
	}

	c.dispatcher.UserConnectionChanged(conn.Identity, true)
}

// OnDisconnect deregisters the connection and announces presence, but only
// when this transport still owns the registry entry. A connection replaced
// by a newer one from the same user, or one that never completed
// registration, deregisters nothing and stays silent.
func (c *Controller) OnDisconnect(conn *realtime.Conn) {
	if !c.registry.RemoveConnection(conn.Identity.UserId, conn.Id) {
		return
	}

	c.dispatcher.UserConnectionChanged(conn.Identity, false)
}

// SubscribeTree joins the tree's room and sends the caller the current
// snapshot. All-or-nothing: an unknown tree or a failed lookup produces an
// error event and no membership change.
func (c *Controller) SubscribeTree(ctx context.Context, conn *realtime.Conn, treeId string) {
	tree, err := c.trees.TreeById(ctx, treeId)
	if errors.Is(err, store.ErrNotFound) {
		c.sendError(conn, "tree not found: "+treeId)

		return
	}
	if err != nil {
		c.logger.Error("tree lookup failed during subscribe",
			zap.String("treeId", treeId),
			zap.Error(err))
		c.sendError(conn, "failed to load tree")

		return
	}

	c.joinRoom(conn, realtime.TreeRoom(treeId))
	c.dispatcher.ToConnection(conn.Id, realtime.EventTreeData, tree)
}

// UnsubscribeTree leaves the room unconditionally; leaving a room the
// connection never joined is safe.
func (c *Controller) UnsubscribeTree(conn *realtime.Conn, treeId string) {
	c.leaveRoom(conn, realtime.TreeRoom(treeId))
}

// SubscribeForest joins the forest's room and sends a snapshot enriched
// with the tree count and a bounded recent-trees sample. The forest lookup
// is all-or-nothing; enrichment failures degrade to zero values.
func (c *Controller) SubscribeForest(ctx context.Context, conn *realtime.Conn, forestId string) {
	forest, err := c.forests.ForestById(ctx, forestId)
	if errors.Is(err, store.ErrNotFound) {
		c.sendError(conn, "forest not found: "+forestId)

		return
	}
	if err != nil {
		c.logger.Error("forest lookup failed during subscribe",
			zap.String("forestId", forestId),
			zap.Error(err))
		c.sendError(conn, "failed to load forest")

		return
	}

	treeCount, err := c.trees.CountTreesByForest(ctx, forestId)
	if err != nil {
		c.logger.Warn("failed to count trees for forest snapshot",
			zap.String("forestId", forestId),
			zap.Error(err))
	}

	recentTrees, err := c.trees.RecentTreesByForest(ctx, forestId, recentTreesLimit)
	if err != nil {
		c.logger.Warn("failed to sample recent trees for forest snapshot",
			zap.String("forestId", forestId),
			zap.Error(err))
	}

	c.joinRoom(conn, realtime.ForestRoom(forestId))
	c.dispatcher.ToConnection(conn.Id, realtime.EventForestData, ForestSnapshot{
		Forest:      forest,
		TreeCount:   treeCount,
		RecentTrees: recentTrees,
	})
}

// DashboardSnapshot sends aggregate counts plus a page of recent images to
// the requesting connection.
func (c *Controller) DashboardSnapshot(ctx context.Context, conn *realtime.Conn) {
	totalTrees, err := c.trees.CountTrees(ctx)
	if err != nil {
		c.dashboardFailed(conn, err)

		return
	}

	activeForests, err := c.forests.CountActiveForests(ctx)
	if err != nil {
		c.dashboardFailed(conn, err)

		return
	}

	recentImages, err := c.images.RecentImages(ctx, recentImagesLimit)
	if err != nil {
		c.dashboardFailed(conn, err)

		return
	}

	c.dispatcher.ToConnection(conn.Id, realtime.EventDashboardData, DashboardPayload{
		TotalTrees:    totalTrees,
		ActiveForests: activeForests,
		OnlineUsers:   c.registry.Count(),
		RecentImages:  recentImages,
	})
}

// OnlineUsersSnapshot answers a users-online request. Everyone gets the
// count; the per-user list is included only for admin requesters.
func (c *Controller) OnlineUsersSnapshot(conn *realtime.Conn, requesterIsAdmin bool) {
	payload := UsersOnlinePayload{
		Count: c.registry.Count(),
	}
	if requesterIsAdmin {
		payload.Users = c.registry.All()
	}

	c.dispatcher.ToConnection(conn.Id, realtime.EventUsersOnline, payload)
}

// HandleChatMessage relays a chat message through the dispatcher. Empty or
// whitespace-only messages are rejected with an error event and nothing is
// broadcast.
func (c *Controller) HandleChatMessage(conn *realtime.Conn, req ChatMessageRequest) {
	trimmed := strings.TrimSpace(req.Message)
	if trimmed == "" {
		c.sendError(conn, "message cannot be empty")

		return
	}

	messageType := req.Type
	if messageType == "" {
		messageType = "chat"
	}

	c.dispatcher.Message(realtime.ChatMessage{
		Id:        time.Now().UnixMilli(),
		UserId:    conn.Identity.UserId,
		User:      conn.Identity,
		Message:   trimmed,
		Type:      messageType,
		Timestamp: time.Now(),
	}, req.TargetRoom)
}

// ConnectionStats is a reporting-only read; it mutates nothing.
func (c *Controller) ConnectionStats() Stats {
	return Stats{
		ConnectedCount:  c.registry.Count(),
		ActiveRoomCount: c.roomIndex.ActiveRoomCount(),
		Connections:     c.registry.All(),
	}
}

func (c *Controller) joinRoom(conn *realtime.Conn, room string) {
	c.transport.Join(conn.Id, room)
	c.registry.JoinRoom(conn.Identity.UserId, room)
	c.roomIndex.RecordJoin(room)
}

func (c *Controller) leaveRoom(conn *realtime.Conn, room string) {
	c.transport.Leave(conn.Id, room)
	c.registry.LeaveRoom(conn.Identity.UserId, room)
	c.roomIndex.RecordLeave(room)
}

func (c *Controller) dashboardFailed(conn *realtime.Conn, err error) {
	c.logger.Error("failed to build dashboard snapshot",
		zap.String("userId", conn.Identity.UserId),
		zap.Error(err))
	c.sendError(conn, "failed to load dashboard data")
}

func (c *Controller) sendError(conn *realtime.Conn, message string) {
	c.dispatcher.ToConnection(conn.Id, realtime.EventError, realtime.ErrorPayload{
		Message: message,
	})
}
