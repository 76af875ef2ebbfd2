package server

import (
	"context"
	"encoding/json"

	"github.com/verdant-labs/forestwatch/internal/realtime"
	"github.com/verdant-labs/forestwatch/internal/session"
	"go.uber.org/zap"
)

// Router maps client event frames onto controller operations. Every failure
// path ends in an error event to the sending connection, never in a
// propagated error.
type Router struct {
	logger     *zap.Logger
	controller *session.Controller
	dispatcher *realtime.Dispatcher
}

func NewRouter(
	logger *zap.Logger,
	controller *session.Controller,
	dispatcher *realtime.Dispatcher,
) *Router {
	return &Router{
		logger:     logger,
		controller: controller,
		dispatcher: dispatcher,
	}
}

func (r *Router) Route(ctx context.Context, conn *realtime.Conn, clientEvent ClientEvent) {
	switch clientEvent.Event {
	case eventSubscribeTree:
		var params TreeParams
		if !r.decode(conn, clientEvent.Data, &params) {
			return
		}

		r.controller.SubscribeTree(ctx, conn, params.TreeId)
	case eventUnsubscribeTree:
		var params TreeParams
		if !r.decode(conn, clientEvent.Data, &params) {
			return
		}

		r.controller.UnsubscribeTree(conn, params.TreeId)
	case eventSubscribeForest:
		var params ForestParams
		if !r.decode(conn, clientEvent.Data, &params) {
			return
		}

		r.controller.SubscribeForest(ctx, conn, params.ForestId)
	case eventRequestDashboard:
		r.controller.DashboardSnapshot(ctx, conn)
	case eventRequestUsersOnline:
		r.controller.OnlineUsersSnapshot(conn, conn.Identity.IsAdmin())
	case eventMessageSend:
		var req session.ChatMessageRequest
		if !r.decode(conn, clientEvent.Data, &req) {
			return
		}

		r.controller.HandleChatMessage(conn, req)
	default:
		r.logger.Warn("unknown client event",
			zap.String("event", clientEvent.Event),
			zap.String("connectionId", conn.Id))
		r.sendError(conn, "unknown event: "+clientEvent.Event)
	}
}

func (r *Router) decode(conn *realtime.Conn, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		r.sendError(conn, "missing event data")

		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		r.sendError(conn, "invalid event data: "+err.Error())

		return false
	}

	return true
}

func (r *Router) sendError(conn *realtime.Conn, message string) {
	r.dispatcher.ToConnection(conn.Id, realtime.EventError, realtime.ErrorPayload{
		Message: message,
	})
}
