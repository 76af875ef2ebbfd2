package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/verdant-labs/forestwatch/internal/auth"
	"github.com/verdant-labs/forestwatch/internal/ierr"
	"github.com/verdant-labs/forestwatch/internal/realtime"
	"github.com/verdant-labs/forestwatch/internal/session"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type WebSocketServer struct {
	logger        *zap.Logger
	upgrader      *websocket.Upgrader
	authenticator *auth.Authenticator
	transport     realtime.Transport
	controller    *session.Controller
	router        *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	authenticator *auth.Authenticator,
	transport realtime.Transport,
	controller *session.Controller,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger:        logger,
		upgrader:      upgrader,
		authenticator: authenticator,
		transport:     transport,
		controller:    controller,
		router:        router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/ws", s.handle)
}

func (s *WebSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticator.Authenticate(bearerToken(r))
	if err != nil {
		s.logger.Warn("websocket handshake rejected", zap.Error(err))

		status := errorStatus(err)
		http.Error(w, http.StatusText(status), status)

		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	conn := realtime.NewConn(identity)
	logger := s.logger.With(
		zap.String("connectionId", conn.Id),
		zap.String("userId", identity.UserId))
	logger.Info("websocket connection established")

	s.transport.Attach(conn)
	go s.writePump(logger, socket, conn)

	// The connection outlives the upgrade request.
	ctx := context.Background()

	s.controller.OnConnect(ctx, conn)
	s.readPump(ctx, logger, socket, conn)

	s.controller.OnDisconnect(conn)
	s.transport.Detach(conn.Id)
	logger.Info("websocket connection closed")
}

func (s *WebSocketServer) readPump(ctx context.Context, logger *zap.Logger, socket *websocket.Conn, conn *realtime.Conn) {
	socket.SetReadLimit(maxMessageSize)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var clientEvent ClientEvent
		if err := socket.ReadJSON(&clientEvent); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}

			return
		}

		s.router.Route(ctx, conn, clientEvent)
	}
}

func (s *WebSocketServer) writePump(logger *zap.Logger, socket *websocket.Conn, conn *realtime.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		socket.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Send:
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Transport detached the connection.
				socket.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := socket.WriteJSON(event); err != nil {
				logger.Warn("websocket write failed", zap.Error(err))

				return
			}
		case <-ticker.C:
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorStatus(err error) int {
	var coded ierr.Error
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}

	return http.StatusInternalServerError
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")

	return strings.TrimPrefix(header, "Bearer ")
}
