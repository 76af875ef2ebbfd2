package server

import "encoding/json"

// Client-to-server event names.
const (
	eventSubscribeTree      = "subscribe:tree"
	eventUnsubscribeTree    = "unsubscribe:tree"
	eventSubscribeForest    = "subscribe:forest"
	eventRequestDashboard   = "request:dashboard"
	eventRequestUsersOnline = "request:users-online"
	eventMessageSend        = "message:send"
)

// ClientEvent is the frame clients write on the websocket.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type TreeParams struct {
	TreeId string `json:"treeId"`
}

type ForestParams struct {
	ForestId string `json:"forestId"`
}
