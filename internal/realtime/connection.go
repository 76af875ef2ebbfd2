package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/verdant-labs/forestwatch/internal/auth"
)

// sendBufferSize bounds how far a slow consumer may fall behind before the
// transport evicts it.
const sendBufferSize = 64

// Conn is one live transport session. Identity is fixed at connect time;
// room bookkeeping lives in the Registry, physical membership in the
// Transport.
type Conn struct {
	Id          string
	Identity    auth.Identity
	ConnectedAt time.Time

	Send chan Event
}

func NewConn(identity auth.Identity) *Conn {
	return &Conn{
		Id:          uuid.NewString(),
		Identity:    identity,
		ConnectedAt: time.Now(),
		Send:        make(chan Event, sendBufferSize),
	}
}
