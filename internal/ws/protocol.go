package ws

import (
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
)

const ProtocolVersion = "1.0"

const (
	TypeSnapshot = "snapshot"
	TypePong     = "pong"
)

// SnapshotMessage carries one pushed stage snapshot.
type SnapshotMessage struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Update          feed.Update `json:"update"`
}

type PongMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// ClientMessage is the only frame clients send; "ping" is answered with
// "pong", anything else is ignored.
type ClientMessage struct {
	Type string `json:"type"`
}
