package domain

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotLive        = errors.New("connection not live")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// Envelope is the single wire frame exchanged with peers. Payload is kept raw so
// relayed events leave the server byte-for-byte as they arrived.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Mode string

const (
	ModeBroadcast Mode = "broadcast"
	ModeDirected  Mode = "directed"
)

// Dispatch is the routing decision for one inbound event.
type Dispatch struct {
	Mode     Mode     `json:"mode"`
	Source   string   `json:"source"`
	Target   string   `json:"target,omitempty"`
	Envelope Envelope `json:"envelope"`
}

type Delivery struct {
	Target   string
	Envelope Envelope
}

type Connection interface {
	Send(data []byte) error
	Close() error
}

// Greeter is implemented by connections that announce their id to the peer.
// The registry calls Greet before any other sender can address the connection,
// so the greeting is always the first frame queued on it.
type Greeter interface {
	Greet(id string)
}

// Directory is the read side of the registry that routing needs.
type Directory interface {
	IsLive(id string) bool
	AllExcept(id string) []string
}

type Registry interface {
	Directory
	Register(conn Connection) string
	Unregister(id string)
	Deliver(id string, data []byte) error
	Stats() int
	CloseAll()
}

type MessageHandler interface {
	Handle(sourceID string, data []byte)
}

// Fanout carries dispatches to relay instances sharing the same peers.
type Fanout interface {
	Publish(ctx context.Context, d Dispatch) error
}
