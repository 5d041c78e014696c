// Package message defines how typed messages travel over the network: their
// kind tags, directions, channels and the two-stage envelope encoding.
package message

import (
	"fmt"

	"github.com/spacegame/netsync/transport"
)

// Kind is the tag that identifies a message type on the wire.
type Kind uint16

// A list of channels known to every peer.
const (
	ReliableChannel   transport.ChannelID = 0
	UnreliableChannel transport.ChannelID = 1
)

// Direction tells which side may send a message type.
type Direction int

// A list of all directions. The zero value is not a valid direction.
const (
	ClientToServer Direction = iota + 1
	ServerToClient
	Both
)

func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client_to_server"
	case ServerToClient:
		return "server_to_client"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// SentByServer tells if the server sends messages of this direction.
func (d Direction) SentByServer() bool {
	return d == ServerToClient || d == Both
}

// SentByClient tells if clients send messages of this direction.
func (d Direction) SentByClient() bool {
	return d == ClientToServer || d == Both
}

// DestinationKind selects how a server message is fanned out.
type DestinationKind int

// A list of all destination kinds.
const (
	ToClient DestinationKind = iota
	ToAllExcept
	ToAll
)

// Destination selects the recipients of a server message.
type Destination struct {
	Kind DestinationKind
	Conn transport.ConnID
}

// To targets a single client.
func To(conn transport.ConnID) Destination {
	return Destination{Kind: ToClient, Conn: conn}
}

// AllExcept targets every client but one.
func AllExcept(conn transport.ConnID) Destination {
	return Destination{Kind: ToAllExcept, Conn: conn}
}

// All targets every client.
func All() Destination {
	return Destination{Kind: ToAll}
}

func (d Destination) String() string {
	switch d.Kind {
	case ToClient:
		return d.Conn.String()
	case ToAllExcept:
		return "all-except-" + d.Conn.String()
	default:
		return "all"
	}
}
