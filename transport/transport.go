// Package transport defines the boundary between the synchronization layer and
// the network. A transport moves opaque byte payloads over a small number of
// ordered channels and reports connection transitions. Reliability and
// congestion control belong to the transport.
package transport

import "fmt"

// ConnID identifies a remote peer.
type ConnID uint64

func (c ConnID) String() string {
	return fmt.Sprintf("conn-%d", uint64(c))
}

// ChannelID selects an ordered delivery lane.
type ChannelID uint8

// EventKind tells what happened to a connection.
type EventKind int

// A list of all connection event kinds.
const (
	Connected EventKind = iota
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// An Event reports a connection transition.
type Event struct {
	Kind EventKind
	Conn ConnID
}

// Server is the server side of a transport. None of the methods block.
// Outgoing payloads may be buffered until Flush is called.
type Server interface {
	// Send delivers data to a single client.
	Send(ch ChannelID, conn ConnID, data []byte)

	// Broadcast delivers data to every connected client.
	Broadcast(ch ChannelID, data []byte)

	// BroadcastExcept delivers data to every connected client except one.
	BroadcastExcept(ch ChannelID, except ConnID, data []byte)

	// TryReceive pops the next payload received on a channel.
	TryReceive(ch ChannelID) (from ConnID, data []byte, ok bool)

	// TryEvent pops the next connection event.
	TryEvent() (Event, bool)

	// Disconnect drops a client. A Disconnected event follows.
	Disconnect(conn ConnID)

	// Clients lists the connected clients.
	Clients() []ConnID

	// Flush hands all buffered payloads to the network.
	Flush() error
}

// Client is the client side of a transport. None of the methods block.
type Client interface {
	// ID returns the connection ID assigned by the server.
	ID() ConnID

	// Connected tells if the client is connected to the server.
	Connected() bool

	// Send delivers data to the server.
	Send(ch ChannelID, data []byte)

	// TryReceive pops the next payload received on a channel.
	TryReceive(ch ChannelID) (data []byte, ok bool)

	// TryEvent pops the next connection event.
	TryEvent() (Event, bool)

	// Flush hands all buffered payloads to the network.
	Flush() error
}
