// Package loopback provides an in-memory transport. Payloads sent by one side
// become visible to the other side when the sender flushes. Delivery is
// reliable and ordered per channel.
package loopback

import (
	"fmt"
	"sync"

	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

type packet struct {
	from transport.ConnID
	data []byte
}

type outgoing struct {
	ch     transport.ChannelID
	fanout fanout
	conn   transport.ConnID
	data   []byte
}

type fanout int

const (
	unicast fanout = iota
	broadcast
	broadcastExcept
)

// inbox buffers the packets received by one endpoint.
type inbox struct {
	name     string
	channels map[transport.ChannelID]sim.Buffer
	events   sim.Buffer
}

func newInbox(name string) *inbox {
	return &inbox{
		name:     name,
		channels: make(map[transport.ChannelID]sim.Buffer),
		events:   sim.NewBuffer(name+".Events", 0),
	}
}

func (in *inbox) channel(ch transport.ChannelID) sim.Buffer {
	buf, found := in.channels[ch]
	if !found {
		buf = sim.NewBuffer(fmt.Sprintf("%s.Ch%d", in.name, ch), 0)
		in.channels[ch] = buf
	}

	return buf
}

// A Network connects one server with any number of clients.
type Network struct {
	lock     sync.Mutex
	nextConn transport.ConnID
	server   *Server
	clients  map[transport.ConnID]*Client
	order    []transport.ConnID
}

// NewNetwork creates a network with a server and no clients.
func NewNetwork() *Network {
	n := &Network{
		nextConn: 1,
		clients:  make(map[transport.ConnID]*Client),
	}
	n.server = &Server{network: n, inbox: newInbox("Server")}

	return n
}

// Server returns the server end of the network.
func (n *Network) Server() *Server {
	return n.server
}

// Connect creates a new client and connects it to the server. Both sides
// observe a Connected event.
func (n *Network) Connect() *Client {
	n.lock.Lock()
	defer n.lock.Unlock()

	id := n.nextConn
	n.nextConn++

	c := &Client{
		network:   n,
		id:        id,
		connected: true,
		inbox:     newInbox(id.String()),
	}
	n.clients[id] = c
	n.order = append(n.order, id)

	event := transport.Event{Kind: transport.Connected, Conn: id}
	n.server.inbox.events.Push(event)
	c.inbox.events.Push(event)

	return c
}

// Disconnect disconnects a client. Both sides observe a Disconnected event.
func (n *Network) Disconnect(conn transport.ConnID) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.disconnect(conn)
}

func (n *Network) disconnect(conn transport.ConnID) {
	c, found := n.clients[conn]
	if !found {
		return
	}

	delete(n.clients, conn)
	for i, id := range n.order {
		if id == conn {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}

	c.connected = false
	c.outbox = nil

	event := transport.Event{Kind: transport.Disconnected, Conn: conn}
	n.server.inbox.events.Push(event)
	c.inbox.events.Push(event)
}

// Server is the server end of a loopback network.
type Server struct {
	network *Network
	inbox   *inbox
	outbox  []outgoing
}

// Send queues data for one client.
func (s *Server) Send(ch transport.ChannelID, conn transport.ConnID, data []byte) {
	s.queue(outgoing{ch: ch, fanout: unicast, conn: conn, data: data})
}

// Broadcast queues data for every client.
func (s *Server) Broadcast(ch transport.ChannelID, data []byte) {
	s.queue(outgoing{ch: ch, fanout: broadcast, data: data})
}

// BroadcastExcept queues data for every client except one.
func (s *Server) BroadcastExcept(
	ch transport.ChannelID,
	except transport.ConnID,
	data []byte,
) {
	s.queue(outgoing{ch: ch, fanout: broadcastExcept, conn: except, data: data})
}

func (s *Server) queue(o outgoing) {
	s.network.lock.Lock()
	defer s.network.lock.Unlock()

	s.outbox = append(s.outbox, o)
}

// TryReceive pops the next packet received on a channel.
func (s *Server) TryReceive(
	ch transport.ChannelID,
) (transport.ConnID, []byte, bool) {
	s.network.lock.Lock()
	defer s.network.lock.Unlock()

	item := s.inbox.channel(ch).Pop()
	if item == nil {
		return 0, nil, false
	}

	p := item.(packet)

	return p.from, p.data, true
}

// TryEvent pops the next connection event.
func (s *Server) TryEvent() (transport.Event, bool) {
	s.network.lock.Lock()
	defer s.network.lock.Unlock()

	item := s.inbox.events.Pop()
	if item == nil {
		return transport.Event{}, false
	}

	return item.(transport.Event), true
}

// Disconnect drops a client.
func (s *Server) Disconnect(conn transport.ConnID) {
	s.network.Disconnect(conn)
}

// Clients lists the connected clients in connection order.
func (s *Server) Clients() []transport.ConnID {
	s.network.lock.Lock()
	defer s.network.lock.Unlock()

	return append([]transport.ConnID(nil), s.network.order...)
}

// Flush delivers the queued packets to the clients.
func (s *Server) Flush() error {
	n := s.network

	n.lock.Lock()
	defer n.lock.Unlock()

	for _, o := range s.outbox {
		for _, id := range n.order {
			switch o.fanout {
			case unicast:
				if id != o.conn {
					continue
				}
			case broadcastExcept:
				if id == o.conn {
					continue
				}
			}

			n.clients[id].inbox.channel(o.ch).Push(packet{data: o.data})
		}
	}

	s.outbox = nil

	return nil
}

// Client is a client end of a loopback network.
type Client struct {
	network   *Network
	id        transport.ConnID
	connected bool
	inbox     *inbox
	outbox    []outgoing
}

// ID returns the connection ID assigned by the network.
func (c *Client) ID() transport.ConnID {
	return c.id
}

// Connected tells if the client is still connected.
func (c *Client) Connected() bool {
	c.network.lock.Lock()
	defer c.network.lock.Unlock()

	return c.connected
}

// Send queues data for the server. Data sent while disconnected is lost.
func (c *Client) Send(ch transport.ChannelID, data []byte) {
	c.network.lock.Lock()
	defer c.network.lock.Unlock()

	if !c.connected {
		return
	}

	c.outbox = append(c.outbox, outgoing{ch: ch, data: data})
}

// TryReceive pops the next packet received on a channel.
func (c *Client) TryReceive(ch transport.ChannelID) ([]byte, bool) {
	c.network.lock.Lock()
	defer c.network.lock.Unlock()

	item := c.inbox.channel(ch).Pop()
	if item == nil {
		return nil, false
	}

	return item.(packet).data, true
}

// TryEvent pops the next connection event.
func (c *Client) TryEvent() (transport.Event, bool) {
	c.network.lock.Lock()
	defer c.network.lock.Unlock()

	item := c.inbox.events.Pop()
	if item == nil {
		return transport.Event{}, false
	}

	return item.(transport.Event), true
}

// Disconnect closes the connection from the client side.
func (c *Client) Disconnect() {
	c.network.Disconnect(c.id)
}

// Flush delivers the queued packets to the server.
func (c *Client) Flush() error {
	n := c.network

	n.lock.Lock()
	defer n.lock.Unlock()

	if !c.connected {
		c.outbox = nil
		return nil
	}

	for _, o := range c.outbox {
		n.server.inbox.channel(o.ch).Push(packet{from: c.id, data: o.data})
	}

	c.outbox = nil

	return nil
}
