package ws

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

type welcome struct {
	Conn transport.ConnID
}

type packet struct {
	from transport.ConnID
	data []byte
}

type fanout int

const (
	unicast fanout = iota
	broadcast
	broadcastExcept
)

type outgoing struct {
	ch     transport.ChannelID
	fanout fanout
	conn   transport.ConnID
	data   []byte
}

// Server accepts websocket clients. It implements transport.Server and
// http.Handler.
type Server struct {
	cfg         Config
	fingerprint string
	upgrader    websocket.Upgrader

	lock     sync.Mutex
	nextConn transport.ConnID
	peers    map[transport.ConnID]*peer
	order    []transport.ConnID
	inbox    map[transport.ChannelID]sim.Buffer
	events   sim.Buffer
	outbox   []outgoing

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server that accepts clients presenting fingerprint.
func NewServer(fingerprint string, cfg Config) *Server {
	return &Server{
		cfg:         cfg,
		fingerprint: fingerprint,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		nextConn: 1,
		peers:    make(map[transport.ConnID]*peer),
		inbox:    make(map[transport.ChannelID]sim.Buffer),
		events:   sim.NewBuffer("WSServer.Events", 0),
	}
}

// Listen starts serving websocket upgrades on addr in the background.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", s)

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: s.cfg.HandshakeTimeout,
	}

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("websocket server stopped: %v", err)
		}
	}()

	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Close stops listening and drops all clients.
func (s *Server) Close() error {
	s.lock.Lock()
	for _, id := range append([]transport.ConnID(nil), s.order...) {
		s.drop(id)
	}
	s.lock.Unlock()

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Close()
}

// ServeHTTP upgrades a request to a websocket client connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get(ProtocolHeader); got != s.fingerprint {
		http.Error(w, "protocol mismatch", http.StatusPreconditionFailed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.lock.Lock()
	id := s.nextConn
	s.nextConn++
	s.lock.Unlock()

	if err := s.sendWelcome(conn, id); err != nil {
		log.Printf("welcome to %s failed: %v", id, err)
		_ = conn.Close()

		return
	}

	p := newPeer(conn, s.cfg)

	s.lock.Lock()
	s.peers[id] = p
	s.order = append(s.order, id)
	s.events.Push(transport.Event{Kind: transport.Connected, Conn: id})
	s.lock.Unlock()

	go p.writeLoop(func() { s.Disconnect(id) })
	go s.readLoop(id, p)
}

func (s *Server) sendWelcome(conn *websocket.Conn, id transport.ConnID) error {
	payload, err := message.Marshal(welcome{Conn: id})
	if err != nil {
		return err
	}

	frame, err := encodeFrame(flagControl, 0, payload, 0)
	if err != nil {
		return err
	}

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}

	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *Server) readLoop(id transport.ConnID, p *peer) {
	defer s.Disconnect(id)

	limiter := s.cfg.newLimiter()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		if limiter != nil && !limiter.Allow() {
			log.Printf("%s exceeded the inbound rate, disconnecting", id)
			return
		}

		flags, ch, payload, err := decodeFrame(data, s.cfg.MaxMessageSize)
		if err != nil || flags&flagControl != 0 {
			log.Printf("%s sent a malformed frame, disconnecting", id)
			return
		}

		s.lock.Lock()
		s.channel(ch).Push(packet{from: id, data: payload})
		s.lock.Unlock()
	}
}

func (s *Server) channel(ch transport.ChannelID) sim.Buffer {
	buf, found := s.inbox[ch]
	if !found {
		buf = sim.NewBuffer(fmt.Sprintf("WSServer.Ch%d", ch), 0)
		s.inbox[ch] = buf
	}

	return buf
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
	s.lock.Lock()
	defer s.lock.Unlock()

	s.outbox = append(s.outbox, o)
}

// TryReceive pops the next payload received on a channel.
func (s *Server) TryReceive(
	ch transport.ChannelID,
) (transport.ConnID, []byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	item := s.channel(ch).Pop()
	if item == nil {
		return 0, nil, false
	}

	p := item.(packet)

	return p.from, p.data, true
}

// TryEvent pops the next connection event.
func (s *Server) TryEvent() (transport.Event, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	item := s.events.Pop()
	if item == nil {
		return transport.Event{}, false
	}

	return item.(transport.Event), true
}

// Disconnect closes the connection of a client.
func (s *Server) Disconnect(conn transport.ConnID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.drop(conn)
}

func (s *Server) drop(conn transport.ConnID) {
	p, found := s.peers[conn]
	if !found {
		return
	}

	delete(s.peers, conn)
	for i, id := range s.order {
		if id == conn {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	p.close()
	s.events.Push(transport.Event{Kind: transport.Disconnected, Conn: conn})
}

// Clients lists the connected clients in connection order.
func (s *Server) Clients() []transport.ConnID {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]transport.ConnID(nil), s.order...)
}

// Flush frames the queued payloads and hands them to the connection writers.
// Every payload is framed once regardless of the number of recipients.
// Clients whose send queue is full are disconnected.
func (s *Server) Flush() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	outbox := s.outbox
	s.outbox = nil

	var slow []transport.ConnID

	for _, o := range outbox {
		frame, err := encodeFrame(0, o.ch, o.data, s.cfg.CompressThreshold)
		if err != nil {
			return err
		}

		for _, id := range s.order {
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

			if err := s.peers[id].enqueue(frame); err != nil {
				slow = append(slow, id)
			}
		}
	}

	for _, id := range slow {
		log.Printf("%s cannot keep up, disconnecting", id)
		s.drop(id)
	}

	return nil
}
