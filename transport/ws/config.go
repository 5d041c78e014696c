// Package ws implements the transport interfaces over websockets.
//
// Every websocket binary message carries one frame:
//
//	[flags u8][channel u8][payload]
//
// Flag bit 0 marks an lz4 compressed payload. Flag bit 1 marks a control
// frame. The only control frame is the welcome frame that the server sends
// right after the upgrade. It carries the connection ID assigned to the
// client.
//
// A client must present the protocol fingerprint of its message registry in
// the ProtocolHeader request header. The server refuses clients whose
// fingerprint differs from its own.
package ws

import (
	"time"

	"golang.org/x/time/rate"
)

// ProtocolHeader is the handshake header carrying the protocol fingerprint.
const ProtocolHeader = "X-Spacesync-Protocol"

// Config tunes a websocket transport.
type Config struct {
	// CompressThreshold is the payload size from which frames are
	// compressed. Zero disables compression.
	CompressThreshold int

	// InboundRate limits the frames a server accepts per second from one
	// connection. Peers exceeding the limit are disconnected. Zero disables
	// the limit.
	InboundRate  rate.Limit
	InboundBurst int

	// SendQueue is the number of frames buffered per connection. Peers that
	// fall further behind are disconnected.
	SendQueue int

	MaxMessageSize   int64
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		CompressThreshold: 512,
		InboundRate:       240,
		InboundBurst:      480,
		SendQueue:         1024,
		MaxMessageSize:    1 << 20,
		WriteTimeout:      5 * time.Second,
		HandshakeTimeout:  5 * time.Second,
	}
}

func (c Config) newLimiter() *rate.Limiter {
	if c.InboundRate <= 0 {
		return nil
	}

	burst := c.InboundBurst
	if burst <= 0 {
		burst = 1
	}

	return rate.NewLimiter(c.InboundRate, burst)
}
