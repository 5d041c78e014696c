package ws

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
)

var _ = Describe("Frame", func() {
	It("should keep small payloads uncompressed", func() {
		frame, err := encodeFrame(0, 1, []byte("abc"), 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame).To(Equal([]byte{0, 1, 'a', 'b', 'c'}))

		flags, ch, payload, err := decodeFrame(frame, 1024)
		Expect(err).NotTo(HaveOccurred())
		Expect(flags).To(Equal(byte(0)))
		Expect(ch).To(BeEquivalentTo(1))
		Expect(payload).To(Equal([]byte("abc")))
	})

	It("should compress large payloads", func() {
		payload := bytes.Repeat([]byte("spaceship "), 200)

		frame, err := encodeFrame(0, 0, payload, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame[0] & flagCompressed).NotTo(BeZero())
		Expect(len(frame)).To(BeNumerically("<", len(payload)))

		_, _, decoded, err := decodeFrame(frame, 1<<20)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(payload))
	})

	It("should reject oversized payloads", func() {
		payload := bytes.Repeat([]byte{0}, 4096)

		frame, err := encodeFrame(0, 0, payload, 64)
		Expect(err).NotTo(HaveOccurred())

		_, _, _, err = decodeFrame(frame, 1024)
		Expect(err).To(HaveOccurred())
	})

	It("should reject short frames", func() {
		_, _, _, err := decodeFrame([]byte{0}, 1024)

		Expect(err).To(MatchError(errShortFrame))
	})
})

var _ = Describe("Peer", func() {
	var p *peer

	BeforeEach(func() {
		p = &peer{
			send: make(chan []byte, 1),
			done: make(chan struct{}),
		}
	})

	It("should report a full send queue", func() {
		Expect(p.enqueue([]byte{1})).To(Succeed())
		Expect(p.enqueue([]byte{2})).To(MatchError(ErrSendQueueFull))
	})

	It("should report a closed connection", func() {
		p.close()

		Expect(p.enqueue([]byte{1})).To(MatchError(ErrConnectionClosed))
	})

	It("should fail client flushes after the peer closed", func() {
		c := &Client{
			peer:      p,
			connected: true,
			inbox:     make(map[transport.ChannelID]sim.Buffer),
			events:    sim.NewBuffer("WSClient.Events", 0),
		}
		c.Send(0, []byte("late"))
		p.close()

		Expect(c.Flush()).To(MatchError(ErrConnectionClosed))
		Expect(c.Connected()).To(BeFalse())
	})
})
