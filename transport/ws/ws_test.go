package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/transport/ws"
)

var _ = Describe("Websocket transport", func() {
	const fingerprint = "abc123"

	var (
		cfg     ws.Config
		server  *ws.Server
		httpSrv *httptest.Server
		url     string
	)

	dial := func(fp string) (*ws.Client, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		return ws.Dial(ctx, url, fp, cfg)
	}

	BeforeEach(func() {
		cfg = ws.DefaultConfig()
		cfg.CompressThreshold = 32
	})

	JustBeforeEach(func() {
		server = ws.NewServer(fingerprint, cfg)
		httpSrv = httptest.NewServer(server)
		url = "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	})

	AfterEach(func() {
		Expect(server.Close()).To(Succeed())
		httpSrv.Close()
	})

	It("should assign connection ids", func() {
		a, err := dial(fingerprint)
		Expect(err).NotTo(HaveOccurred())
		b, err := dial(fingerprint)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.ID()).NotTo(Equal(b.ID()))
		Eventually(server.Clients).Should(ConsistOf(a.ID(), b.ID()))

		e, ok := a.TryEvent()
		Expect(ok).To(BeTrue())
		Expect(e).To(Equal(transport.Event{Kind: transport.Connected, Conn: a.ID()}))
	})

	It("should refuse other protocols", func() {
		_, err := dial("other")

		Expect(err).To(MatchError(ws.ErrProtocolMismatch))
	})

	It("should carry payloads both ways", func() {
		a, err := dial(fingerprint)
		Expect(err).NotTo(HaveOccurred())
		b, err := dial(fingerprint)
		Expect(err).NotTo(HaveOccurred())
		Eventually(server.Clients).Should(HaveLen(2))

		big := []byte(strings.Repeat("block ", 100))
		a.Send(0, big)
		Expect(a.Flush()).To(Succeed())

		Eventually(func() []byte {
			from, data, ok := server.TryReceive(0)
			if !ok {
				return nil
			}
			Expect(from).To(Equal(a.ID()))
			return data
		}).Should(Equal(big))

		server.BroadcastExcept(1, a.ID(), []byte("moved"))
		Expect(server.Flush()).To(Succeed())

		Eventually(func() []byte {
			data, _ := b.TryReceive(1)
			return data
		}).Should(Equal([]byte("moved")))
		Consistently(func() bool {
			_, ok := a.TryReceive(1)
			return ok
		}, 100*time.Millisecond).Should(BeFalse())
	})

	It("should report disconnections", func() {
		a, err := dial(fingerprint)
		Expect(err).NotTo(HaveOccurred())
		Eventually(server.Clients).Should(HaveLen(1))

		server.Disconnect(a.ID())

		Eventually(a.Connected).Should(BeFalse())
		Expect(server.Clients()).To(BeEmpty())
	})

	Context("with a tight inbound rate", func() {
		BeforeEach(func() {
			cfg.InboundRate = 1
			cfg.InboundBurst = 2
		})

		It("should disconnect flooding clients", func() {
			a, err := dial(fingerprint)
			Expect(err).NotTo(HaveOccurred())
			Eventually(server.Clients).Should(HaveLen(1))

			for i := 0; i < 20; i++ {
				a.Send(0, []byte("spam"))
			}
			Expect(a.Flush()).To(Succeed())

			Eventually(server.Clients).Should(BeEmpty())
			Eventually(a.Connected).Should(BeFalse())
		})
	})
})
