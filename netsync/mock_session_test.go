package netsync_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/spacegame/netsync/message"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/transport"
)

var _ = Describe("Server", func() {
	var (
		mockCtrl      *gomock.Controller
		mockTransport *MockServer
		server        *netsync.Server
		notices       *netsync.ServerEndpoint[notice]
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockTransport = NewMockServer(mockCtrl)

		server = netsync.MakeServerBuilder().
			WithTransport(mockTransport).
			Build("Server")
		netsync.AddServerEvent(server, pokeType)
		notices = netsync.AddServerEvent(server, noticeType)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should encode once and hand the bytes to the transport", func() {
		var sent []byte

		gomock.InOrder(
			mockTransport.EXPECT().TryEvent().Return(transport.Event{}, false),
			mockTransport.EXPECT().
				TryReceive(message.ReliableChannel).
				Return(transport.ConnID(0), nil, false),
			mockTransport.EXPECT().
				TryReceive(message.UnreliableChannel).
				Return(transport.ConnID(0), nil, false),
			mockTransport.EXPECT().
				BroadcastExcept(message.UnreliableChannel, transport.ConnID(3), gomock.Any()).
				Do(func(_ transport.ChannelID, _ transport.ConnID, data []byte) {
					sent = data
				}).
				Times(1),
			mockTransport.EXPECT().Flush().Return(nil),
		)

		notices.BroadcastExcept(3, notice{Text: "hi"})
		server.Tick()

		env, err := message.DecodeEnvelope(sent)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Kind).To(Equal(noticeType.Kind()))

		msg, err := noticeType.Decode(env.Data)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Text).To(Equal("hi"))
	})

	It("should disconnect peers sending unknown kinds", func() {
		garbage, err := message.EncodeEnvelope(99, []byte{})
		Expect(err).NotTo(HaveOccurred())

		gomock.InOrder(
			mockTransport.EXPECT().TryEvent().
				Return(transport.Event{Kind: transport.Connected, Conn: 5}, true),
			mockTransport.EXPECT().TryEvent().Return(transport.Event{}, false),
			mockTransport.EXPECT().
				TryReceive(message.ReliableChannel).
				Return(transport.ConnID(5), garbage, true),
			mockTransport.EXPECT().Disconnect(transport.ConnID(5)),
			mockTransport.EXPECT().
				TryReceive(message.ReliableChannel).
				Return(transport.ConnID(0), nil, false),
			mockTransport.EXPECT().
				TryReceive(message.UnreliableChannel).
				Return(transport.ConnID(0), nil, false),
			mockTransport.EXPECT().Flush().Return(nil),
		)

		server.Tick()

		Expect(server.Connected(5)).To(BeFalse())
	})
})

var _ = Describe("Client", func() {
	var (
		mockCtrl      *gomock.Controller
		mockTransport *MockClient
		client        *netsync.Client
		pokes         *netsync.ClientEndpoint[poke]
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockTransport = NewMockClient(mockCtrl)

		client = netsync.MakeClientBuilder().
			WithTransport(mockTransport).
			Build("Client")
		pokes = netsync.AddClientEvent(client, pokeType)

		mockTransport.EXPECT().TryEvent().Return(transport.Event{}, false).AnyTimes()
		mockTransport.EXPECT().TryReceive(gomock.Any()).Return(nil, false).AnyTimes()
		mockTransport.EXPECT().Flush().Return(nil).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should stamp the sender right before sending", func() {
		h := client.World().Spawn()
		client.IDs().InsertWithID(h, 77)

		var sent []byte
		mockTransport.EXPECT().ID().Return(transport.ConnID(9)).AnyTimes()
		mockTransport.EXPECT().
			Send(message.ReliableChannel, gomock.Any()).
			Do(func(_ transport.ChannelID, data []byte) { sent = data })

		pokes.Send(poke{Sender: 1234, Target: netid.RefTo(h)})
		client.Tick()

		env, err := message.DecodeEnvelope(sent)
		Expect(err).NotTo(HaveOccurred())
		msg, err := pokeType.Decode(env.Data)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Sender).To(BeEquivalentTo(9))
		Expect(msg.Target.ID()).To(Equal(netid.ID(77)))
	})

	It("should not send unresolvable messages", func() {
		mockTransport.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

		pokes.Send(poke{Target: netid.RefTo(1)})
		client.Tick()
	})
})
