package game_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spacegame/netsync/game"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/transport/loopback"
	"github.com/spacegame/netsync/world"
)

type player struct {
	app   *netsync.Client
	game  *game.Client
	world *world.ECS
}

func (p *player) conn() transport.ConnID {
	return p.app.ConnID()
}

var _ = Describe("Game session", func() {
	var (
		network     *loopback.Network
		serverWorld *world.ECS
		server      *netsync.Server
		g           *game.Server
		players     []*player
	)

	join := func() *player {
		raw := network.Connect()
		w := world.NewECS()
		app := netsync.MakeClientBuilder().
			WithTransport(raw).
			WithWorld(w).
			Build("Client")

		p := &player{app: app, game: game.NewClient(app, w), world: w}
		players = append(players, p)

		return p
	}

	// round lets the clients send, then the server answer, then the clients
	// apply the answer.
	round := func() {
		for _, p := range players {
			p.app.Tick()
		}

		server.Tick()

		for _, p := range players {
			p.app.Tick()
		}
	}

	hull := func(x int32) game.Block {
		return game.Block{Pos: game.BlockPos{X: x}, Type: game.Hull}
	}

	BeforeEach(func() {
		network = loopback.NewNetwork()
		serverWorld = world.NewECS()
		server = netsync.MakeServerBuilder().
			WithTransport(network.Server()).
			WithWorld(serverWorld).
			WithFreq(10 * sim.Hz).
			Build("Server")
		g = game.NewServer(server, serverWorld)
		players = nil
	})

	It("should refuse a foreign world", func() {
		s := netsync.MakeServerBuilder().
			WithTransport(loopback.NewNetwork().Server()).
			Build("Other")

		Expect(func() { game.NewServer(s, world.NewECS()) }).To(Panic())
	})

	It("should present the protocol fingerprint on both sides", func() {
		a := join()

		Expect(server.Registry().Fingerprint()).
			To(Equal(game.NewRegistry().Fingerprint()))
		Expect(a.app.Registry().Fingerprint()).
			To(Equal(game.NewRegistry().Fingerprint()))
	})

	It("should announce players to each other", func() {
		a := join()
		round()
		b := join()
		round()

		Expect(a.game.NumPlayers()).To(Equal(2))
		Expect(b.game.NumPlayers()).To(Equal(2))

		self, found := a.game.Self()
		Expect(found).To(BeTrue())
		t, _ := a.game.Transform(self)
		Expect(t).To(Equal(game.SpawnPoint))

		_, found = b.game.Player(a.conn())
		Expect(found).To(BeTrue())
	})

	It("should send existing ships to joining players", func() {
		g.SpawnShip(game.Transform{X: 10}, []game.Block{hull(0), hull(1)})

		a := join()
		round()

		ships := a.game.Ships()
		Expect(ships).To(HaveLen(1))
		t, _ := a.game.Transform(ships[0])
		Expect(t).To(Equal(game.Transform{X: 10}))
		Expect(a.game.Blocks(ships[0])).To(Equal([]game.Block{hull(0), hull(1)}))
	})

	It("should relay moves to the other players", func() {
		a := join()
		b := join()
		round()

		to := game.Transform{X: 4, Y: 2, Angle: 1}
		a.game.Move(to)
		round()

		aBody, _ := b.game.Player(a.conn())
		t, _ := b.game.Transform(aBody)
		Expect(t).To(Equal(to))

		self, _ := a.game.Self()
		t, _ = a.game.Transform(self)
		Expect(t).To(Equal(to))

		serverBody, _ := g.Player(a.conn())
		Expect(serverWorld.Lookup(serverBody)).NotTo(BeNil())
		Expect(*game.TransformComponent.Get(serverWorld.Lookup(serverBody))).
			To(Equal(to))
	})

	Context("with a ship", func() {
		var (
			a, b  *player
			ship  netid.Handle
			aShip netid.Handle
			bShip netid.Handle
		)

		shipInfo := func(p *player) netid.Handle {
			ships := p.game.Ships()
			Expect(ships).To(HaveLen(1))

			return ships[0]
		}

		BeforeEach(func() {
			ship = g.SpawnShip(game.Transform{}, []game.Block{hull(0), hull(1)})
			a = join()
			b = join()
			round()

			aShip = shipInfo(a)
			bShip = shipInfo(b)
		})

		It("should place and remove blocks", func() {
			a.game.PlaceBlock(aShip, game.BlockPos{X: 2}, game.Thruster)
			round()

			want := []game.Block{
				hull(0), hull(1),
				{Pos: game.BlockPos{X: 2}, Type: game.Thruster},
			}
			Expect(a.game.Blocks(aShip)).To(Equal(want))
			Expect(b.game.Blocks(bShip)).To(Equal(want))

			b.game.RemoveBlock(bShip, game.BlockPos{X: 0})
			round()

			want = []game.Block{
				hull(1),
				{Pos: game.BlockPos{X: 2}, Type: game.Thruster},
			}
			Expect(a.game.Blocks(aShip)).To(Equal(want))
			Expect(b.game.Blocks(bShip)).To(Equal(want))
		})

		It("should ignore invalid block types", func() {
			a.game.PlaceBlock(aShip, game.BlockPos{X: 2}, game.BlockType(0))
			round()

			Expect(b.game.Blocks(bShip)).To(HaveLen(2))
		})

		It("should despawn ships without blocks", func() {
			a.game.RemoveBlock(aShip, game.BlockPos{X: 0})
			a.game.RemoveBlock(aShip, game.BlockPos{X: 1})
			round()

			Expect(a.game.Ships()).To(BeEmpty())
			Expect(b.game.Ships()).To(BeEmpty())
			Expect(g.Ships()).To(BeEmpty())
			Expect(serverWorld.Alive(ship)).To(BeFalse())

			_, found := server.IDs().FromLocal(ship)
			Expect(found).To(BeFalse())
		})

		It("should allow a single pilot", func() {
			a.game.EnterShip(aShip)
			b.game.EnterShip(bShip)
			round()

			for _, p := range []*player{a, b} {
				pilot, piloted := p.game.Pilot(shipInfo(p))
				Expect(piloted).To(BeTrue())
				Expect(pilot).To(Equal(a.conn()))
			}

			aBody, _ := b.game.Player(a.conn())
			entry := b.world.Lookup(bShip)
			Expect(game.ShipComponent.Get(entry).Body).To(Equal(aBody))
		})

		It("should only follow the thrust of the pilot", func() {
			a.game.EnterShip(aShip)
			round()

			b.game.Thrust(bShip, game.Force{X: 10})
			round()

			t, _ := b.game.Transform(bShip)
			Expect(t).To(Equal(game.Transform{}))

			a.game.Thrust(aShip, game.Force{X: 10})
			round()

			// Two blocks, 10Hz: v = 10 / 2 * 0.1, x = v * 0.1.
			t, _ = b.game.Transform(bShip)
			Expect(t.X).To(BeNumerically("~", 0.05, 1e-9))

			entry := serverWorld.Lookup(ship)
			Expect(game.VelocityComponent.Get(entry).X).
				To(BeNumerically("~", 0.5, 1e-9))
		})

		It("should bound the thrust", func() {
			a.game.EnterShip(aShip)
			round()

			a.game.Thrust(aShip, game.Force{X: 1000, Y: -1000})
			round()

			entry := serverWorld.Lookup(ship)
			Expect(*game.ThrustComponent.Get(entry)).To(Equal(game.Force{
				X: game.MaxThrust,
				Y: -game.MaxThrust,
			}))
		})

		It("should release the ship when the pilot leaves it", func() {
			a.game.EnterShip(aShip)
			round()

			b.game.LeaveShip(bShip)
			round()

			_, piloted := b.game.Pilot(bShip)
			Expect(piloted).To(BeTrue())

			a.game.LeaveShip(aShip)
			round()

			_, piloted = b.game.Pilot(bShip)
			Expect(piloted).To(BeFalse())
		})

		It("should clean up after a player disconnects", func() {
			a.game.EnterShip(aShip)
			round()

			body, _ := g.Player(a.conn())
			network.Disconnect(a.conn())
			round()

			Expect(b.game.NumPlayers()).To(Equal(1))
			_, piloted := b.game.Pilot(bShip)
			Expect(piloted).To(BeFalse())

			_, found := g.Player(a.conn())
			Expect(found).To(BeFalse())
			Expect(serverWorld.Alive(body)).To(BeFalse())
		})
	})
})
