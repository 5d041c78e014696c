package resolve_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/resolve"
	"github.com/spacegame/netsync/transport"
	"github.com/spacegame/netsync/world"
)

type attack struct {
	Sender   transport.ConnID
	Weapon   netid.Ref
	Attacker netid.Ref
	Target   netid.Ref
	Witness  *netid.Ref
}

func attackTable() resolve.Table[attack] {
	return resolve.NewTable(
		resolve.IgnoreField("witness",
			func(m *attack) **netid.Ref { return &m.Witness }),
		resolve.CreateField("weapon",
			func(m *attack) *netid.Ref { return &m.Weapon }),
		resolve.DropField("attacker",
			func(m *attack) *netid.Ref { return &m.Attacker }),
		resolve.DropField("target",
			func(m *attack) *netid.Ref { return &m.Target }),
	).WithSender(func(m *attack) *transport.ConnID { return &m.Sender })
}

var _ = Describe("Table", func() {
	var (
		mockCtrl *gomock.Controller
		w        *MockWorld
		ids      *netid.Map
		table    resolve.Table[attack]
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		w = NewMockWorld(mockCtrl)
		ids = netid.NewMap()
		table = attackTable()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should order fields by policy", func() {
		Expect(table.Fields()).To(Equal([]resolve.FieldInfo{
			{Name: "attacker", Policy: resolve.Drop},
			{Name: "target", Policy: resolve.Drop},
			{Name: "weapon", Policy: resolve.Create},
			{Name: "witness", Policy: resolve.Ignore},
		}))
	})

	It("should stamp the sender", func() {
		msg := attack{}

		table.StampSender(&msg, 3)

		Expect(table.HasSender()).To(BeTrue())
		Expect(msg.Sender).To(Equal(transport.ConnID(3)))
	})

	It("should not stamp types without sender", func() {
		plain := resolve.NewTable(
			resolve.DropField("target",
				func(m *attack) *netid.Ref { return &m.Target }))
		msg := attack{}

		plain.StampSender(&msg, 3)

		Expect(plain.HasSender()).To(BeFalse())
		Expect(msg.Sender).To(Equal(transport.ConnID(0)))
	})

	Context("entity to network", func() {
		It("should translate registered handles", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			ids.InsertWithID(3, 300)
			witness := netid.RefTo(1)
			msg := attack{
				Attacker: netid.RefTo(1),
				Target:   netid.RefTo(2),
				Weapon:   netid.RefTo(3),
				Witness:  &witness,
			}

			Expect(table.EntityToNetwork(&msg, ids, w)).To(BeTrue())

			Expect(msg.Attacker.ID()).To(Equal(netid.ID(100)))
			Expect(msg.Target.ID()).To(Equal(netid.ID(200)))
			Expect(msg.Weapon.ID()).To(Equal(netid.ID(300)))
			Expect(msg.Witness.ID()).To(Equal(netid.ID(100)))
			Expect(witness.Handle()).To(Equal(netid.Handle(1)))
		})

		It("should fail on unregistered drop fields", func() {
			ids.InsertWithID(1, 100)
			msg := attack{
				Attacker: netid.RefTo(1),
				Target:   netid.RefTo(2),
				Weapon:   netid.RefTo(3),
			}

			Expect(table.EntityToNetwork(&msg, ids, w)).To(BeFalse())

			_, found := ids.FromLocal(3)
			Expect(found).To(BeFalse())
		})

		It("should register create fields", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			msg := attack{
				Attacker: netid.RefTo(1),
				Target:   netid.RefTo(2),
				Weapon:   netid.RefTo(3),
			}
			w.EXPECT().SetNetworkID(netid.Handle(3), gomock.Any())

			Expect(table.EntityToNetwork(&msg, ids, w)).To(BeTrue())

			id, found := ids.FromLocal(3)
			Expect(found).To(BeTrue())
			Expect(msg.Weapon.ID()).To(Equal(id))
		})

		It("should clear unresolved optional fields", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			ids.InsertWithID(3, 300)
			msg := attack{
				Attacker: netid.RefTo(1),
				Target:   netid.RefTo(2),
				Weapon:   netid.RefTo(3),
				Witness:  netid.OptionalRefTo(9),
			}

			Expect(table.EntityToNetwork(&msg, ids, w)).To(BeTrue())
			Expect(msg.Witness).To(BeNil())
		})
	})

	Context("network to entity", func() {
		It("should resolve known ids to their handles", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			ids.InsertWithID(3, 300)
			msg := attack{
				Attacker: netid.RefToID(100),
				Target:   netid.RefToID(200),
				Weapon:   netid.RefToID(300),
				Witness:  nil,
			}

			Expect(table.NetworkToEntity(&msg, ids, w)).To(BeTrue())

			Expect(msg.Attacker.Handle()).To(Equal(netid.Handle(1)))
			Expect(msg.Target.Handle()).To(Equal(netid.Handle(2)))
			Expect(msg.Weapon.Handle()).To(Equal(netid.Handle(3)))
			Expect(msg.Witness).To(BeNil())
		})

		It("should drop messages with unknown drop fields", func() {
			ids.InsertWithID(1, 100)
			msg := attack{
				Attacker: netid.RefToID(100),
				Target:   netid.RefToID(999),
				Weapon:   netid.RefToID(300),
			}

			Expect(table.NetworkToEntity(&msg, ids, w)).To(BeFalse())
		})

		It("should not create objects when dropping", func() {
			msg := attack{
				Attacker: netid.RefToID(999),
				Target:   netid.RefToID(998),
				Weapon:   netid.RefToID(300),
			}
			w.EXPECT().Spawn().Times(0)

			Expect(table.NetworkToEntity(&msg, ids, w)).To(BeFalse())

			_, found := ids.FromWire(300)
			Expect(found).To(BeFalse())
		})

		It("should create objects once", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			w.EXPECT().Spawn().Return(netid.Handle(7)).Times(1)
			w.EXPECT().SetNetworkID(netid.Handle(7), netid.ID(300)).Times(1)

			for i := 0; i < 2; i++ {
				msg := attack{
					Attacker: netid.RefToID(100),
					Target:   netid.RefToID(200),
					Weapon:   netid.RefToID(300),
				}

				Expect(table.NetworkToEntity(&msg, ids, w)).To(BeTrue())
				Expect(msg.Weapon.Handle()).To(Equal(netid.Handle(7)))
			}

			Expect(ids.Len()).To(Equal(3))
		})

		It("should discard create fields without id", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			msg := attack{
				Attacker: netid.RefToID(100),
				Target:   netid.RefToID(200),
				Weapon:   netid.RefToID(netid.NoID),
			}

			Expect(table.NetworkToEntity(&msg, ids, w)).To(BeFalse())
		})

		It("should pass through unknown optional fields as nil", func() {
			ids.InsertWithID(1, 100)
			ids.InsertWithID(2, 200)
			ids.InsertWithID(3, 300)
			unknown := netid.RefToID(555)
			msg := attack{
				Attacker: netid.RefToID(100),
				Target:   netid.RefToID(200),
				Weapon:   netid.RefToID(300),
				Witness:  &unknown,
			}

			Expect(table.NetworkToEntity(&msg, ids, w)).To(BeTrue())
			Expect(msg.Witness).To(BeNil())
		})
	})

	It("should round trip drop fields between two maps", func() {
		sender := netid.NewMap()
		receiver := netid.NewMap()
		ship := netid.Handle(11)
		mirror := netid.Handle(42)

		id := sender.Insert(ship)
		receiver.InsertWithID(mirror, id)

		plain := resolve.NewTable(
			resolve.DropField("target",
				func(m *attack) *netid.Ref { return &m.Target }))
		msg := attack{Target: netid.RefTo(ship)}

		Expect(plain.EntityToNetwork(&msg, sender, nil)).To(BeTrue())
		Expect(plain.NetworkToEntity(&msg, receiver, nil)).To(BeTrue())
		Expect(msg.Target.Handle()).To(Equal(mirror))

		receiver.Remove(mirror)
		msg = attack{Target: netid.RefTo(ship)}
		Expect(plain.EntityToNetwork(&msg, sender, nil)).To(BeTrue())
		Expect(plain.NetworkToEntity(&msg, receiver, nil)).To(BeFalse())
	})
})

var _ = Describe("Table on an ECS world", func() {
	It("should spawn mirrors for unknown create fields", func() {
		w := world.NewECS()
		ids := netid.NewMap()
		spawner := resolve.NewTable(
			resolve.CreateField("weapon",
				func(m *attack) *netid.Ref { return &m.Weapon }))

		msg := attack{Weapon: netid.RefToID(42)}
		Expect(spawner.NetworkToEntity(&msg, ids, w)).To(BeTrue())

		h := msg.Weapon.Handle()
		Expect(w.Alive(h)).To(BeTrue())

		tag, found := w.NetworkID(h)
		Expect(found).To(BeTrue())
		Expect(tag).To(Equal(netid.ID(42)))

		again := attack{Weapon: netid.RefToID(42)}
		Expect(spawner.NetworkToEntity(&again, ids, w)).To(BeTrue())
		Expect(again.Weapon.Handle()).To(Equal(h))
		Expect(ids.Len()).To(Equal(1))
	})
})
