package game_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spacegame/netsync/game"
)

var _ = Describe("BlockMap", func() {
	It("should keep one block per cell", func() {
		m := game.NewBlockMap(
			game.Block{Pos: game.BlockPos{X: 0, Y: 0}, Type: game.Hull},
			game.Block{Pos: game.BlockPos{X: 0, Y: 0}, Type: game.Cockpit},
		)

		Expect(m.Len()).To(Equal(1))

		t, found := m.Get(game.BlockPos{})
		Expect(found).To(BeTrue())
		Expect(t).To(Equal(game.Cockpit))
	})

	It("should report replaced blocks", func() {
		m := game.NewBlockMap()

		_, replaced := m.Set(game.BlockPos{X: 1}, game.Hull)
		Expect(replaced).To(BeFalse())

		old, replaced := m.Set(game.BlockPos{X: 1}, game.Thruster)
		Expect(replaced).To(BeTrue())
		Expect(old).To(Equal(game.Hull))
	})

	It("should remove blocks", func() {
		m := game.NewBlockMap(game.Block{Pos: game.BlockPos{X: 2}, Type: game.Hull})

		Expect(m.Remove(game.BlockPos{X: 3})).To(BeFalse())
		Expect(m.Remove(game.BlockPos{X: 2})).To(BeTrue())
		Expect(m.Len()).To(BeZero())
	})

	It("should list blocks by row and column", func() {
		var m game.BlockMap
		m.Set(game.BlockPos{X: 1, Y: 1}, game.Hull)
		m.Set(game.BlockPos{X: 0, Y: 1}, game.Thruster)
		m.Set(game.BlockPos{X: 5, Y: 0}, game.Cockpit)

		Expect(m.List()).To(Equal([]game.Block{
			{Pos: game.BlockPos{X: 5, Y: 0}, Type: game.Cockpit},
			{Pos: game.BlockPos{X: 0, Y: 1}, Type: game.Thruster},
			{Pos: game.BlockPos{X: 1, Y: 1}, Type: game.Hull},
		}))
	})

	It("should validate block types", func() {
		Expect(game.Hull.Valid()).To(BeTrue())
		Expect(game.BlockType(0).Valid()).To(BeFalse())
		Expect(game.BlockType(9).String()).To(Equal("block(9)"))
	})
})
