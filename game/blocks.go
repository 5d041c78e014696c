package game

import (
	"fmt"
	"sort"
)

// BlockType is the kind of a block.
type BlockType uint8

// A list of all block types.
const (
	Hull BlockType = iota + 1
	Thruster
	Cockpit
)

// Valid tells if t is a known block type.
func (t BlockType) Valid() bool {
	return t >= Hull && t <= Cockpit
}

func (t BlockType) String() string {
	switch t {
	case Hull:
		return "hull"
	case Thruster:
		return "thruster"
	case Cockpit:
		return "cockpit"
	default:
		return fmt.Sprintf("block(%d)", uint8(t))
	}
}

// BlockPos is the grid cell of a block, relative to the ship origin.
type BlockPos struct {
	X, Y int32
}

// Block is a block placed on a ship.
type Block struct {
	Pos  BlockPos
	Type BlockType
}

// BlockMap holds the blocks of a ship, one per cell.
type BlockMap struct {
	blocks map[BlockPos]BlockType
}

// NewBlockMap creates a block map holding the given blocks. Later blocks
// replace earlier ones in the same cell.
func NewBlockMap(blocks ...Block) BlockMap {
	m := BlockMap{blocks: make(map[BlockPos]BlockType, len(blocks))}
	for _, b := range blocks {
		m.Set(b.Pos, b.Type)
	}

	return m
}

// Set places a block, replacing the block already in the cell. It returns the
// replaced type, if any.
func (m *BlockMap) Set(pos BlockPos, t BlockType) (BlockType, bool) {
	if m.blocks == nil {
		m.blocks = make(map[BlockPos]BlockType)
	}

	old, found := m.blocks[pos]
	m.blocks[pos] = t

	return old, found
}

// Remove deletes the block in a cell. It returns false if the cell is empty.
func (m *BlockMap) Remove(pos BlockPos) bool {
	if _, found := m.blocks[pos]; !found {
		return false
	}

	delete(m.blocks, pos)

	return true
}

// Get returns the type of the block in a cell.
func (m *BlockMap) Get(pos BlockPos) (BlockType, bool) {
	t, found := m.blocks[pos]
	return t, found
}

// Len returns the number of blocks.
func (m *BlockMap) Len() int {
	return len(m.blocks)
}

// List returns the blocks ordered by row, then column.
func (m *BlockMap) List() []Block {
	list := make([]Block, 0, len(m.blocks))
	for pos, t := range m.blocks {
		list = append(list, Block{Pos: pos, Type: t})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Pos.Y != list[j].Pos.Y {
			return list[i].Pos.Y < list[j].Pos.Y
		}

		return list[i].Pos.X < list[j].Pos.X
	})

	return list
}
