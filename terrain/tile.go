package terrain

import "github.com/pthm-cable/terrastream/grid"

// Neighbor slot order.
const (
	NegX = iota
	PosX
	NegY
	PosY
)

// NoNeighbor marks a neighbor slot outside the cache window.
const NoNeighbor int32 = -1

// Tile is the ECS component describing one cached tile.
type Tile struct {
	Coord  grid.Coord
	Bounds grid.Bounds
	Hash   uint64
	Block  int

	// Active selects the soil/water raster read this frame.
	Active uint8
	// Flows counts Flow-Update passes since creation.
	Flows int

	Created  uint64 // Frame serial of the Creation dispatch
	LastUsed uint64 // Newest frame serial that recorded work on the tile
}

// Neighbors is the ECS component holding the block index of each adjacent
// tile, or NoNeighbor.
type Neighbors struct {
	Slots [4]int32
}

func unlinked() Neighbors {
	return Neighbors{Slots: [4]int32{NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor}}
}

// Mask returns a bit set of linked slots.
func (n Neighbors) Mask() uint32 {
	var m uint32
	for i, s := range n.Slots {
		if s != NoNeighbor {
			m |= 1 << i
		}
	}
	return m
}
