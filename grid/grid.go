// Package grid maps world positions onto the square tile lattice used by the
// terrain cache.
package grid

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Vec2 is a world-space position.
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Coord is an integer tile coordinate.
type Coord struct {
	X, Y int
}

// Add returns c+o.
func (c Coord) Add(o Coord) Coord { return Coord{c.X + o.X, c.Y + o.Y} }

// Bounds is an axis-aligned world-space box.
type Bounds struct {
	Min, Max Vec2
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Vec2 {
	return Vec2{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}
}

// Size returns the edge lengths of the box.
func (b Bounds) Size() Vec2 { return b.Max.Sub(b.Min) }

// Contains reports whether p lies inside the box (inclusive).
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Union returns the smallest box holding both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Min: Vec2{math.Min(b.Min.X, o.Min.X), math.Min(b.Min.Y, o.Min.Y)},
		Max: Vec2{math.Max(b.Max.X, o.Max.X), math.Max(b.Max.Y, o.Max.Y)},
	}
}

// WorldToTileCoord returns the tile coordinate containing pos.
func WorldToTileCoord(pos Vec2, tileSize float64) Coord {
	return Coord{
		X: int(math.Floor(pos.X / tileSize)),
		Y: int(math.Floor(pos.Y / tileSize)),
	}
}

// TileCoordToBounds returns the world bounds of the tile at c.
// Tiles are centred on c*tileSize.
func TileCoordToBounds(c Coord, tileSize float64) Bounds {
	half := tileSize / 2
	min := Vec2{float64(c.X)*tileSize - half, float64(c.Y)*tileSize - half}
	return Bounds{Min: min, Max: Vec2{min.X + tileSize, min.Y + tileSize}}
}

// BoundsToTileCoord is the inverse of TileCoordToBounds. It rounds the
// bounds centre, so boxes that drifted by float error still land on the
// right coordinate.
func BoundsToTileCoord(b Bounds, tileSize float64) Coord {
	c := b.Center()
	return Coord{
		X: int(math.Round(c.X / tileSize)),
		Y: int(math.Round(c.Y / tileSize)),
	}
}

// Hash derives the cache key of a tile from its bounds and mesh
// segmentation. Tiles with identical bounds and segmentation share a key.
func Hash(b Bounds, segments int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, f := range [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(segments))
	h.Write(buf[:])
	return h.Sum64()
}
