// Package scene holds a flat node arena for world-space grouping and bounds
// queries.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/terrastream/grid"
)

// ErrInvalidNode is returned for ids that do not name a node.
var ErrInvalidNode = errors.New("scene: invalid node")

// NodeID indexes a node in its Graph.
type NodeID int32

// None is the parent of a root node.
const None NodeID = -1

// Transform maps local coordinates into the parent's space: p*Scale + Offset.
type Transform struct {
	Offset grid.Vec2
	Scale  grid.Vec2
}

// Identity leaves coordinates unchanged.
var Identity = Transform{Scale: grid.Vec2{X: 1, Y: 1}}

// Translate returns a pure translation.
func Translate(x, y float64) Transform {
	return Transform{Offset: grid.Vec2{X: x, Y: y}, Scale: grid.Vec2{X: 1, Y: 1}}
}

// Apply maps p.
func (t Transform) Apply(p grid.Vec2) grid.Vec2 {
	return grid.Vec2{X: p.X*t.Scale.X + t.Offset.X, Y: p.Y*t.Scale.Y + t.Offset.Y}
}

// Then returns the transform applying c first, then t.
func (t Transform) Then(c Transform) Transform {
	return Transform{
		Offset: t.Apply(c.Offset),
		Scale:  grid.Vec2{X: t.Scale.X * c.Scale.X, Y: t.Scale.Y * c.Scale.Y},
	}
}

// ApplyBounds maps both corners of b and re-sorts them, so negative scales
// keep Min below Max.
func (t Transform) ApplyBounds(b grid.Bounds) grid.Bounds {
	p, q := t.Apply(b.Min), t.Apply(b.Max)
	return grid.Bounds{
		Min: grid.Vec2{X: math.Min(p.X, q.X), Y: math.Min(p.Y, q.Y)},
		Max: grid.Vec2{X: math.Max(p.X, q.X), Y: math.Max(p.Y, q.Y)},
	}
}

type node struct {
	parent      NodeID
	firstChild  NodeID
	lastChild   NodeID
	nextSibling NodeID
	local       Transform
	box         grid.Bounds
	hasBox      bool
	label       string
}

// Graph is an arena of nodes linked by parent index. Children keep
// insertion order.
type Graph struct {
	nodes []node
	stack []frame
}

type frame struct {
	id    NodeID
	world Transform
}

// New creates an empty graph with room for capacity nodes.
func New(capacity int) *Graph {
	return &Graph{nodes: make([]node, 0, capacity)}
}

// Reset drops every node but keeps the storage.
func (g *Graph) Reset() {
	g.nodes = g.nodes[:0]
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// Add appends a node under parent (None for a root) and returns its id.
func (g *Graph) Add(parent NodeID, label string, local Transform) (NodeID, error) {
	if parent != None && !g.valid(parent) {
		return None, fmt.Errorf("parent %d: %w", parent, ErrInvalidNode)
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, node{
		parent:      parent,
		firstChild:  None,
		lastChild:   None,
		nextSibling: None,
		local:       local,
		label:       label,
	})
	if parent != None {
		p := &g.nodes[parent]
		if p.lastChild == None {
			p.firstChild = id
		} else {
			g.nodes[p.lastChild].nextSibling = id
		}
		p.lastChild = id
	}
	return id, nil
}

// SetBox gives a node local-space content.
func (g *Graph) SetBox(id NodeID, b grid.Bounds) error {
	if !g.valid(id) {
		return fmt.Errorf("node %d: %w", id, ErrInvalidNode)
	}
	g.nodes[id].box = b
	g.nodes[id].hasBox = true
	return nil
}

// Parent returns the parent of id, or None.
func (g *Graph) Parent(id NodeID) NodeID {
	if !g.valid(id) {
		return None
	}
	return g.nodes[id].parent
}

// Label returns the label id was added with.
func (g *Graph) Label(id NodeID) string {
	if !g.valid(id) {
		return ""
	}
	return g.nodes[id].label
}

// Children returns the children of id in insertion order.
func (g *Graph) Children(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	var out []NodeID
	for c := g.nodes[id].firstChild; c != None; c = g.nodes[c].nextSibling {
		out = append(out, c)
	}
	return out
}

// WorldTransform composes the local transforms from the root down to id.
func (g *Graph) WorldTransform(id NodeID) (Transform, error) {
	if !g.valid(id) {
		return Identity, fmt.Errorf("node %d: %w", id, ErrInvalidNode)
	}
	t := g.nodes[id].local
	for p := g.nodes[id].parent; p != None; p = g.nodes[p].parent {
		t = g.nodes[p].local.Then(t)
	}
	return t, nil
}

// WorldBounds returns the world-space box around every box in the subtree
// rooted at root. ok is false when the subtree has no content.
//
// The walk uses an explicit stack, so chain depth is limited only by memory.
func (g *Graph) WorldBounds(root NodeID) (b grid.Bounds, ok bool, err error) {
	if !g.valid(root) {
		return grid.Bounds{}, false, fmt.Errorf("node %d: %w", root, ErrInvalidNode)
	}
	parent := Identity
	if p := g.nodes[root].parent; p != None {
		if parent, err = g.WorldTransform(p); err != nil {
			return grid.Bounds{}, false, err
		}
	}

	g.stack = append(g.stack[:0], frame{id: root, world: parent})
	for len(g.stack) > 0 {
		f := g.stack[len(g.stack)-1]
		g.stack = g.stack[:len(g.stack)-1]

		n := &g.nodes[f.id]
		world := f.world.Then(n.local)
		if n.hasBox {
			wb := world.ApplyBounds(n.box)
			if ok {
				b = b.Union(wb)
			} else {
				b, ok = wb, true
			}
		}
		for c := n.firstChild; c != None; c = g.nodes[c].nextSibling {
			g.stack = append(g.stack, frame{id: c, world: world})
		}
	}
	return b, ok, nil
}
