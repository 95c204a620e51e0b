package scene

import (
	"errors"
	"slices"
	"testing"

	"github.com/pthm-cable/terrastream/grid"
)

func box(x0, y0, x1, y1 float64) grid.Bounds {
	return grid.Bounds{Min: grid.Vec2{X: x0, Y: y0}, Max: grid.Vec2{X: x1, Y: y1}}
}

func mustAdd(t *testing.T, g *Graph, parent NodeID, local Transform) NodeID {
	t.Helper()
	id, err := g.Add(parent, "", local)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   grid.Bounds
		want grid.Bounds
	}{
		{"identity", Identity, box(1, 2, 3, 4), box(1, 2, 3, 4)},
		{"translate", Translate(10, -5), box(0, 0, 1, 1), box(10, -5, 11, -4)},
		{"scale", Transform{Scale: grid.Vec2{X: 2, Y: 3}}, box(1, 1, 2, 2), box(2, 3, 4, 6)},
		{"flip", Transform{Scale: grid.Vec2{X: -1, Y: 1}}, box(1, 0, 2, 1), box(-2, 0, -1, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tr.ApplyBounds(tc.in); got != tc.want {
				t.Errorf("ApplyBounds = %v, want %v", got, tc.want)
			}
		})
	}

	a := Translate(1, 1)
	b := Transform{Scale: grid.Vec2{X: 2, Y: 2}}
	p := grid.Vec2{X: 3, Y: 4}
	if got, want := a.Then(b).Apply(p), a.Apply(b.Apply(p)); got != want {
		t.Errorf("Then = %v, want %v", got, want)
	}
}

func TestGraph_Children(t *testing.T) {
	g := New(8)
	root := mustAdd(t, g, None, Identity)
	a := mustAdd(t, g, root, Identity)
	b := mustAdd(t, g, root, Identity)
	c := mustAdd(t, g, a, Identity)

	if got := g.Children(root); !slices.Equal(got, []NodeID{a, b}) {
		t.Errorf("children(root) = %v", got)
	}
	if got := g.Children(a); !slices.Equal(got, []NodeID{c}) {
		t.Errorf("children(a) = %v", got)
	}
	if g.Parent(c) != a || g.Parent(root) != None {
		t.Errorf("parents: c->%d root->%d", g.Parent(c), g.Parent(root))
	}

	g.Reset()
	if g.Len() != 0 {
		t.Errorf("len after Reset = %d", g.Len())
	}
}

func TestGraph_InvalidNode(t *testing.T) {
	g := New(0)
	if _, err := g.Add(3, "orphan", Identity); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("Add under missing parent: %v", err)
	}
	if err := g.SetBox(0, box(0, 0, 1, 1)); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("SetBox on missing node: %v", err)
	}
	if _, _, err := g.WorldBounds(0); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("WorldBounds on missing node: %v", err)
	}
}

func TestGraph_WorldBounds(t *testing.T) {
	g := New(8)
	root := mustAdd(t, g, None, Translate(100, 0))
	left := mustAdd(t, g, root, Identity)
	right := mustAdd(t, g, root, Translate(50, 50))
	leaf := mustAdd(t, g, right, Transform{Scale: grid.Vec2{X: 2, Y: 2}})
	empty := mustAdd(t, g, root, Identity)

	g.SetBox(left, box(0, 0, 10, 10))
	g.SetBox(leaf, box(0, 0, 5, 5))

	got, ok, err := g.WorldBounds(root)
	if err != nil || !ok {
		t.Fatalf("WorldBounds(root) = %v %v %v", got, ok, err)
	}
	if want := box(100, 0, 160, 60); got != want {
		t.Errorf("root bounds = %v, want %v", got, want)
	}

	// A subtree keeps its ancestors' transforms.
	got, ok, _ = g.WorldBounds(right)
	if want := box(150, 50, 160, 60); !ok || got != want {
		t.Errorf("right bounds = %v (ok=%v), want %v", got, ok, want)
	}

	if _, ok, _ := g.WorldBounds(empty); ok {
		t.Error("empty subtree reported content")
	}
}

func TestGraph_DeepChain(t *testing.T) {
	const depth = 200000
	g := New(depth)
	id := mustAdd(t, g, None, Identity)
	root := id
	for i := 1; i < depth; i++ {
		id = mustAdd(t, g, id, Translate(1, 0))
	}
	g.SetBox(id, box(0, 0, 1, 1))

	got, ok, err := g.WorldBounds(root)
	if err != nil || !ok {
		t.Fatalf("WorldBounds = %v %v %v", got, ok, err)
	}
	if want := box(depth-1, 0, depth, 1); got != want {
		t.Errorf("bounds = %v, want %v", got, want)
	}
}
