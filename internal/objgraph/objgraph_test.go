package objgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tnode struct {
	Tag    string
	Next   *tnode
	Kids   []*tnode
	ByKey  map[string]*tnode
	Blob   []byte
	hidden *tnode
}

func TestTraverseCycle(t *testing.T) {
	a := &tnode{Tag: "a"}
	b := &tnode{Tag: "b"}
	a.Next = b
	b.Next = a

	snap := Traverse(a)

	require.Len(t, snap.Objects, 2)
	assert.Contains(t, snap.Objects, IdentityOf(a))
	assert.Contains(t, snap.Objects, IdentityOf(b))
	// Only b has a recorded edge; a is the root.
	assert.Len(t, snap.Parents, 1)
	assert.Equal(t, IdentityOf(a), snap.Root)
}

func TestSharedChildRecordedOnce(t *testing.T) {
	child := &tnode{Tag: "c"}
	p1 := &tnode{Tag: "p1", Next: child}
	p2 := &tnode{Tag: "p2", Next: child}
	root := &tnode{Tag: "root", Kids: []*tnode{p1, p2}}

	snap := Traverse(root)

	require.Len(t, snap.Objects, 4)
	edge := snap.Parents[IdentityOf(child)]
	assert.Contains(t, []ID{IdentityOf(p1), IdentityOf(p2)}, edge.Parent)

	// Whichever parent was recorded, the reconstructed path must agree.
	path := snap.PathTo(IdentityOf(child))
	require.Len(t, path, 2)
	assert.Same(t, child, path[1].Object)
	assert.Same(t, snap.Objects[edge.Parent], path[0].Object)
}

func TestPathDepthAndOrder(t *testing.T) {
	d := &tnode{Tag: "d"}
	c := &tnode{Tag: "c", Next: d}
	b := &tnode{Tag: "b", Next: c}
	a := &tnode{Tag: "a", Next: b}

	snap := Traverse(a)
	path := snap.PathTo(IdentityOf(d))

	require.Len(t, path, 3)
	for _, step := range path {
		assert.Equal(t, "Next", step.Label)
	}
	assert.Same(t, b, path[0].Object)
	assert.Same(t, c, path[1].Object)
	assert.Same(t, d, path[2].Object)
}

func TestContainerLabels(t *testing.T) {
	k0 := &tnode{Tag: "k0"}
	k1 := &tnode{Tag: "k1"}
	m := &tnode{Tag: "m"}
	root := &tnode{
		Kids:  []*tnode{k0, k1},
		ByKey: map[string]*tnode{"x": m},
	}

	snap := Traverse(root)

	assert.Equal(t, "Kids[0]", snap.Parents[IdentityOf(k0)].Label)
	assert.Equal(t, "Kids[1]", snap.Parents[IdentityOf(k1)].Label)
	assert.Equal(t, `ByKey["x"]`, snap.Parents[IdentityOf(m)].Label)
}

func TestInlineStructLabelsCompose(t *testing.T) {
	type inner struct {
		Ptr *tnode
	}
	type outer struct {
		Tag   string
		Inner inner
	}
	leaf := &tnode{Tag: "leaf"}
	root := &outer{Inner: inner{Ptr: leaf}}

	snap := Traverse(root)

	assert.Equal(t, "Inner.Ptr", snap.Parents[IdentityOf(leaf)].Label)
}

func TestAtomicPayloadsNotWalked(t *testing.T) {
	root := &tnode{
		Tag:  "root",
		Blob: make([]byte, 1<<20),
	}

	snap := Traverse(root)

	// Only the root itself: the byte slice is never iterated.
	assert.Len(t, snap.Objects, 1)
}

func TestUnexportedFieldsSkipped(t *testing.T) {
	secret := &tnode{Tag: "secret"}
	root := &tnode{Tag: "root", hidden: secret}

	snap := Traverse(root)

	assert.NotContains(t, snap.Objects, IdentityOf(secret))
}

func TestNonPointerRoot(t *testing.T) {
	child := &tnode{Tag: "c"}
	root := struct {
		First *tnode
	}{First: child}

	snap := Traverse(root)

	require.Contains(t, snap.Objects, IdentityOf(child))
	assert.Equal(t, ID(0), snap.Root)
	path := snap.PathTo(IdentityOf(child))
	require.Len(t, path, 1)
	assert.Equal(t, "First", path[0].Label)
}

func TestNilRoot(t *testing.T) {
	snap := Traverse(nil)
	assert.Empty(t, snap.Objects)

	var p *tnode
	snap = Traverse(p)
	assert.Empty(t, snap.Objects)
}

func TestPathToRootIsEmpty(t *testing.T) {
	a := &tnode{Tag: "a"}
	snap := Traverse(a)
	assert.Empty(t, snap.PathTo(IdentityOf(a)))
}
