package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintfs/flint"
)

func TestCache_Root(t *testing.T) {
	c := New(nil, &testNode{})

	info, node, err := c.GetNode(flint.RootNode)
	require.NoError(t, err)
	require.Equal(t, flint.RootNode, info.ID)
	require.NotNil(t, node)

	path, err := c.NodePath(flint.RootNode)
	require.NoError(t, err)
	require.Equal(t, "/", path)
}

func TestCache_AddAndGetNode(t *testing.T) {
	c := New(nil, &testNode{})

	n := &testNode{}
	info, err := c.AddNode(flint.RootNode, "file.txt", n)
	require.NoError(t, err)
	require.NotZero(t, info.ID)

	gotInfo, gotNode, err := c.GetNode(info.ID)
	require.NoError(t, err)
	require.Equal(t, info, gotInfo)
	require.Same(t, n, gotNode.(*testNode))

	path, err := c.NodePath(info.ID)
	require.NoError(t, err)
	require.Equal(t, "/file.txt", path)
}

func TestCache_GetNode_Unknown(t *testing.T) {
	c := New(nil, &testNode{})

	_, _, err := c.GetNode(flint.Node(999))
	require.ErrorIs(t, err, flint.ErrorStale)
}

func TestCache_AddNode_MissingParent(t *testing.T) {
	c := New(nil, &testNode{})

	_, err := c.AddNode(flint.Node(999), "orphan", &testNode{})
	require.ErrorIs(t, err, flint.ErrorStale)
}

func TestCache_AddNode_ExistingKeyBumpsRefs(t *testing.T) {
	c := New(nil, &testNode{})

	n := &testNode{}
	info, err := c.AddNode(flint.RootNode, "a", n)
	require.NoError(t, err)

	// Registering the same key again reuses the cached node; the second
	// node argument is ignored.
	other := &testNode{}
	again, err := c.AddNode(flint.RootNode, "a", other)
	require.NoError(t, err)
	require.Equal(t, info, again)

	// Two lookups means two forgets before the node goes away.
	require.NoError(t, c.ReleaseNode(info.ID, 1))
	require.False(t, n.closed)
	_, _, err = c.GetNode(info.ID)
	require.NoError(t, err)

	require.NoError(t, c.ReleaseNode(info.ID, 1))
	require.True(t, n.closed)
	require.False(t, other.closed)
	_, _, err = c.GetNode(info.ID)
	require.ErrorIs(t, err, flint.ErrorStale)
}

func TestCache_ReleaseNode_AllRefsAtOnce(t *testing.T) {
	c := New(nil, &testNode{})

	n := &testNode{}
	info, err := c.AddNode(flint.RootNode, "a", n)
	require.NoError(t, err)
	_, err = c.AddNode(flint.RootNode, "a", nil)
	require.NoError(t, err)

	// A batched forget can drop multiple references in a single call.
	require.NoError(t, c.ReleaseNode(info.ID, 2))
	require.True(t, n.closed)
}

func TestCache_ReleaseNode_Unknown(t *testing.T) {
	c := New(nil, &testNode{})
	require.ErrorIs(t, c.ReleaseNode(flint.Node(999), 1), flint.ErrorStale)
}

func TestCache_NodePath_Nested(t *testing.T) {
	c := New(nil, &testNode{})

	dir, err := c.AddNode(flint.RootNode, "dir", &testNode{})
	require.NoError(t, err)
	file, err := c.AddNode(dir.ID, "file.txt", &testNode{})
	require.NoError(t, err)

	path, err := c.NodePath(file.ID)
	require.NoError(t, err)
	require.Equal(t, "/dir/file.txt", path)
}

func TestCache_RenameNode(t *testing.T) {
	c := New(nil, &testNode{})

	dir, err := c.AddNode(flint.RootNode, "dir", &testNode{})
	require.NoError(t, err)
	file, err := c.AddNode(flint.RootNode, "a", &testNode{})
	require.NoError(t, err)

	err = c.RenameNode(flint.RootNode, &flint.RenameRequest{
		OldName: "a",
		NewDir:  dir.ID,
		NewName: "b",
	})
	require.NoError(t, err)

	// The node keeps its ID but moves to the new key.
	path, err := c.NodePath(file.ID)
	require.NoError(t, err)
	require.Equal(t, "/dir/b", path)

	// The old key is free again.
	again, err := c.AddNode(flint.RootNode, "a", &testNode{})
	require.NoError(t, err)
	require.NotEqual(t, file.ID, again.ID)
}

func TestCache_RenameNode_Exchange(t *testing.T) {
	c := New(nil, &testNode{})

	a, err := c.AddNode(flint.RootNode, "a", &testNode{})
	require.NoError(t, err)
	b, err := c.AddNode(flint.RootNode, "b", &testNode{})
	require.NoError(t, err)

	err = c.RenameNode(flint.RootNode, &flint.RenameRequest{
		OldName: "a",
		NewDir:  flint.RootNode,
		NewName: "b",
		Flags:   flint.RenameExchange,
	})
	require.NoError(t, err)

	pathA, err := c.NodePath(a.ID)
	require.NoError(t, err)
	require.Equal(t, "/b", pathA)

	pathB, err := c.NodePath(b.ID)
	require.NoError(t, err)
	require.Equal(t, "/a", pathB)
}

func TestCache_RenameNode_Errors(t *testing.T) {
	c := New(nil, &testNode{})

	_, err := c.AddNode(flint.RootNode, "a", &testNode{})
	require.NoError(t, err)

	err = c.RenameNode(flint.RootNode, &flint.RenameRequest{
		OldName: "missing",
		NewDir:  flint.RootNode,
		NewName: "b",
	})
	require.ErrorIs(t, err, flint.ErrorNotExist)

	err = c.RenameNode(flint.RootNode, &flint.RenameRequest{
		OldName: "a",
		NewDir:  flint.Node(999),
		NewName: "b",
	})
	require.ErrorIs(t, err, flint.ErrorStale)
}

func TestCache_Handles(t *testing.T) {
	c := New(nil, &testNode{})

	h1 := &testHandle{}
	info1, err := c.AddHandle(h1)
	require.NoError(t, err)
	info2, err := c.AddHandle(&testHandle{})
	require.NoError(t, err)
	require.NotEqual(t, info1.ID, info2.ID)

	_, got, err := c.GetHandle(info1.ID)
	require.NoError(t, err)
	require.Same(t, h1, got.(*testHandle))

	require.NoError(t, c.ReleaseHandle(info1.ID))
	require.True(t, h1.closed)
	_, _, err = c.GetHandle(info1.ID)
	require.ErrorIs(t, err, flint.ErrorStale)

	// Released IDs are handed out again.
	info3, err := c.AddHandle(&testHandle{})
	require.NoError(t, err)
	require.Equal(t, info1.ID, info3.ID)
}

func TestCache_ReleaseHandle_Unknown(t *testing.T) {
	c := New(nil, &testNode{})
	require.ErrorIs(t, c.ReleaseHandle(flint.Handle(42)), flint.ErrorStale)
}

type testNode struct{ closed bool }

func (n *testNode) Close() error {
	n.closed = true
	return nil
}

type testHandle struct{ closed bool }

func (h *testHandle) Close() error {
	h.closed = true
	return nil
}
