package server

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintfs/flint"
)

// passthroughFixture drives a Passthrough handler against a temp directory
// without a kernel in the loop.
type passthroughFixture struct {
	t    *testing.T
	dir  string
	h    Handler
	ctx  context.Context
	next uint64
}

func newPassthroughFixture(t *testing.T) *passthroughFixture {
	t.Helper()
	dir := t.TempDir()
	return &passthroughFixture{
		t:   t,
		dir: dir,
		h:   Passthrough(nil, dir),
		ctx: context.Background(),
	}
}

func (fx *passthroughFixture) header(node flint.Node) *flint.RequestHeader {
	fx.next++
	return &flint.RequestHeader{RequestID: fx.next, Node: node}
}

func (fx *passthroughFixture) lookup(parent flint.Node, name string) flint.Entry {
	fx.t.Helper()
	resp, err := fx.h.Lookup(fx.ctx, fx.header(parent), &flint.LookupRequest{Name: name})
	require.NoError(fx.t, err)
	return resp.Entry
}

func (fx *passthroughFixture) open(node flint.Node, flags flint.FileFlags) flint.Handle {
	fx.t.Helper()
	resp, err := fx.h.Open(fx.ctx, fx.header(node), &flint.OpenRequest{Flags: flags})
	require.NoError(fx.t, err)
	return resp.Handle
}

func TestPassthrough_LookupGetattr(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "hello.txt"), []byte("hello"), 0644))

	entry := fx.lookup(flint.RootNode, "hello.txt")
	require.NotZero(t, entry.Node)
	require.Equal(t, uint64(5), entry.Attr.Size)
	require.Equal(t, os.FileMode(0644), entry.Attr.Mode.Perm())

	resp, err := fx.h.Getattr(fx.ctx, fx.header(entry.Node), &flint.GetattrRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(5), resp.Attr.Size)
	require.Equal(t, entry.Attr.Inode, resp.Attr.Inode)
}

func TestPassthrough_LookupMissing(t *testing.T) {
	fx := newPassthroughFixture(t)

	_, err := fx.h.Lookup(fx.ctx, fx.header(flint.RootNode), &flint.LookupRequest{Name: "nope"})
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestPassthrough_CreateWriteRead(t *testing.T) {
	fx := newPassthroughFixture(t)

	created, err := fx.h.Create(fx.ctx, fx.header(flint.RootNode), &flint.CreateRequest{
		Flags: flint.OpenReadWrite,
		Mode:  0644,
		Name:  "data.bin",
	})
	require.NoError(t, err)

	wrote, err := fx.h.Write(fx.ctx, fx.header(created.Entry.Node), &flint.WriteRequest{
		Handle: created.Handle,
		Offset: 0,
		Data:   []byte("some content"),
	})
	require.NoError(t, err)
	require.Equal(t, uint32(12), wrote.Written)

	read, err := fx.h.Read(fx.ctx, fx.header(created.Entry.Node), &flint.ReadRequest{
		Handle: created.Handle,
		Offset: 5,
		Size:   64,
	})
	require.NoError(t, err)
	require.Equal(t, []byte("content"), read.Data)

	require.NoError(t, fx.h.Release(fx.ctx, fx.header(created.Entry.Node), &flint.ReleaseRequest{
		Handle: created.Handle,
	}))

	// The file exists on the host side too.
	onDisk, err := os.ReadFile(filepath.Join(fx.dir, "data.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte("some content"), onDisk)
}

func TestPassthrough_WriteAppend(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "log.txt"), []byte("one\n"), 0644))

	entry := fx.lookup(flint.RootNode, "log.txt")
	handle := fx.open(entry.Node, flint.OpenWriteOnly|flint.OpenAppend)

	_, err := fx.h.Write(fx.ctx, fx.header(entry.Node), &flint.WriteRequest{
		Handle: handle,
		Data:   []byte("two\n"),
	})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(filepath.Join(fx.dir, "log.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("one\ntwo\n"), onDisk)
}

func TestPassthrough_MkdirRmdir(t *testing.T) {
	fx := newPassthroughFixture(t)

	resp, err := fx.h.Mkdir(fx.ctx, fx.header(flint.RootNode), &flint.MkdirRequest{
		Mode: 0755,
		Name: "sub",
	})
	require.NoError(t, err)
	require.True(t, resp.Entry.Attr.Mode.IsDir())

	fi, err := os.Stat(filepath.Join(fx.dir, "sub"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	require.NoError(t, fx.h.Rmdir(fx.ctx, fx.header(flint.RootNode), &flint.RmdirRequest{Name: "sub"}))
	_, err = os.Stat(filepath.Join(fx.dir, "sub"))
	require.True(t, os.IsNotExist(err))
}

func TestPassthrough_Unlink(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "gone.txt"), nil, 0644))

	require.NoError(t, fx.h.Unlink(fx.ctx, fx.header(flint.RootNode), &flint.UnlinkRequest{Name: "gone.txt"}))
	_, err := os.Stat(filepath.Join(fx.dir, "gone.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestPassthrough_Rename(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "old.txt"), []byte("x"), 0644))
	entry := fx.lookup(flint.RootNode, "old.txt")

	err := fx.h.Rename(fx.ctx, fx.header(flint.RootNode), &flint.RenameRequest{
		NewDir:  flint.RootNode,
		OldName: "old.txt",
		NewName: "new.txt",
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(fx.dir, "new.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(fx.dir, "old.txt"))
	require.True(t, os.IsNotExist(err))

	// The node keeps serving requests under its new path.
	resp, err := fx.h.Getattr(fx.ctx, fx.header(entry.Node), &flint.GetattrRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), resp.Attr.Size)
}

func TestPassthrough_SymlinkReadlink(t *testing.T) {
	fx := newPassthroughFixture(t)

	_, err := fx.h.Symlink(fx.ctx, fx.header(flint.RootNode), &flint.SymlinkRequest{
		Source:   "link",
		LinkName: "target.txt",
	})
	require.NoError(t, err)

	entry := fx.lookup(flint.RootNode, "link")
	resp, err := fx.h.Readlink(fx.ctx, fx.header(entry.Node))
	require.NoError(t, err)
	require.Equal(t, []byte("target.txt"), resp.Contents)
}

func TestPassthrough_Readdir(t *testing.T) {
	fx := newPassthroughFixture(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(fx.dir, name), nil, 0644))
	}

	handle := fx.open(flint.RootNode, flint.OpenReadOnly)
	resp, err := fx.h.Readdir(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{
		Handle: handle,
		Size:   4096,
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)

	var names []string
	for _, ent := range resp.Entries {
		names = append(names, ent.Name)
		require.Equal(t, flint.EntryRegular, ent.Type)
		require.NotZero(t, ent.Inode)
	}
	sort.Strings(names)
	require.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)

	require.NoError(t, fx.h.Releasedir(fx.ctx, fx.header(flint.RootNode), &flint.ReleaseRequest{Handle: handle}))
}

func TestPassthrough_ReaddirResumesAtOffset(t *testing.T) {
	fx := newPassthroughFixture(t)
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, os.WriteFile(filepath.Join(fx.dir, name), nil, 0644))
	}

	handle := fx.open(flint.RootNode, flint.OpenReadOnly)

	// A reply sized for two entries stops early; resuming at the last
	// cookie returns the rest without repeats.
	first, err := fx.h.Readdir(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{
		Handle: handle,
		Size:   2 * 32,
	})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)

	second, err := fx.h.Readdir(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{
		Handle: handle,
		Offset: first.Entries[len(first.Entries)-1].Offset,
		Size:   4096,
	})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)

	seen := map[string]bool{}
	for _, ent := range append(first.Entries, second.Entries...) {
		require.False(t, seen[ent.Name], "entry %q listed twice", ent.Name)
		seen[ent.Name] = true
	}
	require.Len(t, seen, 4)

	// Past the end of the listing the reply is empty.
	done, err := fx.h.Readdir(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{
		Handle: handle,
		Offset: second.Entries[len(second.Entries)-1].Offset,
		Size:   4096,
	})
	require.NoError(t, err)
	require.Empty(t, done.Entries)
}

func TestPassthrough_Readdirplus(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "file.txt"), []byte("abc"), 0644))

	handle := fx.open(flint.RootNode, flint.OpenReadOnly)
	resp, err := fx.h.Readdirplus(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{
		Handle: handle,
		Size:   4096,
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)

	ent := resp.Entries[0]
	require.Equal(t, "file.txt", ent.DirEntry.Name)
	require.NotZero(t, ent.Entry.Node)
	require.Equal(t, uint64(3), ent.Entry.Attr.Size)
	require.Equal(t, ent.Entry.Attr.Inode, ent.DirEntry.Inode)

	// The entry counted as a lookup, so the node resolves without one.
	attr, err := fx.h.Getattr(fx.ctx, fx.header(ent.Entry.Node), &flint.GetattrRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(3), attr.Attr.Size)
}

func TestPassthrough_SetattrTruncate(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "trunc.txt"), []byte("0123456789"), 0644))
	entry := fx.lookup(flint.RootNode, "trunc.txt")

	resp, err := fx.h.Setattr(fx.ctx, fx.header(entry.Node), &flint.SetattrRequest{
		UpdateMask: flint.SetattrSize,
		Size:       4,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(4), resp.Attr.Size)

	onDisk, err := os.ReadFile(filepath.Join(fx.dir, "trunc.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), onDisk)
}

func TestPassthrough_ForgetReleasesNode(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "f"), nil, 0644))
	entry := fx.lookup(flint.RootNode, "f")

	fx.h.Forget(fx.ctx, fx.header(entry.Node), &flint.ForgetRequest{NumLookups: 1})

	_, err := fx.h.Getattr(fx.ctx, fx.header(entry.Node), &flint.GetattrRequest{})
	require.ErrorIs(t, err, flint.ErrorStale)
}

func TestPassthrough_Lseek(t *testing.T) {
	fx := newPassthroughFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "seek.txt"), []byte("0123456789"), 0644))
	entry := fx.lookup(flint.RootNode, "seek.txt")
	handle := fx.open(entry.Node, flint.OpenReadOnly)

	resp, err := fx.h.Lseek(fx.ctx, fx.header(entry.Node), &flint.LseekRequest{
		Handle: handle,
		Offset: 7,
		Whence: 0,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(7), resp.Offset)
}

func TestPassthrough_StaleHandle(t *testing.T) {
	fx := newPassthroughFixture(t)

	_, err := fx.h.Read(fx.ctx, fx.header(flint.RootNode), &flint.ReadRequest{Handle: 1234, Size: 1})
	require.ErrorIs(t, err, flint.ErrorStale)
}
