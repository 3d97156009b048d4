package server

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/flintfs/flint"
	"github.com/flintfs/flint/cache"
)

// Passthrough creates a new Handler which passes through requests to the host
// filesystem. Requests are transformed relative to the provided root. Note
// that this isn't a chroot, and it's possible to read files in higher
// directories via symbolic links.
func Passthrough(l log.Logger, root string) Handler {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &passthroughHandler{
		log:   l,
		root:  root,
		cache: cache.New(l, &passthroughNode{inode: 1}),
	}
}

type passthroughHandler struct {
	log  log.Logger
	root string

	cache *cache.Cache
}

var (
	_ Handler = (*passthroughHandler)(nil)
)

func (h *passthroughHandler) Init(ctx context.Context) error {
	// no-op
	return nil
}

func (h *passthroughHandler) Close() error {
	// Handles are owned by the cache; anything still open is leaked with the
	// process, which only happens on an unclean teardown.
	return nil
}

type passthroughContext struct {
	NodeInfo cache.NodeInfo
	Node     *passthroughNode
	NodePath string
}

func (h *passthroughHandler) getPassthroughContext(hdr *flint.RequestHeader) (*passthroughContext, error) {
	nodeInfo, node, err := h.cache.GetNode(hdr.Node)
	if err != nil {
		return nil, err
	}
	pnode, _ := node.(*passthroughNode)
	path, err := h.cache.NodePath(hdr.Node)
	if err != nil {
		return nil, err
	}
	return &passthroughContext{
		NodeInfo: nodeInfo,
		Node:     pnode,
		NodePath: path,
	}, nil
}

func (h *passthroughHandler) Lookup(ctx context.Context, hdr *flint.RequestHeader, req *flint.LookupRequest) (*flint.EntryResponse, error) {
	return h.createNodeEntry(hdr.Node, req.Name)
}

// createNodeEntry gets the stats of an existing file and caches it, returning
// an entry.
func (h *passthroughHandler) createNodeEntry(parent flint.Node, name string) (*flint.EntryResponse, error) {
	path, err := h.cache.NodePath(parent)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(h.root, path, name)
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return nil, err
	}

	newNode := newPassthroughNode(parent, name)
	nodeInfo, err := h.cache.AddNode(parent, name, newNode)
	if err != nil {
		return nil, err
	}
	return &flint.EntryResponse{
		Entry: entryForNode(nodeInfo, newNode, fi),
	}, nil
}

func (h *passthroughHandler) Forget(ctx context.Context, hdr *flint.RequestHeader, req *flint.ForgetRequest) {
	err := h.cache.ReleaseNode(hdr.Node, req.NumLookups)
	if err != nil {
		level.Warn(h.log).Log("msg", "failed to forget node", "err", err)
	}
}

func (h *passthroughHandler) BatchForget(ctx context.Context, hdr *flint.RequestHeader, req *flint.BatchForgetRequest) error {
	for _, item := range req.Items {
		err := h.cache.ReleaseNode(item.Node, item.NumLookups)
		if err != nil {
			level.Warn(h.log).Log("msg", "failed to forget node", "node", item.Node, "err", err)
		}
	}
	return nil
}

func (h *passthroughHandler) Getattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}

	var fi os.FileInfo
	switch {
	case req.Flags&flint.GetattrFlagHandle != 0: // Get file info from handle
		var rawHandle cache.Handle
		_, rawHandle, err = h.cache.GetHandle(req.Handle)
		if err != nil {
			return nil, err
		}
		fi, err = rawHandle.(*passthroughHandle).f.Stat()
	default:
		fi, err = os.Lstat(filepath.Join(h.root, pc.NodePath))
	}
	if err != nil {
		return nil, err
	}

	return &flint.AttrResponse{
		TTL:  time.Minute,
		Attr: attrFromInfo(pc.Node, fi),
	}, nil
}

func (h *passthroughHandler) Setattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.SetattrRequest) (*flint.AttrResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(h.root, pc.NodePath)

	var f *os.File // File to update
	switch {
	case req.UpdateMask&flint.SetattrHandle != 0:
		_, handle, err := h.cache.GetHandle(req.Handle)
		if err != nil {
			return nil, err
		}
		f = handle.(*passthroughHandle).f
	default:
		f, err = os.OpenFile(fullPath, int(flint.OpenReadWrite), 0440)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}

	if req.UpdateMask&flint.SetattrSize != 0 {
		if err := f.Truncate(int64(req.Size)); err != nil {
			return nil, err
		}
	}
	if req.UpdateMask&flint.SetattrMode != 0 {
		if err := f.Chmod(req.Mode); err != nil {
			return nil, err
		}
	}
	if req.UpdateMask&(flint.SetattrUID|flint.SetattrGID) != 0 {
		uid, gid := -1, -1
		if req.UpdateMask&flint.SetattrUID != 0 {
			uid = int(req.UID)
		}
		if req.UpdateMask&flint.SetattrGID != 0 {
			gid = int(req.GID)
		}
		if err := os.Lchown(fullPath, uid, gid); err != nil {
			return nil, err
		}
	}
	if req.UpdateMask&(flint.SetattrLastAccess|flint.SetattrLastModify|flint.SetattrLastAccessNow|flint.SetattrLastModifyNow) != 0 {
		now := time.Now()
		atime, mtime := req.LastAccess, req.LastModify
		if req.UpdateMask&flint.SetattrLastAccessNow != 0 {
			atime = now
		}
		if req.UpdateMask&flint.SetattrLastModifyNow != 0 {
			mtime = now
		}
		if atime.IsZero() || mtime.IsZero() {
			// Chtimes needs both; fill the missing one from the current
			// attributes.
			fi, err := f.Stat()
			if err != nil {
				return nil, err
			}
			if mtime.IsZero() {
				mtime = fi.ModTime()
			}
			if atime.IsZero() {
				atime = now
			}
		}
		if err := os.Chtimes(fullPath, atime, mtime); err != nil {
			return nil, err
		}
	}

	// Get the new file stats
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &flint.AttrResponse{
		TTL:  time.Minute,
		Attr: attrFromInfo(pc.Node, fi),
	}, nil
}

func (h *passthroughHandler) Readlink(ctx context.Context, hdr *flint.RequestHeader) (*flint.ReadlinkResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	res, err := os.Readlink(filepath.Join(h.root, pc.NodePath))
	if err != nil {
		return nil, err
	}
	return &flint.ReadlinkResponse{Contents: []byte(res)}, nil
}

func (h *passthroughHandler) Symlink(ctx context.Context, hdr *flint.RequestHeader, req *flint.SymlinkRequest) (*flint.EntryResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	newname := filepath.Join(h.root, pc.NodePath, req.Source)
	if err := os.Symlink(req.LinkName, newname); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.Source)
}

func (h *passthroughHandler) Mknod(ctx context.Context, hdr *flint.RequestHeader, req *flint.MknodRequest) (*flint.EntryResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(h.root, pc.NodePath, req.Name)
	if err := mknodPath(fullPath, req.Mode, req.DeviceID); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.Name)
}

func (h *passthroughHandler) Mkdir(ctx context.Context, hdr *flint.RequestHeader, req *flint.MkdirRequest) (*flint.EntryResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	newPath := filepath.Join(h.root, pc.NodePath, req.Name)
	if err := os.Mkdir(newPath, req.Mode); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.Name)
}

func (h *passthroughHandler) Unlink(ctx context.Context, hdr *flint.RequestHeader, req *flint.UnlinkRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(h.root, pc.NodePath, req.Name))
}

func (h *passthroughHandler) Rmdir(ctx context.Context, hdr *flint.RequestHeader, req *flint.RmdirRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(h.root, pc.NodePath, req.Name))
}

func (h *passthroughHandler) Rename(ctx context.Context, hdr *flint.RequestHeader, req *flint.RenameRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	var (
		oldPath = filepath.Join(h.root, pc.NodePath, req.OldName)
		newPath = filepath.Join(h.root, pc.NodePath, req.NewName)
	)
	if req.NewDir != hdr.Node {
		// It's being moved to a new directory. Get the path for the new directory.
		newDirPath, err := h.cache.NodePath(req.NewDir)
		if err != nil {
			return err
		}
		newPath = filepath.Join(h.root, newDirPath, req.NewName)
	}

	if err := renamePath(oldPath, newPath, req.Flags); err != nil {
		return err
	}

	// Attempt to move the entry in the cache, if it exists.
	_ = h.cache.RenameNode(hdr.Node, req)
	return nil
}

func (h *passthroughHandler) Link(ctx context.Context, hdr *flint.RequestHeader, req *flint.LinkRequest) (*flint.EntryResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}

	oldPath, err := h.cache.NodePath(req.OldNode)
	if err != nil {
		return nil, err
	}
	var (
		oldname = filepath.Join(h.root, oldPath)
		newname = filepath.Join(h.root, pc.NodePath, req.NewName)
	)
	if err := os.Link(oldname, newname); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.NewName)
}

func (h *passthroughHandler) Open(ctx context.Context, hdr *flint.RequestHeader, req *flint.OpenRequest) (*flint.OpenedResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(h.root, pc.NodePath), int(req.Flags), 0)
	if err != nil {
		return nil, err
	}

	hi, err := h.cache.AddHandle(newPassthroughHandle(f, req.Flags))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &flint.OpenedResponse{Handle: hi.ID}, nil
}

func (h *passthroughHandler) Read(ctx context.Context, hdr *flint.RequestHeader, req *flint.ReadRequest) (*flint.ReadResponse, error) {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, int(req.Size))
	n, err := ph.f.ReadAt(buf, int64(req.Offset))
	if errors.Is(err, io.EOF) {
		// A short read at the end of the file is not an error on the kernel
		// side.
		err = nil
	}
	return &flint.ReadResponse{Data: buf[:n]}, err
}

func (h *passthroughHandler) Write(ctx context.Context, hdr *flint.RequestHeader, req *flint.WriteRequest) (*flint.WriteResponse, error) {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}

	var n int
	if ph.flags&flint.OpenAppend != 0 {
		// WriteAt fails if the file was opened for appending, so plain Write
		// is used instead.
		n, err = ph.f.Write(req.Data)
	} else {
		n, err = ph.f.WriteAt(req.Data, int64(req.Offset))
	}
	if err != nil {
		return nil, err
	}
	return &flint.WriteResponse{Written: uint32(n)}, nil
}

func (h *passthroughHandler) Statfs(ctx context.Context, hdr *flint.RequestHeader) (*flint.StatfsResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	return statfsPath(filepath.Join(h.root, pc.NodePath))
}

func (h *passthroughHandler) Release(ctx context.Context, hdr *flint.RequestHeader, req *flint.ReleaseRequest) error {
	return h.cache.ReleaseHandle(req.Handle)
}

func (h *passthroughHandler) Fsync(ctx context.Context, hdr *flint.RequestHeader, req *flint.FsyncRequest) error {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return err
	}
	return ph.f.Sync()
}

func (h *passthroughHandler) Flush(ctx context.Context, hdr *flint.RequestHeader, req *flint.FlushRequest) error {
	// no-op: flush may be called multiple times for a file, and there is
	// nothing buffered here. The handle stays open until its Release.
	return nil
}

func (h *passthroughHandler) Setxattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.SetxattrRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	return setxattrPath(filepath.Join(h.root, pc.NodePath), req.Name, req.Value, uint32(req.Flags))
}

func (h *passthroughHandler) Getxattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetxattrRequest) (*flint.XattrResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	return getxattrPath(filepath.Join(h.root, pc.NodePath), req.Name, req.Size)
}

func (h *passthroughHandler) Listxattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.ListxattrRequest) (*flint.XattrResponse, error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}
	return listxattrPath(filepath.Join(h.root, pc.NodePath), req.Size)
}

func (h *passthroughHandler) Removexattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.RemovexattrRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	return removexattrPath(filepath.Join(h.root, pc.NodePath), req.Name)
}

func (h *passthroughHandler) Opendir(ctx context.Context, hdr *flint.RequestHeader, req *flint.OpenRequest) (*flint.OpenedResponse, error) {
	// Opendir works the same as Open, so we fall back to that.
	return h.Open(ctx, hdr, req)
}

// Wire sizes of one directory entry tuple, used to keep a listing reply
// within the size the kernel asked for.
const (
	direntOverhead     = 24
	direntPlusOverhead = direntOverhead + 128
)

func direntSize(name string, overhead uint64) uint64 {
	return (overhead + uint64(len(name)) + 7) &^ 7
}

func (h *passthroughHandler) Readdir(ctx context.Context, hdr *flint.RequestHeader, req *flint.ReadRequest) (*flint.ReaddirResponse, error) {
	ents, err := h.readDirEntries(hdr, req)
	if err != nil {
		return nil, err
	}
	var (
		dirEnts []flint.DirEntry
		used    uint64
	)
	for i, ent := range ents {
		used += direntSize(ent.Name(), direntOverhead)
		if used > uint64(req.Size) {
			break
		}
		dirEnts = append(dirEnts, flint.DirEntry{
			Inode:  inodeHash(uint64(hdr.Node), ent.Name()),
			Type:   toEntryType(ent.Type()),
			Name:   ent.Name(),
			Offset: req.Offset + uint64(i) + 1,
		})
	}
	return &flint.ReaddirResponse{Entries: dirEnts}, nil
}

func (h *passthroughHandler) Readdirplus(ctx context.Context, hdr *flint.RequestHeader, req *flint.ReadRequest) (*flint.ReaddirplusResponse, error) {
	ents, err := h.readDirEntries(hdr, req)
	if err != nil {
		return nil, err
	}
	var (
		plusEnts []flint.DirPlusEntry
		used     uint64
	)
	for i, ent := range ents {
		used += direntSize(ent.Name(), direntPlusOverhead)
		if used > uint64(req.Size) {
			break
		}

		// Each entry also counts as a lookup, so the node is registered with
		// the cache the same way an explicit Lookup would.
		entry, err := h.createNodeEntry(hdr.Node, ent.Name())
		if err != nil {
			return nil, err
		}
		plusEnts = append(plusEnts, flint.DirPlusEntry{
			Entry: entry.Entry,
			DirEntry: flint.DirEntry{
				Inode:  entry.Entry.Attr.Inode,
				Type:   toEntryType(ent.Type()),
				Name:   ent.Name(),
				Offset: req.Offset + uint64(i) + 1,
			},
		})
	}
	return &flint.ReaddirplusResponse{Entries: plusEnts}, nil
}

// readDirEntries lists a directory handle, honoring the request offset as an
// index into the full listing. The listing is snapshotted on the first read
// of a handle so later offsets stay consistent.
func (h *passthroughHandler) readDirEntries(hdr *flint.RequestHeader, req *flint.ReadRequest) ([]os.DirEntry, error) {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}

	ph.mut.Lock()
	defer ph.mut.Unlock()

	if ph.dirEnts == nil {
		ents, err := ph.f.ReadDir(0)
		if err != nil {
			return nil, err
		}
		if ents == nil {
			ents = []os.DirEntry{}
		}
		ph.dirEnts = ents
	}
	if req.Offset >= uint64(len(ph.dirEnts)) {
		return nil, nil
	}
	return ph.dirEnts[req.Offset:], nil
}

func (h *passthroughHandler) Releasedir(ctx context.Context, hdr *flint.RequestHeader, req *flint.ReleaseRequest) error {
	return h.cache.ReleaseHandle(req.Handle)
}

func (h *passthroughHandler) Fsyncdir(ctx context.Context, hdr *flint.RequestHeader, req *flint.FsyncRequest) error {
	// Fsyncdir is equivalent to Fsync, so we fall back to that.
	return h.Fsync(ctx, hdr, req)
}

func (h *passthroughHandler) Getlk(ctx context.Context, hdr *flint.RequestHeader, req *flint.LockRequest) (*flint.LockResponse, error) {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}
	return getlkFile(ph.f, req)
}

func (h *passthroughHandler) Setlk(ctx context.Context, hdr *flint.RequestHeader, req *flint.LockRequest) error {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return err
	}
	return setlkFile(ph.f, req)
}

func (h *passthroughHandler) Access(ctx context.Context, hdr *flint.RequestHeader, req *flint.AccessRequest) error {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return err
	}
	return accessPath(filepath.Join(h.root, pc.NodePath), uint32(req.Mask))
}

func (h *passthroughHandler) Create(ctx context.Context, hdr *flint.RequestHeader, req *flint.CreateRequest) (_ *flint.CreateResponse, err error) {
	pc, err := h.getPassthroughContext(hdr)
	if err != nil {
		return nil, err
	}

	// If anything during the Create fails, we want to undo anything saved
	// (closing the file, removing the cache entry, etc).
	newpath := filepath.Join(h.root, pc.NodePath, req.Name)

	f, err := os.OpenFile(newpath, int(req.Flags)|os.O_CREATE, req.Mode)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	newEntry, err := h.createNodeEntry(hdr.Node, req.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = h.cache.ReleaseNode(newEntry.Entry.Node, 1)
		}
	}()

	hi, err := h.cache.AddHandle(newPassthroughHandle(f, req.Flags))
	if err != nil {
		return nil, err
	}
	return &flint.CreateResponse{
		Handle: hi.ID,
		Entry:  newEntry.Entry,
	}, nil
}

func (h *passthroughHandler) Fallocate(ctx context.Context, hdr *flint.RequestHeader, req *flint.FallocateRequest) error {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return err
	}
	return fallocateFile(ph.f, req.Mode, req.Offset, req.Length)
}

func (h *passthroughHandler) Lseek(ctx context.Context, hdr *flint.RequestHeader, req *flint.LseekRequest) (*flint.LseekResponse, error) {
	ph, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}

	off, err := ph.f.Seek(int64(req.Offset), int(req.Whence))
	if err != nil {
		return nil, err
	}
	return &flint.LseekResponse{Offset: uint64(off)}, nil
}

func (h *passthroughHandler) CopyFileRange(ctx context.Context, hdr *flint.RequestHeader, req *flint.CopyFileRangeRequest) (*flint.CopyRangeResponse, error) {
	src, err := h.getHandle(req.Handle)
	if err != nil {
		return nil, err
	}
	dst, err := h.getHandle(req.HandleOut)
	if err != nil {
		return nil, err
	}
	copied, err := copyFileRange(src.f, req.Offset, dst.f, req.OffsetOut, req.Length)
	if err != nil {
		return nil, err
	}
	return &flint.CopyRangeResponse{Copied: copied}, nil
}

func (h *passthroughHandler) getHandle(id flint.Handle) (*passthroughHandle, error) {
	_, hdl, err := h.cache.GetHandle(id)
	if err != nil {
		return nil, err
	}
	ph, ok := hdl.(*passthroughHandle)
	if !ok {
		return nil, flint.ErrorStale
	}
	return ph, nil
}

type passthroughNode struct {
	inode uint64
}

func newPassthroughNode(parent flint.Node, name string) *passthroughNode {
	return &passthroughNode{
		inode: inodeHash(uint64(parent), name),
	}
}

func (n *passthroughNode) Close() error {
	// no-op
	return nil
}

// inodeHash returns a synthetic inode number from the hash of the file name
// and the parent directory's inode number.
func inodeHash(parent uint64, name string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%02b%s", parent, name)

	var inode uint64
	for {
		inode = h.Sum64()
		if inode != 1 {
			break
		}
		// inode 1 is reserved for the root; try something else.
		h.Write([]byte{'!'})
	}
	return inode
}

type passthroughHandle struct {
	f     *os.File
	flags flint.FileFlags

	mut     sync.Mutex
	dirEnts []os.DirEntry // Listing snapshot for directory handles
}

func newPassthroughHandle(f *os.File, flags flint.FileFlags) *passthroughHandle {
	return &passthroughHandle{f: f, flags: flags}
}

func (h *passthroughHandle) Close() error { return h.f.Close() }

func entryForNode(ni cache.NodeInfo, n *passthroughNode, fi fs.FileInfo) flint.Entry {
	return flint.Entry{
		Node:       ni.ID,
		Generation: ni.Generation,
		EntryTTL:   time.Minute,
		AttrTTL:    time.Minute,
		Attr:       attrFromInfo(n, fi),
	}
}

func toEntryType(m os.FileMode) (et flint.EntryType) {
	switch {
	case m&os.ModeNamedPipe != 0:
		et = flint.EntryPipe
	case m&os.ModeCharDevice != 0 && m&os.ModeDevice != 0:
		et = flint.EntryCharacter
	case m&os.ModeDir != 0:
		et = flint.EntryDirectory
	case m&os.ModeDevice != 0:
		et = flint.EntryBlock
	case m&os.ModeType == 0:
		et = flint.EntryRegular
	case m&os.ModeSymlink != 0:
		et = flint.EntryLink
	case m&os.ModeSocket != 0:
		et = flint.EntryUnixSocket
	}
	return
}
