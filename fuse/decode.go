package fuse

import (
	"errors"
	"fmt"
	"time"

	"github.com/flintfs/flint"
)

// ErrMalformedRequest is returned when a request frame cannot be decoded:
// the declared length disagrees with the received byte count, the opcode is
// unrecognized, or the payload is truncated relative to what the opcode
// requires. A malformed frame indicates protocol desynchronization, so
// sessions treat it as fatal.
var ErrMalformedRequest = errors.New("fuse: malformed request frame")

var errMalformed = ErrMalformedRequest

// Fixed frame sizes of the FUSE 7.31 wire format.
const (
	inHeaderLen  = 40  // length, opcode, unique, nodeid, uid, gid, pid, padding
	outHeaderLen = 16  // length, error, unique
	attrLen      = 88  // fuse_attr
	entryOutLen  = 128 // fuse_entry_out
	direntLen    = 24  // fuse_dirent, excluding the name
)

// decodeRequest parses one raw request frame into its typed form. It
// validates that the declared total length matches the actual byte count
// before reading the fixed header and the opcode-specific payload.
//
// Opcodes that are recognized but carry no payload decoder return a nil
// Request; the server answers those with ErrorUnimplemented rather than
// failing the session.
func decodeRequest(buf []byte) (hdr flint.RequestHeader, req flint.Request, err error) {
	// Argument reads panic on truncated frames. Catch that here and return
	// it as an error instead.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok && errors.Is(rerr, errMalformed) {
			err = fmt.Errorf("%w: truncated %s payload", rerr, hdr.Op)
			return
		}
		// Not from the argReader, throw it back
		panic(r)
	}()

	if len(buf) < inHeaderLen {
		return hdr, nil, fmt.Errorf("%w: frame shorter than header (%d bytes)", errMalformed, len(buf))
	}

	ar := argReader{data: buf}

	// Fixed header: length, opcode, unique, nodeid, uid, gid, pid, padding.
	frameLen := ar.Uint32()
	op := flint.Op(ar.Uint32())
	hdr = flint.RequestHeader{
		Op:        op,
		RequestID: ar.Uint64(),
		Node:      flint.Node(ar.Uint64()),
		UID:       ar.Uint32(),
		GID:       ar.Uint32(),
		PID:       ar.Uint32(),
	}
	ar.Pad(4)

	if frameLen != uint32(len(buf)) {
		return hdr, nil, fmt.Errorf("%w: header length %d doesn't match frame %d", errMalformed, frameLen, len(buf))
	}
	if !op.Known() {
		return hdr, nil, fmt.Errorf("%w: unknown opcode %d", errMalformed, uint32(op))
	}

	// Arguments are read in the exact order FUSE sends them; do not reorder
	// reads within a case.
	switch op {
	default:
		// Recognized opcode without a payload decoder (bmap, ioctl, poll,
		// notify_reply, cuse_init, the mapping ops). The server must answer
		// these with flint.ErrorUnimplemented or FUSE may hang.
		return hdr, nil, nil

	case flint.OpLookup:
		name := ar.String()
		return hdr, &flint.LookupRequest{Name: name}, nil

	case flint.OpForget:
		nlookup := ar.Uint64()
		return hdr, &flint.ForgetRequest{NumLookups: nlookup}, nil

	case flint.OpGetattr:
		flags := ar.Uint32()
		ar.Pad(4)
		fh := ar.Uint64()
		return hdr, &flint.GetattrRequest{
			Flags:  flint.GetattrFlags(flags),
			Handle: flint.Handle(fh),
		}, nil

	case flint.OpSetattr:
		valid := ar.Uint32()
		ar.Pad(4)
		fh := ar.Uint64()
		size := ar.Uint64()
		lockOwner := ar.Uint64()
		atime := ar.Uint64()
		mtime := ar.Uint64()
		ctime := ar.Uint64()
		atimeNsec := ar.Uint32()
		mtimeNsec := ar.Uint32()
		ctimeNsec := ar.Uint32()
		mode := ar.Uint32()
		ar.Pad(4)
		uid := ar.Uint32()
		gid := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.SetattrRequest{
			UpdateMask: flint.SetattrMask(valid),
			Handle:     flint.Handle(fh),
			Size:       size,
			LockOwner:  flint.LockOwner(lockOwner),
			LastAccess: time.Unix(int64(atime), int64(atimeNsec)),
			LastModify: time.Unix(int64(mtime), int64(mtimeNsec)),
			LastChange: time.Unix(int64(ctime), int64(ctimeNsec)),
			Mode:       toNativeMode(mode),
			UID:        uid,
			GID:        gid,
		}, nil

	case flint.OpReadlink, flint.OpStatfs, flint.OpDestroy:
		// No request payload.
		return hdr, nil, nil

	case flint.OpSymlink:
		source := ar.String()
		linkname := ar.String()
		return hdr, &flint.SymlinkRequest{Source: source, LinkName: linkname}, nil

	case flint.OpMknod:
		mode := ar.Uint32()
		rdev := ar.Uint32()
		umask := ar.Uint32()
		ar.Pad(4)
		name := ar.String()
		return hdr, &flint.MknodRequest{
			Mode:     toNativeMode(mode),
			DeviceID: rdev,
			Umask:    toNativeMode(umask),
			Name:     name,
		}, nil

	case flint.OpMkdir:
		mode := ar.Uint32()
		umask := ar.Uint32()
		name := ar.String()
		return hdr, &flint.MkdirRequest{
			Mode:  toNativeMode(mode),
			Umask: toNativeMode(umask),
			Name:  name,
		}, nil

	case flint.OpUnlink:
		name := ar.String()
		return hdr, &flint.UnlinkRequest{Name: name}, nil

	case flint.OpRmdir:
		name := ar.String()
		return hdr, &flint.RmdirRequest{Name: name}, nil

	case flint.OpRename:
		newDir := ar.Uint64()
		oldName := ar.String()
		newName := ar.String()
		return hdr, &flint.RenameRequest{
			NewDir:  flint.Node(newDir),
			OldName: oldName,
			NewName: newName,
		}, nil

	case flint.OpRename2:
		newDir := ar.Uint64()
		flags := ar.Uint32()
		ar.Pad(4)
		oldName := ar.String()
		newName := ar.String()
		return hdr, &flint.RenameRequest{
			NewDir:  flint.Node(newDir),
			OldName: oldName,
			NewName: newName,
			Flags:   flint.RenameFlags(flags),
		}, nil

	case flint.OpLink:
		oldNode := ar.Uint64()
		newName := ar.String()
		return hdr, &flint.LinkRequest{
			OldNode: flint.Node(oldNode),
			NewName: newName,
		}, nil

	case flint.OpOpen, flint.OpOpendir:
		flags := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.OpenRequest{
			Flags: flint.FileFlags(flags),
		}, nil

	case flint.OpRead, flint.OpReaddir, flint.OpReaddirplus:
		fh := ar.Uint64()
		offset := ar.Uint64()
		size := ar.Uint32()
		readFlags := ar.Uint32()
		lockOwner := ar.Uint64()
		flags := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.ReadRequest{
			Handle:    flint.Handle(fh),
			Offset:    offset,
			Size:      size,
			Flags:     flint.ReadFlags(readFlags),
			LockOwner: flint.LockOwner(lockOwner),
			FileFlags: flint.FileFlags(flags),
		}, nil

	case flint.OpWrite:
		fh := ar.Uint64()
		offset := ar.Uint64()
		size := ar.Uint32()
		writeFlags := ar.Uint32()
		lockOwner := ar.Uint64()
		flags := ar.Uint32()
		ar.Pad(4)
		data := ar.Bytes(int(size))
		return hdr, &flint.WriteRequest{
			Handle:    flint.Handle(fh),
			Offset:    offset,
			Flags:     flint.WriteFlags(writeFlags),
			LockOwner: flint.LockOwner(lockOwner),
			FileFlags: flint.FileFlags(flags),
			Data:      data,
		}, nil

	case flint.OpRelease, flint.OpReleasedir:
		fh := ar.Uint64()
		flags := ar.Uint32()
		releaseFlags := ar.Uint32()
		lockOwner := ar.Uint64()
		return hdr, &flint.ReleaseRequest{
			Handle:    flint.Handle(fh),
			Flags:     flint.ReleaseFlags(releaseFlags),
			FileFlags: flint.FileFlags(flags),
			LockOwner: flint.LockOwner(lockOwner),
		}, nil

	case flint.OpFsync, flint.OpFsyncdir:
		fh := ar.Uint64()
		fsyncFlags := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.FsyncRequest{
			Handle: flint.Handle(fh),
			Flags:  flint.SyncFlags(fsyncFlags),
		}, nil

	case flint.OpSetxattr:
		size := ar.Uint32()
		flags := ar.Uint32()
		name := ar.String()
		value := ar.Bytes(int(size))
		return hdr, &flint.SetxattrRequest{
			Name:  name,
			Value: value,
			Flags: flint.XattrFlags(flags),
		}, nil

	case flint.OpGetxattr:
		size := ar.Uint32()
		ar.Pad(4)
		name := ar.String()
		return hdr, &flint.GetxattrRequest{Name: name, Size: size}, nil

	case flint.OpListxattr:
		size := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.ListxattrRequest{Size: size}, nil

	case flint.OpRemovexattr:
		name := ar.String()
		return hdr, &flint.RemovexattrRequest{Name: name}, nil

	case flint.OpFlush:
		fh := ar.Uint64()
		ar.Pad(8)
		lockOwner := ar.Uint64()
		return hdr, &flint.FlushRequest{
			Handle:    flint.Handle(fh),
			LockOwner: flint.LockOwner(lockOwner),
		}, nil

	case flint.OpInit:
		major := ar.Uint32()
		minor := ar.Uint32()
		maxReadahead := ar.Uint32()
		flags := ar.Uint32()
		return hdr, &flint.InitRequest{
			LatestVersion: flint.Version{Major: major, Minor: minor},
			MaxReadahead:  maxReadahead,
			Flags:         flint.InitFlags(flags),
		}, nil

	case flint.OpGetlk, flint.OpSetlk, flint.OpSetlkw:
		fh := ar.Uint64()
		owner := ar.Uint64()
		start := ar.Uint64()
		end := ar.Uint64()
		lockType := ar.Uint32()
		pid := ar.Uint32()
		lockFlags := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.LockRequest{
			Handle: flint.Handle(fh),
			Owner:  flint.LockOwner(owner),
			Lock: flint.Lock{
				Start: start,
				End:   end,
				Type:  flint.LockType(lockType),
				PID:   pid,
			},
			Flags: flint.LockFlags(lockFlags),
			Sleep: op == flint.OpSetlkw,
		}, nil

	case flint.OpAccess:
		mask := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.AccessRequest{
			Mask: toNativeMode(mask),
		}, nil

	case flint.OpCreate:
		flags := ar.Uint32()
		mode := ar.Uint32()
		umask := ar.Uint32()
		ar.Pad(4)
		name := ar.String()
		return hdr, &flint.CreateRequest{
			Flags: flint.FileFlags(flags),
			Mode:  toNativeMode(mode),
			Umask: toNativeMode(umask),
			Name:  name,
		}, nil

	case flint.OpInterrupt:
		unique := ar.Uint64()
		return hdr, &flint.InterruptRequest{RequestID: unique}, nil

	case flint.OpBatchForget:
		count := ar.Uint32()
		ar.Pad(4)
		// Each item is 16 bytes. Check the claimed count against the frame
		// before allocating; the count is attacker-controlled.
		if uint64(count) > uint64(ar.Remaining())/16 {
			return hdr, nil, fmt.Errorf("%w: batch_forget count %d exceeds frame", errMalformed, count)
		}
		items := make([]flint.BatchForgetItem, 0, count)
		for i := 0; i < int(count); i++ {
			node := ar.Uint64()
			nlookup := ar.Uint64()
			items = append(items, flint.BatchForgetItem{
				Node:       flint.Node(node),
				NumLookups: nlookup,
			})
		}
		return hdr, &flint.BatchForgetRequest{Items: items}, nil

	case flint.OpFallocate:
		fh := ar.Uint64()
		offset := ar.Uint64()
		length := ar.Uint64()
		mode := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.FallocateRequest{
			Handle: flint.Handle(fh),
			Offset: offset,
			Length: length,
			Mode:   mode,
		}, nil

	case flint.OpLseek:
		fh := ar.Uint64()
		offset := ar.Uint64()
		whence := ar.Uint32()
		ar.Pad(4)
		return hdr, &flint.LseekRequest{
			Handle: flint.Handle(fh),
			Offset: offset,
			Whence: whence,
		}, nil

	case flint.OpCopyFileRange:
		fhIn := ar.Uint64()
		offIn := ar.Uint64()
		nodeOut := ar.Uint64()
		fhOut := ar.Uint64()
		offOut := ar.Uint64()
		length := ar.Uint64()
		flags := ar.Uint64()
		return hdr, &flint.CopyFileRangeRequest{
			Handle:    flint.Handle(fhIn),
			Offset:    offIn,
			NodeOut:   flint.Node(nodeOut),
			HandleOut: flint.Handle(fhOut),
			OffsetOut: offOut,
			Length:    length,
			Flags:     flags,
		}, nil
	}
}
