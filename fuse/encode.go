package fuse

import (
	"fmt"
	"time"

	"github.com/flintfs/flint"
)

// encodeResponse serializes one reply into the exact byte layout the kernel
// expects: the 16-byte out header carrying the total length, the (negative)
// error code and the originating request's unique id, followed by the
// opcode-appropriate success payload. Error replies carry no payload.
//
// The total length field always equals header size plus payload size; the
// kernel rejects frames where the two disagree.
func encodeResponse(h flint.ResponseHeader, resp flint.Response) ([]byte, error) {
	aw := newArgWriter(h)
	if h.Error != 0 || resp == nil {
		return aw.Finish(), nil
	}

	// Arguments are written in the exact order FUSE expects them; do not
	// reorder writes within a case.
	switch resp := resp.(type) {
	case *flint.EntryResponse:
		writeEntryOut(aw, resp.Entry)

	case *flint.AttrResponse:
		aw.Uint64(secondFrag(resp.TTL))
		aw.Uint32(nanosecondFrag(resp.TTL))
		aw.Pad(4)
		writeAttr(aw, resp.Attr)

	case *flint.ReadlinkResponse:
		aw.Bytes(resp.Contents)

	case *flint.OpenedResponse:
		aw.Uint64(uint64(resp.Handle))
		aw.Uint32(uint32(resp.OpenedFlags))
		aw.Pad(4)

	case *flint.ReadResponse:
		aw.Bytes(resp.Data)

	case *flint.WriteResponse:
		aw.Uint32(resp.Written)
		aw.Pad(4)

	case *flint.StatfsResponse:
		aw.Uint64(resp.Blocks)
		aw.Uint64(resp.BlocksFree)
		aw.Uint64(resp.BlocksAvail)
		aw.Uint64(resp.Files)
		aw.Uint64(resp.FilesFree)
		aw.Uint32(resp.BlockSize)
		aw.Uint32(resp.NameLen)
		aw.Uint32(resp.FragmentSize)
		aw.Pad(4 + 6*4) // padding plus spare words

	case *flint.XattrResponse:
		// A nil Data answers a size probe with fuse_getxattr_out; otherwise
		// the raw value bytes are the whole payload.
		if resp.Data == nil {
			aw.Uint32(resp.Size)
			aw.Pad(4)
		} else {
			aw.Bytes(resp.Data)
		}

	case *flint.InitResponse:
		aw.Uint32(resp.Version.Major)
		aw.Uint32(resp.Version.Minor)
		aw.Uint32(resp.MaxReadahead)
		aw.Uint32(uint32(resp.Flags))
		aw.Uint16(resp.MaxBackground)
		aw.Uint16(resp.CongestionThreshold)
		aw.Uint32(resp.MaxWrite)
		aw.Uint32(resp.TimeGran)
		aw.Uint16(resp.MaxPages)
		aw.Uint16(resp.MapAlignment)
		aw.Pad(8 * 4) // unused words

	case *flint.ReaddirResponse:
		// Linux expects a list of (fuse_dirent, name) tuples. Every tuple
		// must start 64-bit aligned, so entries get zero padding as needed.
		for _, ent := range resp.Entries {
			writeDirent(aw, ent)
		}

	case *flint.ReaddirplusResponse:
		// Readdirplus interleaves a fuse_entry_out before each dirent so the
		// kernel can populate its caches without a separate Lookup.
		for _, ent := range resp.Entries {
			writeEntryOut(aw, ent.Entry)
			writeDirent(aw, ent.DirEntry)
		}

	case *flint.CreateResponse:
		writeEntryOut(aw, resp.Entry)
		aw.Uint64(uint64(resp.Handle))
		aw.Uint32(uint32(resp.OpenedFlags))
		aw.Pad(4)

	case *flint.LockResponse:
		aw.Uint64(resp.Lock.Start)
		aw.Uint64(resp.Lock.End)
		aw.Uint32(uint32(resp.Lock.Type))
		aw.Uint32(resp.Lock.PID)

	case *flint.LseekResponse:
		aw.Uint64(resp.Offset)

	case *flint.CopyRangeResponse:
		aw.Uint32(resp.Copied)
		aw.Pad(4)

	default:
		return nil, fmt.Errorf("unknown response type %T", resp)
	}

	return aw.Finish(), nil
}

// writeDirent writes one directory entry tuple. The entry's Offset is
// emitted verbatim; the kernel echoes it back as the read offset of the
// request that resumes the listing.
func writeDirent(aw *argWriter, ent flint.DirEntry) {
	// The name of a directory entry doesn't carry a NUL byte.
	nameBytes := []byte(ent.Name)

	rawSize := uint64(direntLen) + uint64(len(nameBytes))
	written := align64(rawSize)

	aw.Uint64(ent.Inode)
	aw.Uint64(ent.Offset)
	aw.Uint32(uint32(len(nameBytes)))
	aw.Uint32(uint32(ent.Type))
	aw.Bytes(nameBytes)
	if written > rawSize {
		aw.Pad(int(written - rawSize))
	}
}

func writeEntryOut(aw *argWriter, in flint.Entry) {
	aw.Uint64(uint64(in.Node))
	aw.Uint64(in.Generation)
	aw.Uint64(secondFrag(in.EntryTTL))
	aw.Uint64(secondFrag(in.AttrTTL))
	aw.Uint32(nanosecondFrag(in.EntryTTL))
	aw.Uint32(nanosecondFrag(in.AttrTTL))
	writeAttr(aw, in.Attr)
}

func writeAttr(aw *argWriter, in flint.Attr) {
	aw.Uint64(in.Inode)
	aw.Uint64(in.Size)
	aw.Uint64(in.Blocks)
	aw.Uint64(unixSeconds(in.LastAccess))
	aw.Uint64(unixSeconds(in.LastModify))
	aw.Uint64(unixSeconds(in.LastChange))
	aw.Uint32(unixNsOffset(in.LastAccess))
	aw.Uint32(unixNsOffset(in.LastModify))
	aw.Uint32(unixNsOffset(in.LastChange))
	aw.Uint32(toLinuxMode(in.Mode))
	aw.Uint32(in.HardLinks)
	aw.Uint32(in.UID)
	aw.Uint32(in.GID)
	aw.Uint32(in.RDev)
	aw.Uint32(in.BlockSize)
	aw.Pad(4)
}

func secondFrag(d time.Duration) uint64 {
	return uint64(d / time.Second)
}

func nanosecondFrag(d time.Duration) uint32 {
	rem := d - d.Truncate(time.Second)
	return uint32(rem.Nanoseconds())
}

func unixSeconds(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix())
}

func unixNsOffset(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Nanosecond())
}
