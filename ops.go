package flint

import "fmt"

// Op is the numeric tag identifying which filesystem operation a request
// frame represents. Values match the Linux kernel's FUSE opcode numbering
// and must not be changed.
type Op uint32

const (
	OpLookup        Op = 1
	OpForget        Op = 2
	OpGetattr       Op = 3
	OpSetattr       Op = 4
	OpReadlink      Op = 5
	OpSymlink       Op = 6
	OpMknod         Op = 8
	OpMkdir         Op = 9
	OpUnlink        Op = 10
	OpRmdir         Op = 11
	OpRename        Op = 12
	OpLink          Op = 13
	OpOpen          Op = 14
	OpRead          Op = 15
	OpWrite         Op = 16
	OpStatfs        Op = 17
	OpRelease       Op = 18
	OpFsync         Op = 20
	OpSetxattr      Op = 21
	OpGetxattr      Op = 22
	OpListxattr     Op = 23
	OpRemovexattr   Op = 24
	OpFlush         Op = 25
	OpInit          Op = 26
	OpOpendir       Op = 27
	OpReaddir       Op = 28
	OpReleasedir    Op = 29
	OpFsyncdir      Op = 30
	OpGetlk         Op = 31
	OpSetlk         Op = 32
	OpSetlkw        Op = 33
	OpAccess        Op = 34
	OpCreate        Op = 35
	OpInterrupt     Op = 36
	OpBmap          Op = 37
	OpDestroy       Op = 38
	OpIoctl         Op = 39
	OpPoll          Op = 40
	OpNotifyReply   Op = 41
	OpBatchForget   Op = 42
	OpFallocate     Op = 43
	OpReaddirplus   Op = 44
	OpRename2       Op = 45
	OpLseek         Op = 46
	OpCopyFileRange Op = 47

	OpCUSEInit Op = 4096
)

var opNames = map[Op]string{
	OpLookup:        "lookup",
	OpForget:        "forget",
	OpGetattr:       "getattr",
	OpSetattr:       "setattr",
	OpReadlink:      "readlink",
	OpSymlink:       "symlink",
	OpMknod:         "mknod",
	OpMkdir:         "mkdir",
	OpUnlink:        "unlink",
	OpRmdir:         "rmdir",
	OpRename:        "rename",
	OpLink:          "link",
	OpOpen:          "open",
	OpRead:          "read",
	OpWrite:         "write",
	OpStatfs:        "statfs",
	OpRelease:       "release",
	OpFsync:         "fsync",
	OpSetxattr:      "setxattr",
	OpGetxattr:      "getxattr",
	OpListxattr:     "listxattr",
	OpRemovexattr:   "removexattr",
	OpFlush:         "flush",
	OpInit:          "init",
	OpOpendir:       "opendir",
	OpReaddir:       "readdir",
	OpReleasedir:    "releasedir",
	OpFsyncdir:      "fsyncdir",
	OpGetlk:         "getlk",
	OpSetlk:         "setlk",
	OpSetlkw:        "setlkw",
	OpAccess:        "access",
	OpCreate:        "create",
	OpInterrupt:     "interrupt",
	OpBmap:          "bmap",
	OpDestroy:       "destroy",
	OpIoctl:         "ioctl",
	OpPoll:          "poll",
	OpNotifyReply:   "notify_reply",
	OpBatchForget:   "batch_forget",
	OpFallocate:     "fallocate",
	OpReaddirplus:   "readdirplus",
	OpRename2:       "rename2",
	OpLseek:         "lseek",
	OpCopyFileRange: "copy_file_range",
	OpCUSEInit:      "cuse_init",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint32(o))
}

// Known reports whether o is an opcode this package recognizes. Frames
// carrying unknown opcodes are rejected at decode time.
func (o Op) Known() bool {
	_, ok := opNames[o]
	return ok
}

// NoReply reports whether o must never be answered. Sending any reply for
// one of these opcodes is a protocol violation.
func (o Op) NoReply() bool {
	return o == OpForget || o == OpBatchForget
}
