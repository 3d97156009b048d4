package flint

import (
	"fmt"
	"os"
	"time"
)

var (
	// MinVersion supported by the package. Earlier minor versions may work
	// but are not tested against.
	MinVersion = Version{Major: 7, Minor: 31}

	// RootNode is the implicit root of every mount. It always has node ID 1
	// and is assumed to exist by both sides of the connection.
	RootNode Node = Node(1)
)

// Version of the protocol.
type Version struct{ Major, Minor uint32 }

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ID types. The kernel hands out a collection of handles that are used for
// the lifetime of a connection.
type (
	// Node is an ID representing a file. 0 is never a valid reference and 1
	// always refers to the root of the mount.
	Node uint64

	// Handle is an open reference to a Node. Handle IDs are unique for the
	// lifetime of the handle and may be reassigned after release.
	Handle uint64

	// LockOwner is an opaque ID referencing the owner of a file lock.
	LockOwner uint64
)

// Common data types, communicated over the protocol as parts of messages.
type (
	// RequestHeader is present in every request.
	RequestHeader struct {
		Op        Op     // Operation the request represents.
		RequestID uint64 // Kernel-assigned correlation token; the reply must echo it.
		Node      Node   // Node the request is for.
		UID       uint32 // UID of the requesting user.
		GID       uint32 // GID of the requesting user.
		PID       uint32 // PID of the requesting process.
	}

	// ResponseHeader is present in every response.
	ResponseHeader struct {
		Op        Op     // Operation of the originating request.
		RequestID uint64 // Request this response applies to.
		Error     Error  // Zero on success, a negative errno otherwise.
	}

	// Entry is a description of a file.
	Entry struct {
		Node       Node          // Node ID.
		Generation uint64        // Generation of Node. Increases whenever the ID space wraps.
		EntryTTL   time.Duration // Cache validity of this Node.
		AttrTTL    time.Duration // Cache validity of this Node's attributes.
		Attr       Attr          // Attributes for the Node.
	}

	// Attr is the set of attributes for a Node.
	Attr struct {
		Inode      uint64      // Real inode number.
		Size       uint64      // Size in bytes.
		Blocks     uint64      // Size in 512-byte blocks.
		LastAccess time.Time   // Last time the file was accessed.
		LastModify time.Time   // Last time the contents were modified.
		LastChange time.Time   // Last time the inode was updated.
		Mode       os.FileMode // File permissions.
		HardLinks  uint32      // Number of hard links (usually 1).
		UID        uint32      // Owner UID.
		GID        uint32      // Owner GID.
		RDev       uint32      // Device ID, if a special file.
		BlockSize  uint32      // Block size for filesystem I/O.
	}

	// DirEntry is a directory entry returned during Readdir.
	DirEntry struct {
		Inode uint64
		Type  EntryType
		Name  string

		// Offset is the resume cookie for this entry: the value a follow-up
		// ReadRequest carries in Offset to continue the listing after this
		// entry. Conventionally the index of the next entry.
		Offset uint64
	}

	// DirPlusEntry is a directory entry returned during Readdirplus. It
	// combines a DirEntry with the Entry a Lookup on the name would return.
	DirPlusEntry struct {
		Entry    Entry
		DirEntry DirEntry
	}

	// Lock is a POSIX advisory lock.
	Lock struct {
		Start uint64   // Absolute starting byte offset of the lock.
		End   uint64   // Last byte offset of the lock.
		Type  LockType // Type of lock.
		PID   uint32   // PID of the holding process.
	}

	// BatchForgetItem is one entry of a BatchForgetRequest.
	BatchForgetItem struct {
		Node       Node
		NumLookups uint64
	}
)

// Enum types.
type (
	// EntryType specifies the type of a file in a directory.
	EntryType uint32

	// LockType indicates the type of a file lock.
	LockType uint32
)

// Enum values.
const (
	EntryUnknown    EntryType = 0x0 // Entry type isn't known
	EntryPipe       EntryType = 0x1 // Named FIFO pipe
	EntryCharacter  EntryType = 0x2 // Character device
	EntryDirectory  EntryType = 0x4 // Directory
	EntryBlock      EntryType = 0x6 // Block device
	EntryRegular    EntryType = 0x8 // Regular file
	EntryLink       EntryType = 0xa // Symbolic link
	EntryUnixSocket EntryType = 0xc // UNIX domain socket
	EntryWhiteout   EntryType = 0xe // BSD whiteout

	LockTypeRead   LockType = 0x0 // Read lock
	LockTypeWrite  LockType = 0x1 // Write lock
	LockTypeUnlock LockType = 0x2 // Releases a held lock
)

// Flag types. Every flag type here is a bitmask of options.
type (
	// GetattrFlags customize a GetattrRequest.
	GetattrFlags uint32
	// SetattrMask marks which fields of a SetattrRequest can be used.
	SetattrMask uint32
	// FileFlags are used when interacting with a node.
	FileFlags uint32
	// OpenedFlags are returned for an opened file.
	OpenedFlags uint32
	// ReadFlags customize a ReadRequest.
	ReadFlags uint32
	// WriteFlags customize a WriteRequest.
	WriteFlags uint32
	// ReleaseFlags customize a handle release.
	ReleaseFlags uint32
	// SyncFlags control a file sync.
	SyncFlags uint32
	// XattrFlags control setting an extended attribute.
	XattrFlags uint32
	// InitFlags are capability bits exchanged during init.
	InitFlags uint32
	// LockFlags control how a lock is acquired.
	LockFlags uint32
	// RenameFlags control an extended rename.
	RenameFlags uint32
)

const (
	// GetattrFlagHandle requests attributes for a handle instead of the node.
	GetattrFlagHandle GetattrFlags = 1 << 0

	SetattrMode          SetattrMask = 1 << 0  // The Mode field can be used
	SetattrUID           SetattrMask = 1 << 1  // The UID field can be used
	SetattrGID           SetattrMask = 1 << 2  // The GID field can be used
	SetattrSize          SetattrMask = 1 << 3  // The Size field can be used
	SetattrLastAccess    SetattrMask = 1 << 4  // The LastAccess field can be used
	SetattrLastModify    SetattrMask = 1 << 5  // The LastModify field can be used
	SetattrHandle        SetattrMask = 1 << 6  // The Handle field can be used
	SetattrLastAccessNow SetattrMask = 1 << 7  // Update LastAccess to the current time
	SetattrLastModifyNow SetattrMask = 1 << 8  // Update LastModify to the current time
	SetattrLockOwner     SetattrMask = 1 << 9  // The LockOwner field can be used
	SetattrLastChange    SetattrMask = 1 << 10 // The LastChange field can be used

	OpenReadOnly   FileFlags = 0x0 // Open the file for reading.
	OpenWriteOnly  FileFlags = 0x1 // Open the file for writing.
	OpenReadWrite  FileFlags = 0x2 // Open the file for reading and writing.
	OpenAccessMode FileFlags = 0x3 // Mask to extract the access mode bits.

	OpenCreate    FileFlags = 0x40     // Create the file if it doesn't exist.
	OpenExclusive FileFlags = 0x80     // Open the file with an exclusive lock.
	OpenTruncate  FileFlags = 0x200    // Truncate file contents before opening for writing.
	OpenAppend    FileFlags = 0x400    // Open with the file seeked to the end.
	OpenNonblock  FileFlags = 0x800    // Enable non-blocking IO against the open file.
	OpenDirectory FileFlags = 0x10000  // Open the file as a directory.
	OpenSync      FileFlags = 0x101000 // Enable synchronous writes.

	OpenedDirectIO    OpenedFlags = 1 << 0 // Bypass the page cache when writing
	OpenedKeepCache   OpenedFlags = 1 << 1 // Keep the existing page cache intact
	OpenedNonSeekable OpenedFlags = 1 << 2 // File does not support seeking
	OpenedCacheDir    OpenedFlags = 1 << 3 // Allow caching the directory
	OpenedStream      OpenedFlags = 1 << 4 // The file is stream-like and has no position

	ReadLockOwner ReadFlags = 1 << 1 // Use LockOwner to check an exclusive lock

	WriteCache     WriteFlags = 1 << 0 // Delayed write from the page cache
	WriteLockOwner WriteFlags = 1 << 1 // The LockOwner field may be used for lock validation
	WriteKillPriv  WriteFlags = 1 << 2 // Kill suid and sgid bits

	ReleaseFlush  ReleaseFlags = 1 << 0 // Flush the file after releasing
	ReleaseUnlock ReleaseFlags = 1 << 1 // Remove the lock after releasing

	SyncDataOnly SyncFlags = 1 << 0 // Only sync data, not file metadata

	XattrCreate  XattrFlags = 0x1 // Fail if the attribute already exists
	XattrReplace XattrFlags = 0x2 // Fail if the attribute doesn't already exist

	InitAsyncRead               InitFlags = 1 << 0  // Use asynchronous read requests
	InitPOSIXLocks              InitFlags = 1 << 1  // Use POSIX file locks
	InitFileOps                 InitFlags = 1 << 2  // Kernel sends a file handle on fsync
	InitAtomicTruncate          InitFlags = 1 << 3  // OpenTruncate is handled by the filesystem
	InitExportSupport           InitFlags = 1 << 4  // Filesystem can handle "." and ".."
	InitBigWrites               InitFlags = 1 << 5  // Filesystem can handle writes larger than 4K
	InitNoUmask                 InitFlags = 1 << 6  // Don't apply umask to file modes on create
	InitSpliceWrite             InitFlags = 1 << 7  // Kernel supports splice write on the device
	InitSpliceMove              InitFlags = 1 << 8  // Kernel supports splice move on the device
	InitSpliceRead              InitFlags = 1 << 9  // Kernel supports splice read on the device
	InitBSDLocks                InitFlags = 1 << 10 // Use BSD style locks
	InitDirIoctl                InitFlags = 1 << 11 // Kernel supports ioctl on directories
	InitAutoInvalidateCache     InitFlags = 1 << 12 // Automatically invalidate cached pages
	InitUseReaddirplus          InitFlags = 1 << 13 // Use Readdirplus instead of Readdir
	InitAdaptiveReaddirplus     InitFlags = 1 << 14 // Adaptive Readdirplus
	InitAsyncDIO                InitFlags = 1 << 15 // Asynchronous direct I/O submission
	InitWritebackCache          InitFlags = 1 << 16 // Use the writeback cache for buffered writes
	InitZeroOpenSupport         InitFlags = 1 << 17 // Kernel supports zero-message opens
	InitParallelDirOps          InitFlags = 1 << 18 // Allow parallel operations on directories
	InitHandleKillpriv          InitFlags = 1 << 19 // Filesystem kills suid/sgid/cap on write/chown/trunc
	InitACLSupportPOSIX         InitFlags = 1 << 20 // Filesystem supports POSIX ACLs
	InitAbortError              InitFlags = 1 << 21 // Reading the device after abort returns ECONNABORTED
	InitMaxPages                InitFlags = 1 << 22 // Read the MaxPages field from the init response
	InitCacheSymlinks           InitFlags = 1 << 23 // Cache responses for symbolic links
	InitZeroOpenDirSupport      InitFlags = 1 << 24 // Kernel supports zero-message opendir
	InitExplicitCacheInvalidate InitFlags = 1 << 25 // Only invalidate caches when explicitly requested
	InitMapAlignment            InitFlags = 1 << 26 // Read the MapAlignment field from the init response

	LockFlock LockFlags = 1 << 0 // BSD-style lock

	RenameNoReplace RenameFlags = 1 << 0 // Don't overwrite NewName if it already exists
	RenameExchange  RenameFlags = 1 << 1 // Atomically exchange the old and new file
	RenameWhiteout  RenameFlags = 1 << 2 // Create a whiteout object at the source
)
