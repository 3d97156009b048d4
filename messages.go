package flint

import (
	"os"
	"time"
)

// Protocol messages. Each type here is the request or response payload for a
// specific operation; the association is carried by the Op in the header.
type (
	LookupRequest struct {
		Name string
	}
	EntryResponse struct {
		Entry Entry
	}

	ForgetRequest struct {
		NumLookups uint64
	}

	GetattrRequest struct {
		Flags  GetattrFlags
		Handle Handle
	}
	SetattrRequest struct {
		UpdateMask SetattrMask // Mask indicating which fields to use for the update.
		Handle     Handle      // Handle to set attributes for.
		Size       uint64      // File size.
		LockOwner  LockOwner   // Owner of a lock.
		LastAccess time.Time   // Last time the file was accessed.
		LastModify time.Time   // Last time the file was modified.
		LastChange time.Time   // Last time the inode was updated.
		Mode       os.FileMode // File permissions.
		UID        uint32      // Owner UID
		GID        uint32      // Owner GID
	}
	AttrResponse struct {
		TTL  time.Duration // Cache validity of the attributes.
		Attr Attr          // Attribute data.
	}

	ReadlinkResponse struct {
		Contents []byte // Contents of the link, up to the page size.
	}

	SymlinkRequest struct {
		Source   string // File being created
		LinkName string // File being linked to
	}

	MknodRequest struct {
		Mode     os.FileMode // Permissions for the file
		DeviceID uint32      // Device ID for the special file
		Umask    os.FileMode // Umask of the request
		Name     string      // Name of the file
	}

	MkdirRequest struct {
		Mode  os.FileMode
		Umask os.FileMode
		Name  string
	}

	UnlinkRequest struct {
		Name string
	}

	RmdirRequest struct {
		Name string
	}

	// RenameRequest covers both plain renames and extended renames; Flags is
	// always zero for the former.
	RenameRequest struct {
		NewDir           Node
		OldName, NewName string
		Flags            RenameFlags
	}

	LinkRequest struct {
		OldNode Node
		NewName string
	}

	OpenRequest struct {
		Flags FileFlags
	}
	OpenedResponse struct {
		Handle      Handle
		OpenedFlags OpenedFlags
	}

	ReadRequest struct {
		Handle    Handle
		Offset    uint64
		Size      uint32
		Flags     ReadFlags
		LockOwner LockOwner
		FileFlags FileFlags
	}
	ReadResponse struct {
		Data []byte
	}

	WriteRequest struct {
		Handle    Handle     // Handle to write to
		Offset    uint64     // Offset in the handle to write
		Data      []byte     // Data to write
		Flags     WriteFlags // Flags for writing
		LockOwner LockOwner  // Owner of the write lock, if one exists.
		FileFlags FileFlags  // Flags the file was opened with
	}
	WriteResponse struct {
		Written uint32 // Written bytes
	}

	StatfsResponse struct {
		Blocks       uint64 // Total data blocks in the filesystem
		BlocksFree   uint64 // Free blocks
		BlocksAvail  uint64 // Free blocks available to unprivileged users
		Files        uint64 // Total file nodes in the filesystem
		FilesFree    uint64 // Free file nodes
		BlockSize    uint32 // Optimal transfer block size
		NameLen      uint32 // Maximum length of filenames
		FragmentSize uint32 // Fragment size
	}

	ReleaseRequest struct {
		Handle    Handle
		Flags     ReleaseFlags
		FileFlags FileFlags
		LockOwner LockOwner
	}

	FsyncRequest struct {
		Handle Handle
		Flags  SyncFlags
	}

	SetxattrRequest struct {
		Name  string
		Value []byte
		Flags XattrFlags
	}

	// GetxattrRequest asks for the value of one extended attribute. A Size
	// of zero is a probe: the response must carry only the value's length.
	GetxattrRequest struct {
		Name string
		Size uint32
	}

	// ListxattrRequest asks for the set of extended attribute names. Size
	// follows the same probe convention as GetxattrRequest.
	ListxattrRequest struct {
		Size uint32
	}

	// XattrResponse answers Getxattr and Listxattr. When Data is nil only
	// Size is sent, answering a probe for the required buffer length.
	XattrResponse struct {
		Size uint32
		Data []byte
	}

	RemovexattrRequest struct {
		Name string
	}

	FlushRequest struct {
		Handle    Handle
		LockOwner LockOwner
	}

	InitRequest struct {
		LatestVersion Version   // Latest version supported by the kernel
		MaxReadahead  uint32    // Length of data that can be prefetched
		Flags         InitFlags // Capability flags offered by the kernel
	}
	InitResponse struct {
		Version             Version   // Version the driver will speak
		MaxReadahead        uint32    // Length of data that can be prefetched
		Flags               InitFlags // Accepted capability flags
		MaxBackground       uint16
		CongestionThreshold uint16
		MaxWrite            uint32
		TimeGran            uint32
		MaxPages            uint16
		MapAlignment        uint16
	}

	ReaddirResponse struct {
		Entries []DirEntry
	}

	ReaddirplusResponse struct {
		Entries []DirPlusEntry
	}

	LockRequest struct {
		Handle Handle    // Handle the lock applies to
		Owner  LockOwner // Owner of the lock
		Lock   Lock      // Lock being queried or acquired
		Flags  LockFlags // How the lock is acquired
		Sleep  bool      // Whether acquisition may block (SETLKW)
	}
	LockResponse struct {
		Lock Lock
	}

	AccessRequest struct {
		Mask os.FileMode // Validate access for mask
	}

	CreateRequest struct {
		Flags FileFlags   // Flags for creation
		Mode  os.FileMode // File mode
		Umask os.FileMode // Umask for the file
		Name  string      // Name of the file to create
	}
	CreateResponse struct {
		Handle      Handle      // Handle to the newly created node
		OpenedFlags OpenedFlags // Flags used for the create
		Entry       Entry       // Created node entry
	}

	// InterruptRequest interrupts an ongoing request. The interrupted
	// request should return with ErrorInterrupted, though handlers may
	// ignore the context cancellation an interrupt causes.
	InterruptRequest struct {
		RequestID uint64 // Request to interrupt
	}

	BatchForgetRequest struct {
		Items []BatchForgetItem
	}

	FallocateRequest struct {
		Handle Handle // Handle to allocate space in
		Offset uint64 // Offset to allocate from
		Length uint64 // Number of bytes to allocate
		Mode   uint32 // Allocation mode (FALLOC_FL_* bits)
	}

	LseekRequest struct {
		Handle Handle // Handle to seek in
		Offset uint64 // Offset to seek to, relative to whence
		Whence uint32 // Seek relative to beginning, current position, or end
	}
	LseekResponse struct {
		Offset uint64 // New offset in the file
	}

	CopyFileRangeRequest struct {
		Handle    Handle // Source handle
		Offset    uint64 // Offset in the source
		NodeOut   Node   // Destination node
		HandleOut Handle // Destination handle
		OffsetOut uint64 // Offset in the destination
		Length    uint64 // Number of bytes to copy
		Flags     uint64 // Reserved; currently always zero
	}
	CopyRangeResponse struct {
		Copied uint32 // Copied bytes
	}
)

//
// Request / Response type implementations
//

func (*LookupRequest) flintRequest()         {}
func (*EntryResponse) flintResponse()        {}
func (*ForgetRequest) flintRequest()         {}
func (*GetattrRequest) flintRequest()        {}
func (*SetattrRequest) flintRequest()        {}
func (*AttrResponse) flintResponse()         {}
func (*ReadlinkResponse) flintResponse()     {}
func (*SymlinkRequest) flintRequest()        {}
func (*MknodRequest) flintRequest()          {}
func (*MkdirRequest) flintRequest()          {}
func (*UnlinkRequest) flintRequest()         {}
func (*RmdirRequest) flintRequest()          {}
func (*RenameRequest) flintRequest()         {}
func (*LinkRequest) flintRequest()           {}
func (*OpenRequest) flintRequest()           {}
func (*OpenedResponse) flintResponse()       {}
func (*ReadRequest) flintRequest()           {}
func (*ReadResponse) flintResponse()         {}
func (*WriteRequest) flintRequest()          {}
func (*WriteResponse) flintResponse()        {}
func (*StatfsResponse) flintResponse()       {}
func (*ReleaseRequest) flintRequest()        {}
func (*FsyncRequest) flintRequest()          {}
func (*SetxattrRequest) flintRequest()       {}
func (*GetxattrRequest) flintRequest()       {}
func (*ListxattrRequest) flintRequest()      {}
func (*XattrResponse) flintResponse()        {}
func (*RemovexattrRequest) flintRequest()    {}
func (*FlushRequest) flintRequest()          {}
func (*InitRequest) flintRequest()           {}
func (*InitResponse) flintResponse()         {}
func (*ReaddirResponse) flintResponse()      {}
func (*ReaddirplusResponse) flintResponse()  {}
func (*LockRequest) flintRequest()           {}
func (*LockResponse) flintResponse()         {}
func (*AccessRequest) flintRequest()         {}
func (*CreateRequest) flintRequest()         {}
func (*CreateResponse) flintResponse()       {}
func (*InterruptRequest) flintRequest()      {}
func (*BatchForgetRequest) flintRequest()    {}
func (*FallocateRequest) flintRequest()      {}
func (*LseekRequest) flintRequest()          {}
func (*LseekResponse) flintResponse()        {}
func (*CopyFileRangeRequest) flintRequest()  {}
func (*CopyRangeResponse) flintResponse()    {}
