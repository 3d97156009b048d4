// Package server implements the protocol session: it drives the
// receive-decode-dispatch-encode-send cycle over a flint.Transport,
// negotiates the protocol version on init, and fans requests out to a
// Handler across a bounded worker pool.
package server

import (
	"context"

	"github.com/flintfs/flint"
)

// Handler processes messages from a transport. Handler is passed to Serve,
// which invokes methods as requests come in.
//
// Backends rarely implement every operation. Embed UnimplementedHandler to
// answer the rest with flint.ErrorUnimplemented; the kernel treats that as
// "not supported", never as a session failure.
type Handler interface {
	// Init is called once the protocol handshake completes, before any
	// other request is dispatched.
	Init(context.Context) error

	// Close is called when the session ends, either from a destroy request
	// or from the transport going away.
	Close() error

	Lookup(context.Context, *flint.RequestHeader, *flint.LookupRequest) (*flint.EntryResponse, error)
	Forget(context.Context, *flint.RequestHeader, *flint.ForgetRequest)
	Getattr(context.Context, *flint.RequestHeader, *flint.GetattrRequest) (*flint.AttrResponse, error)
	Setattr(context.Context, *flint.RequestHeader, *flint.SetattrRequest) (*flint.AttrResponse, error)
	Readlink(context.Context, *flint.RequestHeader) (*flint.ReadlinkResponse, error)
	Symlink(context.Context, *flint.RequestHeader, *flint.SymlinkRequest) (*flint.EntryResponse, error)
	Mknod(context.Context, *flint.RequestHeader, *flint.MknodRequest) (*flint.EntryResponse, error)
	Mkdir(context.Context, *flint.RequestHeader, *flint.MkdirRequest) (*flint.EntryResponse, error)
	Unlink(context.Context, *flint.RequestHeader, *flint.UnlinkRequest) error
	Rmdir(context.Context, *flint.RequestHeader, *flint.RmdirRequest) error
	Rename(context.Context, *flint.RequestHeader, *flint.RenameRequest) error
	Link(context.Context, *flint.RequestHeader, *flint.LinkRequest) (*flint.EntryResponse, error)
	Open(context.Context, *flint.RequestHeader, *flint.OpenRequest) (*flint.OpenedResponse, error)
	Read(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReadResponse, error)
	Write(context.Context, *flint.RequestHeader, *flint.WriteRequest) (*flint.WriteResponse, error)
	Statfs(context.Context, *flint.RequestHeader) (*flint.StatfsResponse, error)
	Release(context.Context, *flint.RequestHeader, *flint.ReleaseRequest) error
	Fsync(context.Context, *flint.RequestHeader, *flint.FsyncRequest) error
	Setxattr(context.Context, *flint.RequestHeader, *flint.SetxattrRequest) error
	Getxattr(context.Context, *flint.RequestHeader, *flint.GetxattrRequest) (*flint.XattrResponse, error)
	Listxattr(context.Context, *flint.RequestHeader, *flint.ListxattrRequest) (*flint.XattrResponse, error)
	Removexattr(context.Context, *flint.RequestHeader, *flint.RemovexattrRequest) error
	Flush(context.Context, *flint.RequestHeader, *flint.FlushRequest) error
	Opendir(context.Context, *flint.RequestHeader, *flint.OpenRequest) (*flint.OpenedResponse, error)
	Readdir(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReaddirResponse, error)
	Readdirplus(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReaddirplusResponse, error)
	Releasedir(context.Context, *flint.RequestHeader, *flint.ReleaseRequest) error
	Fsyncdir(context.Context, *flint.RequestHeader, *flint.FsyncRequest) error
	Getlk(context.Context, *flint.RequestHeader, *flint.LockRequest) (*flint.LockResponse, error)
	Setlk(context.Context, *flint.RequestHeader, *flint.LockRequest) error
	Access(context.Context, *flint.RequestHeader, *flint.AccessRequest) error
	Create(context.Context, *flint.RequestHeader, *flint.CreateRequest) (*flint.CreateResponse, error)
	BatchForget(context.Context, *flint.RequestHeader, *flint.BatchForgetRequest) error
	Fallocate(context.Context, *flint.RequestHeader, *flint.FallocateRequest) error
	Lseek(context.Context, *flint.RequestHeader, *flint.LseekRequest) (*flint.LseekResponse, error)
	CopyFileRange(context.Context, *flint.RequestHeader, *flint.CopyFileRangeRequest) (*flint.CopyRangeResponse, error)
}
