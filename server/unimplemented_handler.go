package server

import (
	"context"

	"github.com/flintfs/flint"
)

// UnimplementedHandler implements Handler and returns ErrorUnimplemented
// for all requests.
type UnimplementedHandler struct{}

// Static type check test
var _ Handler = UnimplementedHandler{}

func (UnimplementedHandler) Init(context.Context) error {
	return nil
}

func (UnimplementedHandler) Close() error {
	return nil
}

func (UnimplementedHandler) Lookup(context.Context, *flint.RequestHeader, *flint.LookupRequest) (*flint.EntryResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Forget(context.Context, *flint.RequestHeader, *flint.ForgetRequest) {
	// no-op
}

func (UnimplementedHandler) Getattr(context.Context, *flint.RequestHeader, *flint.GetattrRequest) (*flint.AttrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Setattr(context.Context, *flint.RequestHeader, *flint.SetattrRequest) (*flint.AttrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Readlink(context.Context, *flint.RequestHeader) (*flint.ReadlinkResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Symlink(context.Context, *flint.RequestHeader, *flint.SymlinkRequest) (*flint.EntryResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Mknod(context.Context, *flint.RequestHeader, *flint.MknodRequest) (*flint.EntryResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Mkdir(context.Context, *flint.RequestHeader, *flint.MkdirRequest) (*flint.EntryResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Unlink(context.Context, *flint.RequestHeader, *flint.UnlinkRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Rmdir(context.Context, *flint.RequestHeader, *flint.RmdirRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Rename(context.Context, *flint.RequestHeader, *flint.RenameRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Link(context.Context, *flint.RequestHeader, *flint.LinkRequest) (*flint.EntryResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Open(context.Context, *flint.RequestHeader, *flint.OpenRequest) (*flint.OpenedResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Read(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReadResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Write(context.Context, *flint.RequestHeader, *flint.WriteRequest) (*flint.WriteResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Statfs(context.Context, *flint.RequestHeader) (*flint.StatfsResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Release(context.Context, *flint.RequestHeader, *flint.ReleaseRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Fsync(context.Context, *flint.RequestHeader, *flint.FsyncRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Setxattr(context.Context, *flint.RequestHeader, *flint.SetxattrRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Getxattr(context.Context, *flint.RequestHeader, *flint.GetxattrRequest) (*flint.XattrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Listxattr(context.Context, *flint.RequestHeader, *flint.ListxattrRequest) (*flint.XattrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Removexattr(context.Context, *flint.RequestHeader, *flint.RemovexattrRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Flush(context.Context, *flint.RequestHeader, *flint.FlushRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Opendir(context.Context, *flint.RequestHeader, *flint.OpenRequest) (*flint.OpenedResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Readdir(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReaddirResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Readdirplus(context.Context, *flint.RequestHeader, *flint.ReadRequest) (*flint.ReaddirplusResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Releasedir(context.Context, *flint.RequestHeader, *flint.ReleaseRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Fsyncdir(context.Context, *flint.RequestHeader, *flint.FsyncRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Getlk(context.Context, *flint.RequestHeader, *flint.LockRequest) (*flint.LockResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) Setlk(context.Context, *flint.RequestHeader, *flint.LockRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Access(context.Context, *flint.RequestHeader, *flint.AccessRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Create(context.Context, *flint.RequestHeader, *flint.CreateRequest) (*flint.CreateResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) BatchForget(context.Context, *flint.RequestHeader, *flint.BatchForgetRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Fallocate(context.Context, *flint.RequestHeader, *flint.FallocateRequest) error {
	return flint.ErrorUnimplemented
}

func (UnimplementedHandler) Lseek(context.Context, *flint.RequestHeader, *flint.LseekRequest) (*flint.LseekResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func (UnimplementedHandler) CopyFileRange(context.Context, *flint.RequestHeader, *flint.CopyFileRangeRequest) (*flint.CopyRangeResponse, error) {
	return nil, flint.ErrorUnimplemented
}
