package server

import (
	"context"
	"fmt"

	"github.com/flintfs/flint"
)

// Middleware hooks into requests.
type Middleware interface {
	// HandleRequest handles an individual request.
	HandleRequest(ctx context.Context, hdr *flint.RequestHeader, req flint.Request, invoker Invoker) (flint.Response, error)
}

// Invoker is called by Middleware to complete requests.
type Invoker func(ctx context.Context, hdr *flint.RequestHeader, req flint.Request) (flint.Response, error)

// FuncMiddleware is a function that implements Middleware.
type FuncMiddleware func(ctx context.Context, hdr *flint.RequestHeader, req flint.Request, i Invoker) (flint.Response, error)

func (f FuncMiddleware) HandleRequest(ctx context.Context, h *flint.RequestHeader, req flint.Request, i Invoker) (flint.Response, error) {
	return f(ctx, h, req, i)
}

// handlerInvoker converts h into an Invoker. This is the opcode-to-method
// mapping: each case checks the request body has the expected shape and
// calls the matching Handler method. Opcodes with no mapping are answered
// with ErrorUnimplemented, which is a per-request failure, never fatal.
func handlerInvoker(h Handler) Invoker {
	return func(ctx context.Context, header *flint.RequestHeader, req flint.Request) (resp flint.Response, err error) {
		switch header.Op {
		case flint.OpLookup:
			req, _ := req.(*flint.LookupRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Lookup(ctx, header, req)

		case flint.OpForget:
			// Unlike other requests, Forget has no response so we return
			// immediately once it's done.
			req, _ := req.(*flint.ForgetRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			h.Forget(ctx, header, req)

		case flint.OpGetattr:
			req, _ := req.(*flint.GetattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Getattr(ctx, header, req)

		case flint.OpSetattr:
			req, _ := req.(*flint.SetattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Setattr(ctx, header, req)

		case flint.OpReadlink:
			// Readlink has no request
			resp, err = h.Readlink(ctx, header)

		case flint.OpSymlink:
			req, _ := req.(*flint.SymlinkRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Symlink(ctx, header, req)

		case flint.OpMknod:
			req, _ := req.(*flint.MknodRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Mknod(ctx, header, req)

		case flint.OpMkdir:
			req, _ := req.(*flint.MkdirRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Mkdir(ctx, header, req)

		case flint.OpUnlink:
			req, _ := req.(*flint.UnlinkRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Unlink(ctx, header, req)

		case flint.OpRmdir:
			req, _ := req.(*flint.RmdirRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Rmdir(ctx, header, req)

		case flint.OpRename, flint.OpRename2:
			req, _ := req.(*flint.RenameRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Rename(ctx, header, req)

		case flint.OpLink:
			req, _ := req.(*flint.LinkRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Link(ctx, header, req)

		case flint.OpOpen:
			req, _ := req.(*flint.OpenRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Open(ctx, header, req)

		case flint.OpRead:
			req, _ := req.(*flint.ReadRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Read(ctx, header, req)

		case flint.OpWrite:
			req, _ := req.(*flint.WriteRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Write(ctx, header, req)

		case flint.OpStatfs:
			// Statfs has no request
			resp, err = h.Statfs(ctx, header)

		case flint.OpRelease:
			req, _ := req.(*flint.ReleaseRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Release(ctx, header, req)

		case flint.OpFsync:
			req, _ := req.(*flint.FsyncRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Fsync(ctx, header, req)

		case flint.OpSetxattr:
			req, _ := req.(*flint.SetxattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Setxattr(ctx, header, req)

		case flint.OpGetxattr:
			req, _ := req.(*flint.GetxattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Getxattr(ctx, header, req)

		case flint.OpListxattr:
			req, _ := req.(*flint.ListxattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Listxattr(ctx, header, req)

		case flint.OpRemovexattr:
			req, _ := req.(*flint.RemovexattrRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Removexattr(ctx, header, req)

		case flint.OpFlush:
			req, _ := req.(*flint.FlushRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Flush(ctx, header, req)

		case flint.OpOpendir:
			req, _ := req.(*flint.OpenRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Opendir(ctx, header, req)

		case flint.OpReaddir:
			req, _ := req.(*flint.ReadRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Readdir(ctx, header, req)

		case flint.OpReaddirplus:
			req, _ := req.(*flint.ReadRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Readdirplus(ctx, header, req)

		case flint.OpReleasedir:
			req, _ := req.(*flint.ReleaseRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Releasedir(ctx, header, req)

		case flint.OpFsyncdir:
			req, _ := req.(*flint.FsyncRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Fsyncdir(ctx, header, req)

		case flint.OpGetlk:
			req, _ := req.(*flint.LockRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Getlk(ctx, header, req)

		case flint.OpSetlk, flint.OpSetlkw:
			req, _ := req.(*flint.LockRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Setlk(ctx, header, req)

		case flint.OpAccess:
			req, _ := req.(*flint.AccessRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Access(ctx, header, req)

		case flint.OpCreate:
			req, _ := req.(*flint.CreateRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Create(ctx, header, req)

		case flint.OpBatchForget:
			req, _ := req.(*flint.BatchForgetRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.BatchForget(ctx, header, req)

		case flint.OpFallocate:
			req, _ := req.(*flint.FallocateRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			err = h.Fallocate(ctx, header, req)

		case flint.OpLseek:
			req, _ := req.(*flint.LseekRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.Lseek(ctx, header, req)

		case flint.OpCopyFileRange:
			req, _ := req.(*flint.CopyFileRangeRequest)
			if req == nil {
				err = fmt.Errorf("missing request body for %s: %w", header.Op, flint.ErrorInvalid)
				break
			}
			resp, err = h.CopyFileRange(ctx, header, req)

		default:
			err = fmt.Errorf("unexpected opcode %q: %w", header.Op, flint.ErrorUnimplemented)
		}

		return resp, err
	}
}

type chainMiddleware []Middleware

func (c chainMiddleware) HandleRequest(ctx context.Context, h *flint.RequestHeader, req flint.Request, invoker Invoker) (flint.Response, error) {
	if len(c) == 0 {
		return invoker(ctx, h, req)
	}

	var (
		index        int
		chainInvoker Invoker
	)

	chainInvoker = func(ctx context.Context, h *flint.RequestHeader, req flint.Request) (flint.Response, error) {
		mw := c[index]
		index++

		var next Invoker
		if index == len(c) {
			next = invoker
		} else {
			next = chainInvoker
		}

		return mw.HandleRequest(ctx, h, req, next)
	}
	return chainInvoker(ctx, h, req)
}
