package server

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/flintfs/flint"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Handler: UnimplementedHandler{}})
	require.Error(t, err)

	_, err = New(nil, Options{Transport: newFakeTransport()})
	require.Error(t, err)
}

func TestServer_Handshake(t *testing.T) {
	tr := newFakeTransport()
	negotiated := make(chan ConnInfo, 1)

	srv, errCh := startServer(t, Options{
		Transport: tr,
		Handler:   &testHandler{},
		OnNegotiated: func(ci ConnInfo) {
			negotiated <- ci
		},
	})
	require.Equal(t, StateInitializing, srv.State())

	tr.push(flint.RequestHeader{Op: flint.OpInit, RequestID: 1}, &flint.InitRequest{
		LatestVersion: flint.Version{Major: 7, Minor: 34},
		MaxReadahead:  65536,
		Flags:         flint.InitAsyncRead | flint.InitMaxPages,
	})

	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpInit, reply.header.Op)
	require.Equal(t, uint64(1), reply.header.RequestID)
	require.Equal(t, flint.Error(0), reply.header.Error)

	resp, ok := reply.resp.(*flint.InitResponse)
	require.True(t, ok)
	require.Equal(t, flint.MinVersion, resp.Version)
	require.Equal(t, uint32(65536), resp.MaxReadahead)
	require.NotZero(t, resp.MaxWrite)
	require.NotZero(t, resp.MaxPages)
	require.Equal(t, flint.InitAsyncRead|flint.InitMaxPages, resp.Flags)

	ci := awaitNegotiated(t, negotiated)
	require.Equal(t, flint.MinVersion, ci.Version)
	require.Equal(t, StateActive, srv.State())
	require.Equal(t, ci, srv.ConnInfo())

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
	require.Equal(t, StateClosed, srv.State())
}

func TestServer_HandshakeNewerKernel(t *testing.T) {
	tr := newFakeTransport()
	srv, errCh := startServer(t, Options{Transport: tr, Handler: &testHandler{}})

	// A kernel with a newer major sends its own version first; the server
	// answers with the version it speaks and waits for a second init.
	tr.push(flint.RequestHeader{Op: flint.OpInit, RequestID: 1}, &flint.InitRequest{
		LatestVersion: flint.Version{Major: flint.MinVersion.Major + 1},
	})

	reply := awaitReply(t, tr)
	resp, ok := reply.resp.(*flint.InitResponse)
	require.True(t, ok)
	require.Equal(t, flint.MinVersion, resp.Version)
	require.Equal(t, StateInitializing, srv.State())

	tr.push(flint.RequestHeader{Op: flint.OpInit, RequestID: 2}, &flint.InitRequest{
		LatestVersion: flint.MinVersion,
	})
	reply = awaitReply(t, tr)
	require.Equal(t, flint.Error(0), reply.header.Error)
	require.Eventually(t, func() bool {
		return srv.State() == StateActive
	}, 5*time.Second, 10*time.Millisecond)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_HandshakeClampsBackgroundLimits(t *testing.T) {
	tr := newFakeTransport()
	srv, err := New(log.NewNopLogger(), Options{
		Transport:        tr,
		Handler:          &testHandler{},
		ConcurrencyLimit: math.MaxUint16 + 100,
	})
	require.NoError(t, err)

	// The wire fields are uint16; an oversized concurrency limit is capped
	// rather than truncated.
	active, err := srv.processHandshake(flint.RequestHeader{Op: flint.OpInit, RequestID: 1}, &flint.InitRequest{
		LatestVersion: flint.MinVersion,
	})
	require.NoError(t, err)
	require.True(t, active)

	reply := awaitReply(t, tr)
	resp, ok := reply.resp.(*flint.InitResponse)
	require.True(t, ok)
	require.Equal(t, uint16(math.MaxUint16), resp.MaxBackground)
	require.Equal(t, uint16(math.MaxUint16*3/4), resp.CongestionThreshold)
}

func TestServer_HandshakeOlderMinor(t *testing.T) {
	tr := newFakeTransport()
	srv, errCh := startServer(t, Options{Transport: tr, Handler: &testHandler{}})

	tr.push(flint.RequestHeader{Op: flint.OpInit, RequestID: 1}, &flint.InitRequest{
		LatestVersion: flint.Version{Major: flint.MinVersion.Major, Minor: flint.MinVersion.Minor - 4},
	})

	reply := awaitReply(t, tr)
	resp, ok := reply.resp.(*flint.InitResponse)
	require.True(t, ok)
	require.Equal(t, flint.MinVersion.Minor-4, resp.Version.Minor)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
	require.Equal(t, StateClosed, srv.State())
}

func TestServer_RejectsRequestsBeforeHandshake(t *testing.T) {
	tr := newFakeTransport()
	_, errCh := startServer(t, Options{Transport: tr, Handler: &testHandler{}})

	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 9}, &flint.GetattrRequest{})

	// The rejection comes straight from the session loop, so the error is
	// EIO rather than the handler's ENOSYS.
	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpGetattr, reply.header.Op)
	require.Equal(t, uint64(9), reply.header.RequestID)
	require.Equal(t, flint.ErrorIO, reply.header.Error)
	require.Nil(t, reply.resp)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_DispatchesToHandler(t *testing.T) {
	tr := newFakeTransport()
	h := &testHandler{
		getattr: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
			return &flint.AttrResponse{Attr: flint.Attr{Inode: 7}}, nil
		},
	}
	_, errCh := startServer(t, Options{Transport: tr, Handler: h})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 2, Node: flint.RootNode}, &flint.GetattrRequest{})

	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpGetattr, reply.header.Op)
	require.Equal(t, uint64(2), reply.header.RequestID)
	require.Equal(t, flint.Error(0), reply.header.Error)
	resp, ok := reply.resp.(*flint.AttrResponse)
	require.True(t, ok)
	require.Equal(t, uint64(7), resp.Attr.Inode)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_UnimplementedOpKeepsSessionAlive(t *testing.T) {
	tr := newFakeTransport()
	h := &testHandler{
		getattr: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
			return &flint.AttrResponse{}, nil
		},
	}
	_, errCh := startServer(t, Options{Transport: tr, Handler: h})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpSetattr, RequestID: 3}, &flint.SetattrRequest{})
	reply := awaitReply(t, tr)
	require.Equal(t, flint.ErrorUnimplemented, reply.header.Error)

	// The session survives and keeps dispatching.
	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 4}, &flint.GetattrRequest{})
	reply = awaitReply(t, tr)
	require.Equal(t, flint.OpGetattr, reply.header.Op)
	require.Equal(t, flint.Error(0), reply.header.Error)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_ForgetNeverReplied(t *testing.T) {
	tr := newFakeTransport()
	forgotten := make(chan flint.Node, 1)
	h := &testHandler{
		forget: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.ForgetRequest) {
			forgotten <- hdr.Node
		},
		getattr: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
			return &flint.AttrResponse{}, nil
		},
	}
	_, errCh := startServer(t, Options{Transport: tr, Handler: h})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpForget, RequestID: 5, Node: 12}, &flint.ForgetRequest{NumLookups: 1})
	select {
	case n := <-forgotten:
		require.Equal(t, flint.Node(12), n)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forget")
	}

	// The next reply on the wire belongs to the getattr; the forget produced
	// none.
	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 6}, &flint.GetattrRequest{})
	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpGetattr, reply.header.Op)
	require.Equal(t, uint64(6), reply.header.RequestID)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_Destroy(t *testing.T) {
	tr := newFakeTransport()
	h := &testHandler{}
	srv, errCh := startServer(t, Options{Transport: tr, Handler: h})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpDestroy, RequestID: 7}, nil)

	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpDestroy, reply.header.Op)
	require.Equal(t, flint.Error(0), reply.header.Error)

	require.NoError(t, awaitServe(t, errCh))
	require.Equal(t, StateClosed, srv.State())
	require.True(t, h.closed.Load())
}

func TestServer_InterruptUnknownRequest(t *testing.T) {
	tr := newFakeTransport()
	_, errCh := startServer(t, Options{Transport: tr, Handler: &testHandler{}})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpInterrupt, RequestID: 8}, &flint.InterruptRequest{RequestID: 999})
	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpInterrupt, reply.header.Op)
	require.Equal(t, flint.ErrorInvalid, reply.header.Error)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_InterruptCancelsInflightRequest(t *testing.T) {
	tr := newFakeTransport()
	started := make(chan struct{})
	h := &testHandler{
		getattr: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	_, errCh := startServer(t, Options{Transport: tr, Handler: h})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 42}, &flint.GetattrRequest{})
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handler to start")
	}
	tr.push(flint.RequestHeader{Op: flint.OpInterrupt, RequestID: 43}, &flint.InterruptRequest{RequestID: 42})

	// The interrupt reply and the canceled request's reply race; collect
	// both and match by op.
	replies := map[flint.Op]sentReply{}
	for i := 0; i < 2; i++ {
		r := awaitReply(t, tr)
		replies[r.header.Op] = r
	}
	require.Equal(t, flint.Error(0), replies[flint.OpInterrupt].header.Error)
	require.Equal(t, flint.ErrorInterrupted, replies[flint.OpGetattr].header.Error)
	require.Equal(t, uint64(42), replies[flint.OpGetattr].header.RequestID)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_RequestTimeout(t *testing.T) {
	tr := newFakeTransport()
	h := &testHandler{
		getattr: func(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	_, errCh := startServer(t, Options{
		Transport:      tr,
		Handler:        h,
		RequestTimeout: 50 * time.Millisecond,
	})
	handshake(t, tr)

	tr.push(flint.RequestHeader{Op: flint.OpGetattr, RequestID: 10}, &flint.GetattrRequest{})
	reply := awaitReply(t, tr)
	require.Equal(t, flint.ErrorAborted, reply.header.Error)

	tr.finish()
	require.NoError(t, awaitServe(t, errCh))
}

func TestServer_TransportError(t *testing.T) {
	tr := newFakeTransport()
	_, errCh := startServer(t, Options{Transport: tr, Handler: &testHandler{}})

	readErr := fmt.Errorf("device gone")
	tr.pushErr(readErr)
	require.ErrorIs(t, awaitServe(t, errCh), readErr)
}

func TestServer_ContextCancelStopsServe(t *testing.T) {
	tr := newFakeTransport()
	srv, err := New(log.NewNopLogger(), Options{Transport: tr, Handler: &testHandler{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	cancel()
	require.NoError(t, awaitServe(t, errCh))
	require.Equal(t, StateClosed, srv.State())
}

func TestErrorForResponse(t *testing.T) {
	tt := []struct {
		name   string
		err    error
		expect flint.Error
	}{
		{"nil", nil, 0},
		{"deadline", context.DeadlineExceeded, flint.ErrorAborted},
		{"canceled", context.Canceled, flint.ErrorInterrupted},
		{"not_exist", fmt.Errorf("open: %w", os.ErrNotExist), flint.ErrorNotExist},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), flint.ErrorNotPermitted},
		{"wrapped_code", fmt.Errorf("lookup: %w", flint.ErrorStale), flint.ErrorStale},
		{"eof", io.EOF, 0},
		{"opaque", fmt.Errorf("boom"), flint.ErrorIO},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, errorForResponse(tc.err))
		})
	}
}

//
// Test support
//

// handshake drives a minimal init exchange and consumes its reply.
func handshake(t *testing.T, tr *fakeTransport) {
	t.Helper()
	tr.push(flint.RequestHeader{Op: flint.OpInit, RequestID: 1}, &flint.InitRequest{
		LatestVersion: flint.MinVersion,
	})
	reply := awaitReply(t, tr)
	require.Equal(t, flint.OpInit, reply.header.Op)
	require.Equal(t, flint.Error(0), reply.header.Error)
}

func startServer(t *testing.T, o Options) (*Server, chan error) {
	t.Helper()
	srv, err := New(log.NewNopLogger(), o)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()
	return srv, errCh
}

func awaitServe(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Serve to return")
		return nil
	}
}

func awaitReply(t *testing.T, tr *fakeTransport) sentReply {
	t.Helper()
	select {
	case r := <-tr.sendCh:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
		return sentReply{}
	}
}

func awaitNegotiated(t *testing.T, ch chan ConnInfo) ConnInfo {
	t.Helper()
	select {
	case ci := <-ch:
		return ci
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for negotiation callback")
		return ConnInfo{}
	}
}

type recvItem struct {
	header flint.RequestHeader
	req    flint.Request
	err    error
}

type sentReply struct {
	header flint.ResponseHeader
	resp   flint.Response
}

// fakeTransport is a channel-scripted flint.Transport. Tests feed frames in
// through push and observe replies on sendCh.
type fakeTransport struct {
	recvCh chan recvItem
	sendCh chan sentReply

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recvCh: make(chan recvItem),
		sendCh: make(chan sentReply, 16),
		closed: make(chan struct{}),
	}
}

func (tr *fakeTransport) push(h flint.RequestHeader, req flint.Request) {
	select {
	case tr.recvCh <- recvItem{header: h, req: req}:
	case <-tr.closed:
	}
}

func (tr *fakeTransport) pushErr(err error) {
	select {
	case tr.recvCh <- recvItem{err: err}:
	case <-tr.closed:
	}
}

// finish makes the next RecvRequest report a clean unmount.
func (tr *fakeTransport) finish() {
	tr.closeOnce.Do(func() { close(tr.closed) })
}

func (tr *fakeTransport) RecvRequest() (flint.RequestHeader, flint.Request, error) {
	select {
	case item := <-tr.recvCh:
		return item.header, item.req, item.err
	case <-tr.closed:
		return flint.RequestHeader{}, nil, io.EOF
	}
}

func (tr *fakeTransport) SendResponse(h flint.ResponseHeader, resp flint.Response) error {
	select {
	case tr.sendCh <- sentReply{header: h, resp: resp}:
	default:
	}
	return nil
}

func (tr *fakeTransport) Close() error {
	tr.closeOnce.Do(func() { close(tr.closed) })
	return nil
}

// testHandler overrides individual Handler methods for session tests.
type testHandler struct {
	UnimplementedHandler

	getattr func(context.Context, *flint.RequestHeader, *flint.GetattrRequest) (*flint.AttrResponse, error)
	forget  func(context.Context, *flint.RequestHeader, *flint.ForgetRequest)

	closed atomic.Bool
}

func (h *testHandler) Getattr(ctx context.Context, hdr *flint.RequestHeader, req *flint.GetattrRequest) (*flint.AttrResponse, error) {
	if h.getattr != nil {
		return h.getattr(ctx, hdr, req)
	}
	return h.UnimplementedHandler.Getattr(ctx, hdr, req)
}

func (h *testHandler) Forget(ctx context.Context, hdr *flint.RequestHeader, req *flint.ForgetRequest) {
	if h.forget != nil {
		h.forget(ctx, hdr, req)
		return
	}
	h.UnimplementedHandler.Forget(ctx, hdr, req)
}

func (h *testHandler) Close() error {
	h.closed.Store(true)
	return nil
}
