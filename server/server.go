package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"

	"github.com/flintfs/flint"
	"github.com/flintfs/flint/fuse"
)

// State describes where a Server is in its lifecycle. States only move
// forward; a Server is not reusable once Closed.
type State int

const (
	// StateCreated is the state before Serve has been called.
	StateCreated State = iota
	// StateInitializing means Serve is running but the handshake with the
	// kernel has not completed yet.
	StateInitializing
	// StateActive means the handshake completed and requests are being
	// dispatched.
	StateActive
	// StateDestroying means a destroy request arrived and in-flight
	// requests are draining.
	StateDestroying
	// StateClosed means Serve has returned and the transport and handler
	// are closed.
	StateClosed
)

// String returns a human-readable name for s.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConnInfo holds the parameters negotiated during the handshake. It is
// immutable once the Server becomes Active.
type ConnInfo struct {
	// Version is the protocol version the session speaks: the kernel's
	// major with the smaller of the two minor versions.
	Version flint.Version
	// MaxWrite is the largest write payload the kernel will send.
	MaxWrite uint32
	// MaxReadahead is the readahead window the kernel asked for.
	MaxReadahead uint32
	// Flags are the capability flags both sides agreed to.
	Flags flint.InitFlags
}

type Options struct {
	// ConcurrencyLimit is the maximum number of concurrent requests a Server can
	// run. If ConcurrencyLimit is <= 0, it will obtain its default from
	// DefaultOptions.
	ConcurrencyLimit int

	// RequestTimeout will force a request to abort after a given amount of time.
	// 0 means to never time out.
	RequestTimeout time.Duration

	// Transport is the transport used to read and write requests. Server takes
	// ownership of the Transport after passing to New; do not close directly.
	Transport flint.Transport

	// Handler is used for handling individual requests.
	Handler Handler

	// Optional middleware to preprocess requests with.
	Middleware []Middleware

	// OnNegotiated, when set, is called once with the negotiated session
	// parameters after the handshake completes and before any request is
	// dispatched.
	OnNegotiated func(ConnInfo)
}

// DefaultOptions provides defaults for Server.
var DefaultOptions = Options{
	ConcurrencyLimit: 64,
}

// Server drives a FUSE session: it reads requests from a transport,
// dispatches them to a Handler over a bounded worker pool, and writes the
// responses back.
type Server struct {
	log log.Logger
	o   Options

	// The middleware to execute before the handler
	mw      Middleware
	handler Invoker

	mut   sync.RWMutex
	state State
	conn  ConnInfo
}

// New creates a new Server. Read messages will be passed to Handler for
// handling.
//
// Call Serve to start the Server.
func New(l log.Logger, o Options) (*Server, error) {
	if o.Transport == nil {
		return nil, fmt.Errorf("Transport must be set")
	}
	if o.Handler == nil {
		return nil, fmt.Errorf("Handler must be set")
	}
	if o.ConcurrencyLimit <= 0 {
		o.ConcurrencyLimit = DefaultOptions.ConcurrencyLimit
	}

	// Build an optional chain of middleware to handle the request.
	chain := o.Middleware

	if l == nil {
		l = log.NewNopLogger()
	}
	return &Server{
		log:     l,
		o:       o,
		mw:      chainMiddleware(chain),
		handler: handlerInvoker(o.Handler),
		state:   StateCreated,
	}, nil
}

// State returns the current lifecycle state of the Server.
func (s *Server) State() State {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.state
}

// ConnInfo returns the negotiated session parameters. The zero ConnInfo is
// returned until the Server reaches StateActive.
func (s *Server) ConnInfo() ConnInfo {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.conn
}

func (s *Server) setState(st State) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if st > s.state {
		s.state = st
	}
}

// Serve starts the server. Serve only returns if there was an error while
// serving, the kernel tore the session down, or ctx is canceled.
//
// Serve should not be called again after it has exited.
func (s *Server) Serve(ctx context.Context) error {
	s.setState(StateInitializing)
	defer s.setState(StateClosed)

	// We want to close the transport and handler after we're done serving.
	// However, serving involves a non-cancelable call to our transport. We
	// launch a dedicated goroutine just for waiting for context to cancel,
	// and never return until it exits.
	exited := make(chan struct{})
	closeErr := make(chan error, 1)
	defer func() { <-exited }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(exited)
		<-ctx.Done()

		level.Info(s.log).Log("msg", "fuse server exiting")
		defer level.Debug(s.log).Log("msg", "fuse server exited")

		var errs *multierror.Error
		if err := s.o.Transport.Close(); err != nil {
			level.Error(s.log).Log("msg", "error when closing transport", "err", err)
			errs = multierror.Append(errs, err)
		}
		if err := s.o.Handler.Close(); err != nil {
			level.Error(s.log).Log("msg", "error when closing handler", "err", err)
			errs = multierror.Append(errs, err)
		}
		closeErr <- errs.ErrorOrNil()
	}()

	type payload struct {
		ctx    context.Context
		cancel context.CancelFunc

		header flint.RequestHeader
		req    flint.Request
	}

	// Workers run against their own context so that a destroy request can
	// drain them without also tearing down the transport before the destroy
	// reply is written.
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	var (
		runningWorkers sync.WaitGroup

		tasks  sync.Map
		taskCh = make(chan payload, s.o.ConcurrencyLimit)
	)

	for i := 0; i < s.o.ConcurrencyLimit; i++ {
		runningWorkers.Add(1)
		go func() {
			defer runningWorkers.Done()

			for {
				select {
				case <-workerCtx.Done():
					return
				case task := <-taskCh:
					handleRequest(task.ctx, s, task.header, task.req, func() {
						task.cancel()
						tasks.Delete(task.header.RequestID)
					})
				}
			}
		}()
	}

	scheduleTask := func(header flint.RequestHeader, req flint.Request) {
		ctx, cancel := context.WithCancel(workerCtx)
		task := payload{
			ctx:    ctx,
			cancel: cancel,
			header: header,
			req:    req,
		}
		tasks.Store(header.RequestID, task)
		taskCh <- task
	}
	stopTask := func(reqID uint64) bool {
		v, ok := tasks.Load(reqID)
		if !ok {
			return false
		}
		v.(payload).cancel()
		return true
	}
	drainWorkers := func() {
		workerCancel()
		runningWorkers.Wait()
	}
	defer drainWorkers()

	serveErr := func(err error) error {
		cancel()
		cerr := <-closeErr
		if err != nil {
			return err
		}
		return cerr
	}

	// The first message is always an init. Inits may be sent multiple times
	// while the peers are agreeing on a protocol version to use. Until the
	// handshake completes, no other request will be dispatched.
	for {
		// Do an early return if our context has been canceled.
		if ctx.Err() != nil {
			level.Debug(s.log).Log("msg", "context canceled, breaking out of server read loop")
			return serveErr(nil)
		}

		header, req, err := s.o.Transport.RecvRequest()
		if errors.Is(err, io.EOF) {
			level.Debug(s.log).Log("msg", "got EOF from transport; exiting")
			return serveErr(nil)
		} else if err != nil {
			level.Error(s.log).Log("msg", "got error from transport; exiting", "err", err)
			return serveErr(err)
		}

		switch header.Op {
		default:
			if s.State() != StateActive {
				// Ops that race ahead of the handshake are failed
				// individually rather than killing the session. Ops with no
				// reply are dropped outright.
				level.Warn(s.log).Log("msg", "rejecting request sent before handshake completed", "op", header.Op, "op_val", int(header.Op))
				if !header.Op.NoReply() {
					s.sendResponse(flint.ResponseHeader{
						Op:        header.Op,
						RequestID: header.RequestID,
						Error:     flint.ErrorIO,
					}, nil)
				}
				continue
			}
			scheduleTask(header, req)

		case flint.OpInit:
			req, _ := req.(*flint.InitRequest)
			if req == nil {
				level.Error(s.log).Log("msg", "protocol error: got init request without request payload")
				return serveErr(fmt.Errorf("missing init message payload from peer"))
			}
			level.Debug(s.log).Log("msg", "got handshake request")

			if s.State() == StateActive {
				level.Warn(s.log).Log("msg", "ignoring unexpected post-handshake init message")
				continue
			}
			active, err := s.processHandshake(header, req)
			if err == nil && active {
				err = s.o.Handler.Init(ctx)
			}
			if err != nil {
				return serveErr(err)
			}
			if active {
				s.setState(StateActive)
				if s.o.OnNegotiated != nil {
					s.o.OnNegotiated(s.ConnInfo())
				}
			}

		case flint.OpDestroy:
			level.Debug(s.log).Log("msg", "received shutdown request from peer")
			s.setState(StateDestroying)

			// In-flight requests must finish before the destroy reply goes
			// out; the kernel takes the reply to mean nothing else is
			// pending.
			drainWorkers()
			s.sendResponse(responseHeader(header, nil), nil)
			return serveErr(nil)

		case flint.OpInterrupt:
			req, _ := req.(*flint.InterruptRequest)
			if req == nil {
				level.Error(s.log).Log("msg", "protocol error: got interrupt request without request payload")
				return serveErr(fmt.Errorf("missing interrupt message payload from peer"))
			}
			level.Debug(s.log).Log("msg", "received interrupt request from peer", "id", req.RequestID)
			respHeader := responseHeader(header, nil)
			if !stopTask(req.RequestID) {
				respHeader.Error = flint.ErrorInvalid
			}
			s.sendResponse(respHeader, nil)
		}
	}
}

func handleRequest(ctx context.Context, s *Server, header flint.RequestHeader, req flint.Request, done func()) {
	defer done()

	if s.o.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.o.RequestTimeout)
		defer cancel()
	}

	resp, err := s.mw.HandleRequest(ctx, &header, req, s.handler)
	if header.Op.NoReply() {
		// Forgets don't generate responses; a failure here is the
		// handler's problem alone.
		if err != nil {
			level.Debug(s.log).Log("msg", "handler error for no-reply op", "op", header.Op, "err", err)
		}
		return
	}
	s.sendResponse(responseHeader(header, err), resp)
}

func (s *Server) sendResponse(h flint.ResponseHeader, resp flint.Response) {
	err := s.o.Transport.SendResponse(h, resp)
	if err != nil {
		level.Error(s.log).Log("msg", "failed to write response to transport", "err", err)
	}
}

func responseHeader(req flint.RequestHeader, err error) flint.ResponseHeader {
	return flint.ResponseHeader{
		Op:        req.Op,
		RequestID: req.RequestID,
		Error:     errorForResponse(err),
	}
}

func errorForResponse(err error) flint.Error {
	if err == nil {
		return 0
	}

	// Check for common system-level errors.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return flint.ErrorAborted
	case errors.Is(err, context.Canceled):
		return flint.ErrorInterrupted
	case os.IsNotExist(err):
		return flint.ErrorNotExist
	case os.IsPermission(err):
		return flint.ErrorNotPermitted
	case errors.Is(err, os.ErrNotExist):
		return flint.ErrorNotExist
	case errors.Is(err, io.EOF):
		return 0
	}

	var fe flint.Error
	if errors.As(err, &fe) {
		return fe
	}
	return flint.ErrorIO
}

// processHandshake answers the handshake sent by the peer. If active is
// false, the handshake is expected to be sent again with an older version.
func (s *Server) processHandshake(header flint.RequestHeader, init *flint.InitRequest) (active bool, err error) {
	supported := flint.InitAsyncRead |
		flint.InitBigWrites |
		flint.InitNoUmask |
		flint.InitAutoInvalidateCache |
		flint.InitAsyncDIO |
		flint.InitWritebackCache |
		flint.InitParallelDirOps |
		flint.InitAbortError |
		flint.InitMaxPages |
		flint.InitCacheSymlinks

	if init.LatestVersion.Major > flint.MinVersion.Major {
		// Kernel is too new. Send back the version we speak and wait for a
		// second init.
		resp := &flint.InitResponse{Version: flint.MinVersion}
		s.sendResponse(responseHeader(header, nil), resp)
		return false, nil
	}
	if init.LatestVersion.Major < flint.MinVersion.Major {
		return false, fmt.Errorf("peer version %s too old for local version %s", init.LatestVersion, flint.MinVersion)
	}

	// Same major: speak the smaller of the two minors.
	version := flint.MinVersion
	if init.LatestVersion.Minor < version.Minor {
		version.Minor = init.LatestVersion.Minor
		level.Warn(s.log).Log(
			"msg", "peer minor version older than local version, using peer's",
			"peer", init.LatestVersion, "local", flint.MinVersion,
		)
	}

	// MaxBackground is a uint16 on the wire; cap the advertised queue depth
	// rather than truncating a larger concurrency limit.
	background := s.o.ConcurrencyLimit
	if background > math.MaxUint16 {
		background = math.MaxUint16
	}

	pagesize := uint32(syscall.Getpagesize())
	resp := &flint.InitResponse{
		Version:             version,
		MaxReadahead:        init.MaxReadahead,
		MaxWrite:            fuse.MaxWrite,
		MaxBackground:       uint16(background),
		CongestionThreshold: uint16(background * 3 / 4),
		MaxPages:            uint16((fuse.MaxWrite-1)/pagesize + 1),
		TimeGran:            1,
		Flags:               init.Flags & supported,
	}

	s.mut.Lock()
	s.conn = ConnInfo{
		Version:      version,
		MaxWrite:     resp.MaxWrite,
		MaxReadahead: resp.MaxReadahead,
		Flags:        resp.Flags,
	}
	s.mut.Unlock()

	s.sendResponse(responseHeader(header, nil), resp)
	return true, nil
}
