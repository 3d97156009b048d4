// Package fuse implements the /dev/fuse transport: the mount handshake that
// yields the kernel device connection, and the wire codec that frames
// protocol messages onto it.
package fuse

import (
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/flintfs/flint"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
)

// MaxWrite is the largest write payload advertised to the kernel. Linux
// caps this value at 128kB.
var MaxWrite uint32 = 128 * 1024

var maxRequestSize = syscall.Getpagesize()
var bufSize = maxRequestSize + int(MaxWrite)

// devTransport implements flint.Transport against an open /dev/fuse device
// file. The read side is serialized to one consumer; the write side is
// mutex-guarded so concurrently sent replies never interleave their bytes.
type devTransport struct {
	log log.Logger

	f *os.File

	closed  atomic.Bool
	onClose func()

	rmut, wmut sync.Mutex
}

var _ flint.Transport = (*devTransport)(nil)

// RecvRequest reads exactly one request frame from the device and decodes
// it. The kernel guarantees one full frame per read; a read shorter than
// the frame's declared length is a protocol error, not EOF. io.EOF is
// returned only when the mount has been torn down.
func (kc *devTransport) RecvRequest() (flint.RequestHeader, flint.Request, error) {
	buf := make([]byte, bufSize)

	for {
		kc.rmut.Lock()
		n, err := syscall.Read(int(kc.f.Fd()), buf)
		kc.rmut.Unlock()

		switch err {
		case syscall.EINTR, syscall.EAGAIN, syscall.ENOENT:
			// Interrupted before any request was read, or the kernel asked us
			// to retry. Safe to read again.
			continue
		case syscall.ENODEV:
			// The mount is gone.
			level.Debug(kc.log).Log("msg", "device closed, mount torn down")
			return flint.RequestHeader{}, nil, io.EOF
		}
		if err != nil {
			level.Error(kc.log).Log("msg", "failed to read from device", "err", err)
			return flint.RequestHeader{}, nil, err
		}
		if n <= 0 {
			level.Debug(kc.log).Log("msg", "read no data from device")
			return flint.RequestHeader{}, nil, io.EOF
		}

		return decodeRequest(buf[:n])
	}
}

// SendResponse encodes resp and writes it to the device as a single frame.
// The kernel interface guarantees atomic frame writes below MaxWrite, so a
// short write indicates connection corruption and is fatal.
func (kc *devTransport) SendResponse(h flint.ResponseHeader, resp flint.Response) error {
	if h.Op.NoReply() {
		return fmt.Errorf("fuse: refusing to reply to no-reply op %s", h.Op)
	}

	data, err := encodeResponse(h, resp)
	if err != nil {
		return err
	}

	kc.wmut.Lock()
	n, err := syscall.Write(int(kc.f.Fd()), data)
	kc.wmut.Unlock()
	if err != nil {
		level.Error(kc.log).Log("msg", "failed to write to device", "len", n, "expect_len", len(data), "err", err)
		return err
	}
	if n != len(data) {
		level.Error(kc.log).Log("msg", "short write to device", "len", n, "expect_len", len(data))
		return fmt.Errorf("fuse: unexpected partial write (%d of %d bytes)", n, len(data))
	}
	return nil
}

// Close closes the connection to the kernel. No more reads or writes can
// occur.
func (kc *devTransport) Close() (err error) {
	if kc.closed.CAS(false, true) {
		err = kc.f.Close()
		if kc.onClose != nil {
			kc.onClose()
		}
		level.Debug(kc.log).Log("msg", "closed device transport", "err", err)
	}
	return err
}
