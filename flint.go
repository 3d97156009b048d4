// Package flint implements the userspace half of the FUSE kernel protocol.
// It owns the kernel device connection for a mount, decodes opcode-tagged
// request frames into typed requests, dispatches them to a Handler, and
// encodes the results back into the wire reply format.
//
// The fuse subpackage provides the /dev/fuse transport and the mount
// handshake; the server subpackage provides the session loop and the
// Handler interface filesystem backends implement.
//
// flint is written against FUSE 7.31.
package flint

// Request is a protocol request message sent by the kernel to the
// filesystem driver.
type Request interface {
	flintRequest()
}

// Response is a protocol response message sent by the filesystem driver
// after processing a request.
type Response interface {
	flintResponse()
}

// Transport carries protocol messages between the kernel and the driver.
// See the fuse subpackage for the /dev/fuse implementation.
type Transport interface {
	// RecvRequest blocks until the next request frame arrives. There is
	// always a request header, but some operations carry no payload and
	// return a nil Request. A clean unmount surfaces as io.EOF.
	RecvRequest() (RequestHeader, Request, error)

	// SendResponse writes one complete reply frame. The header is always
	// present; error replies and a handful of operations carry no payload.
	SendResponse(h ResponseHeader, r Response) error

	// Close tears down the connection. No further I/O is permitted.
	Close() error
}
