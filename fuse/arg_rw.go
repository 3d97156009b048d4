package fuse

import (
	"bytes"
	"encoding/binary"

	"github.com/flintfs/flint"
)

// argReader pops individual FUSE arguments off a frame. All multi-byte
// integers on the wire are little-endian. Any method that runs out of data
// panics with errMalformed, which decodeRequest recovers into an error.
type argReader struct {
	data []byte
	off  int
}

func (ar *argReader) take(n int) []byte {
	if len(ar.data)-ar.off < n {
		panic(errMalformed)
	}
	res := ar.data[ar.off : ar.off+n]
	ar.off += n
	return res
}

// Uint16 pops a 16-bit integer.
func (ar *argReader) Uint16() uint16 {
	return binary.LittleEndian.Uint16(ar.take(2))
}

// Uint32 pops a 32-bit integer.
func (ar *argReader) Uint32() uint32 {
	return binary.LittleEndian.Uint32(ar.take(4))
}

// Uint64 pops a 64-bit integer.
func (ar *argReader) Uint64() uint64 {
	return binary.LittleEndian.Uint64(ar.take(8))
}

// Pad consumes n bytes of padding.
func (ar *argReader) Pad(n int) {
	ar.take(n)
}

// String pops a NUL-terminated string, consuming but excluding the
// terminator.
func (ar *argReader) String() string {
	buf := ar.data[ar.off:]
	nul := bytes.IndexByte(buf, 0)
	if len(buf) == 0 || nul == -1 {
		panic(errMalformed)
	}

	res := buf[:nul]
	ar.off += len(res) + 1 // Add one to consume the NUL byte
	return string(res)
}

// Bytes pops n bytes.
func (ar *argReader) Bytes(n int) []byte {
	res := make([]byte, n)
	copy(res, ar.take(n))
	return res
}

// Remaining returns the number of unconsumed bytes in the frame.
func (ar *argReader) Remaining() int {
	return len(ar.data) - ar.off
}

// argWriter queues individual FUSE arguments onto a reply frame. The frame
// always starts with the 16-byte out header; Finish backpatches the total
// length before the frame is flushed to the device.
type argWriter struct {
	header flint.ResponseHeader
	buf    []byte
}

// newArgWriter creates a new arg writer, reserving space for the header.
func newArgWriter(hdr flint.ResponseHeader) *argWriter {
	aw := &argWriter{header: hdr}
	aw.buf = make([]byte, outHeaderLen, outHeaderLen+64)
	return aw
}

func (aw *argWriter) grow(n int) []byte {
	off := len(aw.buf)
	for cap(aw.buf) < off+n {
		aw.buf = append(aw.buf[:cap(aw.buf)], 0)
	}
	aw.buf = aw.buf[:off+n]
	return aw.buf[off:]
}

// Uint16 writes a 16-bit integer.
func (aw *argWriter) Uint16(v uint16) {
	binary.LittleEndian.PutUint16(aw.grow(2), v)
}

// Uint32 writes a 32-bit integer.
func (aw *argWriter) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(aw.grow(4), v)
}

// Uint64 writes a 64-bit integer.
func (aw *argWriter) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(aw.grow(8), v)
}

// Pad writes n zero bytes.
func (aw *argWriter) Pad(n int) {
	out := aw.grow(n)
	for i := range out {
		out[i] = 0
	}
}

// Bytes writes b verbatim.
func (aw *argWriter) Bytes(b []byte) {
	copy(aw.grow(len(b)), b)
}

// Len returns the current frame length, header included.
func (aw *argWriter) Len() int {
	return len(aw.buf)
}

// Finish completes the frame, writing the final total length and the rest
// of the out header into the reserved space.
func (aw *argWriter) Finish() []byte {
	binary.LittleEndian.PutUint32(aw.buf[0:4], uint32(len(aw.buf)))
	binary.LittleEndian.PutUint32(aw.buf[4:8], uint32(int32(aw.header.Error)))
	binary.LittleEndian.PutUint64(aw.buf[8:16], aw.header.RequestID)
	return aw.buf
}

// align64 rounds numBytes up to the next multiple of 8. Directory entries
// must start 64-bit aligned for compatibility with 32-bit kernels.
func align64(numBytes uint64) uint64 {
	return (numBytes + 7) &^ 7
}
