// Package protocol defines the Command/Response wire types exchanged
// between boss and doer and their deterministic binary encoding:
// fixed integer widths, little-endian, length-prefixed sequences and
// single-byte tagged variants. See Writer/Reader for the primitives
// and command.go/response.go for the tagged unions built on top.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds any single length-prefixed field (and, via
// comms, any whole frame) to guard against a corrupt or hostile length
// prefix causing unbounded allocation.
const MaxFrameBytes = 512 * 1024 * 1024

// Writer serializes Commands and Responses into their canonical
// binary form.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated plaintext.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

// WriteBool appends a single byte, 1 for true.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU32 appends a little-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64 appends a little-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteI64 appends a little-endian int64 (used for instants: unix
// nanoseconds since epoch).
func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteBytes appends a u32 length prefix followed by the bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString appends a rel/absolute path or message as length-prefixed
// UTF-8/WTF-8 bytes.
func (w *Writer) WriteString(s string) { w.WriteBytes([]byte(s)) }

// Reader deserializes Commands and Responses from their canonical
// binary form, rejecting any length prefix above MaxFrameBytes.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for reading.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadBool reads a single byte as a bool.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadI64 reads a little-endian int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadBytes reads a u32-length-prefixed byte slice. A zero length
// decodes as nil, matching how a nil slice is written.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("protocol: length %d exceeds ceiling %d", n, MaxFrameBytes)
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Remaining reports whether there is unconsumed input (used to reject
// trailing garbage after a decode).
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }
