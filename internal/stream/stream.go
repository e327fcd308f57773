package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated reports that a reader ran out of bytes before a value was complete.
var ErrTruncated = errors.New("stream: truncated input")

// ErrTooLong reports a string or blob that cannot be encoded with its length prefix.
var ErrTooLong = errors.New("stream: value exceeds length prefix")

// Writer accumulates little-endian encoded values. The first failure sticks and
// every later call becomes a no-op so callers can check Err once at the end.
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{} }

// Err reports the first encoding failure.
func (w *Writer) Err() error { return w.err }

// Bytes exposes the encoded payload.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len reports the number of encoded bytes.
func (w *Writer) Len() int { return w.buf.Len() }

// U8 appends a single byte.
func (w *Writer) U8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(v)
}

// Bool appends a byte holding 0 or 1.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// U16 appends a little-endian uint16.
func (w *Writer) U16(v uint16) {
	if w.err != nil {
		return
	}
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], v)
	w.buf.Write(scratch[:])
}

// I16 appends a little-endian int16.
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }

// U32 appends a little-endian uint32.
func (w *Writer) U32(v uint32) {
	if w.err != nil {
		return
	}
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	w.buf.Write(scratch[:])
}

// I32 appends a little-endian int32.
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

// U64 appends a little-endian uint64.
func (w *Writer) U64(v uint64) {
	if w.err != nil {
		return
	}
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	w.buf.Write(scratch[:])
}

// Raw appends bytes without a length prefix.
func (w *Writer) Raw(p []byte) {
	if w.err != nil {
		return
	}
	w.buf.Write(p)
}

// String appends a u16 length followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	if len(s) > math.MaxUint16 {
		w.fail(fmt.Errorf("string of %d bytes: %w", len(s), ErrTooLong))
		return
	}
	w.U16(uint16(len(s)))
	w.Raw([]byte(s))
}

// Blob appends a u32 length followed by the bytes.
func (w *Writer) Blob(p []byte) {
	if uint64(len(p)) > math.MaxUint32 {
		w.fail(fmt.Errorf("blob of %d bytes: %w", len(p), ErrTooLong))
		return
	}
	w.U32(uint32(len(p)))
	w.Raw(p)
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Reader decodes values written by Writer. Like Writer it keeps the first error.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader wraps an encoded payload.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Err reports the first decoding failure.
func (r *Reader) Err() error { return r.err }

// Remaining reports the bytes not yet consumed.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Offset reports the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.off, r.Remaining(), ErrTruncated)
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

// U8 reads one byte.
func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a byte and reports whether it is non-zero.
func (r *Reader) Bool() bool { return r.U8() != 0 }

// U16 reads a little-endian uint16.
func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// I16 reads a little-endian int16.
func (r *Reader) I16() int16 { return int16(r.U16()) }

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// I32 reads a little-endian int32.
func (r *Reader) I32() int32 { return int32(r.U32()) }

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Raw reads exactly n bytes and returns a copy.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// String reads a u16 length-prefixed string.
func (r *Reader) String() string {
	n := int(r.U16())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// Blob reads a u32 length-prefixed byte slice and returns a copy.
func (r *Reader) Blob() []byte {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(r.Remaining()) {
		r.err = fmt.Errorf("blob of %d bytes at offset %d: %w", n, r.off, ErrTruncated)
		return nil
	}
	return r.Raw(int(n))
}
