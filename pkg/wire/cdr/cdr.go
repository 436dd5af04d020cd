// Package cdr implements the "standard CDR" primitive encoding spec.md §4.1
// requires for user sample payloads: primitives aligned to their own size,
// sequences prefixed by a 32-bit count, strings null-terminated and
// length-prefixed, unit/empty types contributing no bytes, booleans as a
// single validated 0/1 octet, enums as a 32-bit tag, options as a 32-bit 0/1
// discriminant.
package cdr

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/opendds-go/ddscore/pkg/wire"
)

// Writer serializes into an append-only byte buffer, tracking alignment
// relative to the start of this CDR stream (origin, not absolute file
// offset — origin is reset per submessage per spec.md §4.1).
type Writer struct {
	Endian wire.Endianness
	buf    []byte
	origin int
}

func NewWriter(e wire.Endianness, dst []byte) *Writer {
	return &Writer{Endian: e, buf: dst, origin: len(dst)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) pos() int { return len(w.buf) - w.origin }

func (w *Writer) align(n int) {
	if n <= 1 {
		return
	}
	rem := w.pos() % n
	if rem == 0 {
		return
	}
	for i := 0; i < n-rem; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) order() binary.ByteOrder {
	if w.Endian == wire.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (w *Writer) Octet(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Octet(1)
	} else {
		w.Octet(0)
	}
}

func (w *Writer) UInt16(v uint16) {
	w.align(2)
	b := make([]byte, 2)
	w.order().PutUint16(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) Int16(v int16) { w.UInt16(uint16(v)) }

func (w *Writer) UInt32(v uint32) {
	w.align(4)
	b := make([]byte, 4)
	w.order().PutUint32(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) Int32(v int32) { w.UInt32(uint32(v)) }

func (w *Writer) UInt64(v uint64) {
	w.align(8)
	b := make([]byte, 8)
	w.order().PutUint64(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) Int64(v int64) { w.UInt64(uint64(v)) }

func (w *Writer) Float32(v float32) { w.UInt32(math.Float32bits(v)) }
func (w *Writer) Float64(v float64) { w.UInt64(math.Float64bits(v)) }

// Enum values are a 32-bit tag.
func (w *Writer) Enum(tag uint32) { w.UInt32(tag) }

// RawBytes appends an octet sequence with no length prefix and no alignment
// padding (used for already-length-framed payloads such as serialized_payload).
func (w *Writer) RawBytes(b []byte) { w.buf = append(w.buf, b...) }

// SequenceHeader writes a sequence's 32-bit element count; the caller writes
// the elements after it.
func (w *Writer) SequenceHeader(count int) { w.UInt32(uint32(count)) }

// String writes a length-prefixed, null-terminated UTF-8 string: the count
// includes the terminating NUL.
func (w *Writer) String(s string) {
	w.UInt32(uint32(len(s) + 1))
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
}

// OctetSequence writes a byte sequence as a CDR sequence<octet>.
func (w *Writer) OctetSequence(b []byte) {
	w.UInt32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Option writes the 32-bit 0/1 discriminant and, if present, invokes fn to
// write the contained value.
func (w *Writer) Option(present bool, fn func()) {
	if present {
		w.UInt32(1)
		fn()
	} else {
		w.UInt32(0)
	}
}

// Reader parses primitives out of a contiguous byte slice without copying;
// OctetSequence/RawBytes slice the original buffer by reference.
type Reader struct {
	Endian wire.Endianness
	buf    []byte
	pos    int
	origin int
}

func NewReader(e wire.Endianness, src []byte) *Reader {
	return &Reader{Endian: e, buf: src}
}

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) relPos() int { return r.pos - r.origin }

func (r *Reader) align(n int) {
	if n <= 1 {
		return
	}
	rem := r.relPos() % n
	if rem != 0 {
		r.pos += n - rem
	}
}

func (r *Reader) order() binary.ByteOrder {
	if r.Endian == wire.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (r *Reader) need(n int) error {
	if r.align0Check(n) {
		return nil
	}
	return wire.ErrTruncated
}

func (r *Reader) align0Check(n int) bool { return r.pos+n <= len(r.buf) }

func (r *Reader) Octet() (v byte, err error) {
	if err = r.need(1); err != nil {
		return
	}
	v = r.buf[r.pos]
	r.pos++
	return
}

func (r *Reader) Bool() (v bool, err error) {
	var o byte
	if o, err = r.Octet(); err != nil {
		return
	}
	switch o {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, wire.ErrBadBoolean
	}
}

func (r *Reader) UInt16() (v uint16, err error) {
	r.align(2)
	if err = r.need(2); err != nil {
		return
	}
	v = r.order().Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return
}

func (r *Reader) Int16() (v int16, err error) {
	var u uint16
	u, err = r.UInt16()
	return int16(u), err
}

func (r *Reader) UInt32() (v uint32, err error) {
	r.align(4)
	if err = r.need(4); err != nil {
		return
	}
	v = r.order().Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return
}

func (r *Reader) Int32() (v int32, err error) {
	var u uint32
	u, err = r.UInt32()
	return int32(u), err
}

func (r *Reader) UInt64() (v uint64, err error) {
	r.align(8)
	if err = r.need(8); err != nil {
		return
	}
	v = r.order().Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return
}

func (r *Reader) Int64() (v int64, err error) {
	var u uint64
	u, err = r.UInt64()
	return int64(u), err
}

func (r *Reader) Float32() (v float32, err error) {
	var u uint32
	if u, err = r.UInt32(); err != nil {
		return
	}
	return math.Float32frombits(u), nil
}

func (r *Reader) Float64() (v float64, err error) {
	var u uint64
	if u, err = r.UInt64(); err != nil {
		return
	}
	return math.Float64frombits(u), nil
}

func (r *Reader) Enum() (tag uint32, err error) { return r.UInt32() }

// RawBytes returns the next n bytes as a subslice of the original buffer
// (no copy), advancing the cursor.
func (r *Reader) RawBytes(n int) (b []byte, err error) {
	if err = r.need(n); err != nil {
		return
	}
	b = r.buf[r.pos : r.pos+n]
	r.pos += n
	return
}

func (r *Reader) String() (s string, err error) {
	var n uint32
	if n, err = r.UInt32(); err != nil {
		return
	}
	if n == 0 {
		return "", wire.ErrMalformedSubmessage
	}
	var b []byte
	if b, err = r.RawBytes(int(n)); err != nil {
		return
	}
	if b[n-1] != 0 {
		return "", wire.ErrMalformedSubmessage
	}
	payload := b[:n-1]
	if !utf8.Valid(payload) {
		return "", wire.ErrBadString
	}
	return string(payload), nil
}

func (r *Reader) OctetSequence() (b []byte, err error) {
	var n uint32
	if n, err = r.UInt32(); err != nil {
		return
	}
	return r.RawBytes(int(n))
}

func (r *Reader) Option(fn func() error) (present bool, err error) {
	var disc uint32
	if disc, err = r.UInt32(); err != nil {
		return
	}
	switch disc {
	case 0:
		return false, nil
	case 1:
		if err = fn(); err != nil {
			return
		}
		return true, nil
	default:
		return false, wire.ErrBadOption
	}
}

// Skip advances the cursor n bytes without interpreting them — used to skip
// forward-compatible trailing fields before octetsToInlineQos (spec.md §4.1).
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *Reader) Pos() int   { return r.pos }
func (r *Reader) SetPos(p int) { r.pos = p }
