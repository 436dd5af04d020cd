// Package submsg encodes and parses the RTPS submessages carried inside an
// RTPS message: DATA, HEARTBEAT, ACKNACK, GAP, and the INFO_* family
// (spec.md §4.1).
package submsg

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// encodeSN/decodeSN follow the RTPS wire representation of SequenceNumber: a
// signed 32-bit high word and an unsigned 32-bit low word.
func encodeSN(w *cdr.Writer, sn ddstime.SequenceNumber) {
	v := int64(sn)
	w.Int32(int32(v >> 32))
	w.UInt32(uint32(v & 0xFFFFFFFF))
}

func decodeSN(r *cdr.Reader) (sn ddstime.SequenceNumber, err error) {
	var hi int32
	var lo uint32
	if hi, err = r.Int32(); err != nil {
		return
	}
	if lo, err = r.UInt32(); err != nil {
		return
	}
	return ddstime.SequenceNumber(int64(hi)<<32 | int64(lo)), nil
}

func encodeEntityId(w *cdr.Writer, e guid.EntityId) { w.RawBytes(e[:]) }

func decodeEntityId(r *cdr.Reader) (e guid.EntityId, err error) {
	var b []byte
	if b, err = r.RawBytes(guid.EntityLen); err != nil {
		return
	}
	copy(e[:], b)
	return
}

// SequenceNumberSet is the ACKNACK/HEARTBEAT missing-sample bitmap: a base
// plus up to 256 bits, each marking base+i as present in the set.
type SequenceNumberSet struct {
	Base      ddstime.SequenceNumber
	NumBits   uint32
	Bitmap    []uint32 // ceil(NumBits/32) words, MSB-first within each word
}

const MaxBitmapBits = 256

// NewSequenceNumberSet builds a set from the base and the sorted list of
// sequence numbers present (e.g. the reader's `missing` set).
func NewSequenceNumberSet(base ddstime.SequenceNumber, present []ddstime.SequenceNumber) SequenceNumberSet {
	maxBit := uint32(0)
	for _, sn := range present {
		off := uint32(sn - base)
		if off+1 > maxBit {
			maxBit = off + 1
		}
	}
	if maxBit > MaxBitmapBits {
		maxBit = MaxBitmapBits
	}
	words := (maxBit + 31) / 32
	s := SequenceNumberSet{Base: base, NumBits: maxBit, Bitmap: make([]uint32, words)}
	for _, sn := range present {
		off := uint32(sn - base)
		if off >= maxBit {
			continue
		}
		word := off / 32
		bit := 31 - (off % 32)
		s.Bitmap[word] |= 1 << bit
	}
	return s
}

func (s SequenceNumberSet) Contains(sn ddstime.SequenceNumber) bool {
	off := uint32(sn - s.Base)
	if off >= s.NumBits {
		return false
	}
	word := off / 32
	bit := 31 - (off % 32)
	return s.Bitmap[int(word)]&(1<<bit) != 0
}

// Members returns every sequence number the set marks present.
func (s SequenceNumberSet) Members() (out []ddstime.SequenceNumber) {
	for i := uint32(0); i < s.NumBits; i++ {
		word := i / 32
		bit := 31 - (i % 32)
		if s.Bitmap[int(word)]&(1<<bit) != 0 {
			out = append(out, s.Base+ddstime.SequenceNumber(i))
		}
	}
	return
}

func encodeSNSet(w *cdr.Writer, s SequenceNumberSet) {
	encodeSN(w, s.Base)
	w.UInt32(s.NumBits)
	for _, word := range s.Bitmap {
		w.UInt32(word)
	}
}

func decodeSNSet(r *cdr.Reader) (s SequenceNumberSet, err error) {
	if s.Base, err = decodeSN(r); err != nil {
		return
	}
	if s.NumBits, err = r.UInt32(); err != nil {
		return
	}
	words := (s.NumBits + 31) / 32
	s.Bitmap = make([]uint32, words)
	for i := range s.Bitmap {
		if s.Bitmap[i], err = r.UInt32(); err != nil {
			return
		}
	}
	return
}

func endianFlags(e wire.Endianness, extra byte) byte { return e.Flag() | extra }
