// Package paramlist implements the parameter-list encoding spec.md §4.1 and
// §6 specify for built-in discovery data and inline QoS: a sequence of
// (pid, length, value) triples, each 4-byte aligned, terminated by
// PID_SENTINEL. Unknown parameter ids are skipped by length so peers can add
// fields without breaking older implementations.
package paramlist

import (
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

type ParameterID uint16

// Parameter ids used in built-in data, per spec.md §6.
const (
	PIDSentinel              ParameterID = 0x0001
	PIDParticipantLease      ParameterID = 0x0002
	PIDTopicName             ParameterID = 0x0005
	PIDTypeName              ParameterID = 0x0007
	PIDProtocolVersion       ParameterID = 0x0015
	PIDVendorID              ParameterID = 0x0016
	PIDReliability           ParameterID = 0x001A
	PIDLiveliness            ParameterID = 0x001B
	PIDDurability            ParameterID = 0x001D
	PIDPresentation          ParameterID = 0x0021
	PIDDeadline              ParameterID = 0x0023
	PIDUnicastLocator        ParameterID = 0x002F
	PIDMulticastLocator      ParameterID = 0x0030
	PIDParticipantGUID       ParameterID = 0x0050
	PIDEndpointGUID          ParameterID = 0x005A
	PIDHistory               ParameterID = 0x0040
	PIDResourceLimits        ParameterID = 0x0041
	PIDKeyHash               ParameterID = 0x0070
	PIDStatusInfo            ParameterID = 0x0071
)

// Entry is one decoded parameter: its id and raw, still-encoded value bytes.
type Entry struct {
	ID    ParameterID
	Value []byte
}

// Writer builds a parameter list, padding every value to a 4-byte boundary
// and terminating with PID_SENTINEL on Finish.
type Writer struct {
	cw *cdr.Writer
}

func NewWriter(e wire.Endianness, dst []byte) *Writer {
	return &Writer{cw: cdr.NewWriter(e, dst)}
}

// Put writes one (pid, length, value) triple, zero-padding value to a 4-byte
// boundary and writing the padded length; most callers should instead use
// the PutX helpers below.
func (w *Writer) Put(id ParameterID, value []byte) {
	padded := pad4(len(value))
	w.cw.UInt16(uint16(id))
	w.cw.UInt16(uint16(padded))
	w.cw.RawBytes(value)
	for i := len(value); i < padded; i++ {
		w.cw.Octet(0)
	}
}

func (w *Writer) PutString(id ParameterID, s string) {
	var b []byte
	sw := cdr.NewWriter(w.cw.Endian, b)
	sw.String(s)
	w.Put(id, sw.Bytes())
}

func (w *Writer) PutBytes(id ParameterID, raw []byte) { w.Put(id, raw) }

func (w *Writer) PutUInt32(id ParameterID, v uint32) {
	var b []byte
	sw := cdr.NewWriter(w.cw.Endian, b)
	sw.UInt32(v)
	w.Put(id, sw.Bytes())
}

func (w *Writer) Finish() []byte {
	w.cw.UInt16(uint16(PIDSentinel))
	w.cw.UInt16(0)
	return w.cw.Bytes()
}

func pad4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// Parse decodes a parameter list until PID_SENTINEL or input exhaustion.
func Parse(e wire.Endianness, src []byte) (entries []Entry, err error) {
	r := cdr.NewReader(e, src)
	for {
		if r.Remaining() < 4 {
			return entries, wire.ErrTruncated
		}
		var idRaw, lenRaw uint16
		if idRaw, err = r.UInt16(); err != nil {
			return
		}
		if lenRaw, err = r.UInt16(); err != nil {
			return
		}
		id := ParameterID(idRaw)
		if id == PIDSentinel {
			return entries, nil
		}
		var val []byte
		if val, err = r.RawBytes(int(lenRaw)); err != nil {
			return
		}
		entries = append(entries, Entry{ID: id, Value: val})
	}
}

func Find(entries []Entry, id ParameterID) (val []byte, ok bool) {
	for _, e := range entries {
		if e.ID == id {
			return e.Value, true
		}
	}
	return nil, false
}

func FindAll(entries []Entry, id ParameterID) (vals [][]byte) {
	for _, e := range entries {
		if e.ID == id {
			vals = append(vals, e.Value)
		}
	}
	return
}
