package submsg

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// Data submessage flags, packed alongside the endianness bit (spec.md §4.1).
const (
	FlagInlineQos byte = 0x02
	FlagData      byte = 0x04
	FlagKey       byte = 0x08
)

// Data carries one cache change: a regular data sample (Payload set,
// IsKey=false) or a dispose/unregister key-only sample (Payload set,
// IsKey=true).
type Data struct {
	ReaderID      guid.EntityId
	WriterID      guid.EntityId
	WriterSN      ddstime.SequenceNumber
	InlineQos     []byte // raw, still-encoded parameter list, or nil
	Payload       []byte // serialized sample or serialized key, or nil
	IsKey         bool
}

// Encode appends the submessage header and body to dst, returning the new
// slice. extraFlags/octetsToInlineQos are fixed at 0/16 — this
// implementation never needs the forward-compatible padding spec.md
// mentions, but a reader must still skip it if present.
func (d Data) Encode(e wire.Endianness, dst []byte) []byte {
	var flags byte = e.Flag()
	if d.InlineQos != nil {
		flags |= FlagInlineQos
	}
	if d.Payload != nil {
		flags |= FlagData
		if d.IsKey {
			flags |= FlagKey
		}
	}

	var body []byte
	bw := cdr.NewWriter(e, body)
	bw.UInt16(0) // extraFlags
	bw.UInt16(16) // octetsToInlineQos: fixed header below is 16 bytes (reader/writer id x2 + sn)
	encodeEntityId(bw, d.ReaderID)
	encodeEntityId(bw, d.WriterID)
	encodeSN(bw, d.WriterSN)
	if d.InlineQos != nil {
		bw.RawBytes(d.InlineQos)
	}
	if d.Payload != nil {
		bw.RawBytes(d.Payload)
	}
	body = bw.Bytes()

	dst = wire.EncodeSubmessageHeader(wire.KindData, flags, len(body), e, dst)
	dst = append(dst, body...)
	return dst
}

// DecodeData parses a Data submessage body. It tolerates a
// forward-compatible octetsToInlineQos value larger than the fixed header it
// knows about by skipping the difference, per spec.md §4.1.
func DecodeData(raw wire.RawSubmessage) (d Data, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	if _, err = r.UInt16(); err != nil { // extraFlags, unused
		return
	}
	var octetsToInlineQos uint16
	if octetsToInlineQos, err = r.UInt16(); err != nil {
		return
	}
	headerStart := r.Pos()
	if d.ReaderID, err = decodeEntityId(r); err != nil {
		return
	}
	if d.WriterID, err = decodeEntityId(r); err != nil {
		return
	}
	if d.WriterSN, err = decodeSN(r); err != nil {
		return
	}
	consumed := r.Pos() - headerStart
	if skip := int(octetsToInlineQos) - consumed; skip > 0 {
		if err = r.Skip(skip); err != nil {
			return
		}
	}
	if raw.Flags&FlagInlineQos != 0 {
		start := r.Pos()
		// Inline QoS is a parameter list; find its end by scanning for the
		// sentinel rather than re-parsing here, so the raw bytes can be
		// handed to paramlist.Parse by the caller without a copy.
		end, perr := findSentinel(raw.Content[start:], raw.Endian)
		if perr != nil {
			return d, perr
		}
		d.InlineQos = raw.Content[start : start+end]
		if err = r.Skip(end); err != nil {
			return
		}
	}
	d.IsKey = raw.Flags&FlagKey != 0
	if raw.Flags&FlagData != 0 {
		d.Payload = raw.Content[r.Pos():]
	}
	return
}

// findSentinel scans a parameter list for its terminating PID_SENTINEL and
// returns the byte length including the sentinel's own 4 bytes.
func findSentinel(b []byte, e wire.Endianness) (n int, err error) {
	pos := 0
	for {
		if len(b)-pos < 4 {
			return 0, wire.ErrTruncated
		}
		r := cdr.NewReader(e, b[pos:pos+4])
		id, _ := r.UInt16()
		length, _ := r.UInt16()
		pos += 4
		if id == 0x0001 { // PID_SENTINEL
			return pos, nil
		}
		pos += int(length)
		if pos > len(b) {
			return 0, wire.ErrTruncated
		}
	}
}
