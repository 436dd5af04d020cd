package submsg

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// HEARTBEAT flags, per spec.md §4.4.
const (
	FlagFinal      byte = 0x02
	FlagLiveliness byte = 0x04
)

type Heartbeat struct {
	ReaderID guid.EntityId
	WriterID guid.EntityId
	First    ddstime.SequenceNumber
	Last     ddstime.SequenceNumber
	Count    int32
	Final    bool
	Liveliness bool
}

func (h Heartbeat) Encode(e wire.Endianness, dst []byte) []byte {
	var flags byte = e.Flag()
	if h.Final {
		flags |= FlagFinal
	}
	if h.Liveliness {
		flags |= FlagLiveliness
	}
	var body []byte
	bw := cdr.NewWriter(e, body)
	encodeEntityId(bw, h.ReaderID)
	encodeEntityId(bw, h.WriterID)
	encodeSN(bw, h.First)
	encodeSN(bw, h.Last)
	bw.Int32(h.Count)
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindHeartbeat, flags, len(body), e, dst)
	return append(dst, body...)
}

func DecodeHeartbeat(raw wire.RawSubmessage) (h Heartbeat, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	if h.ReaderID, err = decodeEntityId(r); err != nil {
		return
	}
	if h.WriterID, err = decodeEntityId(r); err != nil {
		return
	}
	if h.First, err = decodeSN(r); err != nil {
		return
	}
	if h.Last, err = decodeSN(r); err != nil {
		return
	}
	if h.Count, err = r.Int32(); err != nil {
		return
	}
	h.Final = raw.Flags&FlagFinal != 0
	h.Liveliness = raw.Flags&FlagLiveliness != 0
	return
}
