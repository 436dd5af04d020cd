package submsg

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// Gap tells a reader that the writer will never be able to supply the listed
// sequence numbers — lost to history eviction, not merely delayed.
type Gap struct {
	ReaderID  guid.EntityId
	WriterID  guid.EntityId
	GapStart  ddstime.SequenceNumber
	GapList   SequenceNumberSet
}

func (g Gap) Encode(e wire.Endianness, dst []byte) []byte {
	flags := e.Flag()
	var body []byte
	bw := cdr.NewWriter(e, body)
	encodeEntityId(bw, g.ReaderID)
	encodeEntityId(bw, g.WriterID)
	encodeSN(bw, g.GapStart)
	encodeSNSet(bw, g.GapList)
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindGap, flags, len(body), e, dst)
	return append(dst, body...)
}

func DecodeGap(raw wire.RawSubmessage) (g Gap, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	if g.ReaderID, err = decodeEntityId(r); err != nil {
		return
	}
	if g.WriterID, err = decodeEntityId(r); err != nil {
		return
	}
	if g.GapStart, err = decodeSN(r); err != nil {
		return
	}
	if g.GapList, err = decodeSNSet(r); err != nil {
		return
	}
	return
}
