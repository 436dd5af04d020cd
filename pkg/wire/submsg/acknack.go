package submsg

import (
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// ACKNACK's own Final flag suppresses the writer's obligation to treat this
// as requiring an immediate response (rarely set by readers in practice; it
// exists for protocol completeness).
const FlagAckNackFinal byte = 0x02

type AckNack struct {
	ReaderID guid.EntityId
	WriterID guid.EntityId
	ReaderSNState SequenceNumberSet
	Count    int32
	Final    bool
}

func (a AckNack) Encode(e wire.Endianness, dst []byte) []byte {
	var flags byte = e.Flag()
	if a.Final {
		flags |= FlagAckNackFinal
	}
	var body []byte
	bw := cdr.NewWriter(e, body)
	encodeEntityId(bw, a.ReaderID)
	encodeEntityId(bw, a.WriterID)
	encodeSNSet(bw, a.ReaderSNState)
	bw.Int32(a.Count)
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindAckNack, flags, len(body), e, dst)
	return append(dst, body...)
}

func DecodeAckNack(raw wire.RawSubmessage) (a AckNack, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	if a.ReaderID, err = decodeEntityId(r); err != nil {
		return
	}
	if a.WriterID, err = decodeEntityId(r); err != nil {
		return
	}
	if a.ReaderSNState, err = decodeSNSet(r); err != nil {
		return
	}
	if a.Count, err = r.Int32(); err != nil {
		return
	}
	a.Final = raw.Flags&FlagAckNackFinal != 0
	return
}
