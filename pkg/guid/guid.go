// Package guid implements the RTPS GUID: a 12-byte participant prefix plus a
// 4-byte entity id, unique across the network.
package guid

import (
	"bytes"
	"encoding/hex"

	"lukechampine.com/frand"
)

const (
	PrefixLen = 12
	EntityLen = 4
	Len       = PrefixLen + EntityLen
)

// Prefix identifies a participant; every entity owned by that participant
// shares it.
type Prefix [PrefixLen]byte

// NewPrefix draws a fresh random prefix for a locally-created participant.
func NewPrefix() (p Prefix) {
	copy(p[:], frand.Bytes(PrefixLen))
	return
}

func (p Prefix) String() string { return hex.EncodeToString(p[:]) }

// EntityKind occupies the low byte of an EntityId and distinguishes
// user/built-in, reader/writer/participant.
type EntityKind byte

const (
	KindUnknown          EntityKind = 0x00
	KindParticipant      EntityKind = 0x01
	KindWriterWithKey    EntityKind = 0x02
	KindWriterNoKey      EntityKind = 0x03
	KindReaderNoKey      EntityKind = 0x04
	KindReaderWithKey    EntityKind = 0x07
	KindBuiltinFlag      EntityKind = 0xC0
	KindBuiltinWriterKey            = KindWriterWithKey | KindBuiltinFlag
	KindBuiltinWriterNo             = KindWriterNoKey | KindBuiltinFlag
	KindBuiltinReaderKey            = KindReaderWithKey | KindBuiltinFlag
	KindBuiltinReaderNo             = KindReaderNoKey | KindBuiltinFlag
)

// EntityId is the 4-byte (entityKey[3] + kind) suffix of a GUID.
type EntityId [EntityLen]byte

func NewEntityId(key [3]byte, kind EntityKind) (e EntityId) {
	copy(e[:3], key[:])
	e[3] = byte(kind)
	return
}

func (e EntityId) Kind() EntityKind { return EntityKind(e[3]) }

func (e EntityId) IsBuiltin() bool {
	return e[3]&byte(KindBuiltinFlag) == byte(KindBuiltinFlag)
}

// Fixed built-in entity ids, per spec.md §6.
var (
	EntityIdUnknown           = EntityId{0x00, 0x00, 0x00, 0x00}
	EntityIdParticipant       = EntityId{0x00, 0x00, 0x01, byte(KindParticipant)}
	EntityIdSPDPReader        = EntityId{0x00, 0x01, 0x00, byte(KindBuiltinReaderNo)}
	EntityIdSPDPWriter        = EntityId{0x00, 0x01, 0x00, byte(KindBuiltinWriterNo)}
	EntityIdSEDPSubReader     = EntityId{0x00, 0x04, 0x00, byte(KindBuiltinReaderNo)}
	EntityIdSEDPSubWriter     = EntityId{0x00, 0x03, 0x00, byte(KindBuiltinWriterNo)}
	EntityIdSEDPPubReader     = EntityId{0x00, 0x03, 0x00, byte(KindBuiltinReaderNo)}
	EntityIdSEDPPubWriter     = EntityId{0x00, 0x04, 0x00, byte(KindBuiltinWriterNo)}
	EntityIdSEDPTopicReader   = EntityId{0x00, 0x02, 0x00, byte(KindBuiltinReaderNo)}
	EntityIdSEDPTopicWriter   = EntityId{0x00, 0x02, 0x00, byte(KindBuiltinWriterNo)}
	EntityIdParticipantMsgR   = EntityId{0x00, 0x02, 0x00, byte(KindBuiltinReaderNo | 0x08)}
	EntityIdParticipantMsgW   = EntityId{0x00, 0x02, 0x00, byte(KindBuiltinWriterNo | 0x08)}
)

// G is a full 16-byte GUID.
type G struct {
	Prefix Prefix
	Entity EntityId
}

func New(prefix Prefix, entity EntityId) G { return G{Prefix: prefix, Entity: entity} }

func (g G) Bytes() []byte {
	b := make([]byte, 0, Len)
	b = append(b, g.Prefix[:]...)
	b = append(b, g.Entity[:]...)
	return b
}

func FromBytes(b []byte) (g G, ok bool) {
	if len(b) != Len {
		return
	}
	copy(g.Prefix[:], b[:PrefixLen])
	copy(g.Entity[:], b[PrefixLen:])
	ok = true
	return
}

func (g G) Equal(o G) bool { return bytes.Equal(g.Bytes(), o.Bytes()) }

func (g G) String() string { return g.Prefix.String() + ":" + hex.EncodeToString(g.Entity[:]) }
