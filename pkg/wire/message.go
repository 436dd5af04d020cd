package wire

import (
	"encoding/binary"

	"github.com/opendds-go/ddscore/pkg/guid"
)

// Magic is the 4-byte marker that opens every RTPS message.
var Magic = [4]byte{'R', 'T', 'P', 'S'}

type ProtocolVersion struct {
	Major, Minor byte
}

// Version23 is RTPS v2.3, the wire protocol version this implementation
// speaks (spec.md §6).
var Version23 = ProtocolVersion{Major: 2, Minor: 3}

type VendorID [2]byte

// VendorUnknown is used when no vendor-specific behavior is claimed.
var VendorUnknown = VendorID{0x00, 0x00}

// Header is the fixed 20-byte prefix of every RTPS message: magic, protocol
// version, vendor id, source guid prefix.
type Header struct {
	Version    ProtocolVersion
	Vendor     VendorID
	GuidPrefix guid.Prefix
}

const HeaderLen = 4 + 2 + 2 + guid.PrefixLen

func EncodeHeader(h Header, dst []byte) []byte {
	dst = append(dst, Magic[:]...)
	dst = append(dst, h.Version.Major, h.Version.Minor)
	dst = append(dst, h.Vendor[0], h.Vendor[1])
	dst = append(dst, h.GuidPrefix[:]...)
	return dst
}

func DecodeHeader(src []byte) (h Header, rest []byte, err error) {
	if len(src) < HeaderLen {
		return h, nil, ErrTruncated
	}
	if src[0] != Magic[0] || src[1] != Magic[1] || src[2] != Magic[2] || src[3] != Magic[3] {
		return h, nil, ErrUnsupportedVersion
	}
	h.Version = ProtocolVersion{Major: src[4], Minor: src[5]}
	if h.Version.Major != Version23.Major {
		return h, nil, ErrUnsupportedVersion
	}
	h.Vendor = VendorID{src[6], src[7]}
	copy(h.GuidPrefix[:], src[8:8+guid.PrefixLen])
	return h, src[HeaderLen:], nil
}

// SubmessageKind identifies the submessage kinds carried, per spec.md §4.1.
type SubmessageKind byte

const (
	KindPad       SubmessageKind = 0x01
	KindAckNack   SubmessageKind = 0x06
	KindHeartbeat SubmessageKind = 0x07
	KindGap       SubmessageKind = 0x08
	KindInfoTS    SubmessageKind = 0x09
	KindInfoSrc   SubmessageKind = 0x0C
	KindInfoReply SubmessageKind = 0x0F
	KindInfoDst   SubmessageKind = 0x0E
	KindData      SubmessageKind = 0x15
	KindDataFrag  SubmessageKind = 0x16
)

// RawSubmessage is one still-encoded submessage: its kind, its per-submessage
// endianness flag, and its content bytes (sliced by reference from the
// original network buffer, never copied).
type RawSubmessage struct {
	Kind    SubmessageKind
	Flags   byte
	Endian  Endianness
	Content []byte
}

// EncodeSubmessageHeader writes the fixed 4-byte {kind, flags, length}
// framing header that precedes every submessage.
func EncodeSubmessageHeader(kind SubmessageKind, flags byte, contentLen int, e Endianness, dst []byte) []byte {
	dst = append(dst, byte(kind), flags)
	lb := make([]byte, 2)
	order(e).PutUint16(lb, uint16(contentLen))
	dst = append(dst, lb...)
	return dst
}

func order(e Endianness) binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Submessages walks the body following the message Header, yielding each
// RawSubmessage. Endianness is read per-submessage from the low flag bit —
// it is never cached across submessages (spec.md "Wire endianness is
// per-submessage").
func Submessages(body []byte) (subs []RawSubmessage, err error) {
	pos := 0
	for pos < len(body) {
		if len(body)-pos < 4 {
			return subs, ErrTruncated
		}
		kind := SubmessageKind(body[pos])
		flags := body[pos+1]
		e := FromFlag(flags)
		length := int(order(e).Uint16(body[pos+2 : pos+4]))
		pos += 4
		if pos+length > len(body) {
			return subs, ErrTruncated
		}
		subs = append(
			subs, RawSubmessage{
				Kind: kind, Flags: flags, Endian: e,
				Content: body[pos : pos+length],
			},
		)
		pos += length
	}
	return subs, nil
}
