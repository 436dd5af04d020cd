package submsg

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// InfoTS carries a source timestamp that applies to the DATA submessage(s)
// following it within the same message.
type InfoTS struct {
	Invalid   bool
	Timestamp ddstime.T
}

const FlagInfoTSInvalid byte = 0x02

func (i InfoTS) Encode(e wire.Endianness, dst []byte) []byte {
	flags := e.Flag()
	if i.Invalid {
		flags |= FlagInfoTSInvalid
		return wire.EncodeSubmessageHeader(wire.KindInfoTS, flags, 0, e, dst)
	}
	var body []byte
	bw := cdr.NewWriter(e, body)
	bw.UInt32(i.Timestamp.Seconds)
	bw.UInt32(i.Timestamp.Fraction)
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindInfoTS, flags, len(body), e, dst)
	return append(dst, body...)
}

func DecodeInfoTS(raw wire.RawSubmessage) (i InfoTS, err error) {
	if raw.Flags&FlagInfoTSInvalid != 0 {
		i.Invalid = true
		return
	}
	r := cdr.NewReader(raw.Endian, raw.Content)
	if i.Timestamp.Seconds, err = r.UInt32(); err != nil {
		return
	}
	i.Timestamp.Fraction, err = r.UInt32()
	return
}

// InfoDst carries the destination participant's guid prefix, letting a
// multicast-received message be attributed to a specific unicast reply path.
type InfoDst struct {
	GuidPrefix guid.Prefix
}

func (i InfoDst) Encode(e wire.Endianness, dst []byte) []byte {
	dst = wire.EncodeSubmessageHeader(wire.KindInfoDst, e.Flag(), guid.PrefixLen, e, dst)
	return append(dst, i.GuidPrefix[:]...)
}

func DecodeInfoDst(raw wire.RawSubmessage) (i InfoDst, err error) {
	if len(raw.Content) < guid.PrefixLen {
		return i, wire.ErrTruncated
	}
	copy(i.GuidPrefix[:], raw.Content[:guid.PrefixLen])
	return
}

// InfoSrc identifies the true originating participant of a relayed message.
type InfoSrc struct {
	Version    wire.ProtocolVersion
	Vendor     wire.VendorID
	GuidPrefix guid.Prefix
}

func (i InfoSrc) Encode(e wire.Endianness, dst []byte) []byte {
	var body []byte
	bw := cdr.NewWriter(e, body)
	bw.UInt32(0) // unused locator-format placeholder for the source ip, per RTPS spec
	bw.Octet(i.Version.Major)
	bw.Octet(i.Version.Minor)
	bw.Octet(i.Vendor[0])
	bw.Octet(i.Vendor[1])
	bw.RawBytes(i.GuidPrefix[:])
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindInfoSrc, e.Flag(), len(body), e, dst)
	return append(dst, body...)
}

func DecodeInfoSrc(raw wire.RawSubmessage) (i InfoSrc, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	if _, err = r.UInt32(); err != nil {
		return
	}
	var maj, min, v0, v1 byte
	if maj, err = r.Octet(); err != nil {
		return
	}
	if min, err = r.Octet(); err != nil {
		return
	}
	if v0, err = r.Octet(); err != nil {
		return
	}
	if v1, err = r.Octet(); err != nil {
		return
	}
	i.Version = wire.ProtocolVersion{Major: maj, Minor: min}
	i.Vendor = wire.VendorID{v0, v1}
	var b []byte
	if b, err = r.RawBytes(guid.PrefixLen); err != nil {
		return
	}
	copy(i.GuidPrefix[:], b)
	return
}

// InfoReply carries the locator(s) a receiver should use to send a reply,
// overriding the default reverse path.
type InfoReply struct {
	UnicastLocators   []wire.Locator
	MulticastLocators []wire.Locator
	HasMulticast      bool
}

const FlagInfoReplyMulticast byte = 0x02

func (i InfoReply) Encode(e wire.Endianness, dst []byte) []byte {
	flags := e.Flag()
	if i.HasMulticast {
		flags |= FlagInfoReplyMulticast
	}
	var body []byte
	bw := cdr.NewWriter(e, body)
	bw.SequenceHeader(len(i.UnicastLocators))
	for _, l := range i.UnicastLocators {
		l.Encode(bw)
	}
	if i.HasMulticast {
		bw.SequenceHeader(len(i.MulticastLocators))
		for _, l := range i.MulticastLocators {
			l.Encode(bw)
		}
	}
	body = bw.Bytes()
	dst = wire.EncodeSubmessageHeader(wire.KindInfoReply, flags, len(body), e, dst)
	return append(dst, body...)
}

func DecodeInfoReply(raw wire.RawSubmessage) (i InfoReply, err error) {
	r := cdr.NewReader(raw.Endian, raw.Content)
	var n uint32
	if n, err = r.UInt32(); err != nil {
		return
	}
	for j := uint32(0); j < n; j++ {
		var l wire.Locator
		if l, err = wire.DecodeLocator(r); err != nil {
			return
		}
		i.UnicastLocators = append(i.UnicastLocators, l)
	}
	i.HasMulticast = raw.Flags&FlagInfoReplyMulticast != 0
	if i.HasMulticast {
		if n, err = r.UInt32(); err != nil {
			return
		}
		for j := uint32(0); j < n; j++ {
			var l wire.Locator
			if l, err = wire.DecodeLocator(r); err != nil {
				return
			}
			i.MulticastLocators = append(i.MulticastLocators, l)
		}
	}
	return
}
