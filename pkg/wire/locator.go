package wire

import (
	"net"

	"github.com/opendds-go/ddscore/pkg/wire/cdr"
)

// LocatorKind distinguishes the transport family a Locator addresses.
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is the RTPS wire representation of a network address: a 32-bit
// kind, a 32-bit port, and a 16-byte address (IPv4 addresses are stored
// v4-in-v6 mapped).
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

func UDPv4Locator(ip net.IP, port uint16) (l Locator) {
	l.Kind = LocatorKindUDPv4
	l.Port = uint32(port)
	v4 := ip.To4()
	copy(l.Address[12:], v4)
	return
}

func (l Locator) UDPAddr() *net.UDPAddr {
	if l.Kind == LocatorKindUDPv4 {
		ip := net.IPv4(l.Address[12], l.Address[13], l.Address[14], l.Address[15])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}
	}
	ip := make(net.IP, 16)
	copy(ip, l.Address[:])
	return &net.UDPAddr{IP: ip, Port: int(l.Port)}
}

func (l Locator) Encode(w *cdr.Writer) {
	w.Int32(int32(l.Kind))
	w.UInt32(l.Port)
	w.RawBytes(l.Address[:])
}

func DecodeLocator(r *cdr.Reader) (l Locator, err error) {
	var kind int32
	if kind, err = r.Int32(); err != nil {
		return
	}
	l.Kind = LocatorKind(kind)
	if l.Port, err = r.UInt32(); err != nil {
		return
	}
	var addr []byte
	if addr, err = r.RawBytes(16); err != nil {
		return
	}
	copy(l.Address[:], addr)
	return
}
