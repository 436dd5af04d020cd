package transport

import (
	"context"
	"net"
	"time"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/utils/bufpool"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// readDeadline bounds each ReadFromUDP call so Listen can observe ctx
// cancellation instead of blocking forever on a socket nobody is writing to.
const readDeadline = 500 * time.Millisecond

// Socket binds one UDP endpoint and implements rtps.Sender over it: every
// outgoing send is prefixed with this participant's RTPS message header.
// A participant opens four of these, per spec.md §5 ("four sockets total").
type Socket struct {
	conn    *net.UDPConn
	prefix  guid.Prefix
	locator wire.Locator
}

// NewUnicastSocket binds a plain UDP socket on port, for discovery or user
// unicast traffic.
func NewUnicastSocket(prefix guid.Prefix, port uint32) (*Socket, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: int(port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, prefix, port)
}

// NewMulticastSocket joins group:port on every available interface, for SPDP
// or user multicast traffic.
func NewMulticastSocket(prefix guid.Prefix, group net.IP, port uint32) (*Socket, error) {
	addr := &net.UDPAddr{IP: group, Port: int(port)}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, prefix, port)
}

// newSocket reads the actually-bound port back from conn, so that binding
// port 0 (an ephemeral port, as tests do) still yields a usable Locator.
func newSocket(conn *net.UDPConn, prefix guid.Prefix, requestedPort uint32) (*Socket, error) {
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		chk.E(conn.Close())
		return nil, ErrNotUDP
	}
	ip := local.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	port := uint16(local.Port)
	if port == 0 {
		port = uint16(requestedPort)
	}
	return &Socket{
		conn:    conn,
		prefix:  prefix,
		locator: wire.UDPv4Locator(ip, port),
	}, nil
}

// Locator reports the address peers should use to reach this socket.
func (s *Socket) Locator() wire.Locator { return s.locator }

// Close releases the underlying UDP socket.
func (s *Socket) Close() error { return s.conn.Close() }

// Send implements rtps.Sender: wrap body in this participant's message
// header and write one datagram per locator.
func (s *Socket) Send(locators []wire.Locator, body []byte) error {
	var msg []byte
	msg = wire.EncodeHeader(wire.Header{Version: wire.Version23, Vendor: wire.VendorUnknown, GuidPrefix: s.prefix}, msg)
	msg = append(msg, body...)

	var firstErr error
	for _, loc := range locators {
		if _, err := s.conn.WriteToUDP(msg, loc.UDPAddr()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatch is handed a decoded message header and its still-encoded
// submessages for a caller to route by entity id.
type Dispatch func(hdr wire.Header, subs []wire.RawSubmessage, remote *net.UDPAddr)

// Listen reads datagrams until ctx is cancelled, decoding each into a
// Header and its submessages before handing them to dispatch. A malformed
// datagram is logged and discarded; it never tears down the socket.
func (s *Socket) Listen(ctx context.Context, dispatch Dispatch) {
	for {
		if ctx.Err() != nil {
			return
		}
		buf := bufpool.Get()
		chk.E(s.conn.SetReadDeadline(time.Now().Add(readDeadline)))
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			bufpool.Put(buf)
			if ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.E.F("transport: read on %s failed: %v", s.locator.UDPAddr(), err)
			continue
		}

		hdr, rest, err := wire.DecodeHeader(buf[:n])
		if err != nil {
			log.D.F("transport: dropping datagram from %s: %v", remote, err)
			bufpool.Put(buf)
			continue
		}
		subs, err := wire.Submessages(rest)
		if err != nil {
			log.D.F("transport: truncated submessages from %s: %v", remote, err)
		}
		if len(subs) > 0 {
			dispatch(hdr, subs, remote)
		}
		bufpool.Put(buf)
	}
}
