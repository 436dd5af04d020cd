package transport

import "errors"

// ErrNotUDP reports that a socket's local address was not a UDP address,
// which should be unreachable given net.ListenUDP/net.ListenMulticastUDP.
var ErrNotUDP = errors.New("transport: socket local address is not UDP")
