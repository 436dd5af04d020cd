// Package transport is the OS-level UDP socket layer (C9's socket half):
// RTPS's well-known port formula, and a Socket that implements rtps.Sender
// over a real net.UDPConn.
package transport

// Well-known port formula constants, per spec.md §6.
const (
	PB = 7400
	DG = 250
	PG = 2

	// d0/d1/d2/d3 per spec.md: multicast discovery, unicast discovery,
	// multicast user traffic, unicast user traffic.
	d0 = 0
	d1 = 10
	d2 = 1
	d3 = 11
)

// Ports is the four well-known ports a participant binds, derived from its
// domain and participant index.
type Ports struct {
	SPDPMulticast uint32
	SPDPUnicast   uint32
	UserMulticast uint32
	UserUnicast   uint32
}

// ComputePorts follows the RTPS port formula: PB + DG*domainID + offset, with
// the two unicast ports additionally spread by PG*participantID so that
// multiple participants on the same host do not collide.
func ComputePorts(domainID, participantID uint32) Ports {
	base := PB + DG*domainID
	return Ports{
		SPDPMulticast: base + d0,
		SPDPUnicast:   base + d1 + PG*participantID,
		UserMulticast: base + d2,
		UserUnicast:   base + d3 + PG*participantID,
	}
}

// DefaultSPDPMulticastGroup is the standard SPDP multicast address.
const DefaultSPDPMulticastGroup = "239.255.0.1"
