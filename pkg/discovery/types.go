// Package discovery implements the Discovery DB (C7) and Discovery Engine
// (C8): the in-memory registry of known participants, remote endpoints and
// topics, and the built-in SPDP/SEDP reader/writer pairs that keep it
// current.
package discovery

import (
	"reflect"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// ParticipantData is the SPDP payload a participant announces about itself:
// its prefix, the locators its metatraffic (discovery) and user-traffic
// endpoints listen on, its lease duration, and which built-in endpoints it
// has available.
type ParticipantData struct {
	Prefix                   guid.Prefix
	MetatrafficUnicast       []wire.Locator
	MetatrafficMulticast     []wire.Locator
	DefaultUnicast           []wire.Locator
	DefaultMulticast         []wire.Locator
	LeaseDuration            ddstime.T
	AvailableBuiltinEndpoints uint32
	VendorID                 [2]byte
	ProtocolVersion          [2]byte
}

// DiscoveredReaderData is the SEDP payload describing one remote reader.
type DiscoveredReaderData struct {
	GUID      guid.G
	Topic     string
	TypeName  string
	Policies  qos.Policies
	Locators  []wire.Locator
}

// Equal compares two DiscoveredReaderData by value, including Locators
// (which plain == cannot do, since a slice field makes the struct
// non-comparable).
func (d DiscoveredReaderData) Equal(o DiscoveredReaderData) bool {
	return reflect.DeepEqual(d, o)
}

// DiscoveredWriterData is the SEDP payload describing one remote writer.
type DiscoveredWriterData struct {
	GUID     guid.G
	Topic    string
	TypeName string
	Policies qos.Policies
	Locators []wire.Locator
}

func (d DiscoveredWriterData) Equal(o DiscoveredWriterData) bool {
	return reflect.DeepEqual(d, o)
}

// DiscoveredTopicData advertises a topic's type name and QoS independent of
// any one endpoint, per spec.md §3.
type DiscoveredTopicData struct {
	Name     string
	TypeName string
	Policies qos.Policies
}

// participantRecord tracks last_seen alongside the announced data for lease
// expiry, per spec.md §4.6.
type participantRecord struct {
	data     ParticipantData
	lastSeen ddstime.T
}

func (r *participantRecord) expired(now ddstime.T) bool {
	deadline := ddstime.FromUnixNano(r.lastSeen.UnixNano() + r.data.LeaseDuration.UnixNano())
	return deadline.Before(now)
}

// remoteReaderRecord/remoteWriterRecord pair discovered data with the proxy
// constructed for it: update_subscription hands local writers a
// *rtps.ReaderProxy, update_publication hands local readers a
// *rtps.WriterProxy, per spec.md §4.6.
type remoteReaderRecord struct {
	data  DiscoveredReaderData
	proxy *rtps.ReaderProxy
}

type remoteWriterRecord struct {
	data  DiscoveredWriterData
	proxy *rtps.WriterProxy
}

type topicRecord struct {
	data           DiscoveredTopicData
	referencedBy   int // count of local endpoints naming this topic
}
