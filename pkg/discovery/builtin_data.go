package discovery

import (
	"time"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/cdr"
	"github.com/opendds-go/ddscore/pkg/wire/paramlist"
)

// Parameter-list encodings for the four built-in discovery payloads, per
// spec.md §4.1/§6: a sequence of (pid, length, value) entries terminated by
// PID_SENTINEL, the same framing pkg/wire/paramlist already implements for
// inline QoS.

func encodeLocator(e wire.Endianness, l wire.Locator) []byte {
	var b []byte
	cw := cdr.NewWriter(e, b)
	l.Encode(cw)
	return cw.Bytes()
}

func decodeLocator(e wire.Endianness, b []byte) (wire.Locator, error) {
	return wire.DecodeLocator(cdr.NewReader(e, b))
}

// EncodeParticipantData serializes the SPDP payload a participant announces
// about itself.
func EncodeParticipantData(e wire.Endianness, d ParticipantData) []byte {
	w := paramlist.NewWriter(e, nil)
	w.PutBytes(paramlist.PIDParticipantGUID, guid.New(d.Prefix, guid.EntityIdParticipant).Bytes())
	w.PutUInt32(paramlist.PIDParticipantLease, uint32(d.LeaseDuration.Seconds))
	for _, l := range d.MetatrafficUnicast {
		w.PutBytes(paramlist.PIDUnicastLocator, encodeLocator(e, l))
	}
	for _, l := range d.MetatrafficMulticast {
		w.PutBytes(paramlist.PIDMulticastLocator, encodeLocator(e, l))
	}
	return w.Finish()
}

// DecodeParticipantData parses a parameter list into a ParticipantData.
// Only the metatraffic locator lists travel in this encoding:
// EncodeParticipantData does not write DefaultUnicast/DefaultMulticast, and
// they are always empty after decoding. A real RTPS vendor uses separate
// PIDs for each of the four locator lists.
func DecodeParticipantData(e wire.Endianness, raw []byte) (d ParticipantData, err error) {
	entries, err := paramlist.Parse(e, raw)
	if err != nil {
		return d, err
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDParticipantGUID); ok {
		if g, ok2 := guid.FromBytes(val); ok2 {
			d.Prefix = g.Prefix
		}
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDParticipantLease); ok {
		r := cdr.NewReader(e, val)
		secs, derr := r.UInt32()
		if derr == nil {
			d.LeaseDuration = ddstime.T{Seconds: secs}
		}
	}
	for _, val := range paramlist.FindAll(entries, paramlist.PIDUnicastLocator) {
		if l, derr := decodeLocator(e, val); derr == nil {
			d.MetatrafficUnicast = append(d.MetatrafficUnicast, l)
		}
	}
	for _, val := range paramlist.FindAll(entries, paramlist.PIDMulticastLocator) {
		if l, derr := decodeLocator(e, val); derr == nil {
			d.MetatrafficMulticast = append(d.MetatrafficMulticast, l)
		}
	}
	return d, nil
}

func encodeEndpointCommon(w *paramlist.Writer, e wire.Endianness, g guid.G, topic, typeName string, p qos.Policies, locators []wire.Locator) {
	w.PutBytes(paramlist.PIDEndpointGUID, g.Bytes())
	w.PutString(paramlist.PIDTopicName, topic)
	w.PutString(paramlist.PIDTypeName, typeName)
	w.PutUInt32(paramlist.PIDReliability, uint32(p.Reliability.Kind))
	w.PutUInt32(paramlist.PIDDurability, uint32(p.Durability))
	w.PutUInt32(paramlist.PIDDeadline, uint32(p.Deadline.Period/time.Second))
	w.PutUInt32(paramlist.PIDLiveliness, uint32(p.Liveliness.Kind))
	for _, l := range locators {
		w.PutBytes(paramlist.PIDUnicastLocator, encodeLocator(e, l))
	}
}

func decodeEndpointCommon(e wire.Endianness, entries []paramlist.Entry) (g guid.G, topic, typeName string, p qos.Policies, locators []wire.Locator) {
	if val, ok := paramlist.Find(entries, paramlist.PIDEndpointGUID); ok {
		g, _ = guid.FromBytes(val)
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDTopicName); ok {
		topic, _ = cdr.NewReader(e, val).String()
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDTypeName); ok {
		typeName, _ = cdr.NewReader(e, val).String()
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDReliability); ok {
		if v, derr := cdr.NewReader(e, val).UInt32(); derr == nil {
			p.Reliability.Kind = qos.ReliabilityKind(v)
		}
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDDurability); ok {
		if v, derr := cdr.NewReader(e, val).UInt32(); derr == nil {
			p.Durability = qos.DurabilityKind(v)
		}
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDDeadline); ok {
		if v, derr := cdr.NewReader(e, val).UInt32(); derr == nil {
			p.Deadline.Period = time.Duration(v) * time.Second
		}
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDLiveliness); ok {
		if v, derr := cdr.NewReader(e, val).UInt32(); derr == nil {
			p.Liveliness.Kind = qos.LivelinessKind(v)
		}
	}
	for _, val := range paramlist.FindAll(entries, paramlist.PIDUnicastLocator) {
		if l, derr := decodeLocator(e, val); derr == nil {
			locators = append(locators, l)
		}
	}
	return
}

func EncodeReaderData(e wire.Endianness, d DiscoveredReaderData) []byte {
	w := paramlist.NewWriter(e, nil)
	encodeEndpointCommon(w, e, d.GUID, d.Topic, d.TypeName, d.Policies, d.Locators)
	return w.Finish()
}

func DecodeReaderData(e wire.Endianness, raw []byte) (d DiscoveredReaderData, err error) {
	entries, err := paramlist.Parse(e, raw)
	if err != nil {
		return d, err
	}
	d.GUID, d.Topic, d.TypeName, d.Policies, d.Locators = decodeEndpointCommon(e, entries)
	return d, nil
}

func EncodeWriterData(e wire.Endianness, d DiscoveredWriterData) []byte {
	w := paramlist.NewWriter(e, nil)
	encodeEndpointCommon(w, e, d.GUID, d.Topic, d.TypeName, d.Policies, d.Locators)
	return w.Finish()
}

func DecodeWriterData(e wire.Endianness, raw []byte) (d DiscoveredWriterData, err error) {
	entries, err := paramlist.Parse(e, raw)
	if err != nil {
		return d, err
	}
	d.GUID, d.Topic, d.TypeName, d.Policies, d.Locators = decodeEndpointCommon(e, entries)
	return d, nil
}

func EncodeTopicData(e wire.Endianness, d DiscoveredTopicData) []byte {
	w := paramlist.NewWriter(e, nil)
	w.PutString(paramlist.PIDTopicName, d.Name)
	w.PutString(paramlist.PIDTypeName, d.TypeName)
	return w.Finish()
}

func DecodeTopicData(e wire.Endianness, raw []byte) (d DiscoveredTopicData, err error) {
	entries, err := paramlist.Parse(e, raw)
	if err != nil {
		return d, err
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDTopicName); ok {
		d.Name, _ = cdr.NewReader(e, val).String()
	}
	if val, ok := paramlist.Find(entries, paramlist.PIDTypeName); ok {
		d.TypeName, _ = cdr.NewReader(e, val).String()
	}
	return d, nil
}
