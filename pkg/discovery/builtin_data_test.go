package discovery

import (
	"net"
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/wire"
)

func TestParticipantDataRoundTrip(t *testing.T) {
	in := ParticipantData{
		Prefix:        testPrefix(9),
		LeaseDuration: ddstime.T{Seconds: 10},
		MetatrafficUnicast: []wire.Locator{
			wire.UDPv4Locator(net.IPv4(127, 0, 0, 1), 7410),
		},
	}
	raw := EncodeParticipantData(wire.LittleEndian, in)
	out, err := DecodeParticipantData(wire.LittleEndian, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Prefix != in.Prefix {
		t.Fatalf("prefix mismatch: got %v want %v", out.Prefix, in.Prefix)
	}
	if out.LeaseDuration.Seconds != in.LeaseDuration.Seconds {
		t.Fatalf("lease mismatch: got %d want %d", out.LeaseDuration.Seconds, in.LeaseDuration.Seconds)
	}
	if len(out.MetatrafficUnicast) != 1 || out.MetatrafficUnicast[0].Port != 7410 {
		t.Fatalf("expected one recovered unicast locator on port 7410, got %v", out.MetatrafficUnicast)
	}
}

func TestReaderDataRoundTrip(t *testing.T) {
	g := guid.New(testPrefix(10), guid.NewEntityId([3]byte{1, 0, 0}, guid.KindReaderWithKey))
	in := DiscoveredReaderData{
		GUID: g, Topic: "weather", TypeName: "WeatherSample",
		Policies: qos.Policies{Reliability: qos.Reliability{Kind: qos.Reliable}, Durability: qos.TransientLocal},
	}
	raw := EncodeReaderData(wire.LittleEndian, in)
	out, err := DecodeReaderData(wire.LittleEndian, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.GUID.Equal(in.GUID) {
		t.Fatalf("guid mismatch: got %v want %v", out.GUID, in.GUID)
	}
	if out.Topic != in.Topic || out.TypeName != in.TypeName {
		t.Fatalf("topic/type mismatch: got (%s,%s)", out.Topic, out.TypeName)
	}
	if out.Policies.Reliability.Kind != qos.Reliable || out.Policies.Durability != qos.TransientLocal {
		t.Fatalf("qos mismatch: got %+v", out.Policies)
	}
}

func TestTopicDataRoundTrip(t *testing.T) {
	in := DiscoveredTopicData{Name: "weather", TypeName: "WeatherSample"}
	raw := EncodeTopicData(wire.LittleEndian, in)
	out, err := DecodeTopicData(wire.LittleEndian, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to be exact, got %+v want %+v", out, in)
	}
}
