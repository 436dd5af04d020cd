package submsg

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
)

func TestDataRoundTrip(t *testing.T) {
	for _, e := range []wire.Endianness{wire.BigEndian, wire.LittleEndian} {
		d := Data{
			ReaderID: guid.EntityIdUnknown,
			WriterID: guid.EntityId{1, 2, 3, byte(guid.KindWriterWithKey)},
			WriterSN: 42,
			Payload:  []byte("hello sample"),
		}
		var dst []byte
		dst = d.Encode(e, dst)
		subs, err := wire.Submessages(dst)
		if err != nil || len(subs) != 1 {
			t.Fatalf("framing error: %v", err)
		}
		got, err := DecodeData(subs[0])
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if got.WriterSN != 42 || string(got.Payload) != "hello sample" {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if got.IsKey {
			t.Fatalf("expected IsKey=false")
		}
	}
}

func TestDataDisposeRoundTrip(t *testing.T) {
	d := Data{
		WriterID: guid.EntityId{1, 2, 3, byte(guid.KindWriterWithKey)},
		WriterSN: 7,
		Payload:  []byte("serialized-key"),
		IsKey:    true,
	}
	var dst []byte
	dst = d.Encode(wire.LittleEndian, dst)
	subs, _ := wire.Submessages(dst)
	got, err := DecodeData(subs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsKey {
		t.Fatalf("expected IsKey=true for dispose")
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	h := Heartbeat{
		WriterID: guid.EntityId{9, 9, 9, byte(guid.KindWriterWithKey)},
		First:    1,
		Last:     10,
		Count:    3,
		Final:    false,
	}
	var dst []byte
	dst = h.Encode(wire.BigEndian, dst)
	subs, _ := wire.Submessages(dst)
	got, err := DecodeHeartbeat(subs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.First != 1 || got.Last != 10 || got.Count != 3 || got.Final {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestSequenceNumberSetRoundTripAndBitmap(t *testing.T) {
	missing := []ddstime.SequenceNumber{3, 7, 8, 200}
	set := NewSequenceNumberSet(1, missing)
	for _, m := range missing {
		if !set.Contains(m) {
			t.Fatalf("expected set to contain %d", m)
		}
	}
	if set.Contains(4) {
		t.Fatalf("set should not contain 4")
	}
	members := set.Members()
	if len(members) != len(missing) {
		t.Fatalf("expected %d members, got %d", len(missing), len(members))
	}
}

func TestAckNackRoundTrip(t *testing.T) {
	set := NewSequenceNumberSet(11, []ddstime.SequenceNumber{12, 15})
	a := AckNack{
		ReaderID:      guid.EntityId{1, 1, 1, byte(guid.KindReaderWithKey)},
		WriterID:      guid.EntityId{2, 2, 2, byte(guid.KindWriterWithKey)},
		ReaderSNState: set,
		Count:         5,
	}
	var dst []byte
	dst = a.Encode(wire.LittleEndian, dst)
	subs, _ := wire.Submessages(dst)
	got, err := DecodeAckNack(subs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 5 || !got.ReaderSNState.Contains(12) || !got.ReaderSNState.Contains(15) {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestGapRoundTrip(t *testing.T) {
	g := Gap{
		WriterID: guid.EntityId{3, 3, 3, byte(guid.KindWriterWithKey)},
		GapStart: 5,
		GapList:  NewSequenceNumberSet(5, []ddstime.SequenceNumber{5, 6}),
	}
	var dst []byte
	dst = g.Encode(wire.BigEndian, dst)
	subs, _ := wire.Submessages(dst)
	got, err := DecodeGap(subs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GapStart != 5 || !got.GapList.Contains(6) {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestInfoTSRoundTrip(t *testing.T) {
	ts := ddstime.T{Seconds: 1234, Fraction: 5678}
	i := InfoTS{Timestamp: ts}
	var dst []byte
	dst = i.Encode(wire.LittleEndian, dst)
	subs, _ := wire.Submessages(dst)
	got, err := DecodeInfoTS(subs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Timestamp != ts {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestMixedEndiannessWithinOneMessage(t *testing.T) {
	// spec.md: endianness is per-submessage, never cached at message level.
	var dst []byte
	h := Heartbeat{WriterID: guid.EntityId{1, 0, 0, byte(guid.KindWriterWithKey)}, First: 1, Last: 2, Count: 1}
	dst = h.Encode(wire.BigEndian, dst)
	a := AckNack{WriterID: guid.EntityId{1, 0, 0, byte(guid.KindWriterWithKey)}, ReaderSNState: NewSequenceNumberSet(1, nil), Count: 1}
	dst = a.Encode(wire.LittleEndian, dst)

	subs, err := wire.Submessages(dst)
	if err != nil || len(subs) != 2 {
		t.Fatalf("framing: %v %d", err, len(subs))
	}
	if subs[0].Endian != wire.BigEndian || subs[1].Endian != wire.LittleEndian {
		t.Fatalf("endianness not preserved per-submessage")
	}
}
