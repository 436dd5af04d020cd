package paramlist

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/wire"
)

func TestRoundTripBasic(t *testing.T) {
	for _, e := range []wire.Endianness{wire.BigEndian, wire.LittleEndian} {
		var dst []byte
		w := NewWriter(e, dst)
		w.PutString(PIDTopicName, "MyTopic")
		w.PutString(PIDTypeName, "MyType")
		w.PutUInt32(PIDReliability, 1)
		out := w.Finish()

		entries, err := Parse(e, out)
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		topicVal, ok := Find(entries, PIDTopicName)
		if !ok {
			t.Fatalf("missing PIDTopicName")
		}
		_ = topicVal
	}
}

func TestUnknownParameterIsSkippedByLength(t *testing.T) {
	var dst []byte
	w := NewWriter(wire.BigEndian, dst)
	w.PutUInt32(ParameterID(0x9999), 0xDEADBEEF) // unknown to any reader
	w.PutString(PIDTopicName, "StillReadable")
	out := w.Finish()

	entries, err := Parse(wire.BigEndian, out)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	val, ok := Find(entries, PIDTopicName)
	if !ok {
		t.Fatalf("expected to find topic name parameter past the unknown one")
	}
	_ = val
}

func Test4ByteAlignment(t *testing.T) {
	var dst []byte
	w := NewWriter(wire.BigEndian, dst)
	w.PutBytes(PIDEndpointGUID, []byte{1, 2, 3}) // not a multiple of 4
	out := w.Finish()
	entries, err := Parse(wire.BigEndian, out)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(entries[0].Value) != 4 {
		t.Fatalf("expected padded length of 4, got %d", len(entries[0].Value))
	}
}
