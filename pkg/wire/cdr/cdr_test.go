package cdr

import (
	"testing"

	"lukechampine.com/frand"

	"github.com/opendds-go/ddscore/pkg/wire"
)

func TestRoundTripPrimitives(t *testing.T) {
	for _, e := range []wire.Endianness{wire.BigEndian, wire.LittleEndian} {
		var dst []byte
		w := NewWriter(e, dst)
		w.Bool(true)
		w.Octet(0xAB)
		w.UInt16(0x1234)
		w.Int32(-12345)
		w.UInt64(0x0102030405060708)
		w.Float64(3.14159)
		w.String("hello, rtps")
		w.OctetSequence([]byte{1, 2, 3, 4, 5})
		w.Option(true, func() { w.UInt32(99) })
		w.Option(false, func() { w.UInt32(1) })

		r := NewReader(e, w.Bytes())
		if b, err := r.Bool(); err != nil || !b {
			t.Fatalf("Bool: %v %v", b, err)
		}
		if o, err := r.Octet(); err != nil || o != 0xAB {
			t.Fatalf("Octet: %v %v", o, err)
		}
		if u, err := r.UInt16(); err != nil || u != 0x1234 {
			t.Fatalf("UInt16: %v %v", u, err)
		}
		if v, err := r.Int32(); err != nil || v != -12345 {
			t.Fatalf("Int32: %v %v", v, err)
		}
		if u, err := r.UInt64(); err != nil || u != 0x0102030405060708 {
			t.Fatalf("UInt64: %v %v", u, err)
		}
		if f, err := r.Float64(); err != nil || f != 3.14159 {
			t.Fatalf("Float64: %v %v", f, err)
		}
		if s, err := r.String(); err != nil || s != "hello, rtps" {
			t.Fatalf("String: %q %v", s, err)
		}
		if b, err := r.OctetSequence(); err != nil || string(b) != "\x01\x02\x03\x04\x05" {
			t.Fatalf("OctetSequence: %v %v", b, err)
		}
		present, err := r.Option(
			func() error {
				v, err := r.UInt32()
				if err != nil {
					return err
				}
				if v != 99 {
					t.Fatalf("option value: %d", v)
				}
				return nil
			},
		)
		if err != nil || !present {
			t.Fatalf("Option present: %v %v", present, err)
		}
		present, err = r.Option(func() error { return nil })
		if err != nil || present {
			t.Fatalf("Option absent: %v %v", present, err)
		}
	}
}

func TestBadBoolean(t *testing.T) {
	var dst []byte
	w := NewWriter(wire.BigEndian, dst)
	w.Octet(7)
	r := NewReader(wire.BigEndian, w.Bytes())
	if _, err := r.Bool(); err != wire.ErrBadBoolean {
		t.Fatalf("expected ErrBadBoolean, got %v", err)
	}
}

func TestTruncated(t *testing.T) {
	r := NewReader(wire.BigEndian, []byte{0x01})
	if _, err := r.UInt32(); err != wire.ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestRandomOctetSequenceRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := frand.Intn(256)
		payload := frand.Bytes(n)
		var dst []byte
		w := NewWriter(wire.LittleEndian, dst)
		w.OctetSequence(payload)
		r := NewReader(wire.LittleEndian, w.Bytes())
		got, err := r.OctetSequence()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != string(payload) {
			t.Fatalf("round trip mismatch at len %d", n)
		}
	}
}
