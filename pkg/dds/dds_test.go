package dds

import (
	"sync"

	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// sample is the user type exercised by every test in this package: a
// fixed-layout struct with a string key, serialized by hand so tests don't
// need to pull in an encoding library just to round-trip a couple of fields.
type sample struct {
	ID    string
	Value int32
}

type sampleTypeSupport struct{}

// Marshal/Unmarshal use a trivial length-prefixed layout: not a real wire
// format, just enough to exercise TypeSupport's contract in tests.
func (sampleTypeSupport) Marshal(v sample) ([]byte, error) {
	id := []byte(v.ID)
	out := make([]byte, 1+len(id)+4)
	out[0] = byte(len(id))
	copy(out[1:], id)
	n := len(id) + 1
	out[n] = byte(v.Value)
	out[n+1] = byte(v.Value >> 8)
	out[n+2] = byte(v.Value >> 16)
	out[n+3] = byte(v.Value >> 24)
	return out, nil
}

func (sampleTypeSupport) Unmarshal(b []byte) (sample, error) {
	n := int(b[0])
	id := string(b[1 : 1+n])
	off := 1 + n
	value := int32(b[off]) | int32(b[off+1])<<8 | int32(b[off+2])<<16 | int32(b[off+3])<<24
	return sample{ID: id, Value: value}, nil
}

func (sampleTypeSupport) KeyOf(v sample) []byte { return []byte(v.ID) }

func testGUID(seed byte, kind guid.EntityKind) guid.G {
	return guid.New(guid.Prefix{seed}, guid.NewEntityId([3]byte{seed, 0, 0}, kind))
}

// discardSender is a no-op rtps.Sender, for DataWriter/DataReader tests that
// never need a real matched proxy on the wire.
type discardSender struct{}

func (discardSender) Send(locators []wire.Locator, body []byte) error { return nil }

// recordingSender records every encoded body it was asked to send, mirroring
// pkg/rtps's own test helper of the same shape.
type recordingSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (s *recordingSender) Send(locators []wire.Locator, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), body...))
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
