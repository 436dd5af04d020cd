package rtps

import (
	"sync"

	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/wire"
)

func testGUID(seed byte) guid.G {
	return guid.New(guid.Prefix{seed}, guid.EntityId{1, 0, 0, byte(guid.KindWriterWithKey)})
}

// recordingSender is a fake Sender that records every body it was asked to
// send, for assertions in writer/reader tests.
type recordingSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (s *recordingSender) Send(locators []wire.Locator, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), body...)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) submessages() []wire.RawSubmessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wire.RawSubmessage
	for _, b := range s.sent {
		subs, err := wire.Submessages(b)
		if err != nil {
			continue
		}
		out = append(out, subs...)
	}
	return out
}
