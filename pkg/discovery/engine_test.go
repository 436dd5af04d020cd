package discovery

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// fakeSender discards every send: these tests exercise the fanout-driven
// wiring between an Engine's own built-in endpoints and its Discovery DB,
// not the UDP transport (pkg/transport).
type fakeSender struct{}

func (fakeSender) Send(locators []wire.Locator, body []byte) error { return nil }

func newTestEngine(t *testing.T, prefix guid.Prefix) *Engine {
	t.Helper()
	tc := topiccache.New()
	fanout := localfanout.New()
	db := NewDB()
	self := ParticipantData{Prefix: prefix, LeaseDuration: ddstime.T{Seconds: 10}}
	return New(self, fakeSender{}, tc, fanout, db)
}

func TestAddLocalWriterCommandRegistersInDB(t *testing.T) {
	e := newTestEngine(t, testPrefix(20))
	g := guid.New(testPrefix(20), guid.NewEntityId([3]byte{1, 0, 0}, guid.KindWriterWithKey))
	data := DiscoveredWriterData{GUID: g, Topic: "weather", TypeName: "WeatherSample"}

	if !e.handleCommand(Command{Kind: CommandAddLocalWriter, Writer: data}) {
		t.Fatalf("expected handleCommand to report keepRunning=true")
	}
	found := false
	for _, w := range e.db.LocalWriters() {
		if w.GUID.Equal(g) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the local writer to be registered in the Discovery DB")
	}
}

func TestStopDiscoveryCommandStopsTheLoop(t *testing.T) {
	e := newTestEngine(t, testPrefix(21))
	if e.handleCommand(Command{Kind: CommandStopDiscovery}) {
		t.Fatalf("expected StopDiscovery to report keepRunning=false")
	}
}

// TestSPDPAnnounceDeliversThroughFanoutIntoDB exercises the wiring an
// Engine sets up at construction: a Writer deposits directly into the
// Shared Topic Cache and local fanout (spec.md §4.4), so an engine's own
// participantSub — subscribed to the same topic on the same Router — folds
// its own announce straight back into the Discovery DB with no network.
func TestSPDPAnnounceDeliversThroughFanoutIntoDB(t *testing.T) {
	e := newTestEngine(t, testPrefix(22))

	e.announceSPDP()

	if !e.db.HasParticipant(testPrefix(22)) {
		t.Fatalf("expected announcing SPDP to deliver the self record back into the Discovery DB via fanout")
	}
}
