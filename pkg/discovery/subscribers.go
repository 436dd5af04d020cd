package discovery

import (
	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// The four *Sub types adapt the Discovery Engine into a
// localfanout.Subscriber so that a DATA submession the built-in readers
// deliver into the Shared Topic Cache also updates the Discovery
// DB and raises the Event spec.md §4.7 calls for, without the engine
// needing to poll the cache itself.

type participantSub struct{ e *Engine }

func (s *participantSub) Type() string { return "discovery-participant-sub" }

func (s *participantSub) Deliver(c topiccache.Change) {
	data, err := DecodeParticipantData(wire.LittleEndian, c.Payload)
	if err != nil {
		log.E.F("discovery: malformed SPDP payload from %s: %v", c.WriterGUID, err)
		return
	}
	wasNew := s.e.db.UpdateParticipant(data, c.ReceiveTimestamp)
	if wasNew {
		log.I.F("discovery: new participant %s", data.Prefix)
		s.e.probeRediscovery(data.Prefix)
	}
}

type publicationSub struct{ e *Engine }

func (s *publicationSub) Type() string { return "discovery-publication-sub" }

func (s *publicationSub) Deliver(c topiccache.Change) {
	data, err := DecodeWriterData(wire.LittleEndian, c.Payload)
	if err != nil {
		log.E.F("discovery: malformed SEDP publication payload from %s: %v", c.WriterGUID, err)
		return
	}
	proxy, changed := s.e.db.UpdatePublication(data)
	if !changed {
		return
	}
	s.e.notify(Event{Kind: EventWriterUpdated, Writer: data, WriterProxy: proxy})
}

type subscriptionSub struct{ e *Engine }

func (s *subscriptionSub) Type() string { return "discovery-subscription-sub" }

func (s *subscriptionSub) Deliver(c topiccache.Change) {
	data, err := DecodeReaderData(wire.LittleEndian, c.Payload)
	if err != nil {
		log.E.F("discovery: malformed SEDP subscription payload from %s: %v", c.WriterGUID, err)
		return
	}
	proxy, changed := s.e.db.UpdateSubscription(data)
	if !changed {
		return
	}
	s.e.notify(Event{Kind: EventReaderUpdated, Reader: data, ReaderProxy: proxy})
}

type topicSub struct{ e *Engine }

func (s *topicSub) Type() string { return "discovery-topic-sub" }

func (s *topicSub) Deliver(c topiccache.Change) {
	data, err := DecodeTopicData(wire.LittleEndian, c.Payload)
	if err != nil {
		log.E.F("discovery: malformed SEDP topic payload from %s: %v", c.WriterGUID, err)
		return
	}
	s.e.db.UpdateTopicData(data)
}
