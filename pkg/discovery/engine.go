package discovery

import (
	"context"
	"time"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// Built-in topic names, per spec.md §4.7.
const (
	TopicParticipant        = "DCPSParticipant"
	TopicPublication        = "DCPSPublication"
	TopicSubscription       = "DCPSSubscription"
	TopicTopic              = "DCPSTopic"
	TopicParticipantMessage = "DCPSParticipantMessage"
)

// Timer periods, per spec.md §4.7, confirmed against original_source/'s
// discovery.rs constants.
const (
	SPDPAnnouncePeriod       = 2 * time.Second
	SPDPLeaseMultiple        = 5
	SEDPAnnouncePeriod       = 2 * time.Second
	TopicAnnouncePeriod      = 20 * time.Second
	ParticipantCleanupPeriod = 2 * time.Second
	TopicCleanupPeriod       = 10 * time.Second
	LivelinessPeriod         = 1 * time.Second
)

// Engine is the Discovery Engine (C8): the built-in SPDP/SEDP reader/writer
// pairs, their announce/cleanup/liveliness timers, and the rediscovery
// prober. It runs on its own goroutine (the "discovery thread" of spec.md
// §5) and talks to the participant event loop solely through Commands and
// Events.
type Engine struct {
	db         *DB
	topicCache *topiccache.Cache
	fanout     *localfanout.Router
	self       ParticipantData

	spdpWriter  *rtps.Writer
	spdpReader  *rtps.Reader
	pubWriter   *rtps.Writer
	pubReader   *rtps.Reader
	subWriter   *rtps.Writer
	subReader   *rtps.Reader
	topicWriter *rtps.Writer
	topicReader *rtps.Reader
	msgWriter   *rtps.Writer
	msgReader   *rtps.Reader

	commands chan Command
	events   chan Event

	lastLiveliness time.Time
}

// New builds an Engine with its built-in endpoints constructed on the fixed
// entity ids of spec.md §6 and subscribed to their own builtin topics in
// the Shared Topic Cache.
func New(self ParticipantData, sender rtps.Sender, tc *topiccache.Cache, fanout *localfanout.Router, db *DB) *Engine {
	prefix := self.Prefix
	bestEffort := qos.Policies{Reliability: qos.Reliability{Kind: qos.BestEffort}}
	reliable := qos.Policies{Reliability: qos.Reliability{Kind: qos.Reliable}, History: qos.History{Kind: qos.KeepAll}}

	tc.AddTopic(TopicParticipant, topiccache.NoKey, "SPDPDiscoveredParticipantData", 0)
	tc.AddTopic(TopicPublication, topiccache.WithKey, "DiscoveredWriterData", 0)
	tc.AddTopic(TopicSubscription, topiccache.WithKey, "DiscoveredReaderData", 0)
	tc.AddTopic(TopicTopic, topiccache.WithKey, "DiscoveredTopicData", 0)
	tc.AddTopic(TopicParticipantMessage, topiccache.NoKey, "ParticipantMessageData", 0)

	e := &Engine{
		db: db, topicCache: tc, fanout: fanout, self: self,
		commands: make(chan Command, 32),
		events:   make(chan Event, 64),

		spdpWriter: rtps.NewWriter(guid.New(prefix, guid.EntityIdSPDPWriter), TopicParticipant, bestEffort, sender, tc, fanout),
		spdpReader: rtps.NewReader(guid.New(prefix, guid.EntityIdSPDPReader), TopicParticipant, qos.BestEffort, sender, tc, fanout),
		pubWriter:  rtps.NewWriter(guid.New(prefix, guid.EntityIdSEDPPubWriter), TopicPublication, reliable, sender, tc, fanout),
		pubReader:  rtps.NewReader(guid.New(prefix, guid.EntityIdSEDPPubReader), TopicPublication, qos.Reliable, sender, tc, fanout),
		subWriter:  rtps.NewWriter(guid.New(prefix, guid.EntityIdSEDPSubWriter), TopicSubscription, reliable, sender, tc, fanout),
		subReader:  rtps.NewReader(guid.New(prefix, guid.EntityIdSEDPSubReader), TopicSubscription, qos.Reliable, sender, tc, fanout),
		topicWriter: rtps.NewWriter(guid.New(prefix, guid.EntityIdSEDPTopicWriter), TopicTopic, reliable, sender, tc, fanout),
		topicReader: rtps.NewReader(guid.New(prefix, guid.EntityIdSEDPTopicReader), TopicTopic, qos.Reliable, sender, tc, fanout),
		msgWriter:  rtps.NewWriter(guid.New(prefix, guid.EntityIdParticipantMsgW), TopicParticipantMessage, reliable, sender, tc, fanout),
		msgReader:  rtps.NewReader(guid.New(prefix, guid.EntityIdParticipantMsgR), TopicParticipantMessage, qos.Reliable, sender, tc, fanout),
	}

	fanout.Subscribe(TopicParticipant, &participantSub{e: e})
	fanout.Subscribe(TopicPublication, &publicationSub{e: e})
	fanout.Subscribe(TopicSubscription, &subscriptionSub{e: e})
	fanout.Subscribe(TopicTopic, &topicSub{e: e})
	return e
}

// ReaderByEntityID returns the built-in reader owning entity, for the
// participant event loop to route an inbound DATA/GAP/HEARTBEAT to, per
// spec.md §4.8 ("dispatches ... to C5 or C4 keyed by entity id").
func (e *Engine) ReaderByEntityID(id guid.EntityId) *rtps.Reader {
	switch id {
	case guid.EntityIdSPDPReader:
		return e.spdpReader
	case guid.EntityIdSEDPPubReader:
		return e.pubReader
	case guid.EntityIdSEDPSubReader:
		return e.subReader
	case guid.EntityIdSEDPTopicReader:
		return e.topicReader
	case guid.EntityIdParticipantMsgR:
		return e.msgReader
	default:
		return nil
	}
}

// WriterByEntityID is ReaderByEntityID's counterpart, for routing an
// inbound ACKNACK to the built-in writer it acknowledges.
func (e *Engine) WriterByEntityID(id guid.EntityId) *rtps.Writer {
	switch id {
	case guid.EntityIdSPDPWriter:
		return e.spdpWriter
	case guid.EntityIdSEDPPubWriter:
		return e.pubWriter
	case guid.EntityIdSEDPSubWriter:
		return e.subWriter
	case guid.EntityIdSEDPTopicWriter:
		return e.topicWriter
	case guid.EntityIdParticipantMsgW:
		return e.msgWriter
	default:
		return nil
	}
}

// Writers lists every built-in writer, satisfying eventloop.HeartbeatSource
// so the participant event loop can tick their heartbeat timers without its
// own registry of discovery's fixed entity ids.
func (e *Engine) Writers() []*rtps.Writer {
	return []*rtps.Writer{e.spdpWriter, e.pubWriter, e.subWriter, e.topicWriter, e.msgWriter}
}

// Commands returns the channel the event loop sends Commands on.
func (e *Engine) Commands() chan<- Command { return e.commands }

// Events returns the channel the event loop reads Events from.
func (e *Engine) Events() <-chan Event { return e.events }

// notify delivers ev without blocking the discovery loop indefinitely: a
// full events channel means the event loop has fallen behind, and dropping
// a stale match notification is preferable to stalling discovery, per
// spec.md §5's "bounded channels, TrySend" rule.
func (e *Engine) notify(ev Event) {
	select {
	case e.events <- ev:
	case <-time.After(50 * time.Millisecond):
		log.W.Ln("discovery: event channel full, dropping notification")
	}
}

// Run is the discovery thread's main loop. It exits when ctx is cancelled
// or a StopDiscovery command is received, issuing dispose submessages for
// every local endpoint and the local participant record first.
func (e *Engine) Run(ctx context.Context) {
	spdpTicker := time.NewTicker(SPDPAnnouncePeriod)
	sedpTicker := time.NewTicker(SEDPAnnouncePeriod)
	topicTicker := time.NewTicker(TopicAnnouncePeriod)
	cleanupTicker := time.NewTicker(ParticipantCleanupPeriod)
	topicCleanupTicker := time.NewTicker(TopicCleanupPeriod)
	livelinessTicker := time.NewTicker(LivelinessPeriod)
	defer spdpTicker.Stop()
	defer sedpTicker.Stop()
	defer topicTicker.Stop()
	defer cleanupTicker.Stop()
	defer topicCleanupTicker.Stop()
	defer livelinessTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case cmd := <-e.commands:
			if !e.handleCommand(cmd) {
				e.shutdown()
				return
			}
		case <-spdpTicker.C:
			e.announceSPDP()
		case <-sedpTicker.C:
			e.announceSEDP()
		case <-topicTicker.C:
			e.announceTopics()
		case <-cleanupTicker.C:
			e.participantCleanupTick()
		case <-topicCleanupTicker.C:
			e.db.TopicCleanup()
		case <-livelinessTicker.C:
			e.livelinessTick()
		}
	}
}

func (e *Engine) handleCommand(cmd Command) (keepRunning bool) {
	switch cmd.Kind {
	case CommandAddLocalWriter:
		e.db.AddLocalWriter(cmd.Writer)
		e.announceWriter(cmd.Writer)
	case CommandAddLocalReader:
		e.db.AddLocalReader(cmd.Reader)
		e.announceReader(cmd.Reader)
	case CommandRemoveLocalWriter:
		e.db.RemoveLocalWriter(cmd.GUID)
		e.pubWriter.Dispose(cmd.GUID.Bytes(), ddstime.Now())
	case CommandRemoveLocalReader:
		e.db.RemoveLocalReader(cmd.GUID)
		e.subWriter.Dispose(cmd.GUID.Bytes(), ddstime.Now())
	case CommandStopDiscovery:
		return false
	}
	return true
}

func (e *Engine) announceSPDP() {
	e.self.LeaseDuration = ddstime.T{Seconds: uint32(SPDPAnnouncePeriod.Seconds() * SPDPLeaseMultiple)}
	payload := EncodeParticipantData(wire.LittleEndian, e.self)
	if err := e.spdpWriter.Write(payload, ddstime.Now()); err != nil {
		log.E.F("discovery: spdp announce failed: %v", err)
	}
}

func (e *Engine) announceSEDP() {
	for _, w := range e.db.LocalWriters() {
		e.announceWriter(w)
	}
	for _, r := range e.db.LocalReaders() {
		e.announceReader(r)
	}
}

func (e *Engine) announceWriter(d DiscoveredWriterData) {
	if err := e.pubWriter.Write(EncodeWriterData(wire.LittleEndian, d), ddstime.Now()); err != nil {
		log.E.F("discovery: publication announce failed: %v", err)
	}
}

func (e *Engine) announceReader(d DiscoveredReaderData) {
	if err := e.subWriter.Write(EncodeReaderData(wire.LittleEndian, d), ddstime.Now()); err != nil {
		log.E.F("discovery: subscription announce failed: %v", err)
	}
}

func (e *Engine) announceTopics() {
	for _, d := range e.db.LocalWriters() {
		e.topicWriter.Write(EncodeTopicData(wire.LittleEndian, DiscoveredTopicData{Name: d.Topic, TypeName: d.TypeName}), ddstime.Now())
	}
}

func (e *Engine) participantCleanupTick() {
	evicted := e.db.ParticipantCleanup(ddstime.Now())
	for _, prefix := range evicted {
		log.I.F("discovery: participant %s lease expired", prefix)
		e.db.RemoveRemoteEndpointsOf(prefix)
		e.notify(Event{Kind: EventParticipantLost, LostParticipant: prefix})
	}
}

func (e *Engine) livelinessTick() {
	lease := time.Duration(e.self.LeaseDuration.Seconds) * time.Second
	if lease == 0 {
		return
	}
	if time.Since(e.lastLiveliness) < lease/3 {
		return
	}
	e.lastLiveliness = time.Now()
	if err := e.msgWriter.Write(e.self.Prefix[:], ddstime.Now()); err != nil {
		log.E.F("discovery: liveliness assertion failed: %v", err)
	}
}

// shutdown disposes every local endpoint and the local participant record,
// per spec.md §4.7's StopDiscovery handling.
func (e *Engine) shutdown() {
	now := ddstime.Now()
	for _, w := range e.db.LocalWriters() {
		e.pubWriter.Dispose(w.GUID.Bytes(), now)
	}
	for _, r := range e.db.LocalReaders() {
		e.subWriter.Dispose(r.GUID.Bytes(), now)
	}
	e.spdpWriter.Dispose(e.self.Prefix[:], now)
}

// probeRediscovery is adapted from the teacher's pkg/spider periodic-scan
// idiom: instead of pulling historical events from a newly-discovered
// relay, it pushes this participant's current SEDP adverts immediately so
// a newly-discovered peer need not wait for the next announce tick.
func (e *Engine) probeRediscovery(prefix guid.Prefix) {
	log.D.F("discovery: probing rediscovery for new participant %s", prefix)
	e.announceSEDP()
}
