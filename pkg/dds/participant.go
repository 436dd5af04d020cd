package dds

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/discovery"
	"github.com/opendds-go/ddscore/pkg/eventloop"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/transport"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// localWriterEntry pairs one user DataWriter's *rtps.Writer with the SEDP
// data it was announced under, so the event-consumption loop can decide
// which remote readers match it without re-deriving DiscoveredWriterData.
type localWriterEntry struct {
	writer *rtps.Writer
	data   discovery.DiscoveredWriterData
}

type localReaderEntry struct {
	reader *rtps.Reader
	data   discovery.DiscoveredReaderData
	sink   noWriterSink // set by NewDataReader once its Sample Cache exists
}

// noWriterSink lets a generic DataReader[T] receive the NotAliveNoWriters
// transition without the participant needing to know T.
type noWriterSink interface {
	MarkNoWriters()
}

// DomainParticipant is the application's entry point into one DDS domain
// (spec.md §3/§6): it owns the participant's sockets, the Discovery DB and
// Engine, and the Participant Event Loop, and mints Topics/Publishers/
// Subscribers/DataWriters/DataReaders scoped to itself. Per spec.md §9's
// "no cyclic ownership" design note, the participant is the sole owner of
// every endpoint it creates; DataWriter/DataReader handles returned to the
// application are non-owning, and they do not check whether Close has run.
type DomainParticipant struct {
	DomainID      uint32
	ParticipantID uint32
	Prefix        guid.Prefix

	tc     *topiccache.Cache
	fanout *localfanout.Router
	db     *discovery.DB
	engine *discovery.Engine
	loop   *eventloop.Loop
	users  *userDirectory

	spdpSock *transport.Socket
	sedpSock *transport.Socket
	userSock *transport.Socket

	mu       sync.Mutex
	topics   map[string]*Topic
	writers  map[string]*localWriterEntry // keyed by guid.G.String()
	readers  map[string]*localReaderEntry
	closed   bool
	nextKey  uint32

	cancel context.CancelFunc
}

// NewDomainParticipant joins domainID as participantID: it binds the SPDP
// multicast, SEDP unicast and user-data unicast sockets, starts the
// Discovery Engine and Participant Event Loop, and begins consuming match
// events in the background.
func NewDomainParticipant(domainID, participantID uint32) (*DomainParticipant, error) {
	prefix := guid.NewPrefix()
	ports := transport.ComputePorts(domainID, participantID)

	spdpSock, err := transport.NewMulticastSocket(prefix, net.ParseIP(transport.DefaultSPDPMulticastGroup), ports.SPDPMulticast)
	if err != nil {
		return nil, fmt.Errorf("dds: spdp socket: %w", err)
	}
	sedpSock, err := transport.NewUnicastSocket(prefix, ports.SPDPUnicast)
	if err != nil {
		return nil, fmt.Errorf("dds: sedp socket: %w", err)
	}
	userSock, err := transport.NewUnicastSocket(prefix, ports.UserUnicast)
	if err != nil {
		return nil, fmt.Errorf("dds: user socket: %w", err)
	}

	tc := topiccache.New()
	fanout := localfanout.New()
	db := discovery.NewDB()

	self := discovery.ParticipantData{
		Prefix:             prefix,
		MetatrafficUnicast: []wire.Locator{sedpSock.Locator()},
		DefaultUnicast:     []wire.Locator{userSock.Locator()},
	}
	// The discovery unicast socket doubles as sender for every built-in
	// endpoint, same as cmd/participant: any bound UDP socket can send to
	// any destination regardless of which port it listens on.
	engine := discovery.New(self, sedpSock, tc, fanout, db)
	users := newUserDirectory()

	loop := eventloop.New(eventloop.DefaultHeartbeatTick, spdpSock, sedpSock, userSock)
	loop.AddDirectory(engine)
	loop.AddDirectory(users)
	loop.AddHeartbeatSource(engine)
	loop.AddHeartbeatSource(users)

	ctx, cancel := context.WithCancel(context.Background())

	dp := &DomainParticipant{
		DomainID: domainID, ParticipantID: participantID, Prefix: prefix,
		tc: tc, fanout: fanout, db: db, engine: engine, loop: loop, users: users,
		spdpSock: spdpSock, sedpSock: sedpSock, userSock: userSock,
		topics: make(map[string]*Topic),
		writers: make(map[string]*localWriterEntry),
		readers: make(map[string]*localReaderEntry),
		cancel:  cancel,
	}

	go engine.Run(ctx)
	go loop.Run(ctx)
	go dp.consumeEvents(ctx)

	log.I.F("dds: participant %s joined domain %d", prefix, domainID)
	return dp, nil
}

// Close tears the participant down: it stops the event loop and discovery
// engine and closes the participant's sockets. DataWriter/DataReader handles
// minted from it are not invalidated. It does not block for outstanding acknowledgments; call
// DataWriter.WaitForAcknowledgments first if that matters.
func (dp *DomainParticipant) Close() {
	dp.mu.Lock()
	if dp.closed {
		dp.mu.Unlock()
		return
	}
	dp.closed = true
	dp.mu.Unlock()

	dp.cancel()
	dp.spdpSock.Close()
	dp.sedpSock.Close()
	dp.userSock.Close()
}

// nextEntityKey allocates the 3-byte entity key distinguishing this
// participant's user endpoints, per spec.md §4.2's GUID layout (builtin
// endpoints use the fixed keys in pkg/guid; user endpoints get sequential
// keys starting at 1, kept apart from the built-in ids by their entity kind,
// which never carries the built-in flag).
func (dp *DomainParticipant) nextEntityKey() [3]byte {
	n := atomic.AddUint32(&dp.nextKey, 1)
	return [3]byte{byte(n >> 16), byte(n >> 8), byte(n)}
}

// registerWriter allocates a GUID, builds the *rtps.Writer, wires it into
// the user directory and discovery DB, and announces it over SEDP.
func (dp *DomainParticipant) registerWriter(topic *Topic, keyed bool) *rtps.Writer {
	kind := guid.KindWriterNoKey
	if keyed {
		kind = guid.KindWriterWithKey
	}
	id := guid.NewEntityId(dp.nextEntityKey(), kind)
	g := guid.New(dp.Prefix, id)

	w := rtps.NewWriter(g, topic.Name, topic.Policies, dp.userSock, dp.tc, dp.fanout)
	dp.users.addWriter(id, w)

	data := discovery.DiscoveredWriterData{
		GUID: g, Topic: topic.Name, TypeName: topic.TypeName, Policies: topic.Policies,
		Locators: []wire.Locator{dp.userSock.Locator()},
	}
	dp.db.AddLocalWriter(data)

	dp.mu.Lock()
	dp.writers[g.String()] = &localWriterEntry{writer: w, data: data}
	dp.mu.Unlock()

	dp.engine.Commands() <- discovery.Command{Kind: discovery.CommandAddLocalWriter, Writer: data, GUID: g}
	return w
}

func (dp *DomainParticipant) registerReader(topic *Topic, keyed bool, reliability qos.ReliabilityKind) *rtps.Reader {
	kind := guid.KindReaderNoKey
	if keyed {
		kind = guid.KindReaderWithKey
	}
	id := guid.NewEntityId(dp.nextEntityKey(), kind)
	g := guid.New(dp.Prefix, id)

	r := rtps.NewReader(g, topic.Name, reliability, dp.userSock, dp.tc, dp.fanout)
	dp.users.addReader(id, r)

	data := discovery.DiscoveredReaderData{
		GUID: g, Topic: topic.Name, TypeName: topic.TypeName, Policies: topic.Policies,
		Locators: []wire.Locator{dp.userSock.Locator()},
	}
	dp.db.AddLocalReader(data)

	dp.mu.Lock()
	dp.readers[g.String()] = &localReaderEntry{reader: r, data: data}
	dp.mu.Unlock()

	dp.engine.Commands() <- discovery.Command{Kind: discovery.CommandAddLocalReader, Reader: data, GUID: g}
	return r
}

func (dp *DomainParticipant) unregisterWriter(g guid.G) {
	dp.mu.Lock()
	delete(dp.writers, g.String())
	dp.mu.Unlock()
	dp.users.removeWriter(g.Entity)
	dp.db.RemoveLocalWriter(g)
	dp.engine.Commands() <- discovery.Command{Kind: discovery.CommandRemoveLocalWriter, GUID: g}
}

func (dp *DomainParticipant) unregisterReader(g guid.G) {
	dp.mu.Lock()
	delete(dp.readers, g.String())
	dp.mu.Unlock()
	dp.users.removeReader(g.Entity)
	dp.db.RemoveLocalReader(g)
	dp.engine.Commands() <- discovery.Command{Kind: discovery.CommandRemoveLocalReader, GUID: g}
}

// consumeEvents installs/removes proxies on local endpoints as the
// Discovery Engine reports matches, unmatches and lost participants. A
// single Event carries one remote endpoint's data and one proxy; since
// discovery has no notion of which local endpoint it is "for" (DB.Update*
// builds proxies unconditionally, see pkg/discovery/db.go), this loop fans
// each Event out to every local endpoint on the matching topic whose QoS is
// compatible with the remote's, per spec.md §4.6.
func (dp *DomainParticipant) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dp.engine.Events():
			if !ok {
				return
			}
			dp.handleEvent(ev)
		}
	}
}

func (dp *DomainParticipant) handleEvent(ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventReaderUpdated:
		dp.mu.Lock()
		entries := make([]*localWriterEntry, 0, len(dp.writers))
		for _, e := range dp.writers {
			entries = append(entries, e)
		}
		dp.mu.Unlock()
		for _, e := range entries {
			if e.data.Topic == ev.Reader.Topic && qos.Compatible(ev.Reader.Policies, e.data.Policies) {
				e.writer.AddReaderProxy(ev.ReaderProxy)
			}
		}

	case discovery.EventWriterUpdated:
		dp.mu.Lock()
		entries := make([]*localReaderEntry, 0, len(dp.readers))
		for _, e := range dp.readers {
			entries = append(entries, e)
		}
		dp.mu.Unlock()
		for _, e := range entries {
			if e.data.Topic == ev.Writer.Topic && qos.Compatible(e.data.Policies, ev.Writer.Policies) {
				e.reader.AddWriterProxy(ev.WriterProxy)
			}
		}

	case discovery.EventParticipantLost:
		dp.handleParticipantLost(ev.LostParticipant)
	}
}

// handleParticipantLost drops every matched proxy belonging to the lost
// participant from this participant's writers and readers. For each reader
// left with no matched writer proxy at all, it calls MarkNoWriters on the
// owning DataReader's Sample Cache; a reader that still has a writer proxy
// from another participant is left as it is. spec.md leaves the exact trigger
// timing for this transition to the implementer (Open Question, see
// DESIGN.md); the invariant this satisfies is that it happens no later than
// the next application read/take.
func (dp *DomainParticipant) handleParticipantLost(prefix guid.Prefix) {
	dp.mu.Lock()
	writers := make([]*localWriterEntry, 0, len(dp.writers))
	for _, e := range dp.writers {
		writers = append(writers, e)
	}
	readers := make([]*localReaderEntry, 0, len(dp.readers))
	for _, e := range dp.readers {
		readers = append(readers, e)
	}
	dp.mu.Unlock()

	for _, e := range writers {
		for _, g := range e.writer.ReaderProxies() {
			if g.Prefix == prefix {
				e.writer.RemoveReaderProxy(g)
			}
		}
	}
	for _, e := range readers {
		removed := false
		for _, g := range e.reader.WriterProxies() {
			if g.Prefix == prefix {
				e.reader.RemoveWriterProxy(g)
				removed = true
			}
		}
		if removed && len(e.reader.WriterProxies()) == 0 && e.sink != nil {
			e.sink.MarkNoWriters()
		}
	}
}

// setReaderSink attaches a DataReader's Sample Cache so it can be driven
// NotAliveNoWriters by handleParticipantLost.
func (dp *DomainParticipant) setReaderSink(g guid.G, sink noWriterSink) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if e, ok := dp.readers[g.String()]; ok {
		e.sink = sink
	}
}
