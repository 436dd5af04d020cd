package rtps

import (
	"sync"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/submsg"
)

// Reader is the RTPS reliable/best-effort reader (spec.md §4.5). It ingests
// validated samples into the Shared Topic Cache and, for reliable
// operation, emits ACKNACKs against each matched WriterProxy.
type Reader struct {
	mu sync.Mutex

	GUID        guid.G
	Topic       string
	Reliability qos.ReliabilityKind
	sender      Sender
	topicCache  *topiccache.Cache
	fanout      *localfanout.Router

	writers map[string]*WriterProxy
}

func NewReader(g guid.G, topic string, reliability qos.ReliabilityKind, sender Sender, tc *topiccache.Cache, fanout *localfanout.Router) *Reader {
	return &Reader{
		GUID: g, Topic: topic, Reliability: reliability, sender: sender,
		topicCache: tc, fanout: fanout, writers: make(map[string]*WriterProxy),
	}
}

func (r *Reader) AddWriterProxy(p *WriterProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[p.GUID.String()] = p
}

func (r *Reader) RemoveWriterProxy(g guid.G) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writers, g.String())
}

// WriterProxies returns every matched writer's GUID, for callers that need
// to find proxies belonging to a participant that has since been declared
// lost (see pkg/dds).
func (r *Reader) WriterProxies() []guid.G {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]guid.G, 0, len(r.writers))
	for _, wp := range r.writers {
		out = append(out, wp.GUID)
	}
	return out
}

func (r *Reader) proxyFor(writer guid.G) *WriterProxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writers[writer.String()]
}

// ReceiveData handles an incoming DATA submessage, per spec.md §4.5.
// Best-effort readers skip contiguity bookkeeping entirely and deliver
// immediately.
func (r *Reader) ReceiveData(writer guid.G, d submsg.Data, receiveTS ddstime.T) {
	if r.Reliability == qos.BestEffort {
		r.deliver(writer, d, receiveTS)
		return
	}

	wp := r.proxyFor(writer)
	if wp == nil {
		log.E.F("rtps reader: DATA from unmatched writer %s", writer)
		return
	}
	if !wp.ReceiveData(d.WriterSN) {
		return // duplicate
	}
	r.deliver(writer, d, receiveTS)
}

// deliver hands a decoded sample to the Shared Topic Cache and any local
// subscribers. For a dispose (d.IsKey), Payload is itself the serialized
// key; for an ordinary sample the key is embedded in Payload and is left
// for the application-level type support to extract (see pkg/dds), since
// the wire layer never parses a user type.
func (r *Reader) deliver(writer guid.G, d submsg.Data, receiveTS ddstime.T) {
	var key []byte
	if d.IsKey {
		key = d.Payload
	}
	change := topiccache.Change{
		WriterGUID: writer, SequenceNumber: d.WriterSN, ReceiveTimestamp: receiveTS,
		Key: key, Payload: d.Payload, Dispose: d.IsKey,
	}
	r.topicCache.AddChange(r.Topic, change)
	r.fanout.Deliver(r.Topic, change)
}

// ReceiveGap handles a GAP submessage: the listed sequence numbers are
// irrecoverably lost.
func (r *Reader) ReceiveGap(writer guid.G, g submsg.Gap) {
	wp := r.proxyFor(writer)
	if wp == nil {
		return
	}
	lost := append([]ddstime.SequenceNumber{g.GapStart}, g.GapList.Members()...)
	wp.ReceiveGap(lost)
}

// ReceiveHeartbeat handles a HEARTBEAT submessage and, if one is owed,
// sends an ACKNACK back to the writer.
func (r *Reader) ReceiveHeartbeat(writer guid.G, h submsg.Heartbeat) {
	if r.Reliability == qos.BestEffort {
		return
	}
	wp := r.proxyFor(writer)
	if wp == nil {
		return
	}
	if !wp.ReceiveHeartbeat(h.First, h.Last, h.Count, h.Final) {
		return
	}
	r.sendAckNack(wp)
}

func (r *Reader) sendAckNack(wp *WriterProxy) {
	base, missing, count := wp.AckNackPayload()
	an := submsg.AckNack{
		ReaderID: r.GUID.Entity, WriterID: wp.GUID.Entity,
		ReaderSNState: submsg.NewSequenceNumberSet(base, missing), Count: count,
	}
	var body []byte
	body = an.Encode(wire.LittleEndian, body)
	if err := r.sender.Send(wp.Locators, body); err != nil {
		log.E.F("rtps reader: acknack send to %s failed: %v", wp.GUID, err)
	}
}
