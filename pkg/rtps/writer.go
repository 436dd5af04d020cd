package rtps

import (
	"sync"
	"time"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/submsg"
)

// Sender abstracts the UDP transport: encode submessages into a message and
// send it to each of the given locators. The event loop (C9) supplies the
// concrete implementation.
type Sender interface {
	Send(locators []wire.Locator, body []byte) error
}

// Change is one entry in a writer's send-side history.
type Change struct {
	SN        ddstime.SequenceNumber
	Key       []byte
	Payload   []byte
	Dispose   bool
	Timestamp ddstime.T
}

// ErrOutOfResources reports that the writer could not make progress within
// its QoS-configured blocking budget.
type ErrOutOfResources struct{ Op string }

func (e *ErrOutOfResources) Error() string { return "rtps: out of resources: " + e.Op }

// Writer is the RTPS reliable/best-effort writer (spec.md §4.4).
type Writer struct {
	mu sync.Mutex

	GUID       guid.G
	Topic      string
	Policies   qos.Policies
	sender     Sender
	topicCache *topiccache.Cache
	fanout     *localfanout.Router

	history []Change
	lastSN  ddstime.SequenceNumber
	firstSN ddstime.SequenceNumber

	readers          map[string]*ReaderProxy
	heartbeatCounter int32
}

func NewWriter(g guid.G, topic string, p qos.Policies, sender Sender, tc *topiccache.Cache, fanout *localfanout.Router) *Writer {
	return &Writer{
		GUID:       g,
		Topic:      topic,
		Policies:   p,
		sender:     sender,
		topicCache: tc,
		fanout:     fanout,
		readers:    make(map[string]*ReaderProxy),
		firstSN:    ddstime.First,
	}
}

func (w *Writer) AddReaderProxy(p *ReaderProxy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readers[p.GUID.String()] = p
}

func (w *Writer) RemoveReaderProxy(g guid.G) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.readers, g.String())
}

// ReaderProxies returns every matched reader's GUID, for callers that need
// to find proxies belonging to a participant that has since been declared
// lost (see pkg/dds).
func (w *Writer) ReaderProxies() []guid.G {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]guid.G, 0, len(w.readers))
	for _, rp := range w.readers {
		out = append(out, rp.GUID)
	}
	return out
}

func (w *Writer) keepCount() int {
	return qos.EffectiveKeepCount(w.Policies.History, w.Policies.ResourceLimits)
}

// write is the shared path for Write and Dispose.
func (w *Writer) write(key, payload []byte, dispose bool, sourceTS ddstime.T) error {
	w.mu.Lock()
	w.lastSN++
	sn := w.lastSN
	ch := Change{SN: sn, Key: key, Payload: payload, Dispose: dispose, Timestamp: ddstime.Now()}
	w.history = append(w.history, ch)
	if over := len(w.history) - w.keepCount(); over > 0 {
		w.history = w.history[over:]
		w.firstSN = w.history[0].SN
	}
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, rp := range w.readers {
		readers = append(readers, rp)
	}
	w.mu.Unlock()

	w.topicCache.AddChange(
		w.Topic, topiccache.Change{
			WriterGUID: w.GUID, SequenceNumber: sn, ReceiveTimestamp: ch.Timestamp,
			SourceTimestamp: sourceTS, Key: key, Payload: payload, Dispose: dispose,
		},
	)
	w.fanout.Deliver(
		w.Topic, topiccache.Change{
			WriterGUID: w.GUID, SequenceNumber: sn, ReceiveTimestamp: ch.Timestamp,
			SourceTimestamp: sourceTS, Key: key, Payload: payload, Dispose: dispose,
		},
	)

	data := submsg.Data{WriterID: w.GUID.Entity, WriterSN: sn, Payload: payload, IsKey: dispose}
	var body []byte
	body = data.Encode(wire.LittleEndian, body)

	for _, rp := range readers {
		rp.MarkUnacked(sn)
		if err := w.sender.Send(rp.Locators, body); err != nil {
			log.E.F("rtps writer: send to %s failed: %v", rp.GUID, err)
			continue
		}
		if rp.Reliability == qos.Reliable {
			w.emitHeartbeat(rp)
		}
	}
	return nil
}

// Write serializes and publishes a data sample, per spec.md §4.4.
func (w *Writer) Write(payload []byte, sourceTS ddstime.T) error {
	return w.write(nil, payload, false, sourceTS)
}

// WriteKeyed is Write for a keyed topic: key is recorded on this writer's
// local Shared Topic Cache entry (for any collocated local readers) but is
// never placed on the wire separately from payload, since the wire codec
// never parses a user type. A remote reader recovers the key by running the
// same key projection over the decoded payload (see pkg/dds).
func (w *Writer) WriteKeyed(key, payload []byte, sourceTS ddstime.T) error {
	return w.write(key, payload, false, sourceTS)
}

// Dispose publishes a key-only change with change-kind NotAliveDisposed.
func (w *Writer) Dispose(key []byte, sourceTS ddstime.T) error {
	return w.write(key, key, true, sourceTS)
}

func (w *Writer) emitHeartbeat(rp *ReaderProxy) {
	w.mu.Lock()
	w.heartbeatCounter++
	hb := submsg.Heartbeat{
		WriterID: w.GUID.Entity, First: w.firstSN, Last: w.lastSN, Count: w.heartbeatCounter,
	}
	w.mu.Unlock()

	var body []byte
	body = hb.Encode(wire.LittleEndian, body)
	if err := w.sender.Send(rp.Locators, body); err != nil {
		log.E.F("rtps writer: heartbeat send to %s failed: %v", rp.GUID, err)
	}
	rp.ScheduleNextHeartbeat(time.Now().Add(defaultHeartbeatPeriod))
}

const defaultHeartbeatPeriod = 1 * time.Second

// HandleAckNack processes an ACKNACK from a matched reader, per spec.md
// §4.4: duplicate counts are dropped, acknowledged SNs are cleared, and
// requested SNs still in history are retransmitted; anything no longer in
// history is reported via GAP.
func (w *Writer) HandleAckNack(readerGUID guid.G, base ddstime.SequenceNumber, requested []ddstime.SequenceNumber, count int32) {
	w.mu.Lock()
	rp, ok := w.readers[readerGUID.String()]
	w.mu.Unlock()
	if !ok {
		return
	}
	if !rp.AcceptAckNack(count) {
		return
	}
	rp.AckThrough(base)

	w.mu.Lock()
	byKey := make(map[ddstime.SequenceNumber]Change, len(w.history))
	for _, ch := range w.history {
		byKey[ch.SN] = ch
	}
	firstSN := w.firstSN
	w.mu.Unlock()

	var lost []ddstime.SequenceNumber
	for _, sn := range requested {
		ch, present := byKey[sn]
		if !present {
			if sn >= firstSN {
				continue
			}
			lost = append(lost, sn)
			continue
		}
		data := submsg.Data{WriterID: w.GUID.Entity, WriterSN: sn, Payload: ch.Payload, IsKey: ch.Dispose}
		var body []byte
		body = data.Encode(wire.LittleEndian, body)
		if err := w.sender.Send(rp.Locators, body); err != nil {
			log.E.F("rtps writer: retransmit to %s failed: %v", rp.GUID, err)
		}
	}
	if len(lost) > 0 {
		gap := submsg.Gap{
			WriterID: w.GUID.Entity, GapStart: lost[0],
			GapList: submsg.NewSequenceNumberSet(lost[0], lost),
		}
		var body []byte
		body = gap.Encode(wire.LittleEndian, body)
		if err := w.sender.Send(rp.Locators, body); err != nil {
			log.E.F("rtps writer: gap send to %s failed: %v", rp.GUID, err)
		}
	}
}

// HandleHeartbeatTimer emits a HEARTBEAT to every reliable ReaderProxy whose
// deadline has elapsed.
func (w *Writer) HandleHeartbeatTimer(now time.Time) {
	w.mu.Lock()
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, rp := range w.readers {
		if rp.Reliability == qos.Reliable && rp.DueForHeartbeat(now) {
			readers = append(readers, rp)
		}
	}
	w.mu.Unlock()

	for _, rp := range readers {
		w.emitHeartbeat(rp)
	}
}

// WaitForAcknowledgments blocks until every reliable ReaderProxy has an
// empty unacked set, or maxWait elapses, returning false in the latter
// case.
func (w *Writer) WaitForAcknowledgments(maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		if w.allAcked() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (w *Writer) allAcked() bool {
	w.mu.Lock()
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, rp := range w.readers {
		readers = append(readers, rp)
	}
	w.mu.Unlock()
	for _, rp := range readers {
		if rp.Reliability == qos.Reliable && !rp.IsEmpty() {
			return false
		}
	}
	return true
}
