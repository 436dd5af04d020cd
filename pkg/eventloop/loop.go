// Package eventloop implements the Participant Event Loop (C9): the
// dispatcher that routes inbound UDP datagrams to the reader/writer they
// address and drives every writer's heartbeat timer.
package eventloop

import (
	"context"
	"net"
	"sync"
	"time"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/transport"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/submsg"
)

// DefaultHeartbeatTick is how often the loop checks every known writer's
// heartbeat deadline, per spec.md §5's "per-writer heartbeat timers".
const DefaultHeartbeatTick = 200 * time.Millisecond

// Directory looks up the local endpoint a submessage addresses, by the
// fixed entity id carried in the submessage. The Discovery Engine (C8) and
// the public API's endpoint registry in pkg/dds both satisfy this.
type Directory interface {
	ReaderByEntityID(id guid.EntityId) *rtps.Reader
	WriterByEntityID(id guid.EntityId) *rtps.Writer
}

// HeartbeatSource enumerates the writers a Directory currently owns, so the
// loop's heartbeat tick can drive them without needing its own registry.
type HeartbeatSource interface {
	Writers() []*rtps.Writer
}

// Loop is the single cooperative dispatcher owning every UDP socket a
// participant binds. One goroutine per socket blocks in Socket.Listen;
// dispatch and the heartbeat tick are the only paths that touch reader/
// writer state, and both rely on the Reader/Writer/DB's own internal
// locking rather than a loop-wide lock, the one deliberate relaxation of
// spec.md §5's literal single-thread design to Go's goroutine-per-listener
// idiom (see DESIGN.md).
type Loop struct {
	sockets   []*transport.Socket
	dirs      []Directory
	hbSources []HeartbeatSource

	heartbeatTick time.Duration
}

// New builds a Loop over the given sockets. Directories and heartbeat
// sources are registered afterward via AddDirectory/AddHeartbeatSource, since
// the Discovery Engine and user endpoints are constructed after the sockets
// that feed them.
func New(heartbeatTick time.Duration, sockets ...*transport.Socket) *Loop {
	if heartbeatTick <= 0 {
		heartbeatTick = DefaultHeartbeatTick
	}
	return &Loop{sockets: sockets, heartbeatTick: heartbeatTick}
}

func (l *Loop) AddDirectory(d Directory) { l.dirs = append(l.dirs, d) }

func (l *Loop) AddHeartbeatSource(s HeartbeatSource) { l.hbSources = append(l.hbSources, s) }

// Run blocks until ctx is cancelled, fanning every socket's datagrams into
// dispatch and ticking every registered writer's heartbeat timer.
func (l *Loop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sock := range l.sockets {
		wg.Add(1)
		go func(s *transport.Socket) {
			defer wg.Done()
			s.Listen(ctx, l.dispatch)
		}(sock)
	}

	ticker := time.NewTicker(l.heartbeatTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case now := <-ticker.C:
			l.tickHeartbeats(now)
		}
	}
}

func (l *Loop) tickHeartbeats(now time.Time) {
	for _, src := range l.hbSources {
		for _, w := range src.Writers() {
			w.HandleHeartbeatTimer(now)
		}
	}
}

func (l *Loop) readerFor(id guid.EntityId) *rtps.Reader {
	for _, d := range l.dirs {
		if r := d.ReaderByEntityID(id); r != nil {
			return r
		}
	}
	return nil
}

func (l *Loop) writerFor(id guid.EntityId) *rtps.Writer {
	for _, d := range l.dirs {
		if w := d.WriterByEntityID(id); w != nil {
			return w
		}
	}
	return nil
}

// dispatch decodes each submessage in turn and routes it to the reader or
// writer it addresses, keyed by entity id, per spec.md §5's "parses via C1,
// dispatches DATA/HEARTBEAT/ACKNACK/GAP to C5 or C4 keyed by entity id".
func (l *Loop) dispatch(hdr wire.Header, subs []wire.RawSubmessage, remote *net.UDPAddr) {
	now := ddstime.Now()
	for _, raw := range subs {
		switch raw.Kind {
		case wire.KindData:
			l.dispatchData(hdr, raw, now)
		case wire.KindHeartbeat:
			l.dispatchHeartbeat(hdr, raw)
		case wire.KindAckNack:
			l.dispatchAckNack(hdr, raw)
		case wire.KindGap:
			l.dispatchGap(hdr, raw)
		default:
			// INFO_* and Pad carry no endpoint state this implementation
			// tracks; spec.md §4.1 treats them as transparent framing.
		}
	}
}

func (l *Loop) dispatchData(hdr wire.Header, raw wire.RawSubmessage, receiveTS ddstime.T) {
	d, err := submsg.DecodeData(raw)
	if err != nil {
		log.D.F("eventloop: malformed DATA from %s: %v", hdr.GuidPrefix, err)
		return
	}
	r := l.readerFor(d.ReaderID)
	if r == nil {
		return
	}
	r.ReceiveData(guid.New(hdr.GuidPrefix, d.WriterID), d, receiveTS)
}

func (l *Loop) dispatchHeartbeat(hdr wire.Header, raw wire.RawSubmessage) {
	h, err := submsg.DecodeHeartbeat(raw)
	if err != nil {
		log.D.F("eventloop: malformed HEARTBEAT from %s: %v", hdr.GuidPrefix, err)
		return
	}
	r := l.readerFor(h.ReaderID)
	if r == nil {
		return
	}
	r.ReceiveHeartbeat(guid.New(hdr.GuidPrefix, h.WriterID), h)
}

func (l *Loop) dispatchAckNack(hdr wire.Header, raw wire.RawSubmessage) {
	a, err := submsg.DecodeAckNack(raw)
	if err != nil {
		log.D.F("eventloop: malformed ACKNACK from %s: %v", hdr.GuidPrefix, err)
		return
	}
	w := l.writerFor(a.WriterID)
	if w == nil {
		return
	}
	w.HandleAckNack(guid.New(hdr.GuidPrefix, a.ReaderID), a.ReaderSNState.Base, a.ReaderSNState.Members(), a.Count)
}

func (l *Loop) dispatchGap(hdr wire.Header, raw wire.RawSubmessage) {
	g, err := submsg.DecodeGap(raw)
	if err != nil {
		log.D.F("eventloop: malformed GAP from %s: %v", hdr.GuidPrefix, err)
		return
	}
	r := l.readerFor(g.ReaderID)
	if r == nil {
		return
	}
	r.ReceiveGap(guid.New(hdr.GuidPrefix, g.WriterID), g)
}
