// Package rtps implements the RTPS reliability protocol: the reliable
// Writer (C4) and Reader (C5), and the proxy records each keeps for its
// matched remote endpoints (C6).
package rtps

import (
	"sync"
	"time"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/wire"
)

// ReaderProxy is a writer-side record of one matched remote reader.
type ReaderProxy struct {
	mu sync.Mutex

	GUID        guid.G
	Locators    []wire.Locator
	Reliability qos.ReliabilityKind

	unacked          map[ddstime.SequenceNumber]struct{}
	lastAckNackCount int32
	nextHeartbeatAt  time.Time
}

func NewReaderProxy(g guid.G, locators []wire.Locator, reliability qos.ReliabilityKind) *ReaderProxy {
	return &ReaderProxy{
		GUID:        g,
		Locators:    locators,
		Reliability: reliability,
		unacked:     make(map[ddstime.SequenceNumber]struct{}),
	}
}

// MarkUnacked records sn as sent-but-not-yet-acknowledged. A no-op for
// best-effort proxies, which never track acknowledgment state.
func (p *ReaderProxy) MarkUnacked(sn ddstime.SequenceNumber) {
	if p.Reliability != qos.Reliable {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unacked[sn] = struct{}{}
}

// AckThrough marks every sn <= base-1 as acknowledged, per the ACKNACK
// semantics where reader_sn_base is the first sequence number the reader
// still wants.
func (p *ReaderProxy) AckThrough(base ddstime.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn := range p.unacked {
		if sn < base {
			delete(p.unacked, sn)
		}
	}
}

// Unacked reports the currently unacknowledged sequence numbers.
func (p *ReaderProxy) Unacked() []ddstime.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ddstime.SequenceNumber, 0, len(p.unacked))
	for sn := range p.unacked {
		out = append(out, sn)
	}
	return out
}

func (p *ReaderProxy) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unacked) == 0
}

// AcceptAckNack applies ACKNACK duplicate suppression: counts at or below
// the last seen count from this reader are dropped as replays.
func (p *ReaderProxy) AcceptAckNack(count int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= p.lastAckNackCount {
		return false
	}
	p.lastAckNackCount = count
	return true
}

func (p *ReaderProxy) DueForHeartbeat(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !now.Before(p.nextHeartbeatAt)
}

func (p *ReaderProxy) ScheduleNextHeartbeat(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextHeartbeatAt = at
}

// WriterProxy is a reader-side record of one matched remote writer.
type WriterProxy struct {
	mu sync.Mutex

	GUID        guid.G
	Locators    []wire.Locator
	Reliability qos.ReliabilityKind

	highestContinuousSN ddstime.SequenceNumber
	highestReceivedSN   ddstime.SequenceNumber
	// received holds every SN strictly above highestContinuousSN that has
	// actually been delivered, so a retransmission landing behind a hole
	// (sn > highestContinuousSN but already seen) is recognized as a
	// duplicate instead of being folded back into missing. Entries below
	// highestContinuousSN are pruned by advanceContinuous; SNs at or below
	// it are implicitly "received" and need no entry here.
	received           map[ddstime.SequenceNumber]struct{}
	missing            map[ddstime.SequenceNumber]struct{}
	lastHeartbeatCount int32
	ackNackCounter     int32
}

func NewWriterProxy(g guid.G, locators []wire.Locator, reliability qos.ReliabilityKind) *WriterProxy {
	return &WriterProxy{
		GUID:                g,
		Locators:            locators,
		Reliability:         reliability,
		highestContinuousSN: 0,
		received:            make(map[ddstime.SequenceNumber]struct{}),
		missing:             make(map[ddstime.SequenceNumber]struct{}),
	}
}

func (wp *WriterProxy) HighestContinuousSN() ddstime.SequenceNumber {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.highestContinuousSN
}

// ReceiveData folds a newly-received DATA sequence number into the proxy's
// contiguity tracking, per spec.md §4.5. It returns false if sn was already
// covered by highestContinuousSN or already sits in received (a duplicate,
// possibly a retransmission landing behind a still-open hole, to be ignored
// by the caller).
func (wp *WriterProxy) ReceiveData(sn ddstime.SequenceNumber) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if sn <= wp.highestContinuousSN {
		return false
	}
	if _, already := wp.received[sn]; already {
		return false
	}
	wp.received[sn] = struct{}{}
	if sn > wp.highestReceivedSN {
		wp.highestReceivedSN = sn
	}
	delete(wp.missing, sn)
	for s := wp.highestContinuousSN + 1; s < sn; s++ {
		if _, got := wp.received[s]; !got {
			wp.missing[s] = struct{}{}
		}
	}
	wp.advanceContinuous()
	return true
}

// advanceContinuous walks highestContinuousSN forward over any sequence
// numbers no longer marked missing, pruning their received entries (they're
// implicitly received once below highestContinuousSN). Caller must hold
// wp.mu.
func (wp *WriterProxy) advanceContinuous() {
	for {
		next := wp.highestContinuousSN + 1
		if next > wp.highestReceivedSN {
			return
		}
		if _, stillMissing := wp.missing[next]; stillMissing {
			return
		}
		delete(wp.received, next)
		wp.highestContinuousSN = next
	}
}

// ReceiveGap marks [start, end] (inclusive, via the set bitmap) as
// irrecoverably lost, advancing highestContinuousSN past the gap where
// possible.
func (wp *WriterProxy) ReceiveGap(lost []ddstime.SequenceNumber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	for _, sn := range lost {
		delete(wp.missing, sn)
		delete(wp.received, sn)
		if sn > wp.highestReceivedSN {
			wp.highestReceivedSN = sn
		}
	}
	wp.advanceContinuous()
}

// ReceiveHeartbeat applies §4.5's heartbeat handling and reports whether an
// ACKNACK should be scheduled (a reply is owed: non-replay heartbeat that is
// either non-Final or leaves samples missing).
func (wp *WriterProxy) ReceiveHeartbeat(first, last ddstime.SequenceNumber, count int32, final bool) (scheduleAckNack bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if count <= wp.lastHeartbeatCount {
		return false
	}
	wp.lastHeartbeatCount = count

	for sn := range wp.missing {
		if sn < first {
			delete(wp.missing, sn)
		}
	}
	for sn := first; sn <= last; sn++ {
		if sn <= wp.highestContinuousSN {
			continue
		}
		if _, got := wp.received[sn]; got {
			continue
		}
		if _, already := wp.missing[sn]; !already {
			wp.missing[sn] = struct{}{}
		}
	}
	if last > wp.highestReceivedSN {
		wp.highestReceivedSN = last
	}
	wp.advanceContinuous()

	return !final || len(wp.missing) > 0
}

// AckNackPayload computes the (reader_sn_base, missing-in-window) pair to
// send, and increments the proxy's own ACKNACK counter.
func (wp *WriterProxy) AckNackPayload() (base ddstime.SequenceNumber, missing []ddstime.SequenceNumber, count int32) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	base = wp.highestContinuousSN + 1
	for sn := range wp.missing {
		if sn >= base {
			missing = append(missing, sn)
		}
	}
	wp.ackNackCounter++
	count = wp.ackNackCounter
	return
}
