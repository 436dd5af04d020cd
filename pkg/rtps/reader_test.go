package rtps

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/wire"
	"github.com/opendds-go/ddscore/pkg/wire/submsg"
)

func newTestReader(t *testing.T, reliability qos.ReliabilityKind) (*Reader, *recordingSender, *WriterProxy) {
	t.Helper()
	tc := topiccache.New()
	tc.AddTopic("weather", topiccache.WithKey, "WeatherSample", 0)
	fanout := localfanout.New()
	sender := &recordingSender{}
	r := NewReader(testGUID(1), "weather", reliability, sender, tc, fanout)
	wp := NewWriterProxy(testGUID(2), nil, reliability)
	r.AddWriterProxy(wp)
	return r, sender, wp
}

func TestBestEffortReaderDeliversImmediatelyNoAckNack(t *testing.T) {
	r, sender, _ := newTestReader(t, qos.BestEffort)
	r.ReceiveData(testGUID(2), submsg.Data{WriterSN: 5, Payload: []byte("x")}, ddstime.Now())

	changes := r.topicCache.GetChangesSince("weather", ddstime.T{})
	if len(changes) != 1 {
		t.Fatalf("expected the sample delivered despite out-of-order sn, got %d", len(changes))
	}
	if sender.count() != 0 {
		t.Fatalf("best-effort readers must never emit acknacks, got %d sends", sender.count())
	}
}

func TestReliableReaderIgnoresDuplicateData(t *testing.T) {
	r, _, writer := newTestReader(t, qos.Reliable)
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 1, Payload: []byte("a")}, ddstime.Now())
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 1, Payload: []byte("a-dup")}, ddstime.Now())

	changes := r.topicCache.GetChangesSince("weather", ddstime.T{})
	if len(changes) != 1 {
		t.Fatalf("expected duplicate sn 1 to be ignored, got %d changes", len(changes))
	}
}

// TestReliableReaderDoesNotRedeliverRetransmissionBehindAHole covers spec §8
// scenario 2's shape: sn 3 is dropped, sn 4 arrives and is delivered, then
// the writer's heartbeat-driven retransmission of 4 arrives again before 3
// is ever recovered. The second copy of 4 must be suppressed as a duplicate
// rather than delivered to the Shared Topic Cache and fanout a second time.
func TestReliableReaderDoesNotRedeliverRetransmissionBehindAHole(t *testing.T) {
	r, _, writer := newTestReader(t, qos.Reliable)
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 1, Payload: []byte("a")}, ddstime.Now())
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 2, Payload: []byte("b")}, ddstime.Now())
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 4, Payload: []byte("d")}, ddstime.Now()) // 3 missing
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 4, Payload: []byte("d-retransmit")}, ddstime.Now())

	changes := r.topicCache.GetChangesSince("weather", ddstime.T{})
	if len(changes) != 3 {
		t.Fatalf("expected exactly 3 delivered changes (1,2,4), got %d", len(changes))
	}
}

func TestReliableReaderEmitsAckNackOnNonFinalHeartbeat(t *testing.T) {
	r, sender, writer := newTestReader(t, qos.Reliable)
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 1, Payload: []byte("a")}, ddstime.Now())
	r.ReceiveHeartbeat(writer.GUID, submsg.Heartbeat{First: 1, Last: 3, Count: 1, Final: false})

	found := false
	for _, s := range sender.submessages() {
		if s.Kind == wire.KindAckNack {
			an, err := submsg.DecodeAckNack(s)
			if err != nil {
				t.Fatalf("decode acknack: %v", err)
			}
			if an.ReaderSNState.Contains(2) && an.ReaderSNState.Contains(3) {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected an acknack requesting the missing sns 2 and 3")
	}
}

func TestReliableReaderGapClosesMissingWithoutAckNack(t *testing.T) {
	r, sender, writer := newTestReader(t, qos.Reliable)
	r.ReceiveData(writer.GUID, submsg.Data{WriterSN: 1, Payload: []byte("a")}, ddstime.Now())
	r.ReceiveGap(writer.GUID, submsg.Gap{GapStart: 2, GapList: submsg.NewSequenceNumberSet(2, []ddstime.SequenceNumber{2})})

	if writer.HighestContinuousSN() != 2 {
		t.Fatalf("expected gap to advance highest continuous sn to 2, got %d", writer.HighestContinuousSN())
	}
	if sender.count() != 0 {
		t.Fatalf("GAP handling itself does not emit an acknack, got %d sends", sender.count())
	}
}
