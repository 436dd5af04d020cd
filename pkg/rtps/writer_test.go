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

func newTestWriter(t *testing.T, reliability qos.ReliabilityKind) (*Writer, *recordingSender, *ReaderProxy) {
	t.Helper()
	tc := topiccache.New()
	tc.AddTopic("weather", topiccache.WithKey, "WeatherSample", 0)
	fanout := localfanout.New()
	sender := &recordingSender{}
	policies := qos.Default()
	policies.History = qos.History{Kind: qos.KeepAll}
	w := NewWriter(testGUID(1), "weather", policies, sender, tc, fanout)
	rp := NewReaderProxy(testGUID(2), nil, reliability)
	w.AddReaderProxy(rp)
	return w, sender, rp
}

func TestWriteAssignsIncreasingSequenceNumbers(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.BestEffort)
	for i := 0; i < 3; i++ {
		if err := w.Write([]byte("sample"), ddstime.Now()); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	subs := sender.submessages()
	var sns []ddstime.SequenceNumber
	for _, s := range subs {
		if s.Kind == wire.KindData {
			d, err := submsg.DecodeData(s)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			sns = append(sns, d.WriterSN)
		}
	}
	if len(sns) != 3 || sns[0] != 1 || sns[1] != 2 || sns[2] != 3 {
		t.Fatalf("expected sns [1 2 3], got %v", sns)
	}
}

func TestReliableWriteDepositsIntoTopicCacheAndFanout(t *testing.T) {
	w, _, _ := newTestWriter(t, qos.Reliable)
	subscribed := false
	router := localfanout.New()
	w.fanout = router
	// Re-subscribe a recorder after swapping the router.
	rec := &countingSubscriber{}
	router.Subscribe("weather", rec)
	subscribed = router.SubscriberCount("weather") == 1
	if !subscribed {
		t.Fatalf("expected subscriber registered")
	}

	if err := w.Write([]byte("sunny"), ddstime.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.n != 1 {
		t.Fatalf("expected fanout delivery count 1, got %d", rec.n)
	}
}

type countingSubscriber struct{ n int }

func (c *countingSubscriber) Type() string                    { return "test" }
func (c *countingSubscriber) Deliver(_ topiccache.Change) { c.n++ }

func TestHandleAckNackRetransmitsRequestedStillInHistory(t *testing.T) {
	w, sender, rp := newTestWriter(t, qos.Reliable)
	for i := 0; i < 3; i++ {
		w.Write([]byte("sample"), ddstime.Now())
	}
	sender.sent = nil // discard the initial DATA/HEARTBEAT sends

	w.HandleAckNack(rp.GUID, 1, []ddstime.SequenceNumber{2}, 1)

	found := false
	for _, s := range sender.submessages() {
		if s.Kind == wire.KindData {
			d, _ := submsg.DecodeData(s)
			if d.WriterSN == 2 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected retransmission of sn 2")
	}
}

func TestHandleAckNackDuplicateSuppressed(t *testing.T) {
	w, sender, rp := newTestWriter(t, qos.Reliable)
	w.Write([]byte("sample"), ddstime.Now())
	sender.sent = nil

	w.HandleAckNack(rp.GUID, 1, []ddstime.SequenceNumber{}, 5)
	afterFirst := sender.count()
	w.HandleAckNack(rp.GUID, 1, []ddstime.SequenceNumber{}, 5) // replay, same count
	if sender.count() != afterFirst {
		t.Fatalf("expected replayed acknack to cause no additional sends")
	}
}

func TestWaitForAcknowledgmentsReturnsTrueOnceAcked(t *testing.T) {
	w, _, rp := newTestWriter(t, qos.Reliable)
	w.Write([]byte("sample"), ddstime.Now())
	rp.AckThrough(2) // acks sn 1
	if !w.WaitForAcknowledgments(50_000_000) { // 50ms
		t.Fatalf("expected wait_for_acknowledgments to succeed once acked")
	}
}
