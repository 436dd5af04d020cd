package dds

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/cache"
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/topiccache"
)

func newTestDataReader(t *testing.T, keyed bool) *DataReader[sample] {
	t.Helper()
	tc := topiccache.New()
	kind := topiccache.NoKey
	if keyed {
		kind = topiccache.WithKey
	}
	tc.AddTopic("readings", kind, "sample", 0)
	fanout := localfanout.New()

	rKind := guid.KindReaderNoKey
	if keyed {
		rKind = guid.KindReaderWithKey
	}
	inner := rtps.NewReader(testGUID(2, rKind), "readings", qos.BestEffort, discardSender{}, tc, fanout)
	topic := &Topic{Name: "readings", TypeName: "sample", Keyed: keyed, Policies: qos.Default()}
	// Keep every sample so one instance can hold both a write and a dispose.
	cachePolicies := qos.Default()
	cachePolicies.History = qos.History{Kind: qos.KeepAll}
	dr := &DataReader[sample]{inner: inner, ts: sampleTypeSupport{}, topic: topic, cache: cache.New(cachePolicies)}
	fanout.Subscribe("readings", dr)
	return dr
}

// TestWriteThenTakeRoundTripsThroughRealWriterAndReader exercises the full
// local path: a real rtps.Writer publishes into the same topic cache/fanout
// a DataReader subscribes to, and Take must recover the original value with
// the key pkg/rtps.Reader.deliver deliberately leaves to this layer.
func TestWriteThenTakeRoundTripsThroughRealWriterAndReader(t *testing.T) {
	tc := topiccache.New()
	tc.AddTopic("readings", topiccache.WithKey, "sample", 0)
	fanout := localfanout.New()

	writer := rtps.NewWriter(testGUID(1, guid.KindWriterWithKey), "readings", qos.Default(), discardSender{}, tc, fanout)
	reader := rtps.NewReader(testGUID(2, guid.KindReaderWithKey), "readings", qos.BestEffort, discardSender{}, tc, fanout)
	topic := &Topic{Name: "readings", TypeName: "sample", Keyed: true, Policies: qos.Default()}
	dr := &DataReader[sample]{inner: reader, ts: sampleTypeSupport{}, topic: topic, cache: cache.New(qos.Default())}
	fanout.Subscribe("readings", dr)

	payload, err := sampleTypeSupport{}.Marshal(sample{ID: "sensor-1", Value: 99})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := writer.WriteKeyed([]byte("sensor-1"), payload, ddstime.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}

	results, err := dr.Take(ReadCondition{})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one sample, got %d", len(results))
	}
	if results[0].Value != (sample{ID: "sensor-1", Value: 99}) {
		t.Fatalf("expected value to round-trip, got %+v", results[0].Value)
	}
	if dr.Len() != 0 {
		t.Fatalf("expected Take to remove the sample from the cache, got %d remaining", dr.Len())
	}
}

func TestReadDoesNotRemoveSamples(t *testing.T) {
	dr := newTestDataReader(t, false)
	payload, err := sampleTypeSupport{}.Marshal(sample{ID: "p1", Value: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dr.Deliver(topiccache.Change{Payload: payload, ReceiveTimestamp: ddstime.Now()})

	first, err := dr.Read(ReadCondition{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one sample, got %d", len(first))
	}
	if dr.Len() != 1 {
		t.Fatalf("expected Read to leave the sample in the cache, got %d", dr.Len())
	}

	second, err := dr.Read(ReadCondition{SampleStates: []SampleState{NotRead}})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no NotRead samples left after the first Read, got %d", len(second))
	}
}

func TestDisposeSurfacesZeroValueWithDisposeInfo(t *testing.T) {
	dr := newTestDataReader(t, true)
	payload, err := sampleTypeSupport{}.Marshal(sample{ID: "k1", Value: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dr.Deliver(topiccache.Change{Key: []byte("k1"), Payload: payload, ReceiveTimestamp: ddstime.FromUnixNano(1_000_000_000)})
	dr.Deliver(topiccache.Change{Key: []byte("k1"), Payload: []byte("k1"), Dispose: true, ReceiveTimestamp: ddstime.FromUnixNano(2_000_000_000)})

	results, err := dr.Take(ReadCondition{})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two samples (the write and the dispose), got %d", len(results))
	}
	if results[1].Info.InstanceState != NotAliveDisposed {
		t.Fatalf("expected the second sample's instance to be NotAliveDisposed, got %v", results[1].Info.InstanceState)
	}
	if results[1].Value != (sample{}) {
		t.Fatalf("expected the dispose sample's value to be zero, got %+v", results[1].Value)
	}
}
