package topiccache

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
)

func ts(n uint32) ddstime.T { return ddstime.T{Seconds: n} }

func testChange(n uint32) Change {
	return Change{
		WriterGUID:       guid.New(guid.NewPrefix(), guid.EntityId{1, 0, 0, byte(guid.KindWriterWithKey)}),
		SequenceNumber:   ddstime.SequenceNumber(n),
		ReceiveTimestamp: ts(n),
		Key:              []byte("k"),
		Payload:          []byte("payload"),
	}
}

func TestAddTopicIsIdempotent(t *testing.T) {
	c := New()
	c.AddTopic("weather", WithKey, "WeatherSample", 0)
	c.AddTopic("weather", WithKey, "WeatherSample", 0)
	if !c.HasTopic("weather") {
		t.Fatalf("expected topic to be registered")
	}
	typeName, ok := c.TypeName("weather")
	if !ok || typeName != "WeatherSample" {
		t.Fatalf("expected type name WeatherSample, got %q ok=%v", typeName, ok)
	}
}

func TestAddChangeOnUnknownTopicPanics(t *testing.T) {
	c := New()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for add_change on unregistered topic")
		}
	}()
	c.AddChange("nope", testChange(1))
}

func TestGetChangesSinceOrdering(t *testing.T) {
	c := New()
	c.AddTopic("weather", WithKey, "WeatherSample", 0)
	for i := uint32(1); i <= 5; i++ {
		c.AddChange("weather", testChange(i))
	}
	changes := c.GetChangesSince("weather", ts(2))
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes after ts(2), got %d", len(changes))
	}
	if changes[0].ReceiveTimestamp != ts(3) {
		t.Fatalf("expected first change at ts(3), got %+v", changes[0].ReceiveTimestamp)
	}
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	c := New()
	c.AddTopic("weather", WithKey, "WeatherSample", 3)
	for i := uint32(1); i <= 5; i++ {
		c.AddChange("weather", testChange(i))
	}
	changes := c.GetChangesSince("weather", ts(0))
	if len(changes) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(changes))
	}
	if changes[0].ReceiveTimestamp != ts(3) {
		t.Fatalf("expected oldest retained to be ts(3), got %+v", changes[0].ReceiveTimestamp)
	}
}

func TestRemoveChangesBefore(t *testing.T) {
	c := New()
	c.AddTopic("weather", WithKey, "WeatherSample", 0)
	for i := uint32(1); i <= 5; i++ {
		c.AddChange("weather", testChange(i))
	}
	c.RemoveChangesBefore("weather", ts(4))
	changes := c.GetChangesSince("weather", ts(0))
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes remaining (ts4, ts5), got %d", len(changes))
	}
}

func TestPoisoningPropagatesAcrossSubsequentCalls(t *testing.T) {
	c := New()
	c.AddTopic("weather", WithKey, "WeatherSample", 0)

	func() {
		defer func() { recover() }()
		c.AddChange("does-not-exist", testChange(1)) // panics, poisoning the guard
	}()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected the poisoned guard to panic on a later, otherwise-valid call")
		}
	}()
	c.AddChange("weather", testChange(2))
}
