package localfanout

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/topiccache"
)

type recordingSubscriber struct {
	id       string
	received []topiccache.Change
}

func (s *recordingSubscriber) Type() string { return s.id }
func (s *recordingSubscriber) Deliver(c topiccache.Change) {
	s.received = append(s.received, c)
}

func TestDeliverFansOutToMatchedSubscribersOnly(t *testing.T) {
	r := New()
	weatherSub := &recordingSubscriber{id: "reader-1"}
	trafficSub := &recordingSubscriber{id: "reader-2"}
	r.Subscribe("weather", weatherSub)
	r.Subscribe("traffic", trafficSub)

	change := topiccache.Change{Payload: []byte("sunny")}
	r.Deliver("weather", change)

	if len(weatherSub.received) != 1 {
		t.Fatalf("expected weather subscriber to receive 1 change, got %d", len(weatherSub.received))
	}
	if len(trafficSub.received) != 0 {
		t.Fatalf("expected traffic subscriber to receive nothing, got %d", len(trafficSub.received))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := New()
	sub := &recordingSubscriber{id: "reader-1"}
	r.Subscribe("weather", sub)
	r.Unsubscribe("weather", sub)

	r.Deliver("weather", topiccache.Change{})
	if len(sub.received) != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", len(sub.received))
	}
	if r.SubscriberCount("weather") != 0 {
		t.Fatalf("expected subscriber count 0 after unsubscribe")
	}
}

func TestMultipleSubscribersOnSameTopicAllReceive(t *testing.T) {
	r := New()
	a := &recordingSubscriber{id: "a"}
	b := &recordingSubscriber{id: "b"}
	r.Subscribe("weather", a)
	r.Subscribe("weather", b)

	r.Deliver("weather", topiccache.Change{})
	if len(a.received) != 1 || len(b.received) != 1 {
		t.Fatalf("expected both subscribers to receive the change")
	}
}
