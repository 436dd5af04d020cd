// Package localfanout delivers Shared Topic Cache changes to local readers
// matched on the same topic, without waiting for the RTPS wire round trip.
// It generalizes the teacher's publish.S fan-out (one flat subscriber list,
// Deliver to all) to a topic-keyed registry.
package localfanout

import (
	"sync"

	"github.com/opendds-go/ddscore/pkg/topiccache"
)

// Subscriber is a local DataReader endpoint that has matched a topic and
// wants every change deposited there, as it happens.
type Subscriber interface {
	Type() string // the reader's GUID string; identifies it for Unsubscribe
	Deliver(topiccache.Change)
}

// Router is the per-participant fan-out table: topic name to the
// subscribers currently matched to it.
type Router struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
}

func New() *Router {
	return &Router{subs: make(map[string][]Subscriber)}
}

// Subscribe registers s to receive every future Deliver call for topic.
func (r *Router) Subscribe(topic string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[topic] = append(r.subs[topic], s)
}

// Unsubscribe removes s from topic, e.g. once DiscoveryDB reports the match
// has gone away.
func (r *Router) Unsubscribe(topic string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[topic]
	for i, sub := range list {
		if sub.Type() == s.Type() {
			r.subs[topic] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Deliver fans change out to every subscriber currently matched to topic.
func (r *Router) Deliver(topic string, change topiccache.Change) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs[topic] {
		s.Deliver(change)
	}
}

// SubscriberCount reports how many local readers are matched to topic, for
// diagnostics and tests.
func (r *Router) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[topic])
}
