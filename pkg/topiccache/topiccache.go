// Package topiccache implements the process-wide, topic-keyed Shared Topic
// Cache: the ring buffer that bridges RTPS receiver threads and the
// publisher/subscriber fanout path without a network round trip.
package topiccache

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/poison"
)

// Change is one deposited cache change: a regular sample or a dispose/
// unregister key-only change, identified by its writer and receive
// timestamp.
type Change struct {
	WriterGUID       guid.G
	SequenceNumber   ddstime.SequenceNumber
	ReceiveTimestamp ddstime.T
	SourceTimestamp  ddstime.T
	Key              []byte
	Payload          []byte
	Dispose          bool
}

// DefaultRingSize bounds a topic's retained history absent any more specific
// QoS; a Shared Topic Cache exists to bridge threads, not to serve as the
// durable record (that's the per-endpoint Sample Cache's job).
const DefaultRingSize = 256

// TopicKind distinguishes a topic carrying keyed (multi-instance) data from
// one carrying unkeyed data, mirroring the WriterWithKey/WriterNoKey entity
// kind split in pkg/guid.
type TopicKind int

const (
	WithKey TopicKind = iota
	NoKey
)

type topic struct {
	name     string
	kind     TopicKind
	typeName string
	ring     []Change
	cap      int
}

func newTopic(name string, kind TopicKind, typeName string, capacity int) *topic {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &topic{name: name, kind: kind, typeName: typeName, cap: capacity}
}

func (t *topic) add(c Change) {
	t.ring = append(t.ring, c)
	if over := len(t.ring) - t.cap; over > 0 {
		t.ring = t.ring[over:]
	}
}

func (t *topic) since(ts ddstime.T) []Change {
	var out []Change
	for _, c := range t.ring {
		if ts.Before(c.ReceiveTimestamp) {
			out = append(out, c)
		}
	}
	return out
}

func (t *topic) removeBefore(ts ddstime.T) {
	i := 0
	for i < len(t.ring) && t.ring[i].ReceiveTimestamp.Before(ts) {
		i++
	}
	t.ring = t.ring[i:]
}

// Cache is the process-wide Shared Topic Cache, one instance per
// participant. Mutation is confined to the event loop thread; a panic in a
// critical section poisons guard permanently rather than risk serving data
// built on top of a broken invariant.
type Cache struct {
	guard  *poison.Lock
	topics map[string]*topic
}

func New() *Cache {
	return &Cache{guard: poison.NewLock("topiccache"), topics: make(map[string]*topic)}
}

func (c *Cache) withWrite(fn func()) { c.guard.Do(fn) }

func (c *Cache) withRead(fn func()) { c.guard.RDo(fn) }

// AddTopic registers a topic if it does not already exist. capacity <= 0
// uses DefaultRingSize.
func (c *Cache) AddTopic(name string, kind TopicKind, typeName string, capacity int) {
	c.withWrite(
		func() {
			if _, ok := c.topics[name]; ok {
				return
			}
			c.topics[name] = newTopic(name, kind, typeName, capacity)
		},
	)
}

// AddChange deposits a change into topic's ring, evicting the oldest entry
// if the ring is full. It is a program error to deposit into a topic that
// was never registered.
func (c *Cache) AddChange(topicName string, change Change) {
	c.withWrite(
		func() {
			t, ok := c.topics[topicName]
			if !ok {
				panic("topiccache: add_change on unknown topic " + topicName)
			}
			t.add(change)
		},
	)
}

// GetChangesSince returns every change deposited after ts, oldest first.
func (c *Cache) GetChangesSince(topicName string, ts ddstime.T) (out []Change) {
	c.withRead(
		func() {
			t, ok := c.topics[topicName]
			if !ok {
				return
			}
			out = t.since(ts)
		},
	)
	return
}

// RemoveChangesBefore discards every change with ReceiveTimestamp strictly
// before ts, bounding memory for topics nobody has read from in a while.
func (c *Cache) RemoveChangesBefore(topicName string, ts ddstime.T) {
	c.withWrite(
		func() {
			if t, ok := c.topics[topicName]; ok {
				t.removeBefore(ts)
			}
		},
	)
}

// HasTopic reports whether name has been registered.
func (c *Cache) HasTopic(name string) (ok bool) {
	c.withRead(func() { _, ok = c.topics[name] })
	return
}

// TypeName returns the registered type name for a topic, for SEDP
// cross-checks against an incoming publication/subscription's advertised
// type.
func (c *Cache) TypeName(name string) (typeName string, ok bool) {
	c.withRead(
		func() {
			if t, found := c.topics[name]; found {
				typeName, ok = t.typeName, true
			}
		},
	)
	return
}
