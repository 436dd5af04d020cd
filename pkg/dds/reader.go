package dds

import (
	"fmt"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/cache"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/topiccache"
)

// DataReader subscribes to values of T on one Topic. Like DataWriter, it is
// built through the free function NewDataReader rather than a Subscriber
// method, since Go disallows a generic method with its own type parameter.
//
// A DataReader owns a private pkg/cache.Cache (the per-endpoint Sample
// Cache, C2): it subscribes to the participant's Shared Topic Cache fanout
// for its topic and, for every topiccache.Change delivered, unmarshals the
// payload and runs TypeSupport.KeyOf over it to recover the instance key
// the wire layer never carries for an ordinary sample (see
// rtps.Reader.deliver's doc comment).
type DataReader[T any] struct {
	dp    *DomainParticipant
	inner *rtps.Reader
	ts    TypeSupport[T]
	topic *Topic
	cache *cache.Cache
}

// NewDataReader allocates a GUID under sub's participant, builds the RTPS
// Reader, registers it with the Discovery DB, announces it over SEDP, and
// subscribes its Sample Cache to the local fan-out path.
func NewDataReader[T any](sub *Subscriber, topic *Topic, ts TypeSupport[T], policies qos.Policies) (*DataReader[T], error) {
	if topic == nil {
		return nil, fmt.Errorf("dds: NewDataReader: nil topic")
	}
	effective := *topic
	effective.Policies = resolvePolicies(resolvePolicies(topic.Policies, sub.Policies), policies)

	inner := sub.dp.registerReader(&effective, topic.Keyed, effective.Policies.Reliability.Kind)
	dr := &DataReader[T]{
		dp: sub.dp, inner: inner, ts: ts, topic: topic,
		cache: cache.New(effective.Policies),
	}
	sub.dp.fanout.Subscribe(topic.Name, dr)
	sub.dp.setReaderSink(inner.GUID, dr.cache)
	return dr, nil
}

// GUID is this reader's unique identity within the domain.
func (r *DataReader[T]) GUID() guid.G { return r.inner.GUID }

// Type implements localfanout.Subscriber, identifying this reader to
// Unsubscribe.
func (r *DataReader[T]) Type() string { return r.inner.GUID.String() }

// Deliver implements localfanout.Subscriber: it is called synchronously on
// the writer's goroutine (or the event loop's dispatch goroutine, for a
// remote writer) each time a new Change lands on this reader's topic.
func (r *DataReader[T]) Deliver(c topiccache.Change) {
	key := c.Key
	if !c.Dispose && r.topic.Keyed {
		v, err := r.ts.Unmarshal(c.Payload)
		if err != nil {
			log.E.F("dds: reader %s: unmarshal: %v", r.inner.GUID, err)
			return
		}
		key = r.ts.KeyOf(v)
	} else if !r.topic.Keyed {
		key = KeylessKey
	}
	r.cache.AddSample(key, c.Payload, c.WriterGUID, c.ReceiveTimestamp, c.SourceTimestamp, c.Dispose)
}

// ReadCondition selects which cached samples Read/Take operate over, per
// spec.md §6's three independent masks.
type ReadCondition = cache.ReadCondition

// SampleState/ViewState/InstanceState and their constants are re-exported
// from pkg/cache so callers never need to import it directly.
type (
	SampleState   = cache.SampleState
	ViewState     = cache.ViewState
	InstanceState = cache.InstanceState
)

const (
	NotRead = cache.NotRead
	Read    = cache.Read

	NewView = cache.ViewNew
	NotNew  = cache.NotNew

	Alive             = cache.Alive
	NotAliveDisposed  = cache.NotAliveDisposed
	NotAliveNoWriters = cache.NotAliveNoWriters
)

// Sample is one unmarshaled value returned from Take/ReadValues, paired
// with its SampleInfo.
type Sample[T any] struct {
	Value T
	Info  cache.SampleInfo
}

// Take returns every cached sample matching cond and removes it from the
// cache (destructive access), marking it Read first, per spec.md §6's
// "Take vs Read distinguishes destructive from non-destructive access."
func (r *DataReader[T]) Take(cond ReadCondition) ([]Sample[T], error) {
	return r.access(cond, true)
}

// Read returns every cached sample matching cond without removing it
// (non-destructive access), marking it Read.
func (r *DataReader[T]) Read(cond ReadCondition) ([]Sample[T], error) {
	return r.access(cond, false)
}

func (r *DataReader[T]) access(cond ReadCondition, take bool) ([]Sample[T], error) {
	keys := r.cache.SelectKeysForAccess(cond)
	var results []cache.Result
	if take {
		results = r.cache.TakeByKeys(keys)
	} else {
		results = r.cache.ReadByKeys(keys)
	}

	out := make([]Sample[T], 0, len(results))
	for _, res := range results {
		if res.Dispose {
			// A dispose change carries the key as payload, not a marshaled
			// T; surface it with the zero value. InstanceState still tells
			// the caller this was a lifecycle transition, not real data.
			var zero T
			out = append(out, Sample[T]{Value: zero, Info: res.Info})
			continue
		}
		v, err := r.ts.Unmarshal(res.Payload)
		if err != nil {
			return nil, fmt.Errorf("dds: unmarshal: %w", err)
		}
		out = append(out, Sample[T]{Value: v, Info: res.Info})
	}
	return out, nil
}

// Len reports how many samples this reader's Sample Cache currently holds.
func (r *DataReader[T]) Len() int { return r.cache.Len() }

// Close unregisters this reader from discovery, its participant, and the
// local fan-out path.
func (r *DataReader[T]) Close() {
	r.dp.fanout.Unsubscribe(r.topic.Name, r)
	r.dp.unregisterReader(r.inner.GUID)
}
