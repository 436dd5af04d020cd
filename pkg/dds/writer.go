package dds

import (
	"fmt"
	"time"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
)

// DataWriter publishes values of T on one Topic. Go forbids a generic
// method on DomainParticipant/Publisher with its own type parameter, so
// construction goes through the free function NewDataWriter rather than a
// Publisher method (spec.md §9's design note on generics over user types).
type DataWriter[T any] struct {
	dp    *DomainParticipant
	inner *rtps.Writer
	ts    TypeSupport[T]
	topic *Topic
}

// NewDataWriter allocates a GUID under pub's participant, builds the RTPS
// Writer, registers it with the Discovery DB and announces it over SEDP.
func NewDataWriter[T any](pub *Publisher, topic *Topic, ts TypeSupport[T], policies qos.Policies) (*DataWriter[T], error) {
	if topic == nil {
		return nil, fmt.Errorf("dds: NewDataWriter: nil topic")
	}
	effective := *topic
	effective.Policies = resolvePolicies(resolvePolicies(topic.Policies, pub.Policies), policies)

	inner := pub.dp.registerWriter(&effective, topic.Keyed)
	return &DataWriter[T]{dp: pub.dp, inner: inner, ts: ts, topic: topic}, nil
}

// GUID is this writer's unique identity within the domain.
func (w *DataWriter[T]) GUID() guid.G { return w.inner.GUID }

// Write marshals v and publishes it with the current time as source
// timestamp. For a keyed topic the instance key is derived via
// TypeSupport.KeyOf and recorded alongside the payload (see
// rtps.Writer.WriteKeyed's doc comment on why the key never goes on the
// wire separately); for a keyless topic it is an ordinary Write.
func (w *DataWriter[T]) Write(v T) error {
	return w.WriteAt(v, ddstime.Now())
}

// WriteAt is Write with an explicit source timestamp, for callers that need
// control over DestinationOrder=BySourceTimestamp semantics or tests that
// need deterministic timestamps.
func (w *DataWriter[T]) WriteAt(v T, sourceTS ddstime.T) error {
	payload, err := w.ts.Marshal(v)
	if err != nil {
		return fmt.Errorf("dds: marshal: %w", err)
	}
	if w.topic.Keyed {
		key := w.ts.KeyOf(v)
		return w.inner.WriteKeyed(key, payload, sourceTS)
	}
	return w.inner.Write(payload, sourceTS)
}

// Dispose announces that the instance identified by key no longer exists,
// per spec.md §4.4/§8's NotAliveDisposed transition.
func (w *DataWriter[T]) Dispose(v T) error {
	if !w.topic.Keyed {
		return fmt.Errorf("dds: Dispose: topic %q is not keyed", w.topic.Name)
	}
	return w.inner.Dispose(w.ts.KeyOf(v), ddstime.Now())
}

// WaitForAcknowledgments blocks until every reliable matched reader has
// acknowledged all outstanding samples, or the deadline elapses.
func (w *DataWriter[T]) WaitForAcknowledgments(maxWait time.Duration) bool {
	return w.inner.WaitForAcknowledgments(maxWait)
}

// Close unregisters this writer from discovery and its participant.
func (w *DataWriter[T]) Close() {
	w.dp.unregisterWriter(w.inner.GUID)
}
