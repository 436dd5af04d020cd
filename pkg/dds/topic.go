package dds

import (
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/topiccache"
)

// Topic names a data flow and its type within a domain, per spec.md §3.
// Its Policies are the QoS a Publisher/Subscriber's writers and readers
// inherit unless they override them.
type Topic struct {
	Name     string
	TypeName string
	Policies qos.Policies
	// Keyed marks whether this topic's instances are distinguished by a
	// TypeSupport-projected key (KindWriterWithKey/KindReaderWithKey) or
	// collapse to a single instance (KindWriterNoKey/KindReaderNoKey).
	Keyed bool
}

// NewTopic registers name/typeName with policies. A DataWriter/DataReader
// created against this topic inherits these policies as a whole when it is
// given the zero qos.Policies{}; any other bundle is used as given, with no
// per-field merging (see resolvePolicies).
func (dp *DomainParticipant) NewTopic(name, typeName string, keyed bool, policies qos.Policies) *Topic {
	t := &Topic{Name: name, TypeName: typeName, Policies: policies, Keyed: keyed}
	dp.mu.Lock()
	dp.topics[name] = t
	dp.mu.Unlock()

	kind := topiccache.NoKey
	if keyed {
		kind = topiccache.WithKey
	}
	dp.tc.AddTopic(name, kind, typeName, 0)
	return t
}
