// Package qos defines the per-topic quality-of-service policies carried by
// endpoints and discovery records, and the compatibility rule the Discovery
// DB match engine applies between a reader and a candidate writer.
package qos

import "time"

type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// CompatibleWith reports whether a reader requesting a can match a writer
// offering writer (a reader may never require stronger guarantees than a
// writer offers).
func (a ReliabilityKind) CompatibleWith(writer ReliabilityKind) bool {
	return a <= writer
}

type Reliability struct {
	Kind            ReliabilityKind
	MaxBlockingTime time.Duration
}

type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

func (a DurabilityKind) CompatibleWith(writer DurabilityKind) bool { return a <= writer }

type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

type History struct {
	Kind  HistoryKind
	Depth int // meaningful only when Kind == KeepLast
}

type ResourceLimits struct {
	MaxSamples             int
	MaxInstances           int
	MaxSamplesPerInstance  int
}

// unbounded stands in for "no depth limit" when History is KeepAll and no
// ResourceLimits cap is set; a real unbounded count would let a slow
// consumer exhaust memory, but this implementation leaves resource
// exhaustion policy to ResourceLimits rather than silently capping KeepAll
// at 1.
const unbounded = int(^uint(0) >> 1)

// EffectiveKeepCount is the number of samples of one instance the Sample
// Cache retains: History.Depth if KeepLast is set, else
// ResourceLimits.MaxSamplesPerInstance, else 1 for KeepLast / unbounded for
// KeepAll.
func EffectiveKeepCount(h History, r ResourceLimits) int {
	if h.Kind == KeepLast && h.Depth > 0 {
		return h.Depth
	}
	if r.MaxSamplesPerInstance > 0 {
		return r.MaxSamplesPerInstance
	}
	if h.Kind == KeepAll {
		return unbounded
	}
	return 1
}

type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

func (a LivelinessKind) CompatibleWith(writer LivelinessKind) bool { return a <= writer }

type Liveliness struct {
	Kind     LivelinessKind
	Lease    time.Duration
}

type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

type Ownership struct {
	Kind     OwnershipKind
	Strength int32 // only meaningful when Kind == Exclusive
}

type PresentationAccessScope int

const (
	InstanceScope PresentationAccessScope = iota
	TopicScope
	GroupScope
)

type Presentation struct {
	AccessScope     PresentationAccessScope
	CoherentAccess  bool
	OrderedAccess   bool
}

func (a Presentation) CompatibleWith(writer Presentation) bool {
	if a.AccessScope > writer.AccessScope {
		return false
	}
	if a.CoherentAccess && !writer.CoherentAccess {
		return false
	}
	if a.OrderedAccess && !writer.OrderedAccess {
		return false
	}
	return true
}

type DestinationOrderKind int

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

type Deadline struct {
	Period time.Duration // zero means no deadline requirement
}

// Deadline compatibility: reader's requested period must be >= writer's
// offered period (writer commits to publish at least that often).
func (a Deadline) CompatibleWith(writer Deadline) bool {
	if a.Period == 0 {
		return true
	}
	if writer.Period == 0 {
		return false
	}
	return a.Period >= writer.Period
}

// Policies bundles every QoS policy an endpoint carries. Topics, readers and
// writers all use the same bundle. Fields are not inherited one by one:
// pkg/dds substitutes the parent's whole bundle only for a zero Policies{}.
type Policies struct {
	Reliability     Reliability
	Durability      DurabilityKind
	History         History
	ResourceLimits  ResourceLimits
	Deadline        Deadline
	Liveliness      Liveliness
	Ownership       Ownership
	Presentation    Presentation
	DestinationOrder DestinationOrderKind
}

func Default() Policies {
	return Policies{
		Reliability:    Reliability{Kind: BestEffort},
		Durability:     Volatile,
		History:        History{Kind: KeepLast, Depth: 1},
		ResourceLimits: ResourceLimits{},
		Liveliness:     Liveliness{Kind: Automatic, Lease: 10 * time.Second},
	}
}

// Compatible implements the reader/writer matching rule of spec.md §4.6: a
// reader may never require stronger guarantees than a writer offers.
func Compatible(reader, writer Policies) bool {
	if !reader.Reliability.Kind.CompatibleWith(writer.Reliability.Kind) {
		return false
	}
	if !reader.Durability.CompatibleWith(writer.Durability) {
		return false
	}
	if !reader.Deadline.CompatibleWith(writer.Deadline) {
		return false
	}
	if !reader.Liveliness.Kind.CompatibleWith(writer.Liveliness.Kind) {
		return false
	}
	if reader.Liveliness.Lease != 0 && reader.Liveliness.Lease < writer.Liveliness.Lease {
		return false
	}
	if !reader.Presentation.CompatibleWith(writer.Presentation) {
		return false
	}
	return true
}
