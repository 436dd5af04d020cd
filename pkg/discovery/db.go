package discovery

import (
	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/poison"
	"github.com/opendds-go/ddscore/pkg/rtps"
)

// DB is the Discovery DB (C7): the shared registry of known participants,
// local and remote endpoints, and topics. It is guarded by a poisoning
// read-write lock, since spec.md §5 treats a poisoned Discovery DB as
// fatal: the participant cannot recover consistent discovery state.
type DB struct {
	guard *poison.Lock

	participants map[guid.Prefix]*participantRecord
	localWriters map[string]DiscoveredWriterData
	localReaders map[string]DiscoveredReaderData

	remoteWriters map[string]*remoteWriterRecord
	remoteReaders map[string]*remoteReaderRecord

	topics map[string]*topicRecord
}

func NewDB() *DB {
	return &DB{
		guard:         poison.NewLock("discoverydb"),
		participants:  make(map[guid.Prefix]*participantRecord),
		localWriters:  make(map[string]DiscoveredWriterData),
		localReaders:  make(map[string]DiscoveredReaderData),
		remoteWriters: make(map[string]*remoteWriterRecord),
		remoteReaders: make(map[string]*remoteReaderRecord),
		topics:        make(map[string]*topicRecord),
	}
}

// UpdateParticipant inserts or refreshes a participant record. wasNew
// reports whether the prefix was not previously known or had been evicted,
// which drives the rediscovery probe of spec.md §4.7.
func (db *DB) UpdateParticipant(data ParticipantData, now ddstime.T) (wasNew bool) {
	db.guard.Do(
		func() {
			_, known := db.participants[data.Prefix]
			wasNew = !known
			db.participants[data.Prefix] = &participantRecord{data: data, lastSeen: now}
		},
	)
	return
}

// UpdateSubscription records a discovered remote reader, constructing a
// fresh rtps.ReaderProxy the first time it is seen or on a locator/QoS
// change. Returns the (possibly new) proxy and whether the record changed,
// driving match notifications per spec.md §4.6.
func (db *DB) UpdateSubscription(data DiscoveredReaderData) (proxy *rtps.ReaderProxy, changed bool) {
	key := data.GUID.String()
	db.guard.Do(
		func() {
			existing, ok := db.remoteReaders[key]
			if ok && existing.data.Equal(data) {
				proxy = existing.proxy
				return
			}
			p := rtps.NewReaderProxy(data.GUID, data.Locators, data.Policies.Reliability.Kind)
			db.remoteReaders[key] = &remoteReaderRecord{data: data, proxy: p}
			proxy, changed = p, true
		},
	)
	return
}

// UpdatePublication is UpdateSubscription's writer-side counterpart.
func (db *DB) UpdatePublication(data DiscoveredWriterData) (proxy *rtps.WriterProxy, changed bool) {
	key := data.GUID.String()
	db.guard.Do(
		func() {
			existing, ok := db.remoteWriters[key]
			if ok && existing.data.Equal(data) {
				proxy = existing.proxy
				return
			}
			p := rtps.NewWriterProxy(data.GUID, data.Locators, data.Policies.Reliability.Kind)
			db.remoteWriters[key] = &remoteWriterRecord{data: data, proxy: p}
			proxy, changed = p, true
		},
	)
	return
}

// UpdateTopicData inserts or refreshes a topic's advertised type/QoS.
func (db *DB) UpdateTopicData(data DiscoveredTopicData) (changed bool) {
	db.guard.Do(
		func() {
			existing, ok := db.topics[data.Name]
			if ok && existing.data == data {
				return
			}
			if !ok {
				db.topics[data.Name] = &topicRecord{data: data}
			} else {
				existing.data = data
			}
			changed = true
		},
	)
	return
}

// AddLocalWriter/AddLocalReader register an endpoint this participant owns,
// for the SEDP announce tick to publish and for topic reference counting.
func (db *DB) AddLocalWriter(data DiscoveredWriterData) {
	db.guard.Do(
		func() {
			db.localWriters[data.GUID.String()] = data
			db.refTopic(data.Topic)
		},
	)
}

func (db *DB) AddLocalReader(data DiscoveredReaderData) {
	db.guard.Do(
		func() {
			db.localReaders[data.GUID.String()] = data
			db.refTopic(data.Topic)
		},
	)
}

func (db *DB) RemoveLocalWriter(g guid.G) {
	db.guard.Do(
		func() {
			if d, ok := db.localWriters[g.String()]; ok {
				delete(db.localWriters, g.String())
				db.unrefTopic(d.Topic)
			}
		},
	)
}

func (db *DB) RemoveLocalReader(g guid.G) {
	db.guard.Do(
		func() {
			if d, ok := db.localReaders[g.String()]; ok {
				delete(db.localReaders, g.String())
				db.unrefTopic(d.Topic)
			}
		},
	)
}

// refTopic/unrefTopic must be called with guard held.
func (db *DB) refTopic(name string) {
	t, ok := db.topics[name]
	if !ok {
		t = &topicRecord{data: DiscoveredTopicData{Name: name}}
		db.topics[name] = t
	}
	t.referencedBy++
}

func (db *DB) unrefTopic(name string) {
	if t, ok := db.topics[name]; ok {
		t.referencedBy--
	}
}

// LocalWriters/LocalReaders snapshot this participant's own endpoints, for
// the SEDP announce tick.
func (db *DB) LocalWriters() (out []DiscoveredWriterData) {
	db.guard.RDo(
		func() {
			for _, d := range db.localWriters {
				out = append(out, d)
			}
		},
	)
	return
}

func (db *DB) LocalReaders() (out []DiscoveredReaderData) {
	db.guard.RDo(
		func() {
			for _, d := range db.localReaders {
				out = append(out, d)
			}
		},
	)
	return
}

// MatchingWritersForReader returns every remote writer record currently
// compatible with a local reader, for building ReaderProxy sets on match.
func (db *DB) MatchingWritersForReader(reader DiscoveredReaderData) (out []DiscoveredWriterData) {
	db.guard.RDo(
		func() {
			for _, rec := range db.remoteWriters {
				if matches(reader.Topic, reader.TypeName, reader.Policies, rec.data.Topic, rec.data.TypeName, rec.data.Policies) {
					out = append(out, rec.data)
				}
			}
		},
	)
	return
}

// MatchingReadersForWriter is the writer-side counterpart.
func (db *DB) MatchingReadersForWriter(writer DiscoveredWriterData) (out []DiscoveredReaderData) {
	db.guard.RDo(
		func() {
			for _, rec := range db.remoteReaders {
				if matches(rec.data.Topic, rec.data.TypeName, rec.data.Policies, writer.Topic, writer.TypeName, writer.Policies) {
					out = append(out, rec.data)
				}
			}
		},
	)
	return
}

// ParticipantCleanup evicts every participant whose lease has elapsed,
// returning the evicted prefixes so callers can tear down their proxies.
func (db *DB) ParticipantCleanup(now ddstime.T) (evicted []guid.Prefix) {
	db.guard.Do(
		func() {
			for prefix, rec := range db.participants {
				if rec.expired(now) {
					evicted = append(evicted, prefix)
					delete(db.participants, prefix)
				}
			}
		},
	)
	return
}

// TopicCleanup evicts topic records no local endpoint references any
// longer.
func (db *DB) TopicCleanup() {
	db.guard.Do(
		func() {
			for name, t := range db.topics {
				if t.referencedBy <= 0 {
					delete(db.topics, name)
				}
			}
		},
	)
}

// RemoveRemoteEndpointsOf drops every remote reader/writer whose prefix
// matches a participant that just left, per spec.md §3's proxy lifecycle
// rule ("destroyed... when the owning participant's lease elapses").
func (db *DB) RemoveRemoteEndpointsOf(prefix guid.Prefix) {
	db.guard.Do(
		func() {
			for key, rec := range db.remoteReaders {
				if rec.data.GUID.Prefix == prefix {
					delete(db.remoteReaders, key)
				}
			}
			for key, rec := range db.remoteWriters {
				if rec.data.GUID.Prefix == prefix {
					delete(db.remoteWriters, key)
				}
			}
		},
	)
}

// HasParticipant reports whether prefix is currently known.
func (db *DB) HasParticipant(prefix guid.Prefix) (ok bool) {
	db.guard.RDo(func() { _, ok = db.participants[prefix] })
	return
}
