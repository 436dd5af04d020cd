// Package cache implements the per-endpoint Sample Cache: an ordered sample
// history keyed by receive timestamp, instance lifecycle tracking, and the
// read/not-read, new/not-new bookkeeping a DataReader exposes through
// SampleInfo.
package cache

import (
	"sort"
	"sync"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
)

type InstanceState int

const (
	Alive InstanceState = iota
	NotAliveDisposed
	NotAliveNoWriters
)

type SampleState int

const (
	NotRead SampleState = iota
	Read
)

type ViewState int

const (
	ViewNew ViewState = iota
	NotNew
)

// Change is one cache change: a data sample (Key=false) or a dispose/
// unregister key-only change (Key=true).
type Change struct {
	WriterGUID       guid.G
	ReceiveTimestamp ddstime.T
	SourceTimestamp  ddstime.T
	Key              []byte
	Payload          []byte
	Dispose          bool

	sampleState SampleState
	generation  generationSnapshot
}

// generationSnapshot is the instance's latest_generation_available at the
// moment this change was inserted, frozen for later rank computation.
type generationSnapshot struct {
	disposed  int64
	noWriters int64
}

func (g generationSnapshot) total() int64 { return g.disposed + g.noWriters }

// Instance tracks one keyed instance's lifecycle within a Cache.
type Instance struct {
	Key   []byte
	State InstanceState

	disposedGenerationCount  int64
	noWritersGenerationCount int64
	// lastGenerationAccessed starts at -1 ("never accessed") so the first
	// read/take of a fresh instance always reports view_state New, even
	// though its generation counters are still 0.
	lastGenerationAccessed int64

	samples []ddstime.T // receive timestamps, ascending; indexes Cache.changes
}

func (inst *Instance) latestGeneration() generationSnapshot {
	return generationSnapshot{disposed: inst.disposedGenerationCount, noWriters: inst.noWritersGenerationCount}
}

// Cache is the ordered history for one local DataReader or DataWriter
// endpoint. It is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	policies qos.Policies

	changes   map[ddstime.T]*Change
	instances map[string]*Instance
}

func New(policies qos.Policies) *Cache {
	return &Cache{
		policies:  policies,
		changes:   make(map[ddstime.T]*Change),
		instances: make(map[string]*Instance),
	}
}

func keyOf(b []byte) string { return string(b) }

// AddSample inserts a change keyed by its receive timestamp. Two submessages
// batched into one datagram (pkg/eventloop.Loop.dispatch stamps one receive
// time per datagram) or two arrivals within the same nanosecond under peak
// load can legitimately collide on receive; rather than reject valid traffic,
// a collision is nudged forward by the smallest representable increment
// until it lands on a free slot.
func (c *Cache) AddSample(key, payload []byte, writer guid.G, receive, source ddstime.T, dispose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if _, exists := c.changes[receive]; !exists {
			break
		}
		receive = receive.Next()
	}

	ik := keyOf(key)
	inst, ok := c.instances[ik]
	if !ok {
		inst = &Instance{Key: append([]byte(nil), key...), State: Alive, lastGenerationAccessed: -1}
		c.instances[ik] = inst
	} else {
		switch inst.State {
		case NotAliveDisposed:
			if !dispose {
				inst.disposedGenerationCount++
			}
		case NotAliveNoWriters:
			if !dispose {
				inst.noWritersGenerationCount++
			}
		}
	}

	if dispose {
		inst.State = NotAliveDisposed
	} else {
		inst.State = Alive
	}

	ch := &Change{
		WriterGUID:       writer,
		ReceiveTimestamp: receive,
		SourceTimestamp:  source,
		Key:              append([]byte(nil), key...),
		Payload:          payload,
		Dispose:          dispose,
		sampleState:      NotRead,
		generation:       inst.latestGeneration(),
	}
	c.changes[receive] = ch
	inst.samples = append(inst.samples, receive)

	c.evict(inst)
}

// NoWriters transitions an instance to NotAliveNoWriters, as driven by
// liveliness-lease expiry on every matched writer for that key.
func (c *Cache) NoWriters(key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst, ok := c.instances[keyOf(key)]; ok && inst.State == Alive {
		inst.State = NotAliveNoWriters
	}
}

// MarkNoWriters transitions every currently Alive instance to
// NotAliveNoWriters, for a DataReader whose last matched writer proxy was
// just removed (participant loss or liveliness lease expiry).
func (c *Cache) MarkNoWriters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inst := range c.instances {
		if inst.State == Alive {
			inst.State = NotAliveNoWriters
		}
	}
}

// evict drops the oldest samples of inst beyond the QoS-effective keep count.
// Caller must hold c.mu.
func (c *Cache) evict(inst *Instance) {
	keep := qos.EffectiveKeepCount(c.policies.History, c.policies.ResourceLimits)
	for len(inst.samples) > keep {
		oldest := inst.samples[0]
		inst.samples = inst.samples[1:]
		delete(c.changes, oldest)
	}
}

// KeyedSample pairs a selected timestamp with its instance key, the unit
// select_keys_for_access works in.
type KeyedSample struct {
	Timestamp ddstime.T
	Key       []byte
}

// ReadCondition is the orthogonal selection mask select_keys_for_access
// applies: a zero value (no entries in either slice) matches everything.
type ReadCondition struct {
	SampleStates   []SampleState
	ViewStates     []ViewState
	InstanceStates []InstanceState
}

func (rc ReadCondition) matchSample(s SampleState) bool {
	return matchAny(rc.SampleStates, int(s))
}
func (rc ReadCondition) matchView(v ViewState) bool { return matchAny(rc.ViewStates, int(v)) }
func (rc ReadCondition) matchInstance(s InstanceState) bool {
	return matchAny(rc.InstanceStates, int(s))
}

func matchAny[T ~int](set []T, v int) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if int(s) == v {
			return true
		}
	}
	return false
}

func (c *Cache) viewStateOf(inst *Instance, ch *Change) ViewState {
	if ch.generation.total() > inst.lastGenerationAccessed {
		return ViewNew
	}
	return NotNew
}

// SelectKeysForAccess returns every (timestamp, key) pair matching cond, in
// timestamp order, without mutating the cache.
func (c *Cache) SelectKeysForAccess(cond ReadCondition) []KeyedSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []KeyedSample
	for _, ch := range c.changes {
		inst := c.instances[keyOf(ch.Key)]
		if inst == nil {
			continue
		}
		if !cond.matchSample(ch.sampleState) {
			continue
		}
		if !cond.matchView(c.viewStateOf(inst, ch)) {
			continue
		}
		if !cond.matchInstance(inst.State) {
			continue
		}
		out = append(out, KeyedSample{Timestamp: ch.ReceiveTimestamp, Key: ch.Key})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// SampleInfo is the per-sample metadata delivered alongside a read/take
// result, per spec.md's Sample Cache contract.
type SampleInfo struct {
	SampleState             SampleState
	ViewState               ViewState
	InstanceState           InstanceState
	DisposedGenerationCount int64
	NoWritersGenerationCount int64
	SampleRank               int
	GenerationRank           int64
	AbsoluteGenerationRank   int64
	SourceTimestamp          ddstime.T
	PublicationHandle        guid.G
}

// Result is one returned sample paired with its SampleInfo.
type Result struct {
	Key     []byte
	Payload []byte
	Dispose bool
	Info    SampleInfo
}

// ReadByKeys marks the named samples Read, advances each instance's
// last_generation_accessed, and returns them paired with SampleInfo. take
// additionally removes the change from the cache.
func (c *Cache) readOrTake(keys []KeyedSample, take bool) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	// MRS = most-recent sample across the whole selected batch;
	// MRSIC = most-recent sample of each instance within the batch.
	var mrs generationSnapshot
	mrsic := make(map[string]generationSnapshot)
	for _, k := range keys {
		ch, ok := c.changes[k.Timestamp]
		if !ok {
			continue
		}
		if ch.generation.total() >= mrs.total() {
			mrs = ch.generation
		}
		ik := keyOf(ch.Key)
		if cur, ok := mrsic[ik]; !ok || ch.generation.total() >= cur.total() {
			mrsic[ik] = ch.generation
		}
	}

	// sample_rank: count of more-recent samples of the same instance still
	// in this batch, i.e. entries after this one for the same key.
	countAfter := make(map[string][]ddstime.T)
	for _, k := range keys {
		ik := keyOf(k.Key)
		countAfter[ik] = append(countAfter[ik], k.Timestamp)
	}
	for ik := range countAfter {
		sort.Slice(countAfter[ik], func(i, j int) bool { return countAfter[ik][i].Before(countAfter[ik][j]) })
	}

	out := make([]Result, 0, len(keys))
	maxReadGen := make(map[string]int64)
	for _, k := range keys {
		ch, ok := c.changes[k.Timestamp]
		if !ok {
			continue
		}
		inst := c.instances[keyOf(ch.Key)]
		if inst == nil {
			continue
		}
		ik := keyOf(ch.Key)

		view := c.viewStateOf(inst, ch)
		info := SampleInfo{
			SampleState:              ch.sampleState,
			ViewState:                view,
			InstanceState:            inst.State,
			DisposedGenerationCount:  inst.disposedGenerationCount,
			NoWritersGenerationCount: inst.noWritersGenerationCount,
			SourceTimestamp:          ch.SourceTimestamp,
			PublicationHandle:        ch.WriterGUID,
			GenerationRank:           mrsic[ik].total() - ch.generation.total(),
			AbsoluteGenerationRank:   mrs.total() - ch.generation.total(),
		}
		info.SampleRank = sampleRankOf(countAfter[ik], ch.ReceiveTimestamp)

		out = append(out, Result{Key: append([]byte(nil), ch.Key...), Payload: ch.Payload, Dispose: ch.Dispose, Info: info})

		ch.sampleState = Read
		g := ch.generation.total()
		if cur, seen := maxReadGen[ik]; !seen || g > cur {
			maxReadGen[ik] = g
		}

		if take {
			delete(c.changes, k.Timestamp)
			inst.samples = removeTimestamp(inst.samples, k.Timestamp)
		}
	}

	for ik, g := range maxReadGen {
		if inst, ok := c.instances[ik]; ok && g > inst.lastGenerationAccessed {
			inst.lastGenerationAccessed = g
		}
	}

	return out
}

// sampleRankOf counts how many entries in ordered (ascending, same instance,
// same batch) are strictly more recent than ts.
func sampleRankOf(ordered []ddstime.T, ts ddstime.T) int {
	n := 0
	for _, t := range ordered {
		if ts.Before(t) {
			n++
		}
	}
	return n
}

func removeTimestamp(ts []ddstime.T, target ddstime.T) []ddstime.T {
	out := ts[:0]
	for _, t := range ts {
		if !t.Equal(target) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Cache) ReadByKeys(keys []KeyedSample) []Result { return c.readOrTake(keys, false) }
func (c *Cache) TakeByKeys(keys []KeyedSample) []Result { return c.readOrTake(keys, true) }

// Len reports the number of live changes currently retained, for tests and
// diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.changes)
}
