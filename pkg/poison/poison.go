// Package poison implements a read-write lock that permanently refuses
// acquisition once a critical section it guards has panicked, mirroring
// Rust's Mutex/RwLock poisoning for the two multi-reader/single-writer
// resources spec.md §5 calls fatal on poisoning: the Discovery DB and the
// Shared Topic Cache.
package poison

import (
	"sync"

	"go.uber.org/atomic"
	"lol.mleku.dev/log"
)

// Lock is a sync.RWMutex that poisons itself if the critical section it
// guards panics. A poisoned Lock panics on every subsequent Do/RDo call;
// the owning component's state is assumed inconsistent from that point on.
type Lock struct {
	name     string
	mu       sync.RWMutex
	poisoned atomic.Bool
}

// NewLock names the lock for its panic/log messages, e.g. the component it
// guards ("discoverydb", "topiccache").
func NewLock(name string) *Lock { return &Lock{name: name} }

func (l *Lock) checkNotPoisoned() {
	if l.poisoned.Load() {
		panic(l.name + ": lock poisoned by prior panic")
	}
}

func (l *Lock) poison() {
	log.E.F("%s: poisoning lock after panic in critical section", l.name)
	l.poisoned.Store(true)
}

// Do runs fn under the write lock, poisoning and re-panicking if fn panics.
func (l *Lock) Do(fn func()) {
	l.checkNotPoisoned()
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l.poison()
			panic(r)
		}
	}()
	fn()
}

// RDo runs fn under the read lock, poisoning and re-panicking if fn panics.
func (l *Lock) RDo(fn func()) {
	l.checkNotPoisoned()
	l.mu.RLock()
	defer l.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			l.poison()
			panic(r)
		}
	}()
	fn()
}

func (l *Lock) Poisoned() bool { return l.poisoned.Load() }
