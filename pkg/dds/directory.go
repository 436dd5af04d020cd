package dds

import (
	"sync"

	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/rtps"
)

// userDirectory is the eventloop.Directory/HeartbeatSource over this
// participant's own DataWriters/DataReaders, registered on the Participant
// Event Loop alongside the Discovery Engine's built-in one (see
// pkg/eventloop's Directory doc comment, which names this as the public
// API's eventual registry).
type userDirectory struct {
	mu      sync.RWMutex
	readers map[guid.EntityId]*rtps.Reader
	writers map[guid.EntityId]*rtps.Writer
}

func newUserDirectory() *userDirectory {
	return &userDirectory{
		readers: make(map[guid.EntityId]*rtps.Reader),
		writers: make(map[guid.EntityId]*rtps.Writer),
	}
}

func (d *userDirectory) ReaderByEntityID(id guid.EntityId) *rtps.Reader {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readers[id]
}

func (d *userDirectory) WriterByEntityID(id guid.EntityId) *rtps.Writer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.writers[id]
}

func (d *userDirectory) Writers() []*rtps.Writer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*rtps.Writer, 0, len(d.writers))
	for _, w := range d.writers {
		out = append(out, w)
	}
	return out
}

func (d *userDirectory) addWriter(id guid.EntityId, w *rtps.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers[id] = w
}

func (d *userDirectory) addReader(id guid.EntityId, r *rtps.Reader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readers[id] = r
}

func (d *userDirectory) removeWriter(id guid.EntityId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.writers, id)
}

func (d *userDirectory) removeReader(id guid.EntityId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.readers, id)
}
