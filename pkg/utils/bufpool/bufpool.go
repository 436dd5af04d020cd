package bufpool

import (
	"fmt"
	"sync"
	"unsafe"

	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/units"
)

const (
	// BufferSize is large enough for one UDP datagram carrying an RTPS
	// message with an inline parameter-list DATA submessage (SPDP/SEDP),
	// which routinely exceeds the path MTU and relies on IP fragmentation.
	BufferSize = 64 * units.Kb
)

type B []byte

func (b B) ToBytes() []byte { return b }

var Pool = sync.Pool{
	New: func() interface{} {
		// Full-length so a caller can hand it straight to ReadFromUDP.
		b := make([]byte, BufferSize)
		log.T.C(
			func() string {
				ptr := unsafe.SliceData(b)
				return fmt.Sprintf("creating buffer at: %p", ptr)
			},
		)
		return B(b)
	},
}

// Get returns a buffer from the pool or creates a new one if the pool is empty.
//
// Example usage:
//
//	buf := bufpool.Get()
//	defer bufpool.Put(buf)
//	// Use buf...
func Get() B {
	b := Pool.Get().(B)
	log.T.C(
		func() string {
			ptr := unsafe.SliceData(b)
			return fmt.Sprintf("getting buffer at: %p", ptr)
		},
	)
	return b
}

// Put returns a buffer to the pool.
// Buffers should be returned to the pool when no longer needed to allow reuse.
func Put(b B) {
	if len(b) != BufferSize {
		b = b[:cap(b)]
	}
	for i := range b {
		(b)[i] = 0
	}
	log.T.C(
		func() string {
			ptr := unsafe.SliceData(b)
			return fmt.Sprintf("returning to buffer: %p", ptr)
		},
	)
	Pool.Put(b)
}

// PutBytes returns a buffer was not necessarily created by Get().
func PutBytes(b []byte) {
	log.T.C(
		func() string {
			ptr := unsafe.SliceData(b)
			return fmt.Sprintf("returning bytes to buffer: %p", ptr)
		},
	)
	Put(b)
}
