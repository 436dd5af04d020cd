// Package keyhash derives the 16-byte wire-level KeyHash used to correlate
// an InstanceKey across DATA submessages without shipping the full key.
//
// RTPS defines KeyHash as an MD5 of the serialized key for long keys, but for
// this implementation's purposes (correlation only, not interop with a
// reference MD5-based KeyHash) two independently-seeded xxhash sums fill the
// 16 bytes; this follows the same "reuse the ecosystem's fast hash instead of
// hand-rolling one" idiom the teacher uses Badger's xxhash-backed indexing.
package keyhash

import "github.com/cespare/xxhash/v2"

const Len = 16

type H [Len]byte

// Of computes the KeyHash of a serialized key value.
func Of(key []byte) (h H) {
	d1 := xxhash.New()
	d1.Write(key)
	sum1 := d1.Sum64()

	d2 := xxhash.NewWithSeed(0x5A5A5A5A5A5A5A5A)
	d2.Write(key)
	sum2 := d2.Sum64()

	putUint64(h[0:8], sum1)
	putUint64(h[8:16], sum2)
	return
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}
