package ownership

import (
	"bytes"

	"github.com/opendds-go/ddscore/pkg/guid"
)

// Exclusive implements spec.md's suggested resolution for Exclusive
// ownership: a reader accepts samples from exactly one matched writer per
// instance, the alive one with the highest strength. Ties are broken by
// GUID byte order so the election is deterministic across every reader
// observing the same candidate set.
type Exclusive struct{}

func (Exclusive) Type() string { return "exclusive" }

func (Exclusive) Elect(candidates []Candidate) []guid.G {
	var winner *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.Alive {
			continue
		}
		switch {
		case winner == nil:
			winner = c
		case c.Strength > winner.Strength:
			winner = c
		case c.Strength == winner.Strength && bytes.Compare(c.Writer.Bytes(), winner.Writer.Bytes()) > 0:
			winner = c
		}
	}
	if winner == nil {
		return nil
	}
	return []guid.G{winner.Writer}
}
