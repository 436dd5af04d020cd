// Package ownership resolves spec.md's Ownership QoS open question: for an
// instance with Exclusive ownership, which of several alive matched writers
// a reader should accept samples from. It follows the teacher's pkg/acl
// registry-of-strategies pattern: strategies register themselves by name,
// one is active at a time, and callers dispatch through the registry
// without knowing which strategy is installed.
package ownership

import (
	"go.uber.org/atomic"

	"github.com/opendds-go/ddscore/pkg/guid"
)

// Candidate is one writer currently matched to the instance under election.
type Candidate struct {
	Writer   guid.G
	Strength int32
	Alive    bool
}

// Strategy decides which candidate(s) a reader should accept for one
// instance.
type Strategy interface {
	Type() string
	// Elect returns the guids a reader should currently accept samples
	// from. Shared ownership accepts every alive candidate; Exclusive
	// accepts at most one.
	Elect(candidates []Candidate) []guid.G
}

// Registry dispatches Elect calls to whichever Strategy is Active.
type Registry struct {
	strategies []Strategy
	Active     atomic.String
}

func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

func (r *Registry) Elect(candidates []Candidate) []guid.G {
	for _, s := range r.strategies {
		if s.Type() == r.Active.Load() {
			return s.Elect(candidates)
		}
	}
	return nil
}

// Default is the process-wide registry, with the shared strategy active. No
// other package in this module consults it: pkg/cache and pkg/rtps accept
// samples without regard to Ownership QoS.
var Default = &Registry{}

func init() {
	Default.Register(Shared{})
	Default.Register(Exclusive{})
	Default.Active.Store("shared")
}
