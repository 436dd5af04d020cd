package ownership

import "github.com/opendds-go/ddscore/pkg/guid"

// Shared is the default ownership strategy: every alive matched writer's
// samples are accepted, which is how Shared ownership QoS (the DDS default)
// behaves.
type Shared struct{}

func (Shared) Type() string { return "shared" }

func (Shared) Elect(candidates []Candidate) (accepted []guid.G) {
	for _, c := range candidates {
		if c.Alive {
			accepted = append(accepted, c.Writer)
		}
	}
	return
}
