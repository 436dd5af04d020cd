package ownership

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/guid"
)

func writer(seed byte) guid.G {
	return guid.New(guid.Prefix{seed}, guid.EntityId{1, 0, 0, byte(guid.KindWriterWithKey)})
}

func TestSharedAcceptsAllAlive(t *testing.T) {
	r := &Registry{}
	r.Register(Shared{})
	r.Active.Store("shared")

	w1, w2 := writer(1), writer(2)
	got := r.Elect(
		[]Candidate{
			{Writer: w1, Strength: 1, Alive: true},
			{Writer: w2, Strength: 5, Alive: true},
		},
	)
	if len(got) != 2 {
		t.Fatalf("expected both alive writers accepted under shared ownership, got %d", len(got))
	}
}

func TestExclusiveAcceptsHighestStrengthAlive(t *testing.T) {
	r := &Registry{}
	r.Register(Exclusive{})
	r.Active.Store("exclusive")

	weak, strong, dead := writer(1), writer(2), writer(3)
	got := r.Elect(
		[]Candidate{
			{Writer: weak, Strength: 1, Alive: true},
			{Writer: strong, Strength: 9, Alive: true},
			{Writer: dead, Strength: 100, Alive: false},
		},
	)
	if len(got) != 1 || !got[0].Equal(strong) {
		t.Fatalf("expected exactly the highest-strength alive writer, got %+v", got)
	}
}

func TestExclusiveWithNoAliveCandidatesElectsNothing(t *testing.T) {
	r := &Registry{}
	r.Register(Exclusive{})
	r.Active.Store("exclusive")

	got := r.Elect([]Candidate{{Writer: writer(1), Strength: 5, Alive: false}})
	if got != nil {
		t.Fatalf("expected no election when nothing is alive, got %+v", got)
	}
}

func TestExclusiveTieBreakIsDeterministic(t *testing.T) {
	r := &Registry{}
	r.Register(Exclusive{})
	r.Active.Store("exclusive")

	a, b := writer(1), writer(2)
	first := r.Elect([]Candidate{{Writer: a, Strength: 5, Alive: true}, {Writer: b, Strength: 5, Alive: true}})
	second := r.Elect([]Candidate{{Writer: b, Strength: 5, Alive: true}, {Writer: a, Strength: 5, Alive: true}})
	if len(first) != 1 || len(second) != 1 || !first[0].Equal(second[0]) {
		t.Fatalf("expected the same winner regardless of candidate order, got %+v and %+v", first, second)
	}
}

func TestDefaultRegistryStartsShared(t *testing.T) {
	if Default.Active.Load() != "shared" {
		t.Fatalf("expected default ownership strategy to be shared, got %q", Default.Active.Load())
	}
}
