package dds

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/qos"
)

func TestResolvePoliciesZeroOverrideInheritsBaseWholesale(t *testing.T) {
	base := qos.Default()
	base.Reliability.Kind = qos.Reliable
	base.History.Depth = 16

	got := resolvePolicies(base, qos.Policies{})
	if got != base {
		t.Fatalf("expected zero override to inherit base wholesale, got %+v, want %+v", got, base)
	}
}

func TestResolvePoliciesNonZeroOverrideReplacesBaseInFull(t *testing.T) {
	base := qos.Default()
	base.Reliability.Kind = qos.Reliable
	base.History.Depth = 16

	override := qos.Policies{Reliability: qos.Reliability{Kind: qos.BestEffort}}
	got := resolvePolicies(base, override)
	if got != override {
		t.Fatalf("expected a non-zero override to replace base in full, got %+v, want %+v", got, override)
	}
	if got.History.Depth != 0 {
		t.Fatalf("expected no field-by-field merge from base, got History.Depth=%d", got.History.Depth)
	}
}
