package dds

import (
	"reflect"

	"github.com/opendds-go/ddscore/pkg/qos"
)

// resolvePolicies implements spec.md §6's "QoS is supplied per entity and
// inherited where not overridden": a caller that passes the zero
// qos.Policies{} inherits base (its Topic's, or its Publisher/Subscriber's)
// wholesale; any other value is used as given. There is no field-by-field
// merging, because several policy zero values
// (BestEffort, Volatile) are themselves meaningful settings, not "unset"
// markers, so there is no way to distinguish "explicitly BestEffort" from
// "didn't say" at the field level.
func resolvePolicies(base, override qos.Policies) qos.Policies {
	if reflect.DeepEqual(override, qos.Policies{}) {
		return base
	}
	return override
}
