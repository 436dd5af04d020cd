package discovery

import "github.com/opendds-go/ddscore/pkg/qos"

// wildcardTypeName lets either side of a match skip type checking, for
// endpoints whose application code does not track a type name.
const wildcardTypeName = "*"

func typeNamesCompatible(reader, writer string) bool {
	if reader == wildcardTypeName || writer == wildcardTypeName {
		return true
	}
	return reader == writer
}

// matches implements the Discovery DB matching rule of spec.md §4.6: equal
// topic names, compatible (or wildcard) type names, and QoS-compatible
// policies.
func matches(readerTopic, readerType string, readerQoS qos.Policies, writerTopic, writerType string, writerQoS qos.Policies) bool {
	if readerTopic != writerTopic {
		return false
	}
	if !typeNamesCompatible(readerType, writerType) {
		return false
	}
	return qos.Compatible(readerQoS, writerQoS)
}
