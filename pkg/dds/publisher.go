package dds

import "github.com/opendds-go/ddscore/pkg/qos"

// Publisher groups DataWriters under one participant and one default QoS,
// per spec.md §6: DomainParticipant(domain_id) -> Publisher -> DataWriter.
type Publisher struct {
	dp       *DomainParticipant
	Policies qos.Policies
}

// NewPublisher mints a Publisher. A zero policies inherits nothing extra
// beyond what each DataWriter's own Topic already provides.
func (dp *DomainParticipant) NewPublisher(policies qos.Policies) *Publisher {
	return &Publisher{dp: dp, Policies: policies}
}
