package dds

import "github.com/opendds-go/ddscore/pkg/qos"

// Subscriber groups DataReaders under one participant and one default QoS,
// per spec.md §6: DomainParticipant(domain_id) -> Subscriber -> DataReader.
type Subscriber struct {
	dp       *DomainParticipant
	Policies qos.Policies
}

func (dp *DomainParticipant) NewSubscriber(policies qos.Policies) *Subscriber {
	return &Subscriber{dp: dp, Policies: policies}
}
