package discovery

import (
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/rtps"
)

// EventKind distinguishes the notifications the Discovery Engine sends up
// to the participant event loop (C9), per spec.md §4.7/§5.
type EventKind int

const (
	EventReaderUpdated EventKind = iota
	EventWriterUpdated
	EventParticipantLost
)

// Event carries a match/unmatch/loss notification. Only the field matching
// Kind is populated.
type Event struct {
	Kind EventKind

	Reader      DiscoveredReaderData
	ReaderProxy *rtps.ReaderProxy // installed into the local writer matched by Reader

	Writer      DiscoveredWriterData
	WriterProxy *rtps.WriterProxy // installed into the local reader matched by Writer

	LostParticipant guid.Prefix
}

// CommandKind distinguishes a command sent down from the event loop to the
// Discovery Engine, per spec.md §5.
type CommandKind int

const (
	CommandAddLocalWriter CommandKind = iota
	CommandAddLocalReader
	CommandRemoveLocalWriter
	CommandRemoveLocalReader
	CommandStopDiscovery
)

type Command struct {
	Kind   CommandKind
	Writer DiscoveredWriterData
	Reader DiscoveredReaderData
	GUID   guid.G
}
