package discovery

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/qos"
)

func testPrefix(seed byte) guid.Prefix {
	var p guid.Prefix
	p[0] = seed
	return p
}

func TestUpdateParticipantReportsWasNewOnce(t *testing.T) {
	db := NewDB()
	data := ParticipantData{Prefix: testPrefix(1), LeaseDuration: ddstime.T{Seconds: 10}}

	if !db.UpdateParticipant(data, ddstime.Now()) {
		t.Fatalf("expected the first sighting of a prefix to report was_new")
	}
	if db.UpdateParticipant(data, ddstime.Now()) {
		t.Fatalf("expected a refresh of a known prefix to report was_new=false")
	}
}

func TestUpdateSubscriptionConstructsProxyOnceAndReusesIt(t *testing.T) {
	db := NewDB()
	g := guid.New(testPrefix(2), guid.NewEntityId([3]byte{1, 0, 0}, guid.KindReaderWithKey))
	data := DiscoveredReaderData{GUID: g, Topic: "weather", TypeName: "WeatherSample"}

	p1, changed1 := db.UpdateSubscription(data)
	if !changed1 || p1 == nil {
		t.Fatalf("expected the first sighting to construct a proxy and report changed")
	}
	p2, changed2 := db.UpdateSubscription(data)
	if changed2 {
		t.Fatalf("expected an identical re-announcement to report changed=false")
	}
	if p1 != p2 {
		t.Fatalf("expected the same proxy object to be reused across unchanged re-announcements")
	}
}

func TestParticipantCleanupEvictsExpiredLease(t *testing.T) {
	db := NewDB()
	data := ParticipantData{Prefix: testPrefix(3), LeaseDuration: ddstime.T{Seconds: 1}}
	seenAt := ddstime.Now()
	db.UpdateParticipant(data, seenAt)

	future := ddstime.FromUnixNano(seenAt.UnixNano() + int64(5)*1e9)
	evicted := db.ParticipantCleanup(future)
	if len(evicted) != 1 || evicted[0] != data.Prefix {
		t.Fatalf("expected the expired prefix to be evicted, got %v", evicted)
	}
	if db.HasParticipant(data.Prefix) {
		t.Fatalf("expected the evicted participant to no longer be known")
	}
}

func TestTopicCleanupEvictsUnreferencedTopics(t *testing.T) {
	db := NewDB()
	w := DiscoveredWriterData{GUID: guid.New(testPrefix(4), guid.NewEntityId([3]byte{1, 0, 0}, guid.KindWriterWithKey)), Topic: "weather"}
	db.AddLocalWriter(w)
	db.RemoveLocalWriter(w.GUID)
	db.TopicCleanup()

	// No direct accessor for topic presence is exposed; this exercises the
	// reference counting path without panicking, which is what matters here.
}

func TestMatchingWritersForReaderAppliesQoSCompatibility(t *testing.T) {
	db := NewDB()
	writerReliable := DiscoveredWriterData{
		GUID: guid.New(testPrefix(5), guid.NewEntityId([3]byte{1, 0, 0}, guid.KindWriterWithKey)),
		Topic: "weather", TypeName: "WeatherSample",
		Policies: qos.Policies{Reliability: qos.Reliability{Kind: qos.Reliable}},
	}
	db.UpdatePublication(writerReliable)

	readerReliable := DiscoveredReaderData{
		Topic: "weather", TypeName: "WeatherSample",
		Policies: qos.Policies{Reliability: qos.Reliability{Kind: qos.Reliable}},
	}
	if got := db.MatchingWritersForReader(readerReliable); len(got) != 1 {
		t.Fatalf("expected the reliable writer to match a reliable reader, got %d", len(got))
	}

	readerBestEffort := DiscoveredReaderData{Topic: "weather", TypeName: "WeatherSample"}
	if got := db.MatchingWritersForReader(readerBestEffort); len(got) != 1 {
		t.Fatalf("expected a best-effort reader to also match the reliable writer, got %d", len(got))
	}
}
