package discovery

import (
	"testing"

	"github.com/opendds-go/ddscore/pkg/qos"
)

func TestMatchesRequiresEqualTopicNames(t *testing.T) {
	if matches("weather", "T", qos.Default(), "temperature", "T", qos.Default()) {
		t.Fatalf("expected different topic names to never match")
	}
}

func TestMatchesAllowsWildcardTypeName(t *testing.T) {
	if !matches("weather", "*", qos.Default(), "weather", "WeatherSample", qos.Default()) {
		t.Fatalf("expected a wildcard reader type name to match any writer type")
	}
}

func TestMatchesRejectsIncompatibleQoS(t *testing.T) {
	reader := qos.Default()
	reader.Reliability.Kind = qos.Reliable
	writer := qos.Default() // BestEffort
	if matches("weather", "T", reader, "weather", "T", writer) {
		t.Fatalf("expected a reliable reader to never match a best-effort writer")
	}
}
