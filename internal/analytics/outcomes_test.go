package analytics

import (
	"testing"
	"time"

	"earnframe/internal/store/eventlog"
)

func TestHourlyOutcomes(t *testing.T) {
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	events := []eventlog.Event{
		{TS: base.Add(5 * time.Minute), Type: eventlog.TypeEngaged},
		{TS: base.Add(50 * time.Minute), Type: eventlog.TypeEngaged},
		{TS: base.Add(70 * time.Minute), Type: eventlog.TypeFallback},
	}
	b := HourlyOutcomes(events)
	keys := SortedBucketKeys(b)
	if len(keys) != 2 || !keys[0].Equal(base) || !keys[1].Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if b[base][eventlog.TypeEngaged] != 2 || b[keys[1]][eventlog.TypeFallback] != 1 {
		t.Fatalf("unexpected buckets %v", b)
	}
}

func TestSummarize(t *testing.T) {
	events := []eventlog.Event{
		{Type: eventlog.TypeProviderFailed, Provider: "wield"},
		{Type: eventlog.TypeFallback},
		{Type: eventlog.TypeEngaged},
		{Type: eventlog.TypeNotEngaged},
		{Type: eventlog.TypeEarningsError},
	}
	s := Summarize(events)
	if s.Checks != 2 || s.Engaged != 1 || s.ProviderFails["wield"] != 1 || s.EarningsErrs != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.FallbackRate() != 0.5 {
		t.Fatalf("fallback rate = %v", s.FallbackRate())
	}
	if (Summary{}).FallbackRate() != 0 {
		t.Fatal("empty summary rate should be zero")
	}
}
