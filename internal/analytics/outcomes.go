// Package analytics summarizes the event log for the monitor command.
package analytics

import (
	"sort"
	"time"

	"earnframe/internal/store/eventlog"
)

// HourlyOutcomes aggregates events into per-hour buckets keyed by event type.
func HourlyOutcomes(events []eventlog.Event) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, e := range events {
		key := e.TS.UTC().Truncate(time.Hour)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][e.Type]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// Summary totals a window of events.
type Summary struct {
	Checks        int
	Engaged       int
	Fallbacks     int
	ProviderFails map[string]int
	EarningsErrs  int
	RenderErrs    int
}

// FallbackRate is the share of engagement checks that needed the secondary
// provider. Zero when there were no checks.
func (s Summary) FallbackRate() float64 {
	if s.Checks == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Checks)
}

func Summarize(events []eventlog.Event) Summary {
	s := Summary{ProviderFails: map[string]int{}}
	for _, e := range events {
		switch e.Type {
		case eventlog.TypeEngaged:
			s.Checks++
			s.Engaged++
		case eventlog.TypeNotEngaged:
			s.Checks++
		case eventlog.TypeFallback:
			s.Fallbacks++
		case eventlog.TypeProviderFailed:
			s.ProviderFails[e.Provider]++
		case eventlog.TypeEarningsError:
			s.EarningsErrs++
		case eventlog.TypeRenderError:
			s.RenderErrs++
		}
	}
	return s
}
