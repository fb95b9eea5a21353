package monitor

// RecentEventCount is how many trailing events Statistics carries.
const RecentEventCount = 10

// Statistics summarizes the retained history at the moment it was
// computed.
type Statistics struct {
	Total        int            `json:"total"`
	CountsByKind map[string]int `json:"counts_by_kind"`
	RecentEvents []Event        `json:"recent_events"`
}

func computeStatistics(events []Event) Statistics {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Kind]++
	}

	recent := events
	if len(recent) > RecentEventCount {
		recent = recent[len(recent)-RecentEventCount:]
	}

	return Statistics{
		Total:        len(events),
		CountsByKind: counts,
		RecentEvents: recent,
	}
}
