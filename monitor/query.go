package monitor

import "time"

// Filter narrows a history query. Zero values leave a criterion
// unset. Criteria apply in a fixed order: kind, since, until, then
// limit as a tail slice of the already-narrowed result, so a limited
// query returns the most recent matches.
type Filter struct {
	// Kind keeps only events of this exact kind.
	Kind string
	// Since keeps events observed at or after this instant.
	Since time.Time
	// Until keeps events observed at or before this instant.
	Until time.Time
	// Limit caps the result to its last Limit entries.
	Limit int
}

func (f Filter) apply(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		if !f.Since.IsZero() && ev.ObservedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && ev.ObservedAt.After(f.Until) {
			continue
		}
		out = append(out, ev)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
