package monitor

import (
	"testing"
)

func TestComputeStatisticsCounts(t *testing.T) {
	var events []Event
	events = append(events, makeEvents(3, KindInstantiated)...)
	events = append(events, makeEvents(5, KindCalled)...)
	events = append(events, makeEvents(2, KindContractEmitted)...)

	stats := computeStatistics(events)

	if stats.Total != 10 {
		t.Errorf("Total = %d, want 10", stats.Total)
	}

	wantCounts := map[string]int{
		KindInstantiated:    3,
		KindCalled:          5,
		KindContractEmitted: 2,
	}
	if len(stats.CountsByKind) != len(wantCounts) {
		t.Errorf("CountsByKind has %d kinds, want %d", len(stats.CountsByKind), len(wantCounts))
	}
	for kind, want := range wantCounts {
		if got := stats.CountsByKind[kind]; got != want {
			t.Errorf("CountsByKind[%s] = %d, want %d", kind, got, want)
		}
	}
}

func TestComputeStatisticsRecentEvents(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		wantLen   int
		wantFirst string
	}{
		{name: "empty history", total: 0, wantLen: 0, wantFirst: ""},
		{name: "fewer than window", total: 4, wantLen: 4, wantFirst: "ev-0000"},
		{name: "exactly window", total: 10, wantLen: 10, wantFirst: "ev-0000"},
		{name: "more than window", total: 25, wantLen: 10, wantFirst: "ev-0015"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := computeStatistics(makeEvents(tt.total, KindCalled))

			if len(stats.RecentEvents) != tt.wantLen {
				t.Fatalf("RecentEvents len = %d, want %d", len(stats.RecentEvents), tt.wantLen)
			}
			if tt.wantLen > 0 && stats.RecentEvents[0].ID != tt.wantFirst {
				t.Errorf("RecentEvents[0] = %s, want %s", stats.RecentEvents[0].ID, tt.wantFirst)
			}
			if stats.Total != tt.total {
				t.Errorf("Total = %d, want %d", stats.Total, tt.total)
			}
		})
	}
}

func TestComputeStatisticsEmptyHistory(t *testing.T) {
	stats := computeStatistics(nil)
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
	if len(stats.CountsByKind) != 0 {
		t.Errorf("CountsByKind = %v, want empty", stats.CountsByKind)
	}
	if len(stats.RecentEvents) != 0 {
		t.Errorf("RecentEvents = %v, want empty", stats.RecentEvents)
	}
}
