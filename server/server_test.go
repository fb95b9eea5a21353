package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Elactrac/dotnation-sub005/feed"
	"github.com/Elactrac/dotnation-sub005/monitor"
)

type stubFeed struct {
	mu      sync.Mutex
	handler feed.BatchHandler
}

func (s *stubFeed) IsReady() bool { return true }

func (s *stubFeed) Subscribe(h feed.BatchHandler) (feed.CancelFunc, error) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	return func() {}, nil
}

func (s *stubFeed) push(b feed.BlockEvents) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(b)
	}
}

func contractRecord(method string, data ...string) feed.EventRecord {
	raw := make([]json.RawMessage, len(data))
	for i, d := range data {
		raw[i] = json.RawMessage(strconv.Quote(d))
	}
	return feed.EventRecord{
		Pallet: monitor.DefaultNamespace,
		Method: method,
		Data:   raw,
		Phase:  json.RawMessage(`{"applyExtrinsic":0}`),
	}
}

// newTestServer builds a started monitor over a stub feed, seeds it
// with a few events, and wraps it in an APIServer.
func newTestServer(t *testing.T) (*APIServer, *stubFeed, *monitor.Monitor) {
	t.Helper()

	f := &stubFeed{}
	m := monitor.New(f)
	if m.Start(nil) == nil {
		t.Fatal("monitor start failed")
	}

	f.push(feed.BlockEvents{Height: 10, Records: []feed.EventRecord{
		contractRecord("Instantiated", "5Deployer", "5Contract"),
		contractRecord("Called", "5Caller", "5Contract"),
	}})
	f.push(feed.BlockEvents{Height: 11, Records: []feed.EventRecord{
		contractRecord("Called", "5Caller", "5Contract"),
		contractRecord("ContractEmitted", "5Contract", "DonationReceived", "1", "5Donor", "99"),
	}})

	return NewAPIServer(m, 0, zap.NewNop()), f, m
}

func get(t *testing.T, s *APIServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string                  `json:"status"`
		Stats  monitor.MetricsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %s, want healthy", body.Status)
	}
	if body.Stats.EventsIngested != 4 {
		t.Errorf("stats.events_ingested = %d, want 4", body.Stats.EventsIngested)
	}
}

func TestHealthDegradedAfterStop(t *testing.T) {
	s, _, m := newTestServer(t)
	m.Stop()

	rec := get(t, s, "/health")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %s, want degraded", body.Status)
	}
}

func TestReadyEndpoint(t *testing.T) {
	s, _, m := newTestServer(t)

	if rec := get(t, s, "/ready"); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	m.Stop()
	if rec := get(t, s, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status after stop = %d, want 503", rec.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCount int
	}{
		{name: "all events", path: "/events", wantCode: 200, wantCount: 4},
		{name: "kind filter", path: "/events?kind=Called", wantCode: 200, wantCount: 2},
		{name: "kind and limit", path: "/events?kind=Called&limit=1", wantCode: 200, wantCount: 1},
		{name: "no matches", path: "/events?kind=Terminated", wantCode: 200, wantCount: 0},
		{name: "bad since", path: "/events?since=yesterday", wantCode: 400},
		{name: "bad limit", path: "/events?limit=-2", wantCode: 400},
		{name: "zero limit", path: "/events?limit=0", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Count  int             `json:"count"`
				Events []monitor.Event `json:"events"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding events body: %v", err)
			}
			if body.Count != tt.wantCount || len(body.Events) != tt.wantCount {
				t.Errorf("count = %d (%d events), want %d", body.Count, len(body.Events), tt.wantCount)
			}
		})
	}
}

func TestEventsEndpointTimeWindow(t *testing.T) {
	s, _, _ := newTestServer(t)

	cut := time.Now().Add(time.Minute).UTC()
	// Everything seeded so far is before the cut; nothing matches.
	rec := get(t, s, "/events?since="+cut.Format(time.RFC3339))
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding events body: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0 for a future since", body.Count)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats monitor.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats body: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.CountsByKind["Called"] != 2 {
		t.Errorf("counts_by_kind[Called] = %d, want 2", stats.CountsByKind["Called"])
	}
	if len(stats.RecentEvents) != 4 {
		t.Errorf("recent_events len = %d, want 4", len(stats.RecentEvents))
	}
}

func TestExportEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/export?kind=Called")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Error("export has no Content-Disposition header")
	}

	events, err := monitor.ParseExportedEvents(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("export does not round-trip: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("exported %d events, want 2", len(events))
	}
}

func TestClearHistoryEndpoint(t *testing.T) {
	s, _, m := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/history/clear", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /history/clear = %d, want 405", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/history/clear", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /history/clear = %d, want 204", rec.Code)
	}

	if got := len(m.GetHistory(monitor.Filter{})); got != 0 {
		t.Errorf("history has %d events after clear, want 0", got)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics body is empty")
	}
}

func TestFilterFromQuery(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	req := httptest.NewRequest(http.MethodGet,
		"/events?kind=Called&since=2025-06-01T00:00:00Z&until=2025-06-02T00:00:00Z&limit=25", nil)

	f, err := filterFromQuery(req)
	if err != nil {
		t.Fatalf("filterFromQuery: %v", err)
	}
	if f.Kind != "Called" {
		t.Errorf("Kind = %s, want Called", f.Kind)
	}
	if !f.Since.Equal(since) {
		t.Errorf("Since = %v, want %v", f.Since, since)
	}
	if !f.Until.Equal(until) {
		t.Errorf("Until = %v, want %v", f.Until, until)
	}
	if f.Limit != 25 {
		t.Errorf("Limit = %d, want 25", f.Limit)
	}
}
