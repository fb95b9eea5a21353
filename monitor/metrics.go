package monitor

import (
	"sync"
	"time"
)

// Metrics tracks ingestion counters for a Monitor.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	blocksProcessed int64
	eventsIngested  int64
	eventsFiltered  int64
	listenerFaults  int64
	decodeFaults    int64
	lastBlock       uint64
	lastIngest      time.Time
}

func newMetrics(start time.Time) *Metrics {
	return &Metrics{startTime: start}
}

func (m *Metrics) recordIngest(faults int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsIngested++
	m.listenerFaults += int64(faults)
	m.lastIngest = at
}

func (m *Metrics) recordFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsFiltered++
}

func (m *Metrics) recordDecodeFault() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeFaults++
}

func (m *Metrics) recordBlock(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocksProcessed++
	if height > m.lastBlock {
		m.lastBlock = height
	}
}

// MetricsSnapshot is a point-in-time copy of a Monitor's counters, in
// the shape the health endpoint serves.
type MetricsSnapshot struct {
	UptimeSeconds   float64   `json:"uptime_seconds"`
	BlocksProcessed int64     `json:"blocks_processed"`
	EventsIngested  int64     `json:"events_ingested"`
	EventsFiltered  int64     `json:"events_filtered"`
	ListenerFaults  int64     `json:"listener_faults"`
	DecodeFaults    int64     `json:"decode_faults"`
	LastBlock       uint64    `json:"last_block"`
	LastIngestAt    time.Time `json:"last_ingest_at"`
	HistorySize     int       `json:"history_size"`
}

func (m *Metrics) snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		BlocksProcessed: m.blocksProcessed,
		EventsIngested:  m.eventsIngested,
		EventsFiltered:  m.eventsFiltered,
		ListenerFaults:  m.listenerFaults,
		DecodeFaults:    m.decodeFaults,
		LastBlock:       m.lastBlock,
		LastIngestAt:    m.lastIngest,
	}
}
