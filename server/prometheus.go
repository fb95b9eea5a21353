package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Elactrac/dotnation-sub005/monitor"
)

var (
	eventsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dotnation_monitor_events_ingested_total",
		Help: "Total contract events ingested into history",
	})

	eventsFilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dotnation_monitor_events_filtered_total",
		Help: "Total ledger events discarded by the namespace filter",
	})

	blocksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dotnation_monitor_blocks_processed_total",
		Help: "Total blocks delivered by the ledger feed",
	})

	listenerFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dotnation_monitor_listener_faults_total",
		Help: "Total listener callbacks that panicked during dispatch",
	})

	decodeFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dotnation_monitor_decode_faults_total",
		Help: "Total contract event payloads the decoder rejected",
	})

	historySizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dotnation_monitor_history_size",
		Help: "Events currently retained in history",
	})

	lastBlockGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dotnation_monitor_last_block",
		Help: "Height of the most recent block with an ingested event",
	})

	monitorUpGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dotnation_monitor_up",
		Help: "1 while the feed subscription is active",
	})
)

// MetricsObserver mirrors monitor counters into Prometheus. Per-event
// metrics come from a wildcard listener; the slower counters are
// sampled from the monitor's snapshot on a ticker.
type MetricsObserver struct {
	monitor  *monitor.Monitor
	remove   monitor.RemoveFunc
	interval time.Duration
	done     chan struct{}
	last     monitor.MetricsSnapshot
}

// NewMetricsObserver starts observing m. Stop releases it.
func NewMetricsObserver(m *monitor.Monitor, interval time.Duration) *MetricsObserver {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	o := &MetricsObserver{
		monitor:  m,
		interval: interval,
		done:     make(chan struct{}),
	}
	o.remove = m.AddEventListener(monitor.Wildcard, func(ev monitor.Event) {
		eventsIngestedTotal.Inc()
		lastBlockGauge.Set(float64(ev.Block))
	})
	go o.run()
	return o
}

func (o *MetricsObserver) run() {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			o.sync()
		}
	}
}

// sync pushes counter deltas since the previous sample. Counters must
// only move forward, so totals are never written directly.
func (o *MetricsObserver) sync() {
	snap := o.monitor.Metrics()

	eventsFilteredTotal.Add(float64(snap.EventsFiltered - o.last.EventsFiltered))
	blocksProcessedTotal.Add(float64(snap.BlocksProcessed - o.last.BlocksProcessed))
	listenerFaultsTotal.Add(float64(snap.ListenerFaults - o.last.ListenerFaults))
	decodeFaultsTotal.Add(float64(snap.DecodeFaults - o.last.DecodeFaults))

	historySizeGauge.Set(float64(snap.HistorySize))
	if o.monitor.Running() {
		monitorUpGauge.Set(1)
	} else {
		monitorUpGauge.Set(0)
	}

	o.last = snap
}

// Stop removes the wildcard listener and halts sampling.
func (o *MetricsObserver) Stop() {
	o.remove()
	close(o.done)
}
