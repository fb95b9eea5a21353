package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Elactrac/dotnation-sub005/feed"
)

// Decoder synthesizes a typed domain value from an ingested event's
// kind and payload. Implementations must be pure. A (nil, nil) return
// means the event is not one the decoder recognizes.
type Decoder interface {
	Decode(kind string, payload []string) (any, error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNamespace sets the pallet namespace ingested events must carry.
// Records from other pallets are discarded at ingestion.
func WithNamespace(ns string) Option {
	return func(m *Monitor) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithHistorySize bounds the retained history.
func WithHistorySize(n int) Option {
	return func(m *Monitor) { m.history = NewHistoryBuffer(n) }
}

// WithDecoder attaches a typed decoder. Decode failures are logged and
// counted but never interrupt ingestion.
func WithDecoder(d Decoder) Option {
	return func(m *Monitor) { m.decoder = d }
}

// WithClock overrides the time source. Tests use it to make
// ObservedAt stamps deterministic.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Subscription is the opaque handle for an active feed subscription.
type Subscription struct {
	id     string
	cancel feed.CancelFunc
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Monitor ingests contract events from a ledger feed, keeps a bounded
// FIFO history, and fans each event out to registered listeners.
// Every method is safe for concurrent use.
type Monitor struct {
	source    feed.Feed
	namespace string
	logger    *zap.Logger
	decoder   Decoder
	now       func() time.Time

	history  *HistoryBuffer
	registry *ListenerRegistry
	metrics  *Metrics

	mu  sync.Mutex
	sub *Subscription

	// tsMu guards the ObservedAt clamp. It is never held while
	// listeners run, so callbacks may call back into the monitor.
	tsMu         sync.Mutex
	lastObserved time.Time
}

// New creates a Monitor over the given feed.
func New(source feed.Feed, opts ...Option) *Monitor {
	m := &Monitor{
		source:    source,
		namespace: DefaultNamespace,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.history == nil {
		m.history = NewHistoryBuffer(DefaultHistorySize)
	}
	m.registry = NewListenerRegistry()
	m.metrics = newMetrics(m.now())
	return m
}

// Start subscribes to the feed and begins ingesting contract events.
// onEvent, when non-nil, runs for every ingested event after listener
// dispatch. Start never returns an error: a feed that is not ready, an
// already-active subscription, or a failed subscribe all yield a nil
// handle and a log entry.
func (m *Monitor) Start(onEvent func(Event)) *Subscription {
	if m.source == nil || !m.source.IsReady() {
		m.logger.Warn("ledger feed not ready, monitor not started")
		return nil
	}

	m.mu.Lock()
	if m.sub != nil {
		m.logger.Warn("monitor already subscribed",
			zap.String("subscription_id", m.sub.id))
		m.mu.Unlock()
		return nil
	}
	sub := &Subscription{id: uuid.NewString()}
	// Reserve the slot before the possibly slow subscribe call so a
	// concurrent Start cannot open a second subscription.
	m.sub = sub
	m.mu.Unlock()

	cancel, err := m.source.Subscribe(func(batch feed.BlockEvents) {
		m.ingest(batch, onEvent)
	})
	if err != nil {
		m.mu.Lock()
		if m.sub == sub {
			m.sub = nil
		}
		m.mu.Unlock()
		m.logger.Error("failed to subscribe to ledger feed", zap.Error(err))
		return nil
	}

	m.mu.Lock()
	sub.cancel = cancel
	stopped := m.sub != sub
	m.mu.Unlock()
	if stopped {
		// Stop ran while the subscription was being established.
		cancel()
		m.logger.Warn("monitor stopped during subscribe",
			zap.String("subscription_id", sub.id))
		return nil
	}

	m.logger.Info("monitor started",
		zap.String("subscription_id", sub.id),
		zap.String("namespace", m.namespace))
	return sub
}

// Stop cancels the active subscription. It is idempotent, a no-op on
// a monitor that never started, and safe to call from inside a
// listener callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub == nil || sub.cancel == nil {
		return
	}
	sub.cancel()
	m.logger.Info("monitor stopped", zap.String("subscription_id", sub.id))
}

// Running reports whether a feed subscription is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

// AddEventListener registers fn for events of the given kind; the
// Wildcard kind receives every event. The returned RemoveFunc
// deregisters exactly this registration and tolerates repeated calls.
func (m *Monitor) AddEventListener(kind string, fn func(Event)) RemoveFunc {
	return m.registry.Add(kind, fn)
}

// GetHistory returns the retained events narrowed by f, oldest first.
// The result is a copy, payloads included; mutating it does not touch
// retained history.
func (m *Monitor) GetHistory(f Filter) []Event {
	return f.apply(m.history.Snapshot())
}

// GetStatistics computes aggregate counts over the current history.
func (m *Monitor) GetStatistics() Statistics {
	return computeStatistics(m.history.Snapshot())
}

// ExportEvents serializes the filtered history as a self-describing
// JSON document. ParseExportedEvents restores it.
func (m *Monitor) ExportEvents(f Filter) ([]byte, error) {
	return marshalExport(m.GetHistory(f), m.now())
}

// ClearHistory drops all retained events. Listeners and the feed
// subscription are unaffected.
func (m *Monitor) ClearHistory() {
	m.history.Clear()
	m.logger.Info("event history cleared")
}

// Metrics returns a snapshot of the ingestion counters.
func (m *Monitor) Metrics() MetricsSnapshot {
	snap := m.metrics.snapshot()
	snap.HistorySize = m.history.Len()
	return snap
}

// ingest filters one block's records to the monitored namespace,
// appends the survivors to history, and dispatches them. It runs on
// the feed's delivery goroutine.
func (m *Monitor) ingest(batch feed.BlockEvents, onEvent func(Event)) {
	ingested := 0
	for _, rec := range batch.Records {
		if rec.Pallet != m.namespace {
			m.metrics.recordFiltered()
			continue
		}

		ev := Event{
			ID:         uuid.NewString(),
			Kind:       rec.Method,
			Namespace:  rec.Pallet,
			Payload:    rec.DecodedData(),
			Phase:      rec.DecodedPhase(),
			Block:      batch.Height,
			ObservedAt: m.stamp(),
		}

		if m.decoder != nil {
			if _, err := m.decoder.Decode(ev.Kind, ev.Payload); err != nil {
				m.metrics.recordDecodeFault()
				m.logger.Warn("failed to decode contract event payload",
					zap.String("event_id", ev.ID),
					zap.String("kind", ev.Kind),
					zap.Uint64("block", ev.Block),
					zap.Error(err))
			}
		}

		m.history.Append(ev)

		faults := m.registry.Dispatch(ev)
		for _, f := range faults {
			m.logger.Error("listener callback panicked",
				zap.String("event_id", ev.ID),
				zap.String("listener_kind", f.Kind),
				zap.Uint64("listener_id", f.ID),
				zap.Any("panic", f.Value))
		}
		m.metrics.recordIngest(len(faults), ev.ObservedAt)

		if onEvent != nil {
			m.invokeOnEvent(onEvent, ev)
		}
		ingested++
	}

	m.metrics.recordBlock(batch.Height)
	if ingested > 0 {
		m.logger.Debug("ingested contract events",
			zap.Uint64("block", batch.Height),
			zap.Int("count", ingested))
	}
}

func (m *Monitor) invokeOnEvent(onEvent func(Event), ev Event) {
	defer func() {
		if v := recover(); v != nil {
			m.logger.Error("event callback panicked",
				zap.String("event_id", ev.ID),
				zap.Any("panic", v))
		}
	}()
	onEvent(ev)
}

// stamp returns the current time clamped so that ObservedAt never
// moves backwards across successive events, even if the wall clock
// does.
func (m *Monitor) stamp() time.Time {
	m.tsMu.Lock()
	defer m.tsMu.Unlock()

	now := m.now()
	if now.Before(m.lastObserved) {
		now = m.lastObserved
	}
	m.lastObserved = now
	return now
}
