package monitor

import "sync"

// RemoveFunc deregisters the callback returned by a listener
// registration. Calling it more than once is a no-op.
type RemoveFunc func()

// ListenerFault records a panic raised by a listener callback during
// dispatch.
type ListenerFault struct {
	// Kind is the registration key, Wildcard for wildcard listeners.
	Kind string
	// ID is the registration id of the panicking callback.
	ID uint64
	// Value is the recovered panic value.
	Value any
}

type listenerEntry struct {
	id uint64
	fn func(Event)
}

// ListenerRegistry maps event kinds, plus Wildcard, to ordered
// callback lists. Removal is identity-based: each registration gets
// its own id, so removing one callback never disturbs another even
// when the same function value was registered twice.
type ListenerRegistry struct {
	mu      sync.RWMutex
	nextID  uint64
	entries map[string][]listenerEntry
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{entries: make(map[string][]listenerEntry)}
}

// Add registers fn under kind and returns its removal func.
func (r *ListenerRegistry) Add(kind string, fn func(Event)) RemoveFunc {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries[kind] = append(r.entries[kind], listenerEntry{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(kind, id) })
	}
}

func (r *ListenerRegistry) remove(kind string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[kind]
	for i, e := range list {
		if e.id == id {
			r.entries[kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Len returns the number of callbacks registered under kind.
func (r *ListenerRegistry) Len(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[kind])
}

type dispatchTarget struct {
	kind  string
	entry listenerEntry
}

// Dispatch invokes the callbacks registered for ev.Kind, then the
// wildcard callbacks, each set in registration order. A panicking
// callback is captured as a ListenerFault and later callbacks still
// run. Dispatch itself never panics.
func (r *ListenerRegistry) Dispatch(ev Event) []ListenerFault {
	r.mu.RLock()
	targets := make([]dispatchTarget, 0, len(r.entries[ev.Kind])+len(r.entries[Wildcard]))
	for _, e := range r.entries[ev.Kind] {
		targets = append(targets, dispatchTarget{kind: ev.Kind, entry: e})
	}
	// An event kind equal to Wildcard would otherwise run its
	// listeners twice.
	if ev.Kind != Wildcard {
		for _, e := range r.entries[Wildcard] {
			targets = append(targets, dispatchTarget{kind: Wildcard, entry: e})
		}
	}
	r.mu.RUnlock()

	var faults []ListenerFault
	for _, t := range targets {
		if v := invoke(t.entry.fn, ev); v != nil {
			faults = append(faults, ListenerFault{Kind: t.kind, ID: t.entry.id, Value: v})
		}
	}
	return faults
}

func invoke(fn func(Event), ev Event) (v any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			v = recovered
		}
	}()
	fn(ev)
	return nil
}
