package monitor

import (
	"testing"
)

func TestRegistryDispatchOrder(t *testing.T) {
	reg := NewListenerRegistry()

	var order []string
	reg.Add(KindCalled, func(Event) { order = append(order, "kind-1") })
	reg.Add(KindCalled, func(Event) { order = append(order, "kind-2") })
	reg.Add(Wildcard, func(Event) { order = append(order, "wild-1") })
	reg.Add(KindCalled, func(Event) { order = append(order, "kind-3") })
	reg.Add(Wildcard, func(Event) { order = append(order, "wild-2") })

	faults := reg.Dispatch(Event{Kind: KindCalled})
	if len(faults) != 0 {
		t.Fatalf("got %d faults, want 0", len(faults))
	}

	want := []string{"kind-1", "kind-2", "kind-3", "wild-1", "wild-2"}
	if len(order) != len(want) {
		t.Fatalf("got %d invocations, want %d: %v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestRegistryWildcardSeesEveryKind(t *testing.T) {
	reg := NewListenerRegistry()

	var kinds []string
	reg.Add(Wildcard, func(ev Event) { kinds = append(kinds, ev.Kind) })

	for _, kind := range []string{KindInstantiated, KindCalled, KindContractEmitted, "SomethingNew"} {
		reg.Dispatch(Event{Kind: kind})
	}

	if len(kinds) != 4 {
		t.Fatalf("wildcard saw %d events, want 4", len(kinds))
	}
	if kinds[3] != "SomethingNew" {
		t.Errorf("wildcard missed unknown kind: got %v", kinds)
	}
}

func TestRegistryKindIsolation(t *testing.T) {
	reg := NewListenerRegistry()

	calls := 0
	reg.Add(KindInstantiated, func(Event) { calls++ })

	reg.Dispatch(Event{Kind: KindCalled})
	reg.Dispatch(Event{Kind: KindContractEmitted})
	if calls != 0 {
		t.Errorf("listener for %s fired for other kinds %d times", KindInstantiated, calls)
	}

	reg.Dispatch(Event{Kind: KindInstantiated})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRegistryRemoveIsIdentityBased(t *testing.T) {
	reg := NewListenerRegistry()

	var got []string
	mk := func(tag string) func(Event) {
		return func(Event) { got = append(got, tag) }
	}

	removeA := reg.Add(KindCalled, mk("a"))
	reg.Add(KindCalled, mk("b"))
	reg.Add(KindCalled, mk("c"))

	removeA()
	reg.Dispatch(Event{Kind: KindCalled})

	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("after removing a, dispatch hit %v, want [b c]", got)
	}

	// A second removal is a no-op and must not disturb survivors.
	removeA()
	got = nil
	reg.Dispatch(Event{Kind: KindCalled})
	if len(got) != 2 {
		t.Errorf("after repeated removal, dispatch hit %v, want [b c]", got)
	}

	if n := reg.Len(KindCalled); n != 2 {
		t.Errorf("Len(%s) = %d, want 2", KindCalled, n)
	}
}

func TestRegistryRemoveSameFunctionTwiceRegistered(t *testing.T) {
	reg := NewListenerRegistry()

	calls := 0
	fn := func(Event) { calls++ }

	remove1 := reg.Add(KindCalled, fn)
	reg.Add(KindCalled, fn)

	remove1()
	reg.Dispatch(Event{Kind: KindCalled})

	if calls != 1 {
		t.Errorf("calls = %d, want 1: removing one registration removed both", calls)
	}
}

func TestRegistryPanicIsolation(t *testing.T) {
	reg := NewListenerRegistry()

	var survived []string
	reg.Add(KindCalled, func(Event) { panic("listener boom") })
	reg.Add(KindCalled, func(Event) { survived = append(survived, "kind") })
	reg.Add(Wildcard, func(Event) { survived = append(survived, "wild") })

	faults := reg.Dispatch(Event{Kind: KindCalled})

	if len(faults) != 1 {
		t.Fatalf("got %d faults, want 1", len(faults))
	}
	if faults[0].Kind != KindCalled {
		t.Errorf("fault kind = %s, want %s", faults[0].Kind, KindCalled)
	}
	if faults[0].Value != "listener boom" {
		t.Errorf("fault value = %v, want listener boom", faults[0].Value)
	}
	if len(survived) != 2 {
		t.Errorf("later listeners did not run: %v", survived)
	}
}

func TestRegistryDispatchNoListeners(t *testing.T) {
	reg := NewListenerRegistry()
	if faults := reg.Dispatch(Event{Kind: KindCalled}); faults != nil {
		t.Errorf("got faults %v, want nil", faults)
	}
}

func TestRegistryRemoveDuringDispatch(t *testing.T) {
	reg := NewListenerRegistry()

	calls := 0
	var remove RemoveFunc
	remove = reg.Add(KindCalled, func(Event) {
		calls++
		remove()
	})

	reg.Dispatch(Event{Kind: KindCalled})
	reg.Dispatch(Event{Kind: KindCalled})

	if calls != 1 {
		t.Errorf("calls = %d, want 1: listener removed itself on first dispatch", calls)
	}
}
