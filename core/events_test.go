package core

import "testing"

func TestSchedulerFiresCyclicBeforeOneShotInKeyOrder(t *testing.T) {
	state := NewStateStore(nil)
	sched := NewScheduler()

	var order []string
	record := func(tag string) EventHandler {
		return func(height uint64, key string, payload []byte, state *StateStore) error {
			order = append(order, tag+":"+key)
			return nil
		}
	}
	sched.RegisterHandler("cyclic_a", record("cyclic"))
	sched.RegisterHandler("oneshot_a", record("oneshot"))

	if err := sched.ScheduleCyclic(state, "cyclic_a", 10, 0, "zeta", nil); err != nil {
		t.Fatalf("schedule cyclic: %v", err)
	}
	if err := sched.ScheduleCyclic(state, "cyclic_a", 10, 0, "alpha", nil); err != nil {
		t.Fatalf("schedule cyclic: %v", err)
	}
	if err := sched.ScheduleOneShot(state, "oneshot_a", 10, "beta", nil); err != nil {
		t.Fatalf("schedule one-shot: %v", err)
	}

	errs := sched.Fire(10, state)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"cyclic:alpha", "cyclic:zeta", "oneshot:beta"}
	if len(order) != len(want) {
		t.Fatalf("fire order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fire order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerCyclicRecursEveryPeriod(t *testing.T) {
	state := NewStateStore(nil)
	sched := NewScheduler()
	fires := 0
	sched.RegisterHandler("cyclic_b", func(height uint64, key string, payload []byte, state *StateStore) error {
		fires++
		return nil
	})
	if err := sched.ScheduleCyclic(state, "cyclic_b", 5, 0, "k", nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	sched.Fire(5, state)
	sched.Fire(10, state)
	sched.Fire(7, state) // not due
	if fires != 2 {
		t.Fatalf("expected cyclic handler to fire twice, got %d", fires)
	}
}

func TestSchedulerOneShotFiresOnceThenIsGone(t *testing.T) {
	state := NewStateStore(nil)
	sched := NewScheduler()
	fires := 0
	sched.RegisterHandler("oneshot_b", func(height uint64, key string, payload []byte, state *StateStore) error {
		fires++
		return nil
	})
	if err := sched.ScheduleOneShot(state, "oneshot_b", 3, "k", nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	sched.Fire(3, state)
	sched.Fire(3, state)
	if fires != 1 {
		t.Fatalf("expected one-shot handler to fire exactly once, got %d", fires)
	}
}

func TestCancelCyclicPreventsFutureFiring(t *testing.T) {
	state := NewStateStore(nil)
	sched := NewScheduler()
	fires := 0
	sched.RegisterHandler("cyclic_c", func(height uint64, key string, payload []byte, state *StateStore) error {
		fires++
		return nil
	})
	if err := sched.ScheduleCyclic(state, "cyclic_c", 4, 0, "k", nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	sched.CancelCyclic(state, 4, 0, "k")
	sched.Fire(4, state)
	if fires != 0 {
		t.Fatalf("cancelled cyclic event must not fire, got %d fires", fires)
	}
}
