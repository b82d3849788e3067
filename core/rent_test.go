package core

import "testing"

func TestRentHandlerDebitsOwnerAndLocksOnArrears(t *testing.T) {
	owner := Address{0x11}
	state := NewStateStore(nil)
	state.SetNameInfo("test", NameInfo{State: NameNormal, Owner: owner})
	state.SetNameExtra("test", NameExtra{RentValue: 10})
	state.SetBalance(RentCoin, owner, 10)
	if err := state.IndexName("test"); err != nil {
		t.Fatalf("index name: %v", err)
	}

	handler := NewRentHandler()
	if err := handler(100, "test", nil, state); err != nil {
		t.Fatalf("rent tick: %v", err)
	}
	if got := state.Balance(RentCoin, owner); got != 0 {
		t.Fatalf("expected full rent debited, balance = %d", got)
	}
	info, _ := state.NameInfo("test")
	if info.State != NameNormal {
		t.Fatalf("expected name to remain Normal after a fully-paid rent tick, got %v", info.State)
	}

	// A second tick with no balance accrues arrears but does not yet lock
	// (below RentLockThreshold * RentValue).
	if err := handler(200, "test", nil, state); err != nil {
		t.Fatalf("rent tick: %v", err)
	}
	extra := state.NameExtra("test")
	if extra.RentArrears != 10 {
		t.Fatalf("expected arrears of 10 after one missed tick, got %d", extra.RentArrears)
	}
	info, _ = state.NameInfo("test")
	if info.State != NameNormal {
		t.Fatalf("expected name still Normal below the lock threshold, got %v", info.State)
	}

	// Enough further missed ticks bring arrears up to RentLockThreshold *
	// RentValue and the name locks, indexed in the same step.
	if err := handler(300, "test", nil, state); err != nil {
		t.Fatalf("rent tick: %v", err)
	}
	if err := handler(400, "test", nil, state); err != nil {
		t.Fatalf("rent tick: %v", err)
	}
	info, _ = state.NameInfo("test")
	if info.State != NameLock {
		t.Fatalf("expected name locked once arrears reach the threshold, got %v state, arrears=%d", info.State, state.NameExtra("test").RentArrears)
	}

	commitment, found, err := state.LookupNameCommitment("test")
	if err != nil || !found {
		t.Fatalf("expected the lock transition indexed, found=%v err=%v", found, err)
	}
	if want := nameCommitment(info); commitment != want {
		t.Fatalf("stale name index commitment after lock: got %s want %s", commitment, want)
	}
}

func TestClearArrearsReentersNormalAndReindexes(t *testing.T) {
	owner := Address{0x22}
	state := NewStateStore(nil)
	state.SetNameInfo("test", NameInfo{State: NameLock, Owner: owner})
	state.SetNameExtra("test", NameExtra{RentValue: 10, RentArrears: 0})
	if err := state.IndexName("test"); err != nil {
		t.Fatalf("index name: %v", err)
	}

	if err := ClearArrears(state, "test"); err != nil {
		t.Fatalf("clear arrears: %v", err)
	}
	info, ok := state.NameInfo("test")
	if !ok || info.State != NameNormal {
		t.Fatalf("expected name to re-enter Normal once arrears are cleared, got %+v ok=%v", info, ok)
	}

	commitment, found, err := state.LookupNameCommitment("test")
	if err != nil || !found {
		t.Fatalf("expected re-entry indexed, found=%v err=%v", found, err)
	}
	if want := nameCommitment(info); commitment != want {
		t.Fatalf("stale name index commitment after clearing arrears: got %s want %s", commitment, want)
	}
}

func TestClearArrearsRejectsWhileArrearsRemain(t *testing.T) {
	state := NewStateStore(nil)
	state.SetNameInfo("test", NameInfo{State: NameLock})
	state.SetNameExtra("test", NameExtra{RentValue: 10, RentArrears: 5})

	if err := ClearArrears(state, "test"); err == nil {
		t.Fatalf("expected ClearArrears to reject while arrears remain outstanding")
	}
}
