package core

import "testing"

// TestDiffApplyRoundTrip is seed scenario #5: diffing map1={a,b} against
// map2={a,b',c} (c added, b altered) and applying that diff back onto map1
// must reproduce map2's exact root id.
func TestDiffApplyRoundTrip(t *testing.T) {
	store := newTestNodeCache(t)

	var valA, valB, valBAltered, valC ObjectId
	valA[0] = 0x0a
	valB[0] = 0x0b
	valBAltered[0] = 0xbb
	valC[0] = 0x0c

	map1 := NewObjectMap(ContentMap)
	var err error
	map1, err = map1.Set(store, "a", valA)
	if err != nil {
		t.Fatalf("set a: %v", err)
	}
	map1, err = map1.Set(store, "b", valB)
	if err != nil {
		t.Fatalf("set b: %v", err)
	}

	map2 := NewObjectMap(ContentMap)
	map2, err = map2.Set(store, "a", valA)
	if err != nil {
		t.Fatalf("set a: %v", err)
	}
	map2, err = map2.Set(store, "b", valBAltered)
	if err != nil {
		t.Fatalf("set b': %v", err)
	}
	map2, err = map2.Set(store, "c", valC)
	if err != nil {
		t.Fatalf("set c: %v", err)
	}

	diff, err := DiffObjectMaps(store, map1, map2)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	applied, warnings, err := ApplyDiff(store, map1, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected apply warnings: %v", warnings)
	}

	if got, want := applied.FlushId(), map2.FlushId(); got != want {
		t.Fatalf("apply(map1, diff(map1, map2)).id = %s, want map2.id = %s", got, want)
	}
}

// TestDiffObjectMapsAddAndRemove exercises the one-sided-presence path
// (materializeAll) directly, since the round-trip test above never removes a
// key outright.
func TestDiffObjectMapsAddAndRemove(t *testing.T) {
	store := newTestNodeCache(t)

	var valA, valB ObjectId
	valA[0] = 1
	valB[0] = 2

	prev := NewObjectMap(ContentMap)
	var err error
	prev, err = prev.Set(store, "a", valA)
	if err != nil {
		t.Fatalf("set a: %v", err)
	}
	prev, err = prev.Set(store, "b", valB)
	if err != nil {
		t.Fatalf("set b: %v", err)
	}

	next := NewObjectMap(ContentMap)
	next, err = next.Set(store, "a", valA)
	if err != nil {
		t.Fatalf("set a: %v", err)
	}

	diff, err := DiffObjectMaps(store, prev, next)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	applied, _, err := ApplyDiff(store, prev, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got, want := applied.FlushId(), next.FlushId(); got != want {
		t.Fatalf("apply(prev, diff(prev, next)).id = %s, want next.id = %s", got, want)
	}
	if _, ok, _ := applied.Get(store, "b"); ok {
		t.Fatalf("expected b removed after apply")
	}
}
