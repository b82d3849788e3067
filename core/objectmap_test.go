package core

import (
	"fmt"
	"testing"
)

func newTestNodeCache(t *testing.T) *NodeCache {
	t.Helper()
	nc, err := NewNodeCache(NewMemBlobStore(), 0, nil)
	if err != nil {
		t.Fatalf("new node cache: %v", err)
	}
	return nc
}

// TestObjectMapInsertionOrderIndependence is seed scenario #2: inserting the
// same 1000 keys in ascending and in descending order must converge to the
// byte-identical root id, since ObjectMap content (not insertion history)
// determines encoding.
func TestObjectMapInsertionOrderIndependence(t *testing.T) {
	store := newTestNodeCache(t)
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("k_%03d", i)
	}

	ascending := NewObjectMap(ContentMap)
	for _, k := range keys {
		next, err := ascending.Set(store, k, ObjectId{})
		if err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
		ascending = next
	}

	descending := NewObjectMap(ContentMap)
	for i := len(keys) - 1; i >= 0; i-- {
		next, err := descending.Set(store, keys[i], ObjectId{})
		if err != nil {
			t.Fatalf("set %s: %v", keys[i], err)
		}
		descending = next
	}

	ascId := ascending.FlushId()
	descId := descending.FlushId()
	if ascId != descId {
		t.Fatalf("root ids diverge by insertion order: ascending=%s descending=%s", ascId, descId)
	}
}

// TestObjectMapInterleavedRemovesConverge continues seed scenario #2: after
// inserting all 1000 keys interleaved with removing the 500 odd ones, the
// resulting root must equal a fresh map built from only the 500 even keys.
func TestObjectMapInterleavedRemovesConverge(t *testing.T) {
	store := newTestNodeCache(t)
	m := NewObjectMap(ContentMap)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("k_%03d", i)
		next, err := m.Set(store, key, ObjectId{})
		if err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
		m = next
		if i%2 == 1 {
			next, err := m.Remove(store, key)
			if err != nil {
				t.Fatalf("remove %s: %v", key, err)
			}
			m = next
		}
	}

	fresh := NewObjectMap(ContentMap)
	for i := 0; i < 1000; i += 2 {
		key := fmt.Sprintf("k_%03d", i)
		next, err := fresh.Set(store, key, ObjectId{})
		if err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
		fresh = next
	}

	if m.Total != fresh.Total {
		t.Fatalf("entry count mismatch: interleaved=%d fresh=%d", m.Total, fresh.Total)
	}
	if got, want := m.FlushId(), fresh.FlushId(); got != want {
		t.Fatalf("root id mismatch: interleaved=%s fresh=%s", got, want)
	}
}

func TestObjectMapGetSetRemoveRoundTrip(t *testing.T) {
	store := newTestNodeCache(t)
	m := NewObjectMap(ContentMap)

	var val ObjectId
	val[0] = 0xAB

	m, err := m.Set(store, "alpha", val)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := m.Get(store, "alpha")
	if err != nil || !ok || got != val {
		t.Fatalf("get after set: got=%v ok=%v err=%v", got, ok, err)
	}

	m, err = m.Remove(store, "alpha")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, err := m.Get(store, "alpha"); err != nil || ok {
		t.Fatalf("expected alpha gone after remove, ok=%v err=%v", ok, err)
	}
}

func TestObjectMapEncodeDecodeRoundTrip(t *testing.T) {
	store := newTestNodeCache(t)
	m := NewObjectMap(ContentMap)
	for i := 0; i < 20; i++ {
		var val ObjectId
		val[0] = byte(i)
		next, err := m.Set(store, fmt.Sprintf("key-%02d", i), val)
		if err != nil {
			t.Fatalf("set: %v", err)
		}
		m = next
	}
	id, err := store.Save(m)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Total != m.Total {
		t.Fatalf("total mismatch after round trip: got %d want %d", loaded.Total, m.Total)
	}
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%02d", i)
		want, _, _ := m.Get(store, key)
		got, ok, err := loaded.Get(store, key)
		if err != nil || !ok || got != want {
			t.Fatalf("get %s after round trip: got=%v ok=%v want=%v err=%v", key, got, ok, want, err)
		}
	}
}
