package core

// objectmap.go – the adaptive Merkle map/set tree (§3 "ObjectMap", §4.C).
// A node is either Simple (an in-line ordered container) or Hub (a sparse
// table of 1900 buckets, each routing to a sub-ObjectMap by id). Mode
// transitions are automatic and content-preserving: identical logical
// contents always produce identical encoded bytes and therefore identical
// ObjectIds, regardless of insertion history.

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"lukechampine.com/blake3"
)

// MapContentType is the wire discriminant for what an ObjectMap's leaves
// mean: a key→value map, a set of keys, or the diff variant of either.
type MapContentType uint8

const (
	ContentMap MapContentType = iota
	ContentDiffMap
	ContentSet
	ContentDiffSet
)

// MapMode is the wire discriminant for a node's storage strategy.
type MapMode uint8

const (
	ModeSimple MapMode = iota
	ModeHub
)

// HubBucketCount is the fixed number of buckets a Hub node routes through,
// per §6 ("Hub bucket table length is fixed at 1900").
const HubBucketCount = 1900

// objectMapSizeLimit is the ~65,471-byte Simple/Hub inflate/deflate
// threshold from §3/§4.C.
const objectMapSizeLimit = maxInObjectLen - 64

// mapEntry is one Simple-mode leaf: a key paired with either a value id
// (Map/Set content) or a diff triple (DiffMap/DiffSet content).
type mapEntry struct {
	Key string

	// Map / Set
	Value ObjectId

	// DiffMap / DiffSet
	Prev    *ObjectId
	Altered *ObjectId
	Diff    *ObjectId
}

func (e *mapEntry) measure(ct MapContentType) int {
	n := 2 + len(e.Key)
	switch ct {
	case ContentMap, ContentSet:
		n += 32
	case ContentDiffMap, ContentDiffSet:
		n += 1 + 1 + 1 // presence bytes for prev/altered/diff
		if e.Prev != nil {
			n += 32
		}
		if e.Altered != nil {
			n += 32
		}
		if e.Diff != nil {
			n += 32
		}
	}
	return n
}

func (e *mapEntry) encode(w *Writer, ct MapContentType) {
	w.PutBytes16([]byte(e.Key))
	switch ct {
	case ContentMap, ContentSet:
		w.PutRaw(e.Value[:])
	case ContentDiffMap, ContentDiffSet:
		putOptionalId(w, e.Prev)
		putOptionalId(w, e.Altered)
		putOptionalId(w, e.Diff)
	}
}

func putOptionalId(w *Writer, id *ObjectId) {
	if id == nil {
		w.PutU8(0)
		return
	}
	w.PutU8(1)
	w.PutRaw(id[:])
}

func getOptionalId(r *Reader) (*ObjectId, error) {
	present, err := r.GetU8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	b, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	var id ObjectId
	copy(id[:], b)
	return &id, nil
}

func decodeMapEntry(r *Reader, ct MapContentType) (mapEntry, error) {
	var e mapEntry
	k, err := r.GetBytes16()
	if err != nil {
		return e, err
	}
	e.Key = string(k)
	switch ct {
	case ContentMap, ContentSet:
		b, err := r.GetRaw(32)
		if err != nil {
			return e, err
		}
		copy(e.Value[:], b)
	case ContentDiffMap, ContentDiffSet:
		if e.Prev, err = getOptionalId(r); err != nil {
			return e, err
		}
		if e.Altered, err = getOptionalId(r); err != nil {
			return e, err
		}
		if e.Diff, err = getOptionalId(r); err != nil {
			return e, err
		}
	}
	return e, nil
}

// idCache is the "object-id cache" of §4.C: the last computed id plus a
// dirty bit, so flushId only recomputes when the node actually changed.
type idCache struct {
	id    ObjectId
	dirty bool
}

// ObjectMap is one node of the adaptive Merkle tree. Depth-0 nodes are
// roots (class = root); all others are sub-maps (class = sub) referenced
// from a parent Hub bucket.
type ObjectMap struct {
	IsRoot      bool
	ContentType MapContentType
	Depth       uint8
	Total       uint64
	Size        uint64
	Mode        MapMode

	simple []mapEntry    // ModeSimple, sorted by Key
	hub    map[uint16]ObjectId // ModeHub, sparse

	cache idCache
}

// NewObjectMap creates an empty root node of the given content type.
func NewObjectMap(ct MapContentType) *ObjectMap {
	return &ObjectMap{IsRoot: true, ContentType: ct, Mode: ModeSimple, cache: idCache{dirty: true}}
}

func newSubMap(ct MapContentType, depth uint8) *ObjectMap {
	return &ObjectMap{ContentType: ct, Depth: depth, Mode: ModeSimple, cache: idCache{dirty: true}}
}

// bucketFor computes the Hub routing bucket for a key at the given depth:
// SHA-256(key ‖ depth) mod 1900, per §3. The scheme is pure (a function of
// the key and depth alone), which is what makes Simple↔Hub transitions
// content-preserving.
func bucketFor(key string, depth uint8) uint16 {
	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte{depth})
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8])
	return uint16(v % HubBucketCount)
}

// Get looks up key, returning its value id (Map content) and whether it was
// present. For Set content the returned id is always the zero id; callers
// use the boolean.
func (m *ObjectMap) Get(store NodeStore, key string) (ObjectId, bool, error) {
	if m.Mode == ModeSimple {
		e, idx := m.findSimple(key)
		if idx < 0 {
			return ObjectId{}, false, nil
		}
		return e.Value, true, nil
	}
	bucket := bucketFor(key, m.Depth)
	subId, ok := m.hub[bucket]
	if !ok {
		return ObjectId{}, false, nil
	}
	sub, err := store.Load(subId)
	if err != nil {
		return ObjectId{}, false, err
	}
	return sub.Get(store, key)
}

func (m *ObjectMap) findSimple(key string) (mapEntry, int) {
	i := sort.Search(len(m.simple), func(i int) bool { return m.simple[i].Key >= key })
	if i < len(m.simple) && m.simple[i].Key == key {
		return m.simple[i], i
	}
	return mapEntry{}, -1
}

// Set inserts or overwrites key→value (Map content) or inserts key (Set
// content, value ignored — pass the zero ObjectId). Returns the node
// actually holding the new state; ObjectMap nodes are treated as
// persistent values, so callers must store the returned node (and, for a
// Hub child, write it back through store) rather than assume in-place
// mutation is visible to other holders of the old node.
func (m *ObjectMap) Set(store NodeStore, key string, value ObjectId) (*ObjectMap, error) {
	return m.mutate(store, key, func(e *mapEntry, existed bool) (int, error) {
		added := 0
		if !existed {
			added = 1
		}
		e.Value = value
		return added, nil
	})
}

// Remove deletes key if present.
func (m *ObjectMap) Remove(store NodeStore, key string) (*ObjectMap, error) {
	if m.Mode == ModeSimple {
		_, idx := m.findSimple(key)
		if idx < 0 {
			return m, nil
		}
		next := m.clone()
		removedSize := next.simple[idx].measure(next.ContentType)
		next.simple = append(next.simple[:idx], next.simple[idx+1:]...)
		next.Total--
		next.Size -= uint64(removedSize)
		next.cache.dirty = true
		return next, nil
	}
	bucket := bucketFor(key, m.Depth)
	subId, ok := m.hub[bucket]
	if !ok {
		return m, nil
	}
	sub, err := store.Load(subId)
	if err != nil {
		return nil, err
	}
	newSub, err := sub.Remove(store, key)
	if err != nil {
		return nil, err
	}
	if newSub.Total == sub.Total {
		return m, nil // key absent from this bucket
	}
	next := m.clone()
	if newSub.Total == 0 {
		// §3: "A sub-ObjectMap that drops to zero entries is removed from
		// its parent Hub."
		delete(next.hub, bucket)
		next.Total--
	} else {
		newSubId, err := store.Save(newSub)
		if err != nil {
			return nil, err
		}
		next.hub[bucket] = newSubId
		next.Total--
	}
	next.cache.dirty = true
	if next.aggregateSize(store) < objectMapSizeLimit {
		return next.deflate(store)
	}
	return next, nil
}

// mutate implements the Simple/Hub insert-or-update write path shared by
// Set. applyFn mutates e in place (e.Key is already set) and returns the
// delta to Total (0 or 1).
func (m *ObjectMap) mutate(store NodeStore, key string, applyFn func(e *mapEntry, existed bool) (int, error)) (*ObjectMap, error) {
	if m.Mode == ModeSimple {
		next := m.clone()
		_, idx := next.findSimple(key)
		existed := idx >= 0
		var e mapEntry
		var oldSize int
		if existed {
			e = next.simple[idx]
			oldSize = e.measure(next.ContentType)
		} else {
			e = mapEntry{Key: key}
		}
		delta, err := applyFn(&e, existed)
		if err != nil {
			return nil, err
		}
		newSize := e.measure(next.ContentType)
		if existed {
			next.simple[idx] = e
			next.Size = next.Size - uint64(oldSize) + uint64(newSize)
		} else {
			next.simple = append(next.simple, e)
			sort.Slice(next.simple, func(i, j int) bool { return next.simple[i].Key < next.simple[j].Key })
			next.Size += uint64(newSize)
		}
		next.Total += uint64(delta)
		next.cache.dirty = true
		if next.Size > objectMapSizeLimit {
			return next.inflate(store)
		}
		return next, nil
	}

	bucket := bucketFor(key, m.Depth)
	next := m.clone()
	var sub *ObjectMap
	var oldSubTotal uint64
	if subId, ok := next.hub[bucket]; ok {
		loaded, err := store.Load(subId)
		if err != nil {
			return nil, err
		}
		sub = loaded
		oldSubTotal = sub.Total
	} else {
		sub = newSubMap(next.ContentType, next.Depth+1)
	}
	newSub, err := sub.mutate(store, key, applyFn)
	if err != nil {
		return nil, err
	}
	newSubId, err := store.Save(newSub)
	if err != nil {
		return nil, err
	}
	next.hub[bucket] = newSubId
	next.Total = next.Total - oldSubTotal + newSub.Total
	next.cache.dirty = true
	if next.aggregateSize(store) < objectMapSizeLimit {
		return next.deflate(store)
	}
	return next, nil
}

// clone returns a shallow copy of m with independently mutable containers,
// so an in-flight read of the original node is unaffected by a subsequent
// write — ObjectMap nodes are treated as persistent/immutable values once
// shared.
func (m *ObjectMap) clone() *ObjectMap {
	c := &ObjectMap{
		IsRoot:      m.IsRoot,
		ContentType: m.ContentType,
		Depth:       m.Depth,
		Total:       m.Total,
		Size:        m.Size,
		Mode:        m.Mode,
		cache:       idCache{dirty: true},
	}
	if m.Mode == ModeSimple {
		c.simple = append([]mapEntry(nil), m.simple...)
	} else {
		c.hub = make(map[uint16]ObjectId, len(m.hub))
		for k, v := range m.hub {
			c.hub[k] = v
		}
	}
	return c
}

// aggregateSize estimates the encoded size of a Hub node's full logical
// content (its own Hub table plus every reachable sub-node), the quantity
// compared against objectMapSizeLimit to decide deflation. Reading every
// sub-node up front is the straightforward implementation; a production
// system would maintain this incrementally instead of recomputing it,
// which is the one place this engine trades CPU for simplicity.
func (m *ObjectMap) aggregateSize(store NodeStore) uint64 {
	if m.Mode == ModeSimple {
		return m.Size
	}
	var total uint64
	for _, subId := range m.hub {
		sub, err := store.Load(subId)
		if err != nil {
			continue
		}
		total += sub.aggregateSize(store)
	}
	return total
}

// inflate converts a Simple node into a Hub at the same depth, re-inserting
// every entry so it routes by hash, per §4.C "Inflate".
func (m *ObjectMap) inflate(store NodeStore) (*ObjectMap, error) {
	hub := &ObjectMap{IsRoot: m.IsRoot, ContentType: m.ContentType, Depth: m.Depth, Mode: ModeHub, hub: map[uint16]ObjectId{}, cache: idCache{dirty: true}}
	var cur *ObjectMap = hub
	for _, e := range m.simple {
		next, err := cur.mutate(store, e.Key, func(dst *mapEntry, existed bool) (int, error) {
			*dst = e
			dst.Key = e.Key
			if !existed {
				return 1, nil
			}
			return 0, nil
		})
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// deflate converts a Hub node back into a Simple node at the same depth by
// recursively flattening every sub (deflating it first if it is itself a
// Hub) and merging its entries. Buckets partition keys disjointly, so the
// merge never encounters a duplicate key.
func (m *ObjectMap) deflate(store NodeStore) (*ObjectMap, error) {
	flat := newSubMap(m.ContentType, m.Depth)
	flat.IsRoot = m.IsRoot
	buckets := make([]uint16, 0, len(m.hub))
	for b := range m.hub {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	for _, b := range buckets {
		sub, err := store.Load(m.hub[b])
		if err != nil {
			return nil, err
		}
		if sub.Mode == ModeHub {
			sub, err = sub.deflate(store)
			if err != nil {
				return nil, err
			}
		}
		flat.simple = append(flat.simple, sub.simple...)
	}
	sort.Slice(flat.simple, func(i, j int) bool { return flat.simple[i].Key < flat.simple[j].Key })
	var size uint64
	for _, e := range flat.simple {
		size += uint64(e.measure(flat.ContentType))
	}
	flat.Size = size
	flat.Total = uint64(len(flat.simple))
	flat.cache.dirty = true
	return flat, nil
}

// Measure returns the encoded length of this node (not recursing into Hub
// sub-nodes, which are referenced by id only).
func (m *ObjectMap) Measure(p Purpose) int {
	n := 1 + 1 + 1 + 8 + 8 // class + content_type + mode + total + size
	switch m.Mode {
	case ModeSimple:
		n += 2
		for _, e := range m.simple {
			n += e.measure(m.ContentType)
		}
	case ModeHub:
		n += 2
		buckets := m.sortedBuckets()
		for range buckets {
			n += 2 + 32
		}
	}
	return n
}

func (m *ObjectMap) sortedBuckets() []uint16 {
	buckets := make([]uint16, 0, len(m.hub))
	for b := range m.hub {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets
}

func (m *ObjectMap) Encode(w *Writer, p Purpose) {
	class := uint8(0)
	if !m.IsRoot {
		class = 1
	}
	w.PutU8(class)
	w.PutU8(uint8(m.ContentType))
	w.PutU8(uint8(m.Mode))
	w.PutU64(m.Total)
	w.PutU64(m.Size)
	switch m.Mode {
	case ModeSimple:
		w.PutU16(uint16(len(m.simple)))
		for _, e := range m.simple {
			e.encode(w, m.ContentType)
		}
	case ModeHub:
		buckets := m.sortedBuckets()
		w.PutU16(uint16(len(buckets)))
		for _, b := range buckets {
			w.PutU16(b)
			id := m.hub[b]
			w.PutRaw(id[:])
		}
	}
}

func (m *ObjectMap) Decode(r *Reader) error {
	class, err := r.GetU8()
	if err != nil {
		return err
	}
	m.IsRoot = class == 0
	ct, err := r.GetU8()
	if err != nil {
		return err
	}
	m.ContentType = MapContentType(ct)
	mode, err := r.GetU8()
	if err != nil {
		return err
	}
	m.Mode = MapMode(mode)
	if m.Total, err = r.GetU64(); err != nil {
		return err
	}
	if m.Size, err = r.GetU64(); err != nil {
		return err
	}
	n, err := r.GetU16()
	if err != nil {
		return err
	}
	switch m.Mode {
	case ModeSimple:
		m.simple = make([]mapEntry, 0, n)
		for i := uint16(0); i < n; i++ {
			e, err := decodeMapEntry(r, m.ContentType)
			if err != nil {
				return err
			}
			m.simple = append(m.simple, e)
		}
	case ModeHub:
		m.hub = make(map[uint16]ObjectId, n)
		for i := uint16(0); i < n; i++ {
			b, err := r.GetU16()
			if err != nil {
				return err
			}
			idb, err := r.GetRaw(32)
			if err != nil {
				return err
			}
			var id ObjectId
			copy(id[:], idb)
			m.hub[b] = id
		}
	}
	return nil
}

// FlushId recomputes the node's ObjectId if dirty and returns it. Decoded
// nodes should call SetDecodedId instead, since their id is already implied
// by the bytes they were read from.
func (m *ObjectMap) FlushId() ObjectId {
	if !m.cache.dirty {
		return m.cache.id
	}
	sum := blake3.Sum256(EncodeTop(m, PurposeHash))
	var id ObjectId
	copy(id[:objectIdHashLen], sum[:objectIdHashLen])
	binary.BigEndian.PutUint16(id[objectIdHashLen:objectIdHashLen+2], uint16(ObjTypeAny))
	binary.BigEndian.PutUint16(id[objectIdHashLen+2:], uint16(m.ContentType)<<8|uint16(m.Mode))
	m.cache.id = id
	m.cache.dirty = false
	return id
}

// SetDecodedId seeds the id cache from the id a node was loaded by,
// avoiding a redundant re-hash right after decode.
func (m *ObjectMap) SetDecodedId(id ObjectId) {
	m.cache = idCache{id: id, dirty: false}
}
