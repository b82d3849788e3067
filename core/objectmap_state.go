package core

// objectmap_state.go – wires the ObjectMap engine (objectmap.go,
// objectmap_cache.go) into the live chain state as the name table's
// commitment index (§3/§4.C, §4.E). Every registered name's NameInfo is
// folded into one ObjectMap rooted at a key the StateStore itself holds, and
// the map's node blobs are persisted through the same flat key space as
// every other table, via stateBlobStore — so the index's content is part of
// state_hash() exactly like a balance or a nonce, and Snapshot/Restore/Clone
// carry it for free.

import (
	"encoding/json"

	"lukechampine.com/blake3"
)

const nameIndexRootKey = "objectmap_root/names"
const nameIndexBlobPrefix = "objectmap_blob/"

// stateBlobStore adapts a StateStore's flat key space to the BlobStore
// boundary NodeCache expects, namespaced so node blobs never collide with
// any table's own keys.
type stateBlobStore struct{ state *StateStore }

func (b stateBlobStore) GetBlob(id ObjectId) ([]byte, error) {
	v, ok := b.state.Get(nameIndexBlobPrefix + id.String())
	if !ok {
		return nil, NewErr(ErrNotFound, "objectmap blob %s", id)
	}
	return v, nil
}

func (b stateBlobStore) PutBlob(id ObjectId, data []byte) error {
	b.state.Set(nameIndexBlobPrefix+id.String(), data)
	return nil
}

// nameIndexStore lazily builds the NodeCache fronting this store's name
// index blobs.
func (s *StateStore) nameIndexStore() (*NodeCache, error) {
	s.nameIndexMu.Lock()
	defer s.nameIndexMu.Unlock()
	if s.nameIndex == nil {
		nc, err := NewNodeCache(stateBlobStore{s}, defaultCacheEntries, s.logger)
		if err != nil {
			return nil, err
		}
		s.nameIndex = nc
	}
	return s.nameIndex, nil
}

// nameIndexRoot loads the current root ObjectMap of registered names,
// returning a fresh empty one if no name has ever been indexed.
func (s *StateStore) nameIndexRoot() (*ObjectMap, *NodeCache, error) {
	nc, err := s.nameIndexStore()
	if err != nil {
		return nil, nil, err
	}
	v, ok := s.Get(nameIndexRootKey)
	if !ok {
		return NewObjectMap(ContentMap), nc, nil
	}
	var id ObjectId
	copy(id[:], v)
	root, err := nc.Load(id)
	if err != nil {
		return nil, nil, err
	}
	return root, nc, nil
}

// nameCommitment derives the leaf value committed to the name index: the
// blake3 digest of name's JSON-encoded NameInfo. This reuses object identity
// hashing rather than introducing a second hash family for a derived
// commitment.
func nameCommitment(ni NameInfo) ObjectId {
	b, _ := json.Marshal(ni)
	sum := blake3.Sum256(b)
	var id ObjectId
	copy(id[:], sum[:])
	return id
}

// IndexName folds name's current NameInfo into the ObjectMap-backed name
// index and persists the new root id. Every handler that calls SetNameInfo
// calls this immediately after, so the index never drifts from the table it
// mirrors. If name no longer has a NameInfo record, this removes it from the
// index instead.
func (s *StateStore) IndexName(name string) error {
	info, ok := s.NameInfo(name)
	if !ok {
		return s.RemoveNameIndex(name)
	}
	root, store, err := s.nameIndexRoot()
	if err != nil {
		return err
	}
	next, err := root.Set(store, name, nameCommitment(info))
	if err != nil {
		return err
	}
	id, err := store.Save(next)
	if err != nil {
		return err
	}
	s.Set(nameIndexRootKey, id[:])
	return nil
}

// RemoveNameIndex drops name from the ObjectMap-backed name index, used
// whenever a name is deleted outright rather than transitioning between
// NameInfo states.
func (s *StateStore) RemoveNameIndex(name string) error {
	root, store, err := s.nameIndexRoot()
	if err != nil {
		return err
	}
	next, err := root.Remove(store, name)
	if err != nil {
		return err
	}
	id, err := store.Save(next)
	if err != nil {
		return err
	}
	s.Set(nameIndexRootKey, id[:])
	return nil
}

// NameIndexRoot returns the current root id of the ObjectMap-backed name
// index, and whether any name has ever been indexed.
func (s *StateStore) NameIndexRoot() (ObjectId, bool) {
	v, ok := s.Get(nameIndexRootKey)
	if !ok {
		return ObjectId{}, false
	}
	var id ObjectId
	copy(id[:], v)
	return id, true
}

// LookupNameCommitment returns the commitment id the name index holds for
// name, if any. This is the form a light client verifies against
// NameIndexRoot, rather than trusting a node's NameInfo table directly.
func (s *StateStore) LookupNameCommitment(name string) (ObjectId, bool, error) {
	root, store, err := s.nameIndexRoot()
	if err != nil {
		return ObjectId{}, false, err
	}
	return root.Get(store, name)
}
