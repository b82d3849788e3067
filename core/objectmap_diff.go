package core

// objectmap_diff.go – ObjectMap diff/apply (§4.C). Diffing two trees is
// mutually recursive on their shapes. DiffObjectMaps hands the root
// comparison to a small worker pool as a single task; diffOne then recurses
// into Hub/Hub pairs synchronously on that worker, so the sub-node fetches
// of one diff run one after another rather than as separately queued
// tasks. The collected entries are sorted by key before the result is
// sealed, so the diff map's identity does not depend on the order in which
// buckets were visited.

import (
	"sort"
	"sync"
)

// diffTask is one pending unit of diff work: compare prevSub against
// nextSub (either may be nil, meaning "absent on that side") and report the
// per-key diff entries it produces.
type diffTask struct {
	prevSub *ObjectMap
	nextSub *ObjectMap
}

type diffResult struct {
	entries []mapEntry
	err     error
}

const diffWorkerCount = 4

// DiffObjectMaps computes the diff of prev → next. Both must be non-nil and
// share a content_type; the result is a DiffMap or DiffSet root depending
// on whether the inputs were Map/DiffMap or Set/DiffSet content.
func DiffObjectMaps(store NodeStore, prev, next *ObjectMap) (*ObjectMap, error) {
	diffCT := ContentDiffMap
	if prev.ContentType == ContentSet || prev.ContentType == ContentDiffSet {
		diffCT = ContentDiffSet
	}
	result := NewObjectMap(diffCT)

	tasks := make(chan diffTask, 64)
	results := make(chan diffResult, 64)
	var wg sync.WaitGroup

	enqueue := func(t diffTask) {
		wg.Add(1)
		tasks <- t
	}

	worker := func() {
		for t := range tasks {
			entries, err := diffOne(store, t)
			results <- diffResult{entries: entries, err: err}
			wg.Done()
		}
	}
	for i := 0; i < diffWorkerCount; i++ {
		go worker()
	}

	done := make(chan struct{})
	var firstErr error
	var collected []mapEntry
	go func() {
		for r := range results {
			if r.err != nil && firstErr == nil {
				firstErr = r.err
				continue
			}
			collected = append(collected, r.entries...)
		}
		close(done)
	}()

	enqueue(diffTask{prevSub: prev, nextSub: next})
	wg.Wait()
	close(tasks)
	close(results)
	<-done

	if firstErr != nil {
		return nil, firstErr
	}
	for _, e := range collected {
		entry := e
		result.simple = append(result.simple, entry)
	}
	sort.Slice(result.simple, func(i, j int) bool { return result.simple[i].Key < result.simple[j].Key })
	result.Total = uint64(len(result.simple))
	var size uint64
	for _, e := range result.simple {
		size += uint64(e.measure(result.ContentType))
	}
	result.Size = size
	result.cache.dirty = true
	if result.Size > objectMapSizeLimit {
		return result.inflate(store)
	}
	return result, nil
}

// diffOne compares one (prevSub, nextSub) pair, synchronously recursing for
// Hub/Hub pairs (collecting leaf entries directly); it does not enqueue
// further tasks.
func diffOne(store NodeStore, t diffTask) ([]mapEntry, error) {
	prev, next := t.prevSub, t.nextSub
	switch {
	case prev == nil && next == nil:
		return nil, nil
	case prev == nil:
		return materializeAll(store, next, true)
	case next == nil:
		return materializeAll(store, prev, false)
	case prev.Mode == ModeSimple && next.Mode == ModeSimple:
		return diffSimpleSimple(prev, next), nil
	case prev.Mode == ModeHub && next.Mode == ModeHub:
		return diffHubHub(store, prev, next)
	default:
		// Hub vs Simple, or vice versa: materialize both sides fully and
		// diff as flat key sets, per §4.C "the diff cannot be summarized
		// without materializing one side".
		prevFlat, err := flatten(store, prev)
		if err != nil {
			return nil, err
		}
		nextFlat, err := flatten(store, next)
		if err != nil {
			return nil, err
		}
		return diffSimpleSimple(prevFlat, nextFlat), nil
	}
}

func flatten(store NodeStore, m *ObjectMap) (*ObjectMap, error) {
	if m.Mode == ModeSimple {
		return m, nil
	}
	return m.deflate(store)
}

// materializeAll emits add (isAdd) or remove (!isAdd) entries for every
// leaf transitively reachable from m — the "whole-subtree add/remove task"
// case for a bucket present on only one side.
func materializeAll(store NodeStore, m *ObjectMap, isAdd bool) ([]mapEntry, error) {
	flat, err := flatten(store, m)
	if err != nil {
		return nil, err
	}
	out := make([]mapEntry, 0, len(flat.simple))
	for _, e := range flat.simple {
		entry := mapEntry{Key: e.Key}
		if isAdd {
			v := e.Value
			entry.Altered = &v
		} else {
			v := e.Value
			entry.Prev = &v
		}
		out = append(out, entry)
	}
	return out, nil
}

func diffSimpleSimple(prev, next *ObjectMap) []mapEntry {
	i, j := 0, 0
	var out []mapEntry
	for i < len(prev.simple) || j < len(next.simple) {
		switch {
		case j >= len(next.simple) || (i < len(prev.simple) && prev.simple[i].Key < next.simple[j].Key):
			v := prev.simple[i].Value
			out = append(out, mapEntry{Key: prev.simple[i].Key, Prev: &v})
			i++
		case i >= len(prev.simple) || next.simple[j].Key < prev.simple[i].Key:
			v := next.simple[j].Value
			out = append(out, mapEntry{Key: next.simple[j].Key, Altered: &v})
			j++
		default:
			pv, nv := prev.simple[i].Value, next.simple[j].Value
			if pv != nv {
				out = append(out, mapEntry{Key: prev.simple[i].Key, Prev: &pv, Altered: &nv})
			}
			i++
			j++
		}
	}
	return out
}

func diffHubHub(store NodeStore, prev, next *ObjectMap) ([]mapEntry, error) {
	buckets := make(map[uint16]struct{})
	for b := range prev.hub {
		buckets[b] = struct{}{}
	}
	for b := range next.hub {
		buckets[b] = struct{}{}
	}
	var out []mapEntry
	for b := range buckets {
		var prevSub, nextSub *ObjectMap
		if id, ok := prev.hub[b]; ok {
			s, err := store.Load(id)
			if err != nil {
				return nil, err
			}
			prevSub = s
		}
		if id, ok := next.hub[b]; ok {
			s, err := store.Load(id)
			if err != nil {
				return nil, err
			}
			nextSub = s
		}
		entries, err := diffOne(store, diffTask{prevSub: prevSub, nextSub: nextSub})
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// ApplyDiff applies diffObj to source, returning the resulting ObjectMap.
// Per §4.C, a missing key or mismatched prev is tolerated (logged via the
// returned warnings slice) rather than aborting the whole apply; the
// caller is expected to verify the resulting FlushId() against any
// expectation it holds.
func ApplyDiff(store NodeStore, source, diffObj *ObjectMap) (*ObjectMap, []string, error) {
	flatDiff, err := flatten(store, diffObj)
	if err != nil {
		return nil, nil, err
	}
	resultCT := ContentMap
	if diffObj.ContentType == ContentDiffSet {
		resultCT = ContentSet
	}
	cur := source
	if cur == nil {
		cur = NewObjectMap(resultCT)
	}
	var warnings []string
	for _, e := range flatDiff.simple {
		switch {
		case e.Prev == nil && e.Altered != nil:
			next, err := cur.Set(store, e.Key, *e.Altered)
			if err != nil {
				return nil, warnings, err
			}
			cur = next
		case e.Prev != nil && e.Altered == nil:
			existing, ok, err := cur.Get(store, e.Key)
			if err != nil {
				return nil, warnings, err
			}
			if !ok {
				warnings = append(warnings, "apply: remove of missing key "+e.Key)
				continue
			}
			if existing != *e.Prev {
				warnings = append(warnings, "apply: prev mismatch on remove of key "+e.Key)
			}
			next, err := cur.Remove(store, e.Key)
			if err != nil {
				return nil, warnings, err
			}
			cur = next
		case e.Prev != nil && e.Altered != nil:
			existing, ok, err := cur.Get(store, e.Key)
			if err != nil {
				return nil, warnings, err
			}
			if !ok {
				warnings = append(warnings, "apply: update of missing key "+e.Key)
			} else if existing != *e.Prev {
				warnings = append(warnings, "apply: prev mismatch on update of key "+e.Key)
			}
			target := *e.Altered
			if e.Diff != nil {
				subDiff, err := store.Load(*e.Diff)
				if err != nil {
					return nil, warnings, err
				}
				var subSource *ObjectMap
				if ok {
					loaded, err := store.Load(existing)
					if err == nil {
						subSource = loaded
					}
				}
				newSub, subWarnings, err := ApplyDiff(store, subSource, subDiff)
				if err != nil {
					return nil, warnings, err
				}
				warnings = append(warnings, subWarnings...)
				target, err = store.Save(newSub)
				if err != nil {
					return nil, warnings, err
				}
			}
			next, err := cur.Set(store, e.Key, target)
			if err != nil {
				return nil, warnings, err
			}
			cur = next
		}
	}
	return cur, warnings, nil
}
