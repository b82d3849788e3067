package core

// objectmap_iter.go – resumable iteration over an ObjectMap (§4.C
// "Iteration"). Entries of a Simple node come out in ascending key order; a
// Hub node is walked bucket by bucket in ascending bucket index, so keys in
// different buckets are not in ascending key order relative to each other.
// A Cursor holds one position per depth; Next(n)
// returns up to n items and leaves the cursor ready for the following
// call, so a caller can page through a tree far larger than memory without
// holding a lock across calls.

// cursorFrame is one level of a Cursor's position stack.
type cursorFrame struct {
	node *ObjectMap

	// Simple-mode progress: index of the next unread entry.
	simpleIdx int

	// Hub-mode progress: sorted bucket list and the index of the bucket
	// currently being iterated (whose sub-frame, if any, is pushed above
	// this one).
	buckets   []uint16
	bucketIdx int
}

// Cursor walks an ObjectMap: ascending key order within a Simple node,
// ascending bucket order across a Hub's buckets.
type Cursor struct {
	store NodeStore
	stack []*cursorFrame
	done  bool
}

// NewCursor starts a Cursor at the beginning of root.
func NewCursor(store NodeStore, root *ObjectMap) *Cursor {
	c := &Cursor{store: store}
	c.push(root)
	return c
}

func (c *Cursor) push(node *ObjectMap) {
	f := &cursorFrame{node: node}
	if node.Mode == ModeHub {
		f.buckets = node.sortedBuckets()
	}
	c.stack = append(c.stack, f)
}

// KeyValue is one item returned by Next.
type KeyValue struct {
	Key   string
	Value ObjectId
}

// Next returns up to n items in the cursor's walk order, advancing the cursor.
// A returned slice shorter than n (possibly empty) with done=true means
// iteration has reached the end of the tree.
func (c *Cursor) Next(n int) (items []KeyValue, done bool, err error) {
	for len(items) < n {
		if len(c.stack) == 0 {
			return items, true, nil
		}
		top := c.stack[len(c.stack)-1]
		if top.node.Mode == ModeSimple {
			if top.simpleIdx >= len(top.node.simple) {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			e := top.node.simple[top.simpleIdx]
			top.simpleIdx++
			items = append(items, KeyValue{Key: e.Key, Value: e.Value})
			continue
		}
		// Hub mode: descend into the current bucket's sub-node, or advance
		// past it if already exhausted.
		if top.bucketIdx >= len(top.buckets) {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		bucket := top.buckets[top.bucketIdx]
		subId := top.node.hub[bucket]
		sub, loadErr := c.store.Load(subId)
		if loadErr != nil {
			return items, false, loadErr
		}
		top.bucketIdx++
		c.push(sub)
	}
	return items, false, nil
}

// CollectAll drains the cursor fully, paging batchSize items at a time.
// Intended for small maps and tests; production callers page explicitly.
func (c *Cursor) CollectAll(batchSize int) ([]KeyValue, error) {
	var all []KeyValue
	for {
		batch, done, err := c.Next(batchSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if done {
			return all, nil
		}
		if len(batch) == 0 {
			return all, nil
		}
	}
}
