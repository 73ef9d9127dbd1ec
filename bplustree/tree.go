package bplustree

import (
	"fmt"

	"RailwayDB/fileconfig"
)

// Tree is a disk-resident ordered map over fixed-size keys and values.
// Inner nodes map separator keys to child page ids; leaves hold the
// user values and are chained for range scans. The root id and the
// number of inner levels persist in the counter slab.
type Tree[K, V any] struct {
	pager *OnDiskPager
	cmp   func(K, K) int
	inner nodeCodec[K, int64]
	leaf  nodeCodec[K, V]
	cfg   *fileconfig.Value[TreeConfig]

	root  int64
	layer int // inner levels above the leaves; 0 means root's children are leaves
	zeroK K
}

// TreeConfig is the restart-surviving identity of one tree.
type TreeConfig struct {
	IsSet bool
	Layer int32
	Root  int64
}

type opType int

const (
	opFind opType = iota
	opInsert
	opDelete
)

type parentStep[K any] struct {
	ref *pageRef[K, int64]
	idx int
}

// Open opens or initializes a tree backed by its own page file. cmp
// must be a total order; kc and vc must produce fixed-size encodings
// small enough for at least 8 entries per node.
func Open[K, V any](path string, slab *fileconfig.Slab, cacheBytes int64, cmp func(K, K) int, kc Codec[K], vc Codec[V]) (*Tree[K, V], error) {
	t := &Tree[K, V]{
		cmp:   cmp,
		inner: newNodeCodec[K, int64](kc, Int64Codec{}),
		leaf:  newNodeCodec(kc, vc),
	}
	if t.inner.meta.sizeMax < 8 || t.leaf.meta.sizeMax < 8 {
		return nil, fmt.Errorf("open tree %s: entry too large for %d-byte pages", path, PageSize)
	}

	pager, err := NewOnDiskPager(path, cacheBytes)
	if err != nil {
		return nil, err
	}
	t.pager = pager

	cfg, err := fileconfig.Bind(slab, TreeConfig{})
	if err != nil {
		pager.Close()
		return nil, err
	}
	t.cfg = cfg

	if c := cfg.Get(); c.IsSet && c.Root != invalidPageID {
		t.root = c.Root
		t.layer = int(c.Layer)
		return t, nil
	}
	if err := t.initEmpty(); err != nil {
		pager.Close()
		return nil, err
	}
	return t, nil
}

// initEmpty builds the minimal tree: an inner root routing through the
// sentinel key to a single leaf that holds one sentinel entry.
func (t *Tree[K, V]) initEmpty() error {
	rootID, err := t.pager.NewPage()
	if err != nil {
		return err
	}
	leafID, err := t.pager.NewPage()
	if err != nil {
		return err
	}

	var sentinel Pair[K, V]
	leaf := &node[K, V]{self: leafID, data: []Pair[K, V]{sentinel}}
	if err := newRef(t.pager, t.leaf, leaf).release(); err != nil {
		return err
	}
	root := &node[K, int64]{self: rootID, data: []Pair[K, int64]{{First: t.zeroK, Second: leafID}}}
	if err := newRef(t.pager, t.inner, root).release(); err != nil {
		return err
	}

	t.root = rootID
	t.layer = 0
	t.cfg.Set(TreeConfig{IsSet: true, Layer: 0, Root: rootID})
	return nil
}

func releaseSteps[K any](steps []parentStep[K]) error {
	var first error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].ref.release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// findPos descends from the root to the leaf responsible for key. For
// insert and erase it retains the unsafe suffix of the parent path:
// whenever a visited node is guaranteed not to split (resp. merge),
// the parents collected so far are dropped, bounding the write set.
func (t *Tree[K, V]) findPos(key K, op opType) (*pageRef[K, V], int, []parentStep[K], error) {
	var parents []parentStep[K]
	nextID := t.root

	for i := 0; i <= t.layer; i++ {
		ref, err := loadRef(t.pager, t.inner, nextID)
		if err != nil {
			releaseSteps(parents)
			return nil, 0, nil, err
		}
		idx := ref.n.search(key, t.cmp)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(ref.n.data) {
			ref.release()
			releaseSteps(parents)
			return nil, 0, nil, fmt.Errorf("tree descent: empty inner node %d", nextID)
		}
		nextID = ref.n.data[idx].Second

		if op == opFind {
			if err := ref.release(); err != nil {
				releaseSteps(parents)
				return nil, 0, nil, err
			}
			continue
		}
		safe := (op == opInsert && ref.n.upperSafe(t.inner.meta)) ||
			(op == opDelete && ref.n.lowerSafe(t.inner.meta))
		if safe {
			if err := releaseSteps(parents); err != nil {
				ref.release()
				return nil, 0, nil, err
			}
			parents = parents[:0]
		}
		parents = append(parents, parentStep[K]{ref: ref, idx: idx})
	}

	leaf, err := loadRef(t.pager, t.leaf, nextID)
	if err != nil {
		releaseSteps(parents)
		return nil, 0, nil, err
	}
	if op != opFind {
		safe := (op == opInsert && leaf.n.upperSafe(t.leaf.meta)) ||
			(op == opDelete && leaf.n.lowerSafe(t.leaf.meta))
		if safe {
			if err := releaseSteps(parents); err != nil {
				leaf.release()
				return nil, 0, nil, err
			}
			parents = nil
		}
	}
	return leaf, leaf.n.search(key, t.cmp), parents, nil
}

// Find returns the value stored under key.
func (t *Tree[K, V]) Find(key K) (V, bool, error) {
	var zero V
	leaf, idx, _, err := t.findPos(key, opFind)
	if err != nil {
		return zero, false, err
	}
	defer leaf.release()
	if idx >= 0 && idx < len(leaf.n.data) && t.cmp(leaf.n.data[idx].First, key) == 0 {
		return leaf.n.data[idx].Second, true, nil
	}
	return zero, false, nil
}

// Insert stores value under key, overwriting any existing value.
func (t *Tree[K, V]) Insert(key K, value V) error {
	leaf, idx, parents, err := t.findPos(key, opInsert)
	if err != nil {
		return err
	}

	if idx >= 0 && idx < len(leaf.n.data) && t.cmp(leaf.n.data[idx].First, key) == 0 {
		leaf.n.data[idx].Second = value
		leaf.markDirty()
		if err := leaf.release(); err != nil {
			releaseSteps(parents)
			return err
		}
		return releaseSteps(parents)
	}

	leaf.n.insertAt(idx, Pair[K, V]{First: key, Second: value})
	leaf.markDirty()

	if len(parents) == 0 {
		return leaf.release()
	}
	if len(leaf.n.data) < t.leaf.meta.splitT {
		if err := leaf.release(); err != nil {
			releaseSteps(parents)
			return err
		}
		return releaseSteps(parents)
	}

	promoted, childID, err := splitNode(t.pager, t.leaf, leaf)
	if err != nil {
		releaseSteps(parents)
		return err
	}

	for len(parents) > 0 {
		step := parents[len(parents)-1]
		parents = parents[:len(parents)-1]

		step.ref.n.insertAt(step.idx, Pair[K, int64]{First: promoted, Second: childID})
		step.ref.markDirty()
		if len(step.ref.n.data) < t.inner.meta.splitT {
			if err := step.ref.release(); err != nil {
				releaseSteps(parents)
				return err
			}
			return releaseSteps(parents)
		}
		promoted, childID, err = splitNode(t.pager, t.inner, step.ref)
		if err != nil {
			releaseSteps(parents)
			return err
		}
	}

	// The root itself split: grow one level.
	newRootID, err := t.pager.NewPage()
	if err != nil {
		return err
	}
	newRoot := &node[K, int64]{self: newRootID, data: []Pair[K, int64]{
		{First: t.zeroK, Second: t.root},
		{First: promoted, Second: childID},
	}}
	if err := newRef(t.pager, t.inner, newRoot).release(); err != nil {
		return err
	}
	t.root = newRootID
	t.layer++
	return nil
}

// splitNode moves the upper half of ref into a freshly allocated right
// sibling, stitches the sibling chain, writes both nodes back, and
// returns the separator to promote into the parent.
func splitNode[K, V any](pager *OnDiskPager, codec nodeCodec[K, V], ref *pageRef[K, V]) (K, int64, error) {
	var zeroK K
	rightID, err := pager.NewPage()
	if err != nil {
		return zeroK, 0, err
	}
	if ref.n.next != invalidPageID {
		next, err := loadRef(pager, codec, ref.n.next)
		if err != nil {
			return zeroK, 0, err
		}
		next.n.prev = rightID
		next.markDirty()
		if err := next.release(); err != nil {
			return zeroK, 0, err
		}
	}

	right := &node[K, V]{self: rightID}
	ref.n.splitInto(right)
	ref.markDirty()

	promoted := right.data[0].First
	if err := newRef(pager, codec, right).release(); err != nil {
		return zeroK, 0, err
	}
	if err := ref.release(); err != nil {
		return zeroK, 0, err
	}
	return promoted, rightID, nil
}

// mergeNode folds ref into its previous sibling when the combined size
// fits. On success ref's page is logically deleted and the caller must
// erase the parent entry that routed to it.
func mergeNode[K, V any](pager *OnDiskPager, codec nodeCodec[K, V], ref *pageRef[K, V]) (bool, error) {
	prev, err := loadRef(pager, codec, ref.n.prev)
	if err != nil {
		ref.release()
		return false, err
	}
	if len(prev.n.data)+len(ref.n.data) >= codec.meta.sizeMax-1 {
		if err := prev.release(); err != nil {
			ref.release()
			return false, err
		}
		return false, ref.release()
	}

	if ref.n.next != invalidPageID {
		next, err := loadRef(pager, codec, ref.n.next)
		if err != nil {
			prev.release()
			ref.release()
			return false, err
		}
		next.n.prev = ref.n.prev
		next.markDirty()
		if err := next.release(); err != nil {
			prev.release()
			ref.release()
			return false, err
		}
	}

	prev.n.data = append(prev.n.data, ref.n.data...)
	prev.n.next = ref.n.next
	prev.markDirty()
	if err := prev.release(); err != nil {
		ref.release()
		return false, err
	}
	pager.DeletePage(ref.id)
	ref.discard()
	return true, nil
}

// Erase removes key. Returns false when the key was not present.
func (t *Tree[K, V]) Erase(key K) (bool, error) {
	leaf, idx, parents, err := t.findPos(key, opDelete)
	if err != nil {
		return false, err
	}
	if idx < 0 || idx >= len(leaf.n.data) || t.cmp(leaf.n.data[idx].First, key) != 0 {
		leaf.release()
		releaseSteps(parents)
		return false, nil
	}

	leaf.n.eraseAt(idx)
	leaf.markDirty()

	if len(parents) == 0 {
		return true, leaf.release()
	}
	if len(leaf.n.data) > t.leaf.meta.mergeT || leaf.n.prev == invalidPageID {
		if err := leaf.release(); err != nil {
			releaseSteps(parents)
			return true, err
		}
		return true, releaseSteps(parents)
	}

	merged, err := mergeNode(t.pager, t.leaf, leaf)
	if err != nil {
		releaseSteps(parents)
		return true, err
	}
	if !merged {
		return true, releaseSteps(parents)
	}

	for len(parents) > 0 {
		step := parents[len(parents)-1]
		parents = parents[:len(parents)-1]

		step.ref.n.eraseAt(step.idx)
		step.ref.markDirty()

		if step.ref.id == t.root {
			// Collapse the root when it routes everything through the
			// sentinel to a single child.
			if len(step.ref.n.data) == 1 && t.layer > 0 && t.cmp(step.ref.n.data[0].First, t.zeroK) == 0 {
				oldRoot := t.root
				t.root = step.ref.n.data[0].Second
				t.layer--
				step.ref.discard()
				t.pager.DeletePage(oldRoot)
			} else if err := step.ref.release(); err != nil {
				releaseSteps(parents)
				return true, err
			}
			return true, releaseSteps(parents)
		}

		if len(step.ref.n.data) > t.inner.meta.mergeT || step.ref.n.prev == invalidPageID {
			if err := step.ref.release(); err != nil {
				releaseSteps(parents)
				return true, err
			}
			return true, releaseSteps(parents)
		}
		merged, err = mergeNode(t.pager, t.inner, step.ref)
		if err != nil {
			releaseSteps(parents)
			return true, err
		}
		if !merged {
			return true, releaseSteps(parents)
		}
	}
	return true, nil
}

// Modify applies fn to the value stored under key, in place.
func (t *Tree[K, V]) Modify(key K, fn func(*V)) (bool, error) {
	leaf, idx, _, err := t.findPos(key, opFind)
	if err != nil {
		return false, err
	}
	if idx >= 0 && idx < len(leaf.n.data) && t.cmp(leaf.n.data[idx].First, key) == 0 {
		fn(&leaf.n.data[idx].Second)
		leaf.markDirty()
		return true, leaf.release()
	}
	return false, leaf.release()
}

// RangeFind collects all entries with lo <= key <= hi in key order.
func (t *Tree[K, V]) RangeFind(lo, hi K) ([]Pair[K, V], error) {
	leaf, idx, _, err := t.findPos(lo, opFind)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		idx = 0
	}
	for idx < len(leaf.n.data) && t.cmp(leaf.n.data[idx].First, lo) < 0 {
		idx++
	}

	var out []Pair[K, V]
	for {
		for ; idx < len(leaf.n.data); idx++ {
			if t.cmp(leaf.n.data[idx].First, hi) > 0 {
				return out, leaf.release()
			}
			out = append(out, leaf.n.data[idx])
		}
		next := leaf.n.next
		if err := leaf.release(); err != nil {
			return out, err
		}
		if next == invalidPageID {
			return out, nil
		}
		if leaf, err = loadRef(t.pager, t.leaf, next); err != nil {
			return out, err
		}
		idx = 0
	}
}

// RangeModify applies fn in place to every value with lo <= key <= hi
// and returns how many values it touched.
func (t *Tree[K, V]) RangeModify(lo, hi K, fn func(*V)) (int, error) {
	leaf, idx, _, err := t.findPos(lo, opFind)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		idx = 0
	}
	for idx < len(leaf.n.data) && t.cmp(leaf.n.data[idx].First, lo) < 0 {
		idx++
	}

	count := 0
	for {
		for ; idx < len(leaf.n.data); idx++ {
			if t.cmp(leaf.n.data[idx].First, hi) > 0 {
				return count, leaf.release()
			}
			fn(&leaf.n.data[idx].Second)
			leaf.markDirty()
			count++
		}
		next := leaf.n.next
		if err := leaf.release(); err != nil {
			return count, err
		}
		if next == invalidPageID {
			return count, nil
		}
		if leaf, err = loadRef(t.pager, t.leaf, next); err != nil {
			return count, err
		}
		idx = 0
	}
}

// Height is the number of inner levels above the leaves.
func (t *Tree[K, V]) Height() int { return t.layer }

// Clear resets the tree to its initial empty state. Old pages become
// unreachable.
func (t *Tree[K, V]) Clear() error {
	if err := t.pager.Clear(); err != nil {
		return err
	}
	return t.initEmpty()
}

// Close persists the root metadata and the page file. The counter slab
// itself is closed by its owner.
func (t *Tree[K, V]) Close() error {
	t.cfg.Set(TreeConfig{IsSet: true, Layer: int32(t.layer), Root: t.root})
	return t.pager.Close()
}
