package bplustree

// node is one B+tree page: either an inner node (values are child page
// ids) or a leaf (values are user values). Siblings at the same level
// form a doubly-linked list; leaves use it for scans, both levels use
// it during merges.
//
// Invariants: entries strictly sorted by key; len(data) <= sizeMax of
// the level; every non-root node either has more than mergeT entries
// or no previous sibling; an inner node's first entry carries the
// zero-value sentinel key so routing always finds a child.
type node[K, V any] struct {
	self int64
	prev int64
	next int64
	data []Pair[K, V]
}

// levelMeta carries the occupancy thresholds of one node level. Inner
// and leaf entries differ in size, so the thresholds differ too.
type levelMeta struct {
	sizeMax int
	splitT  int
	mergeT  int
}

func newLevelMeta(entrySize int) levelMeta {
	sizeMax := (PageSize - nodeHeaderSize) / entrySize
	return levelMeta{
		sizeMax: sizeMax,
		splitT:  (3*sizeMax+3)/4 - 1,
		mergeT:  (sizeMax+3)/4 - 1,
	}
}

// search returns the index of the last entry whose key is <= key, or
// -1 when every key is greater. The sentinel first entry of inner
// nodes normally guarantees a hit; callers treat -1 as index 0.
func (n *node[K, V]) search(key K, cmp func(K, K) int) int {
	lo, hi := 0, len(n.data)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(n.data[mid].First, key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// insertAt places e immediately after position pos (pos may be -1 to
// prepend).
func (n *node[K, V]) insertAt(pos int, e Pair[K, V]) {
	at := pos + 1
	n.data = append(n.data, e)
	copy(n.data[at+1:], n.data[at:])
	n.data[at] = e
}

func (n *node[K, V]) eraseAt(pos int) {
	n.data = append(n.data[:pos], n.data[pos+1:]...)
}

func (n *node[K, V]) upperSafe(meta levelMeta) bool {
	return len(n.data) < meta.splitT-1
}

func (n *node[K, V]) lowerSafe(meta levelMeta) bool {
	return len(n.data) > meta.mergeT+1 || n.prev == invalidPageID
}

// splitInto moves the upper half of n into right (a freshly allocated
// node). Sibling links between the two are stitched here; the caller
// fixes the old next sibling's prev pointer and informs the parent.
func (n *node[K, V]) splitInto(right *node[K, V]) {
	mid := len(n.data) / 2
	right.data = append(right.data[:0], n.data[mid:]...)
	n.data = n.data[:mid]
	right.prev = n.self
	right.next = n.next
	n.next = right.self
}
