package bplustree

import (
	"math"

	"RailwayDB/fileconfig"
)

// HashedSingleMap stores one value per string key, keyed by the
// 64-bit hash of the key.
type HashedSingleMap[V any] struct {
	tree *Tree[uint64, V]
}

func OpenHashedSingleMap[V any](path string, slab *fileconfig.Slab, cacheBytes int64, vc Codec[V]) (*HashedSingleMap[V], error) {
	tree, err := Open(path, slab, cacheBytes, CompareUint64, Uint64Codec{}, vc)
	if err != nil {
		return nil, err
	}
	return &HashedSingleMap[V]{tree: tree}, nil
}

func (m *HashedSingleMap[V]) Insert(key string, v V) error { return m.tree.Insert(Hash(key), v) }

func (m *HashedSingleMap[V]) Find(key string) (V, bool, error) { return m.tree.Find(Hash(key)) }

func (m *HashedSingleMap[V]) FindHash(h uint64) (V, bool, error) { return m.tree.Find(h) }

func (m *HashedSingleMap[V]) Erase(key string) (bool, error) { return m.tree.Erase(Hash(key)) }

func (m *HashedSingleMap[V]) Modify(key string, fn func(*V)) (bool, error) {
	return m.tree.Modify(Hash(key), fn)
}

func (m *HashedSingleMap[V]) ModifyHash(h uint64, fn func(*V)) (bool, error) {
	return m.tree.Modify(h, fn)
}

func (m *HashedSingleMap[V]) Clear() error { return m.tree.Clear() }

func (m *HashedSingleMap[V]) Close() error { return m.tree.Close() }

// OrderedHashMultiMap stores any number of values per 64-bit hash,
// keyed by the composite (hash, value) with a unit payload. Lookup
// range-scans [(h, zeroV), (h+1, zeroV)] and filters to exactly h; the
// h+1 sentinel closes the ordered range at the key boundary.
type OrderedHashMultiMap[V any] struct {
	tree *Tree[Pair[uint64, V], Nothing]
}

func OpenOrderedHashMultiMap[V any](path string, slab *fileconfig.Slab, cacheBytes int64, cmpV func(V, V) int, vc Codec[V]) (*OrderedHashMultiMap[V], error) {
	kc := PairCodec[uint64, V]{A: Uint64Codec{}, B: vc}
	cmp := PairCompare(CompareUint64, cmpV)
	tree, err := Open(path, slab, cacheBytes, cmp, kc, NothingCodec{})
	if err != nil {
		return nil, err
	}
	return &OrderedHashMultiMap[V]{tree: tree}, nil
}

func (m *OrderedHashMultiMap[V]) Insert(h uint64, v V) error {
	return m.tree.Insert(Pair[uint64, V]{First: h, Second: v}, Nothing{})
}

func (m *OrderedHashMultiMap[V]) Erase(h uint64, v V) (bool, error) {
	return m.tree.Erase(Pair[uint64, V]{First: h, Second: v})
}

// Find returns all values stored under h, in value order.
func (m *OrderedHashMultiMap[V]) Find(h uint64) ([]V, error) {
	var zeroV V
	hi := uint64(math.MaxUint64)
	if h != hi {
		hi = h + 1
	}
	entries, err := m.tree.RangeFind(Pair[uint64, V]{First: h, Second: zeroV}, Pair[uint64, V]{First: hi, Second: zeroV})
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(entries))
	for _, e := range entries {
		if e.First.First == h {
			out = append(out, e.First.Second)
		}
	}
	return out, nil
}

func (m *OrderedHashMultiMap[V]) Clear() error { return m.tree.Clear() }

func (m *OrderedHashMultiMap[V]) Close() error { return m.tree.Close() }
