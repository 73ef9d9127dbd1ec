package bplustree

import "fmt"

// Node page layout (little-endian):
//   - header (48 bytes): self(8), prev(8), next(8), size(8), reserved(16)
//   - size entries of key+value, each entrySize bytes
const nodeHeaderSize = 48

// nodeCodec serializes one node level. The same type covers inner
// nodes (V = int64 child ids) and leaves (V = user value).
type nodeCodec[K, V any] struct {
	kc   Codec[K]
	vc   Codec[V]
	meta levelMeta
}

func newNodeCodec[K, V any](kc Codec[K], vc Codec[V]) nodeCodec[K, V] {
	return nodeCodec[K, V]{kc: kc, vc: vc, meta: newLevelMeta(kc.Size() + vc.Size())}
}

func (c nodeCodec[K, V]) encode(n *node[K, V]) ([]byte, error) {
	if len(n.data) > c.meta.sizeMax {
		return nil, fmt.Errorf("encode node %d: %d entries exceed capacity %d", n.self, len(n.data), c.meta.sizeMax)
	}
	page := make([]byte, PageSize)
	putInt64 := Int64Codec{}
	putInt64.Encode(page[0:], n.self)
	putInt64.Encode(page[8:], n.prev)
	putInt64.Encode(page[16:], n.next)
	putInt64.Encode(page[24:], int64(len(n.data)))

	entrySize := c.kc.Size() + c.vc.Size()
	offset := nodeHeaderSize
	for _, e := range n.data {
		c.kc.Encode(page[offset:], e.First)
		c.vc.Encode(page[offset+c.kc.Size():], e.Second)
		offset += entrySize
	}
	return page, nil
}

func (c nodeCodec[K, V]) decode(page []byte) (*node[K, V], error) {
	if len(page) != PageSize {
		return nil, fmt.Errorf("decode node: page size %d, want %d", len(page), PageSize)
	}
	getInt64 := Int64Codec{}
	n := &node[K, V]{
		self: getInt64.Decode(page[0:]),
		prev: getInt64.Decode(page[8:]),
		next: getInt64.Decode(page[16:]),
	}
	size := int(getInt64.Decode(page[24:]))
	if size < 0 || size > c.meta.sizeMax {
		return nil, fmt.Errorf("decode node %d: corrupt entry count %d", n.self, size)
	}

	entrySize := c.kc.Size() + c.vc.Size()
	n.data = make([]Pair[K, V], 0, size)
	offset := nodeHeaderSize
	for i := 0; i < size; i++ {
		n.data = append(n.data, Pair[K, V]{
			First:  c.kc.Decode(page[offset:]),
			Second: c.vc.Decode(page[offset+c.kc.Size():]),
		})
		offset += entrySize
	}
	return n, nil
}
