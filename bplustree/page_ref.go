package bplustree

// pageRef owns the decoded record of one page together with a dirty
// bit. Mutators go through markDirty; release writes the record back
// exactly when dirty and invalidates the ref. Operations are written
// so that at most one live ref to any page exists at a time.
type pageRef[K, V any] struct {
	id    int64
	n     *node[K, V]
	pager *OnDiskPager
	codec nodeCodec[K, V]
	dirty bool
	valid bool
}

// loadRef reads and decodes an existing page.
func loadRef[K, V any](pager *OnDiskPager, codec nodeCodec[K, V], id int64) (*pageRef[K, V], error) {
	page, err := pager.ReadPage(id)
	if err != nil {
		return nil, err
	}
	n, err := codec.decode(page)
	if err != nil {
		return nil, err
	}
	return &pageRef[K, V]{id: id, n: n, pager: pager, codec: codec, valid: true}, nil
}

// newRef wraps a freshly built node for a just-allocated page. It
// starts dirty so the node reaches disk on release.
func newRef[K, V any](pager *OnDiskPager, codec nodeCodec[K, V], n *node[K, V]) *pageRef[K, V] {
	return &pageRef[K, V]{id: n.self, n: n, pager: pager, codec: codec, dirty: true, valid: true}
}

func (r *pageRef[K, V]) markDirty() { r.dirty = true }

// release writes the node back if dirty and invalidates the ref.
func (r *pageRef[K, V]) release() error {
	if !r.valid {
		return nil
	}
	r.valid = false
	if !r.dirty {
		return nil
	}
	r.dirty = false
	page, err := r.codec.encode(r.n)
	if err != nil {
		return err
	}
	return r.pager.WritePage(r.id, page)
}

// discard invalidates the ref without writing, for pages that were
// merged away or superseded.
func (r *pageRef[K, V]) discard() {
	r.valid = false
	r.dirty = false
}
