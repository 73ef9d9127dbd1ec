package bplustree

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// pageCache is a read-through cache of raw pages in front of the disk
// pager. Admission is best-effort (ristretto may drop a Set), so every
// miss falls back to the file. Writes go to disk first, then here.
type pageCache struct {
	c *ristretto.Cache[int64, []byte]
}

func newPageCache(maxBytes int64) (*pageCache, error) {
	if maxBytes < PageSize {
		maxBytes = PageSize
	}
	c, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: 10 * maxBytes / PageSize,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &pageCache{c: c}, nil
}

// get returns a private copy so callers can never alias a cached page.
func (pc *pageCache) get(id int64) ([]byte, bool) {
	data, ok := pc.c.Get(id)
	if !ok || len(data) != PageSize {
		return nil, false
	}
	out := make([]byte, PageSize)
	copy(out, data)
	return out, true
}

// put installs a page copy and waits for the admission buffer to
// drain. Set is asynchronous; without the Wait a read issued right
// after a write can still see the previous cached copy, and tree
// operations would then rebuild nodes from stale pages.
func (pc *pageCache) put(id int64, data []byte) {
	stored := make([]byte, PageSize)
	copy(stored, data)
	pc.c.Set(id, stored, PageSize)
	pc.c.Wait()
}

func (pc *pageCache) del(id int64) { pc.c.Del(id) }

func (pc *pageCache) clear() { pc.c.Clear() }

func (pc *pageCache) close() { pc.c.Close() }
