package bplustree

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// PageSize is the fixed size of every on-disk page.
	PageSize = 4096

	// headerPageID is reserved for the pager header; node pages start at 1.
	headerPageID = 0

	invalidPageID int64 = 0
)

// OnDiskPager stores fixed-size pages in a single file, addressed by
// pageID*PageSize. Page 0 holds the allocation cursor so that page ids
// stay stable across restarts. Freed pages are not recycled.
type OnDiskPager struct {
	file  *os.File
	path  string
	next  int64
	cache *pageCache
}

// NewOnDiskPager opens (or creates) the page file and restores the
// allocation cursor from the header page.
func NewOnDiskPager(path string, cacheBytes int64) (*OnDiskPager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open page file %s: %w", path, err)
	}

	p := &OnDiskPager{file: file, path: path, next: 1}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat page file %s: %w", path, err)
	}
	if stat.Size() >= PageSize {
		header := make([]byte, PageSize)
		if _, err := file.ReadAt(header, 0); err != nil {
			file.Close()
			return nil, fmt.Errorf("read pager header: %w", err)
		}
		if next := int64(binary.LittleEndian.Uint64(header[0:8])); next > 0 {
			p.next = next
		}
	}

	cache, err := newPageCache(cacheBytes)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.cache = cache
	return p, nil
}

// NewPage allocates a fresh zeroed page and returns its id.
func (p *OnDiskPager) NewPage() (int64, error) {
	id := p.next
	p.next++
	empty := make([]byte, PageSize)
	if _, err := p.file.WriteAt(empty, id*PageSize); err != nil {
		return invalidPageID, fmt.Errorf("allocate page %d: %w", id, err)
	}
	return id, nil
}

// ReadPage returns a private copy of the page contents.
func (p *OnDiskPager) ReadPage(id int64) ([]byte, error) {
	if id <= headerPageID {
		return nil, fmt.Errorf("read page: invalid page id %d", id)
	}
	if data, ok := p.cache.get(id); ok {
		return data, nil
	}
	page := make([]byte, PageSize)
	n, err := p.file.ReadAt(page, id*PageSize)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", id, err)
	}
	if n != PageSize {
		return nil, fmt.Errorf("read page %d: short read (%d bytes)", id, n)
	}
	p.cache.put(id, page)
	return page, nil
}

// WritePage writes a full page and refreshes the cache entry.
func (p *OnDiskPager) WritePage(id int64, data []byte) error {
	if id <= headerPageID {
		return fmt.Errorf("write page: invalid page id %d", id)
	}
	if len(data) != PageSize {
		return fmt.Errorf("write page %d: got %d bytes, want %d", id, len(data), PageSize)
	}
	if _, err := p.file.WriteAt(data, id*PageSize); err != nil {
		return fmt.Errorf("write page %d: %w", id, err)
	}
	p.cache.put(id, data)
	return nil
}

// DeletePage logically frees a page. The simple store does not recycle
// ids; the page just becomes unreachable.
func (p *OnDiskPager) DeletePage(id int64) {
	p.cache.del(id)
}

// Clear resets the allocation cursor. Old pages remain in the file but
// are unreachable.
func (p *OnDiskPager) Clear() error {
	p.next = 1
	p.cache.clear()
	return p.writeHeader()
}

func (p *OnDiskPager) writeHeader() error {
	header := make([]byte, PageSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(p.next))
	if _, err := p.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("write pager header: %w", err)
	}
	return nil
}

// Close persists the allocation cursor and flushes the file.
func (p *OnDiskPager) Close() error {
	if p.file == nil {
		return nil
	}
	if err := p.writeHeader(); err != nil {
		p.file.Close()
		return err
	}
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("sync page file: %w", err)
	}
	err := p.file.Close()
	p.file = nil
	p.cache.close()
	return err
}
